//go:build linux

package ble

import (
	"log/slog"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	bluezBusName     = "org.bluez"
	bluezAdapterPath = "/org/bluez/hci0"
	bluezDeviceIface = "org.bluez.Device1"
	dbusPropsIface   = "org.freedesktop.DBus.Properties"
)

// bluezDevicePath converts a MAC address like "AA:BB:CC:DD:EE:FF" to
// "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF".
func bluezDevicePath(addr string) dbus.ObjectPath {
	escaped := strings.ReplaceAll(strings.ToUpper(addr), ":", "_")
	return dbus.ObjectPath(bluezAdapterPath + "/dev_" + escaped)
}

// knownToBlueZ reports whether BlueZ already holds a Device1 object for
// address. tinygo/bluetooth can connect to such a device without scanning.
// The returned name is the BlueZ alias, if any.
func knownToBlueZ(address string) (string, bool) {
	if len(address) != 17 {
		return "", false
	}

	conn, err := dbus.SystemBus()
	if err != nil {
		slog.Debug("[BLE] system bus unavailable, falling back to scan", "error", err)
		return "", false
	}

	obj := conn.Object(bluezBusName, bluezDevicePath(address))
	var addr dbus.Variant
	if err := obj.Call(dbusPropsIface+".Get", 0, bluezDeviceIface, "Address").Store(&addr); err != nil {
		return "", false
	}

	var name string
	var alias dbus.Variant
	if err := obj.Call(dbusPropsIface+".Get", 0, bluezDeviceIface, "Alias").Store(&alias); err == nil {
		name, _ = alias.Value().(string)
	}
	return name, true
}
