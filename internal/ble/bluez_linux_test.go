//go:build linux

package ble

import "testing"

func TestBluezDevicePath(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"AA:BB:CC:DD:EE:FF", "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF"},
		{"aa:bb:cc:dd:ee:0f", "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_0F"},
	}
	for _, tt := range tests {
		if got := string(bluezDevicePath(tt.addr)); got != tt.want {
			t.Errorf("bluezDevicePath(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestKnownToBlueZRejectsNonMAC(t *testing.T) {
	// CoreBluetooth-style identifiers never map to a BlueZ object path.
	if _, ok := knownToBlueZ("5c3f1a2e-9b7d-4c61-8e0f-1a2b3c4d5e6f"); ok {
		t.Error("knownToBlueZ() should reject non-MAC addresses")
	}
}
