// Package ble provides the Bluetooth Low Energy link used to drive a PT Baby
// swing. It resolves a peripheral by address, connects to it, and exposes
// characteristic writes and notifications by characteristic UUID.
package ble

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Resolve when no peripheral with the requested
// address could be located before the context expired.
var ErrNotFound = errors.New("ble: device not found")

// Device represents a discovered BLE peripheral.
type Device struct {
	Name    string
	Address string
	RSSI    int
}

// Connection represents an active BLE connection to a peripheral.
type Connection interface {
	// Write sends data to the characteristic identified by charUUID. When
	// expectResponse is false the write is fire-and-forget. Not every stack
	// supports acknowledged writes.
	Write(ctx context.Context, charUUID string, data []byte, expectResponse bool) error
	// Subscribe registers a callback for notifications on charUUID.
	Subscribe(charUUID string, callback func(data []byte)) error
	// Disconnect terminates the connection.
	Disconnect() error
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// Scan discovers BLE peripherals until ctx is done. An empty serviceUUID
	// reports every advertising peripheral.
	Scan(ctx context.Context, serviceUUID string) ([]Device, error)
	// Resolve locates the peripheral with the given address.
	Resolve(ctx context.Context, address string) (Device, error)
	// Connect establishes a connection to a resolved peripheral. onDisconnect
	// is invoked once if the link drops after Connect returns.
	Connect(ctx context.Context, dev Device, onDisconnect func()) (Connection, error)
}
