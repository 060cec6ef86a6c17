package ble

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"tinygo.org/x/bluetooth"
)

// TinyGoAdapter implements Adapter on top of tinygo-org/bluetooth, which
// talks to BlueZ on Linux and CoreBluetooth on macOS. On macOS peripheral
// addresses are CoreBluetooth UUIDs rather than MAC addresses; both are
// handled as opaque, case-insensitive strings.
type TinyGoAdapter struct {
	adapter     *bluetooth.Adapter
	serviceUUID string // optional filter for characteristic discovery

	// scanMu serializes scans; the host stack allows only one at a time.
	scanMu sync.Mutex

	// mu protects the connections map.
	mu          sync.Mutex
	connections map[string]*tinyGoConnection // keyed by upper-cased address
}

// NewTinyGoAdapter creates a BLE adapter using the platform default stack.
// When serviceUUID is non-empty only characteristics of that service are
// discovered after connecting.
func NewTinyGoAdapter(serviceUUID string) *TinyGoAdapter {
	return &TinyGoAdapter{
		adapter:     bluetooth.DefaultAdapter,
		serviceUUID: serviceUUID,
		connections: make(map[string]*tinyGoConnection),
	}
}

func (a *TinyGoAdapter) Enable() error {
	if err := a.adapter.Enable(); err != nil {
		return err
	}

	// tinygo/bluetooth reports disconnects only through the adapter-level
	// handler, so route them to the matching connection.
	a.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if !connected {
			a.handleDisconnect(device.Address.String())
		}
	})

	return nil
}

// handleDisconnect unregisters the connection to address and fires its
// onDisconnect.
func (a *TinyGoAdapter) handleDisconnect(address string) {
	key := strings.ToUpper(address)
	a.mu.Lock()
	conn, ok := a.connections[key]
	if ok {
		delete(a.connections, key)
	}
	a.mu.Unlock()
	if ok {
		slog.Debug("[BLE] peripheral disconnected", "address", key)
		conn.lost()
	}
}

func (a *TinyGoAdapter) Scan(ctx context.Context, serviceUUID string) ([]Device, error) {
	var filter *bluetooth.UUID
	if serviceUUID != "" {
		uuid, err := ParseUUID(serviceUUID)
		if err != nil {
			return nil, err
		}
		filter = &uuid
	}

	var mu sync.Mutex
	var devices []Device
	seen := make(map[string]bool)

	err := a.scan(ctx, func(result bluetooth.ScanResult) bool {
		if filter != nil && !result.HasServiceUUID(*filter) {
			return false
		}
		addr := result.Address.String()
		mu.Lock()
		defer mu.Unlock()
		if seen[addr] {
			return false
		}
		seen[addr] = true
		devices = append(devices, Device{
			Name:    result.LocalName(),
			Address: addr,
			RSSI:    int(result.RSSI),
		})
		return false
	})
	if err != nil {
		return nil, err
	}
	return devices, nil
}

// Resolve returns immediately when BlueZ already caches the device, and
// otherwise scans until the address shows up or ctx is done.
func (a *TinyGoAdapter) Resolve(ctx context.Context, address string) (Device, error) {
	if name, ok := knownToBlueZ(address); ok {
		return Device{Name: name, Address: address}, nil
	}

	var found *Device
	err := a.scan(ctx, func(result bluetooth.ScanResult) bool {
		if !strings.EqualFold(result.Address.String(), address) {
			return false
		}
		found = &Device{
			Name:    result.LocalName(),
			Address: address,
			RSSI:    int(result.RSSI),
		}
		return true
	})
	if err != nil {
		return Device{}, err
	}
	if found == nil {
		return Device{}, fmt.Errorf("%w: %s", ErrNotFound, address)
	}
	return *found, nil
}

// scan runs a scan until ctx is done or match returns true.
func (a *TinyGoAdapter) scan(ctx context.Context, match func(bluetooth.ScanResult) bool) error {
	a.scanMu.Lock()
	defer a.scanMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			a.adapter.StopScan()
		case <-done:
		}
	}()

	err := a.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		if match(result) {
			adapter.StopScan()
		}
	})
	close(done)

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("ble: scan: %w", err)
	}
	return nil
}

func (a *TinyGoAdapter) Connect(ctx context.Context, dev Device, onDisconnect func()) (Connection, error) {
	var addr bluetooth.Address
	addr.Set(dev.Address)

	// tinygo/bluetooth blocks in Connect and service discovery with its own
	// timeouts. Run both in a goroutine so ctx bounds the wait.
	type connectResult struct {
		conn *tinyGoConnection
		err  error
	}
	ch := make(chan connectResult, 1)
	go func() {
		device, err := a.adapter.Connect(addr, bluetooth.ConnectionParams{})
		if err != nil {
			ch <- connectResult{err: err}
			return
		}
		// Register before discovery so a drop during discovery reaches
		// onDisconnect.
		conn := &tinyGoConnection{
			adapter:      a,
			key:          strings.ToUpper(dev.Address),
			device:       device,
			onDisconnect: onDisconnect,
		}
		a.register(conn)

		if err := conn.discover(a.serviceUUID); err != nil {
			_ = conn.Disconnect()
			ch <- connectResult{err: err}
			return
		}
		if conn.dropped.Load() {
			ch <- connectResult{err: fmt.Errorf("ble: disconnected during discovery")}
			return
		}
		ch <- connectResult{conn: conn}
	}()

	select {
	case <-ctx.Done():
		// The stack may still finish connecting; drop that link when it does.
		go func() {
			if res := <-ch; res.conn != nil {
				_ = res.conn.Disconnect()
			}
		}()
		return nil, fmt.Errorf("ble: connect to %s: %w", dev.Address, ctx.Err())
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("ble: connect to %s: %w", dev.Address, res.err)
		}
		return res.conn, nil
	}
}

// register routes disconnects for conn's address to conn. A previous
// connection to the same address stops receiving them.
func (a *TinyGoAdapter) register(conn *tinyGoConnection) {
	a.mu.Lock()
	a.connections[conn.key] = conn
	a.mu.Unlock()
}

// Compile-time check that TinyGoAdapter implements Adapter.
var _ Adapter = (*TinyGoAdapter)(nil)

type tinyGoConnection struct {
	adapter      *TinyGoAdapter
	key          string
	device       bluetooth.Device
	chars        map[bluetooth.UUID]bluetooth.DeviceCharacteristic
	onDisconnect func()
	lostOnce     sync.Once
	dropped      atomic.Bool
}

// discover indexes every characteristic of the device, or of serviceUUID
// when given.
func (c *tinyGoConnection) discover(serviceUUID string) error {
	var filter []bluetooth.UUID
	if serviceUUID != "" {
		uuid, err := ParseUUID(serviceUUID)
		if err != nil {
			return err
		}
		filter = []bluetooth.UUID{uuid}
	}

	svcs, err := c.device.DiscoverServices(filter)
	if err != nil {
		return fmt.Errorf("ble: discover services: %w", err)
	}
	if len(svcs) == 0 {
		return fmt.Errorf("ble: no services found")
	}

	c.chars = make(map[bluetooth.UUID]bluetooth.DeviceCharacteristic)
	for _, svc := range svcs {
		chars, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			return fmt.Errorf("ble: discover characteristics: %w", err)
		}
		for _, char := range chars {
			c.chars[char.UUID()] = char
		}
	}
	return nil
}

func (c *tinyGoConnection) characteristic(charUUID string) (bluetooth.DeviceCharacteristic, error) {
	uuid, err := ParseUUID(charUUID)
	if err != nil {
		return bluetooth.DeviceCharacteristic{}, err
	}
	char, ok := c.chars[uuid]
	if !ok {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("ble: characteristic %s not found", charUUID)
	}
	return char, nil
}

func (c *tinyGoConnection) Write(ctx context.Context, charUUID string, data []byte, expectResponse bool) error {
	char, err := c.characteristic(charUUID)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- writeCharacteristic(char, data, expectResponse)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("ble: write %s: %w", charUUID, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("ble: write %s: %w", charUUID, ctx.Err())
	}
}

func (c *tinyGoConnection) Subscribe(charUUID string, cb func([]byte)) error {
	char, err := c.characteristic(charUUID)
	if err != nil {
		return err
	}
	return char.EnableNotifications(func(buf []byte) {
		cb(buf)
	})
}

// Disconnect unregisters the connection first so a self-initiated
// disconnect does not fire onDisconnect.
func (c *tinyGoConnection) Disconnect() error {
	c.adapter.mu.Lock()
	if c.adapter.connections[c.key] == c {
		delete(c.adapter.connections, c.key)
	}
	c.adapter.mu.Unlock()
	return c.device.Disconnect()
}

func (c *tinyGoConnection) lost() {
	c.dropped.Store(true)
	c.lostOnce.Do(func() {
		if c.onDisconnect != nil {
			c.onDisconnect()
		}
	})
}
