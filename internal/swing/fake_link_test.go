package swing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chaz8081/ptbaby/internal/ble"
)

const testAddress = "AA:BB:CC:DD:EE:FF"

// fakeAdapter simulates the BLE link for coordinator tests.
type fakeAdapter struct {
	mu           sync.Mutex
	devices      []ble.Device
	connectErr   error
	subscribeErr error
	writeErr     error
	// writeHook runs inside Write, outside the adapter lock.
	writeHook   func(token string) error
	connectHook func()

	enableCalls  int
	resolveCalls int
	connectCalls int
	writes       []string
	subscribed   []string

	conn         *fakeConn
	onDisconnect func()

	inflight   atomic.Int32
	reentrancy atomic.Int32
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		devices: []ble.Device{{Name: "PT-Baby", Address: testAddress}},
	}
}

func (a *fakeAdapter) Enable() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enableCalls++
	return nil
}

func (a *fakeAdapter) Scan(_ context.Context, _ string) ([]ble.Device, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.devices, nil
}

func (a *fakeAdapter) Resolve(_ context.Context, address string) (ble.Device, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resolveCalls++
	for _, d := range a.devices {
		if d.Address == address {
			return d, nil
		}
	}
	return ble.Device{}, ble.ErrNotFound
}

func (a *fakeAdapter) Connect(_ context.Context, _ ble.Device, onDisconnect func()) (ble.Connection, error) {
	a.mu.Lock()
	a.connectCalls++
	hook := a.connectHook
	err := a.connectErr
	a.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}

	conn := &fakeConn{adapter: a}
	a.mu.Lock()
	a.conn = conn
	a.onDisconnect = onDisconnect
	a.mu.Unlock()
	return conn, nil
}

// SimulateDisconnect fires the disconnect callback of the current link, as
// the transport would when the peripheral drops.
func (a *fakeAdapter) SimulateDisconnect() {
	a.mu.Lock()
	conn, cb := a.conn, a.onDisconnect
	a.mu.Unlock()
	if conn == nil {
		return
	}
	conn.closed.Store(true)
	if cb != nil {
		cb()
	}
}

func (a *fakeAdapter) setWriteErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.writeErr = err
}

func (a *fakeAdapter) setConnectErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connectErr = err
}

func (a *fakeAdapter) Writes() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.writes...)
}

func (a *fakeAdapter) Counts() (resolves, connects int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resolveCalls, a.connectCalls
}

// linkCalls counts every call that reaches the link.
func (a *fakeAdapter) linkCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enableCalls + a.resolveCalls + a.connectCalls + len(a.writes)
}

// fakeConn records writes and detects overlapping Write calls.
type fakeConn struct {
	adapter      *fakeAdapter
	closed       atomic.Bool
	disconnects  atomic.Int32
	notifyMu     sync.Mutex
	notification func([]byte)
}

func (c *fakeConn) Write(_ context.Context, _ string, data []byte, _ bool) error {
	a := c.adapter
	if a.inflight.Add(1) > 1 {
		a.reentrancy.Add(1)
	}
	defer a.inflight.Add(-1)

	if c.closed.Load() {
		return errors.New("fake: write on closed connection")
	}

	a.mu.Lock()
	err := a.writeErr
	hook := a.writeHook
	a.mu.Unlock()
	if err != nil {
		return err
	}

	token := string(data)
	if hook != nil {
		if err := hook(token); err != nil {
			return err
		}
	}
	// Widen the window for overlapping writes.
	time.Sleep(100 * time.Microsecond)

	a.mu.Lock()
	a.writes = append(a.writes, token)
	a.mu.Unlock()
	return nil
}

func (c *fakeConn) Subscribe(charUUID string, callback func([]byte)) error {
	a := c.adapter
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.subscribeErr != nil {
		return a.subscribeErr
	}
	a.subscribed = append(a.subscribed, charUUID)
	c.notifyMu.Lock()
	c.notification = callback
	c.notifyMu.Unlock()
	return nil
}

// SimulateNotification delivers data to the subscribed callback.
func (c *fakeConn) SimulateNotification(data []byte) bool {
	c.notifyMu.Lock()
	cb := c.notification
	c.notifyMu.Unlock()
	if cb == nil {
		return false
	}
	cb(data)
	return true
}

func (c *fakeConn) Disconnect() error {
	c.closed.Store(true)
	c.disconnects.Add(1)
	return nil
}

var (
	_ ble.Adapter    = (*fakeAdapter)(nil)
	_ ble.Connection = (*fakeConn)(nil)
)
