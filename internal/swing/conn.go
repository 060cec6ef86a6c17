package swing

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/chaz8081/ptbaby/internal/ble"
)

// link is one live connection. lost is set once the connection is dropped,
// either by the peripheral or by teardown, and never cleared.
type link struct {
	conn ble.Connection
	lost bool
}

// connManager owns the connection handle. At most one link is active; a
// connect in progress is shared by every caller waiting for it.
type connManager struct {
	adapter ble.Adapter
	id      Identity
	opts    Options
	state   *stateCache
	flight  singleflight.Group
	enabled bool // only touched inside the single-flight connect

	mu     sync.Mutex
	active *link
}

func newConnManager(adapter ble.Adapter, id Identity, opts Options, state *stateCache) *connManager {
	return &connManager{
		adapter: adapter,
		id:      id,
		opts:    opts,
		state:   state,
	}
}

func (m *connManager) current() ble.Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	return m.active.conn
}

// ensure returns the live connection, connecting first if needed. A caller
// that gives up via ctx stops waiting but does not cancel the shared connect.
func (m *connManager) ensure(ctx context.Context) (ble.Connection, error) {
	if conn := m.current(); conn != nil {
		return conn, nil
	}

	ch := m.flight.DoChan("connect", func() (any, error) {
		return m.connect()
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnreachable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(ble.Connection), nil
	}
}

func (m *connManager) connect() (ble.Connection, error) {
	if conn := m.current(); conn != nil {
		return conn, nil
	}

	if !m.enabled {
		if err := m.adapter.Enable(); err != nil {
			m.state.markDisconnected()
			return nil, fmt.Errorf("%w: enable adapter: %w", ErrDeviceUnreachable, err)
		}
		m.enabled = true
	}

	rctx, cancel := context.WithTimeout(context.Background(), m.opts.ResolveTimeout)
	dev, err := m.adapter.Resolve(rctx, m.id.Address)
	cancel()
	if err != nil {
		m.state.markDisconnected()
		slog.Warn("[SWING] device not found", "address", m.id.Address, "error", err)
		return nil, fmt.Errorf("%w: resolve %s: %w", ErrDeviceUnreachable, m.id.Address, err)
	}

	var lastErr error
	for attempt := 0; attempt < m.opts.ConnectAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt-1, m.opts.RetryBackoff, m.opts.RetryBackoffMax)
			slog.Info("[SWING] connect backoff", "attempt", attempt+1, "delay", delay)
			time.Sleep(delay)
		}

		conn, err := m.dial(dev)
		if err != nil {
			lastErr = err
			slog.Warn("[SWING] connect failed", "address", m.id.Address, "attempt", attempt+1, "error", err)
			continue
		}
		slog.Info("[SWING] connected", "address", m.id.Address, "attempt", attempt+1)
		return conn, nil
	}

	m.state.markDisconnected()
	return nil, fmt.Errorf("%w: connect %s after %d attempts: %w", ErrDeviceUnreachable, m.id.Address, m.opts.ConnectAttempts, lastErr)
}

// dial makes one bounded connect attempt and installs the result.
func (m *connManager) dial(dev ble.Device) (ble.Connection, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.ConnectTimeout)
	defer cancel()

	l := &link{}
	conn, err := m.adapter.Connect(ctx, dev, func() { m.handleLost(l) })
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if l.lost {
		m.mu.Unlock()
		_ = conn.Disconnect()
		return nil, fmt.Errorf("link to %s dropped during setup", dev.Address)
	}
	l.conn = conn
	m.active = l
	m.mu.Unlock()

	m.state.markConnected()

	if m.id.NotifyChar != "" {
		if err := conn.Subscribe(m.id.NotifyChar, m.handleNotification); err != nil {
			slog.Warn("[SWING] notifications unavailable",
				"char", m.id.NotifyChar,
				"error", fmt.Errorf("%w: %w", ErrSubscribeFailed, err))
		}
	}
	return conn, nil
}

// handleLost runs on the transport's disconnect callback. Callbacks from
// links that are no longer active are ignored.
func (m *connManager) handleLost(l *link) {
	m.mu.Lock()
	l.lost = true
	isActive := m.active == l
	if isActive {
		m.active = nil
	}
	m.mu.Unlock()

	if isActive {
		slog.Warn("[SWING] connection lost", "address", m.id.Address)
		m.state.markDisconnected()
	}
}

// teardown drops conn if it is still the active link.
func (m *connManager) teardown(conn ble.Connection) {
	m.mu.Lock()
	wasActive := m.active != nil && m.active.conn == conn
	if wasActive {
		m.active.lost = true
		m.active = nil
	}
	m.mu.Unlock()

	if err := conn.Disconnect(); err != nil {
		slog.Debug("[SWING] disconnect", "error", err)
	}
	if wasActive {
		m.state.markDisconnected()
	}
}

// close drops the active link, if any.
func (m *connManager) close() error {
	m.mu.Lock()
	l := m.active
	if l != nil {
		l.lost = true
		m.active = nil
	}
	m.mu.Unlock()

	m.state.markDisconnected()
	if l == nil {
		return nil
	}
	return l.conn.Disconnect()
}

func (m *connManager) handleNotification(data []byte) {
	slog.Debug("[SWING] notification", "data", hex.EncodeToString(data))
}

// backoffDelay returns the retry delay for attempt n: base doubled per
// attempt, capped at max.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	delay := base
	for i := 0; i < attempt && delay < max; i++ {
		delay *= 2
	}
	if delay > max {
		return max
	}
	return delay
}
