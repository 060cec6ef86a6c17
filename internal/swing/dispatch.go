package swing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/chaz8081/ptbaby/internal/ble"
	"github.com/chaz8081/ptbaby/internal/ble/protocol"
)

// dispatcher is the single path to the write characteristic. Its lock
// totally orders command sequences; waiters are served FIFO and leave the
// queue when their context is done.
type dispatcher struct {
	conns     *connManager
	state     *stateCache
	writeChar string
	wakeCmd   protocol.Command
	opts      Options
	lock      *semaphore.Weighted
	limiter   *rate.Limiter
	now       func() time.Time

	// Guarded by lock. Wake state belongs to one connection; a new link
	// always wakes before its first command.
	wokeConn ble.Connection
	lastWake time.Time
}

func newDispatcher(conns *connManager, state *stateCache, writeChar string, wake protocol.Command, opts Options) *dispatcher {
	limit := rate.Inf
	if opts.CommandRate > 0 {
		limit = rate.Limit(opts.CommandRate)
	}
	burst := opts.CommandBurst
	if burst < 1 {
		burst = 1
	}
	return &dispatcher{
		conns:     conns,
		state:     state,
		writeChar: writeChar,
		wakeCmd:   wake,
		opts:      opts,
		lock:      semaphore.NewWeighted(1),
		limiter:   rate.NewLimiter(limit, burst),
		now:       time.Now,
	}
}

// linkError marks an error returned by the link's Write.
type linkError struct{ err error }

func (e *linkError) Error() string { return e.err.Error() }
func (e *linkError) Unwrap() error { return e.err }

// plan picks the commands to send once the device lock is held, and the
// cache update to apply after they are all written. A nil update leaves the
// cache alone.
type plan func() ([]protocol.Command, func(*State), error)

// send writes cmds in order while holding the device lock. When
// requireWake is set every plain command is preceded by a wake unless one
// was sent within the debounce window.
func (d *dispatcher) send(ctx context.Context, cmds []protocol.Command, requireWake bool) error {
	return d.run(ctx, requireWake, func() ([]protocol.Command, func(*State), error) {
		return cmds, nil, nil
	})
}

// run holds the device lock across p, the writes and the cache update, so a
// plan that reads cached state sees the effect of every earlier sequence.
// A failed write drops the link. A caller whose context ends before its
// write reaches the link only gives up the lock.
func (d *dispatcher) run(ctx context.Context, requireWake bool, p plan) error {
	if err := d.lock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer d.lock.Release(1)

	conn, err := d.conns.ensure(ctx)
	if err != nil {
		return err
	}

	cmds, update, err := p()
	if err != nil {
		return err
	}

	for _, cmd := range cmds {
		err := d.transmit(ctx, conn, cmd, requireWake)
		if err == nil {
			continue
		}
		var le *linkError
		if !errors.As(err, &le) {
			slog.Debug("[SWING] command abandoned", "token", cmd.Token(), "error", err)
			return err
		}
		slog.Warn("[SWING] command failed, dropping connection", "token", cmd.Token(), "error", err)
		d.wokeConn = nil
		d.conns.teardown(conn)
		return fmt.Errorf("%w: %s: %w", ErrCommandFailed, cmd.Token(), err)
	}

	if update != nil {
		d.state.update(update)
	}
	return nil
}

func (d *dispatcher) transmit(ctx context.Context, conn ble.Connection, cmd protocol.Command, requireWake bool) error {
	if cmd.IsWake() {
		return d.wake(ctx, conn, cmd)
	}
	if requireWake {
		if err := d.ensureAwake(ctx, conn); err != nil {
			return err
		}
	}
	if err := d.write(ctx, conn, cmd); err != nil {
		return err
	}
	if cmd.IsOff() {
		d.wokeConn = nil
	}
	slog.Debug("[SWING] sent", "token", cmd.Token())
	return nil
}

func (d *dispatcher) ensureAwake(ctx context.Context, conn ble.Connection) error {
	if d.wokeConn == conn && d.now().Sub(d.lastWake) < d.opts.WakeDebounce {
		return d.settle(ctx)
	}
	if err := d.wake(ctx, conn, d.wakeCmd); err != nil {
		return err
	}
	return d.settle(ctx)
}

func (d *dispatcher) wake(ctx context.Context, conn ble.Connection, cmd protocol.Command) error {
	if err := d.write(ctx, conn, cmd); err != nil {
		return fmt.Errorf("wake: %w", err)
	}
	d.wokeConn = conn
	d.lastWake = d.now()
	d.state.update(func(s *State) { s.Powered = true })
	slog.Debug("[SWING] wake sent", "token", cmd.Token())
	return nil
}

// settle waits until WakeSettle has passed since the last wake; the swing
// drops commands that arrive right after it wakes.
func (d *dispatcher) settle(ctx context.Context) error {
	remaining := d.opts.WakeSettle - d.now().Sub(d.lastWake)
	if remaining <= 0 {
		return nil
	}
	t := time.NewTimer(remaining)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *dispatcher) write(ctx context.Context, conn ble.Connection, cmd protocol.Command) error {
	if err := d.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// The wait would outlast the deadline.
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	wctx, cancel := context.WithTimeout(ctx, d.opts.WriteTimeout)
	defer cancel()
	if err := conn.Write(wctx, d.writeChar, cmd.Bytes(), false); err != nil {
		return &linkError{err: err}
	}
	return nil
}
