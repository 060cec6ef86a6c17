// Package swing coordinates all communication with one PT Baby swing. It
// owns the BLE link, serializes commands through a single lock, sends the
// wake token the device needs before most commands, and caches the last
// state it successfully commanded.
package swing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chaz8081/ptbaby/internal/ble"
	"github.com/chaz8081/ptbaby/internal/ble/protocol"
)

// Identity locates the device and its characteristics. NotifyChar is
// optional.
type Identity struct {
	Address    string
	WriteChar  string
	NotifyChar string
}

// Options tunes connection and dispatch behavior.
type Options struct {
	ConnectAttempts int
	ConnectTimeout  time.Duration
	ResolveTimeout  time.Duration
	WriteTimeout    time.Duration
	RetryBackoff    time.Duration // first retry delay, doubled per attempt
	RetryBackoffMax time.Duration
	WakeDebounce    time.Duration // skip re-waking within this window
	WakeSettle      time.Duration // quiet time after a wake
	CommandRate     float64       // writes per second, 0 for unlimited
	CommandBurst    int
	RefreshInterval time.Duration // keepalive cadence for Run
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		ConnectAttempts: 3,
		ConnectTimeout:  10 * time.Second,
		ResolveTimeout:  10 * time.Second,
		WriteTimeout:    5 * time.Second,
		RetryBackoff:    500 * time.Millisecond,
		RetryBackoffMax: 5 * time.Second,
		WakeDebounce:    2 * time.Second,
		WakeSettle:      300 * time.Millisecond,
		CommandRate:     10,
		CommandBurst:    2,
		RefreshInterval: 30 * time.Second,
	}
}

// Coordinator is the single owner of a swing's link and cached state. All
// methods are safe for concurrent use.
type Coordinator struct {
	id     Identity
	tokens protocol.Table
	opts   Options

	state *stateCache
	conns *connManager
	disp  *dispatcher
}

// New creates a coordinator for the device described by id. No connection is
// made until the first command or Refresh.
func New(adapter ble.Adapter, id Identity, tokens protocol.Table, opts Options) (*Coordinator, error) {
	if id.Address == "" {
		return nil, fmt.Errorf("swing: %w: device address is required", ErrInvalidArgument)
	}
	if id.WriteChar == "" {
		return nil, fmt.Errorf("swing: %w: write characteristic is required", ErrInvalidArgument)
	}
	if err := tokens.Validate(); err != nil {
		return nil, fmt.Errorf("swing: tokens: %w", err)
	}

	defaults := DefaultOptions()
	if opts.ConnectAttempts <= 0 {
		opts.ConnectAttempts = defaults.ConnectAttempts
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaults.ConnectTimeout
	}
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = defaults.ResolveTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaults.WriteTimeout
	}
	if opts.RetryBackoffMax < opts.RetryBackoff {
		opts.RetryBackoffMax = opts.RetryBackoff
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = defaults.RefreshInterval
	}

	state := newStateCache()
	conns := newConnManager(adapter, id, opts, state)
	c := &Coordinator{
		id:     id,
		tokens: tokens,
		opts:   opts,
		state:  state,
		conns:  conns,
		disp:   newDispatcher(conns, state, id.WriteChar, tokens.Wake(), opts),
	}

	for _, ctl := range protocol.Controls {
		if c.CacheOnly(ctl) {
			slog.Info("[SWING] control has no wire token, state is cached only", "control", ctl)
		}
	}
	return c, nil
}

// Address returns the device address.
func (c *Coordinator) Address() string { return c.id.Address }

// State returns a snapshot of the cached device state.
func (c *Coordinator) State() State { return c.state.snapshot() }

// Subscribe returns a channel carrying state snapshots, starting with the
// current one. Slow readers only miss intermediate snapshots. Call the
// returned function to unsubscribe.
func (c *Coordinator) Subscribe() (<-chan State, func()) { return c.state.subscribe() }

// CacheOnly reports whether ctl has no verified wire token, in which case
// changing it only updates the cached state.
func (c *Coordinator) CacheOnly(ctl protocol.Control) bool {
	_, ok := c.tokens.Lookup(ctl)
	return !ok
}

// TurnOn sends the wake token, which is also the power-on command.
func (c *Coordinator) TurnOn(ctx context.Context) error {
	if err := c.disp.send(ctx, []protocol.Command{c.tokens.Wake()}, false); err != nil {
		return err
	}
	c.state.update(func(s *State) { s.Powered = true })
	return nil
}

// TurnOff powers the swing down and stops swinging.
func (c *Coordinator) TurnOff(ctx context.Context) error {
	return c.apply(ctx, protocol.ControlPowerOff, func(s *State) {
		s.Powered = false
		s.SwingSpeed = 0
	})
}

// SetSwingSpeed sets speed 1..5. Speed 0 is the same as TurnOff.
func (c *Coordinator) SetSwingSpeed(ctx context.Context, speed int) error {
	if speed == 0 {
		return c.TurnOff(ctx)
	}
	cmd, err := c.tokens.Speed(speed)
	if err != nil {
		return err
	}
	if err := c.disp.send(ctx, []protocol.Command{cmd}, true); err != nil {
		return err
	}
	c.state.update(func(s *State) {
		s.SwingSpeed = speed
		s.Powered = true
	})
	return nil
}

// SetMelody selects melody 1..9 and starts playback.
func (c *Coordinator) SetMelody(ctx context.Context, melody int) error {
	if _, err := c.tokens.Melody(melody); err != nil {
		return err
	}
	return c.selectMelody(ctx, func(int) int { return melody })
}

// NextMelody selects the melody after the current one, wrapping 9 to 1.
func (c *Coordinator) NextMelody(ctx context.Context) error {
	return c.selectMelody(ctx, protocol.NextMelody)
}

// PreviousMelody selects the melody before the current one, wrapping 1 to 9.
func (c *Coordinator) PreviousMelody(ctx context.Context) error {
	return c.selectMelody(ctx, protocol.PreviousMelody)
}

// selectMelody sends the melody token followed by melody-on. pick maps the
// cached melody to the target and runs under the device lock, so concurrent
// steps each move one place.
func (c *Coordinator) selectMelody(ctx context.Context, pick func(current int) int) error {
	return c.disp.run(ctx, true, func() ([]protocol.Command, func(*State), error) {
		melody := pick(c.state.snapshot().Melody)
		cmd, err := c.tokens.Melody(melody)
		if err != nil {
			return nil, nil, err
		}
		cmds := []protocol.Command{cmd}
		if on, ok := c.tokens.Lookup(protocol.ControlMelodyOn); ok {
			cmds = append(cmds, on)
		}
		return cmds, func(s *State) {
			s.Melody = melody
			s.MelodyOn = true
		}, nil
	})
}

// MelodyOn resumes the current melody.
func (c *Coordinator) MelodyOn(ctx context.Context) error {
	return c.apply(ctx, protocol.ControlMelodyOn, func(s *State) { s.MelodyOn = true })
}

// MelodyOff stops the melody.
func (c *Coordinator) MelodyOff(ctx context.Context) error {
	return c.apply(ctx, protocol.ControlMelodyOff, func(s *State) { s.MelodyOn = false })
}

// SetTimerMinutes sets the auto-off timer. Each timer token adds
// TimerStepMinutes on the device, so the token is repeated minutes/step
// times in one sequence.
func (c *Coordinator) SetTimerMinutes(ctx context.Context, minutes int) error {
	if err := protocol.ValidateTimer(minutes); err != nil {
		return err
	}
	cmd, ok := c.tokens.Lookup(protocol.ControlTimer)
	if !ok {
		slog.Warn("[SWING] timer has no wire token, caching only", "minutes", minutes)
	} else if steps := minutes / protocol.TimerStepMinutes; steps > 0 {
		cmds := make([]protocol.Command, steps)
		for i := range cmds {
			cmds[i] = cmd
		}
		if err := c.disp.send(ctx, cmds, true); err != nil {
			return err
		}
	}
	c.state.update(func(s *State) { s.TimerMinutes = minutes })
	return nil
}

// VolumeUp raises the volume one step.
func (c *Coordinator) VolumeUp(ctx context.Context) error {
	return c.apply(ctx, protocol.ControlVolumeUp, func(s *State) {
		s.VolumePercent = protocol.StepVolume(s.VolumePercent, 1)
	})
}

// VolumeDown lowers the volume one step.
func (c *Coordinator) VolumeDown(ctx context.Context) error {
	return c.apply(ctx, protocol.ControlVolumeDown, func(s *State) {
		s.VolumePercent = protocol.StepVolume(s.VolumePercent, -1)
	})
}

// SetInductionMode switches induction mode on or off.
func (c *Coordinator) SetInductionMode(ctx context.Context, enabled bool) error {
	ctl := protocol.ControlInductionOff
	if enabled {
		ctl = protocol.ControlInductionOn
	}
	return c.apply(ctx, ctl, func(s *State) { s.InductionMode = enabled })
}

// SendRawCommand writes a free-form token. Cached state is not changed
// beyond the effects of waking the device.
func (c *Coordinator) SendRawCommand(ctx context.Context, token string) error {
	cmd, err := c.tokens.Raw(token)
	if err != nil {
		return err
	}
	slog.Info("[SWING] sending raw command", "token", cmd.Token())
	return c.disp.send(ctx, []protocol.Command{cmd}, !cmd.IsWake())
}

// Refresh connects if the link is down.
func (c *Coordinator) Refresh(ctx context.Context) error {
	_, err := c.conns.ensure(ctx)
	return err
}

// Run keeps the link up, reconnecting every RefreshInterval, until ctx is
// done. It then disconnects.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		if err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("[SWING] refresh failed", "address", c.id.Address, "error", err)
		}
		select {
		case <-ctx.Done():
			return c.Close()
		case <-ticker.C:
		}
	}
}

// Close disconnects from the device.
func (c *Coordinator) Close() error {
	return c.conns.close()
}

// apply sends the token for ctl, if one exists, and then updates the cache.
// Controls without a token update the cache only.
func (c *Coordinator) apply(ctx context.Context, ctl protocol.Control, update func(*State)) error {
	if cmd, ok := c.tokens.Lookup(ctl); ok {
		if err := c.disp.send(ctx, []protocol.Command{cmd}, true); err != nil {
			return err
		}
	} else {
		slog.Warn("[SWING] control has no wire token, caching only", "control", ctl)
	}
	c.state.update(update)
	return nil
}
