// Package entity adapts the swing coordinator to the controls a home
// automation front end exposes: switches, a fan, a media player, a number
// and a text box. Each adapter turns one user action into one coordinator
// call and reads the cached state for display.
package entity

import (
	"context"

	"github.com/chaz8081/ptbaby/internal/ble/protocol"
	"github.com/chaz8081/ptbaby/internal/swing"
)

// Controller is the coordinator surface the entities use.
type Controller interface {
	State() swing.State
	CacheOnly(ctl protocol.Control) bool

	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
	SetSwingSpeed(ctx context.Context, speed int) error
	SetMelody(ctx context.Context, melody int) error
	NextMelody(ctx context.Context) error
	PreviousMelody(ctx context.Context) error
	MelodyOn(ctx context.Context) error
	MelodyOff(ctx context.Context) error
	SetTimerMinutes(ctx context.Context, minutes int) error
	VolumeUp(ctx context.Context) error
	VolumeDown(ctx context.Context) error
	SetInductionMode(ctx context.Context, enabled bool) error
	SendRawCommand(ctx context.Context, token string) error
}

// Compile-time interface satisfaction check.
var _ Controller = (*swing.Coordinator)(nil)

// Entity is the identity every adapter shares.
type Entity interface {
	// UniqueID is stable across restarts: device address plus a suffix.
	UniqueID() string
	Name() string
	// AssumedState is true when the control has no verified wire token and
	// its state is only what was last requested.
	AssumedState() bool
}

// base carries the naming shared by all adapters.
type base struct {
	ctl     Controller
	address string
	name    string
	suffix  string
	label   string
}

func (b base) UniqueID() string { return b.address + "_" + b.suffix }

func (b base) Name() string { return b.name + " " + b.label }

func (b base) cacheOnly(ctls ...protocol.Control) bool {
	for _, c := range ctls {
		if b.ctl.CacheOnly(c) {
			return true
		}
	}
	return false
}
