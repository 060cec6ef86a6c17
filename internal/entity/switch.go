package entity

import (
	"context"

	"github.com/chaz8081/ptbaby/internal/ble/protocol"
)

// PowerSwitch turns the swing on and off.
type PowerSwitch struct{ base }

var _ Entity = (*PowerSwitch)(nil)

func (s *PowerSwitch) IsOn() bool { return s.ctl.State().Powered }

func (s *PowerSwitch) TurnOn(ctx context.Context) error { return s.ctl.TurnOn(ctx) }

func (s *PowerSwitch) TurnOff(ctx context.Context) error { return s.ctl.TurnOff(ctx) }

func (s *PowerSwitch) AssumedState() bool { return s.cacheOnly(protocol.ControlPowerOff) }

// InductionSwitch toggles induction mode.
type InductionSwitch struct{ base }

var _ Entity = (*InductionSwitch)(nil)

func (s *InductionSwitch) IsOn() bool { return s.ctl.State().InductionMode }

func (s *InductionSwitch) TurnOn(ctx context.Context) error {
	return s.ctl.SetInductionMode(ctx, true)
}

func (s *InductionSwitch) TurnOff(ctx context.Context) error {
	return s.ctl.SetInductionMode(ctx, false)
}

func (s *InductionSwitch) AssumedState() bool {
	return s.cacheOnly(protocol.ControlInductionOn, protocol.ControlInductionOff)
}
