package entity

import (
	"context"
	"fmt"

	"github.com/chaz8081/ptbaby/internal/ble/protocol"
	"github.com/chaz8081/ptbaby/internal/swing"
)

const (
	// SpeedCount is the number of discrete swing speeds.
	SpeedCount = protocol.MaxSpeed
	// PercentageStep is the share of one speed step.
	PercentageStep = 100 / SpeedCount
	// DefaultPercentage is used when the fan is turned on without a speed.
	DefaultPercentage = PercentageStep
)

// SwingFan presents swing speed as a fan with percentage control.
type SwingFan struct{ base }

var _ Entity = (*SwingFan)(nil)

func (f *SwingFan) IsOn() bool {
	s := f.ctl.State()
	return s.Powered && s.SwingSpeed > 0
}

// Percentage returns the current speed as 0..100.
func (f *SwingFan) Percentage() int {
	return SpeedToPercentage(f.ctl.State().SwingSpeed)
}

// SetPercentage maps percentage onto a speed. 0 turns the swing off.
func (f *SwingFan) SetPercentage(ctx context.Context, percentage int) error {
	speed, err := PercentageToSpeed(percentage)
	if err != nil {
		return err
	}
	return f.ctl.SetSwingSpeed(ctx, speed)
}

func (f *SwingFan) TurnOn(ctx context.Context) error {
	return f.SetPercentage(ctx, DefaultPercentage)
}

func (f *SwingFan) TurnOff(ctx context.Context) error { return f.ctl.TurnOff(ctx) }

func (f *SwingFan) AssumedState() bool { return false }

// SpeedToPercentage converts speed 0..5 to a percentage.
func SpeedToPercentage(speed int) int {
	if speed <= 0 {
		return 0
	}
	if speed > SpeedCount {
		speed = SpeedCount
	}
	return speed * PercentageStep
}

// PercentageToSpeed converts 0..100 to speed 0..5, rounding up so that any
// non-zero percentage moves the swing.
func PercentageToSpeed(percentage int) (int, error) {
	if percentage < 0 || percentage > 100 {
		return 0, fmt.Errorf("%w: percentage %d outside 0..100", swing.ErrInvalidArgument, percentage)
	}
	return (percentage + PercentageStep - 1) / PercentageStep, nil
}
