package entity

import (
	"context"

	"github.com/chaz8081/ptbaby/internal/ble/protocol"
)

// TimerNumber presents the auto-off timer as a number in minutes.
type TimerNumber struct{ base }

var _ Entity = (*TimerNumber)(nil)

func (n *TimerNumber) Value() int { return n.ctl.State().TimerMinutes }

func (n *TimerNumber) Min() int  { return 0 }
func (n *TimerNumber) Max() int  { return protocol.MaxTimerMinutes }
func (n *TimerNumber) Step() int { return protocol.TimerStepMinutes }

// SetValue sets the timer. Fractional minutes are rejected.
func (n *TimerNumber) SetValue(ctx context.Context, value float64) error {
	minutes, err := wholeNumber(value)
	if err != nil {
		return err
	}
	return n.ctl.SetTimerMinutes(ctx, minutes)
}

func (n *TimerNumber) AssumedState() bool { return n.cacheOnly(protocol.ControlTimer) }
