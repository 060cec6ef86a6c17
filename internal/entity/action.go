package entity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/chaz8081/ptbaby/internal/swing"
)

// ErrUnknownAction is returned by Apply for an operation it does not know.
var ErrUnknownAction = errors.New("entity: unknown action")

// Action is one named operation from a control surface. Value carries
// numeric arguments and Text carries string arguments.
type Action struct {
	Op    string  `json:"op"`
	Value float64 `json:"value,omitempty"`
	Text  string  `json:"text,omitempty"`
}

// Set holds the adapters for one swing.
type Set struct {
	Power     *PowerSwitch
	Induction *InductionSwitch
	Fan       *SwingFan
	Player    *MelodyPlayer
	Timer     *TimerNumber
	Debug     *DebugText

	ops map[string]func(ctx context.Context, a Action) error
}

// NewSet builds every adapter for the swing at address, labelled with name.
func NewSet(ctl Controller, name, address string) *Set {
	mk := func(suffix, label string) base {
		return base{ctl: ctl, address: address, name: name, suffix: suffix, label: label}
	}
	s := &Set{
		Power:     &PowerSwitch{mk("power", "Power")},
		Induction: &InductionSwitch{mk("induction", "Induction Mode")},
		Fan:       &SwingFan{mk("swing", "Swing")},
		Player:    &MelodyPlayer{mk("melody", "Melody")},
		Timer:     &TimerNumber{mk("timer", "Timer")},
		Debug:     &DebugText{base: mk("debug", "Debug Command")},
	}

	s.ops = map[string]func(context.Context, Action) error{
		"power_on":  func(ctx context.Context, _ Action) error { return s.Power.TurnOn(ctx) },
		"power_off": func(ctx context.Context, _ Action) error { return s.Power.TurnOff(ctx) },
		"swing": func(ctx context.Context, a Action) error {
			pct, err := wholeNumber(a.Value)
			if err != nil {
				return err
			}
			return s.Fan.SetPercentage(ctx, pct)
		},
		"speed": func(ctx context.Context, a Action) error {
			speed, err := wholeNumber(a.Value)
			if err != nil {
				return err
			}
			return ctl.SetSwingSpeed(ctx, speed)
		},
		"melody": func(ctx context.Context, a Action) error {
			if a.Text != "" {
				return s.Player.SelectSource(ctx, a.Text)
			}
			m, err := wholeNumber(a.Value)
			if err != nil {
				return err
			}
			return ctl.SetMelody(ctx, m)
		},
		"melody_on":     func(ctx context.Context, _ Action) error { return s.Player.Play(ctx) },
		"melody_off":    func(ctx context.Context, _ Action) error { return s.Player.Stop(ctx) },
		"next":          func(ctx context.Context, _ Action) error { return s.Player.Next(ctx) },
		"previous":      func(ctx context.Context, _ Action) error { return s.Player.Previous(ctx) },
		"volume_up":     func(ctx context.Context, _ Action) error { return s.Player.VolumeUp(ctx) },
		"volume_down":   func(ctx context.Context, _ Action) error { return s.Player.VolumeDown(ctx) },
		"timer":         func(ctx context.Context, a Action) error { return s.Timer.SetValue(ctx, a.Value) },
		"induction_on":  func(ctx context.Context, _ Action) error { return s.Induction.TurnOn(ctx) },
		"induction_off": func(ctx context.Context, _ Action) error { return s.Induction.TurnOff(ctx) },
		"raw":           func(ctx context.Context, a Action) error { return s.Debug.Submit(ctx, a.Text) },
	}
	return s
}

// Entities lists every adapter.
func (s *Set) Entities() []Entity {
	return []Entity{s.Power, s.Induction, s.Fan, s.Player, s.Timer, s.Debug}
}

// Ops lists the operation names Apply accepts, sorted.
func (s *Set) Ops() []string {
	names := make([]string, 0, len(s.ops))
	for name := range s.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply runs a.
func (s *Set) Apply(ctx context.Context, a Action) error {
	fn, ok := s.ops[a.Op]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAction, a.Op)
	}
	return fn(ctx, a)
}

func wholeNumber(v float64) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, fmt.Errorf("%w: %v is not a whole number", swing.ErrInvalidArgument, v)
	}
	if v > math.MaxInt32 || v < math.MinInt32 {
		return 0, fmt.Errorf("%w: %v out of range", swing.ErrInvalidArgument, v)
	}
	return int(v), nil
}
