// Package protocol maps logical swing intents onto the short ASCII command
// tokens the PT Baby swing accepts on its write characteristic. It performs
// no I/O.
package protocol

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument reports an out-of-range logical value or a malformed
// token. It is returned before anything is sent to the device.
var ErrInvalidArgument = errors.New("invalid argument")

// Ranges accepted by the swing.
const (
	MinSpeed  = 1
	MaxSpeed  = 5
	MinMelody = 1
	MaxMelody = 9

	TimerStepMinutes = 5
	MaxTimerMinutes  = 120

	VolumeStep    = 10
	MaxVolume     = 100
	DefaultVolume = 50

	// MaxTokenBytes keeps a token inside one write on the default ATT MTU (23 - 3).
	MaxTokenBytes = 20
)

// Kind distinguishes the wake and power-off commands from ordinary ones.
type Kind uint8

const (
	KindPlain Kind = iota
	KindWake
	KindOff // puts the device to sleep; the next command must wake it
)

// Command is an encoded token ready to be written to the device.
type Command struct {
	kind  Kind
	token string
}

// Token returns the ASCII token.
func (c Command) Token() string { return c.token }

// Bytes returns the wire form of the token.
func (c Command) Bytes() []byte { return []byte(c.token) }

// IsWake reports whether c is the wake command.
func (c Command) IsWake() bool { return c.kind == KindWake }

// IsOff reports whether c is the power-off command.
func (c Command) IsOff() bool { return c.kind == KindOff }

func (c Command) String() string {
	switch c.kind {
	case KindWake:
		return c.token + " (wake)"
	case KindOff:
		return c.token + " (off)"
	}
	return c.token
}

// Control names an optional logical control whose wire token may be absent.
type Control string

const (
	ControlPowerOff     Control = "power_off"
	ControlMelodyOn     Control = "melody_on"
	ControlMelodyOff    Control = "melody_off"
	ControlTimer        Control = "timer"
	ControlVolumeUp     Control = "volume_up"
	ControlVolumeDown   Control = "volume_down"
	ControlInductionOn  Control = "induction_on"
	ControlInductionOff Control = "induction_off"
)

// Controls lists every optional control.
var Controls = []Control{
	ControlPowerOff,
	ControlMelodyOn,
	ControlMelodyOff,
	ControlTimer,
	ControlVolumeUp,
	ControlVolumeDown,
	ControlInductionOn,
	ControlInductionOff,
}

// Table holds the device's token vocabulary. An empty optional token means
// no verified wire command exists for that control.
type Table struct {
	PowerOn      string   // also the wake token
	PowerOff     string
	MelodyOn     string
	MelodyOff    string
	Speeds       []string // Speeds[0] is speed 1
	Melodies     []string // Melodies[0] is melody 1
	TimerStep    string   // adds TimerStepMinutes per write
	VolumeUp     string
	VolumeDown   string
	InductionOn  string
	InductionOff string
}

// DefaultTable returns the tokens observed on PT Baby swings. No power-off
// token has been observed, so power_off is cache-only until configured;
// cmd00 is the melody select's "off" entry.
func DefaultTable() Table {
	return Table{
		PowerOn:   "cmd38",
		MelodyOn:  "cmd39",
		MelodyOff: "cmd00",
		Speeds:    []string{"cmd10", "cmd11", "cmd12", "cmd13", "cmd14"},
		Melodies: []string{
			"cmd01", "cmd02", "cmd03", "cmd04", "cmd05",
			"cmd06", "cmd07", "cmd08", "cmd09",
		},
	}
}

// Validate checks that mandatory tokens are present and every token is
// well formed.
func (t Table) Validate() error {
	if t.PowerOn == "" {
		return fmt.Errorf("power_on token must not be empty")
	}
	if len(t.Speeds) != MaxSpeed {
		return fmt.Errorf("speeds must list %d tokens, got %d", MaxSpeed, len(t.Speeds))
	}
	if len(t.Melodies) != MaxMelody {
		return fmt.Errorf("melodies must list %d tokens, got %d", MaxMelody, len(t.Melodies))
	}

	required := append([]string{t.PowerOn}, t.Speeds...)
	required = append(required, t.Melodies...)
	for _, tok := range required {
		if err := ValidateToken(tok); err != nil {
			return err
		}
	}

	for _, c := range Controls {
		tok := t.token(c)
		if tok == "" {
			continue
		}
		if err := ValidateToken(tok); err != nil {
			return fmt.Errorf("%s: %w", c, err)
		}
	}
	return nil
}

// Wake returns the wake command. It doubles as the power-on command.
func (t Table) Wake() Command {
	return Command{kind: KindWake, token: t.PowerOn}
}

// Speed encodes swing speed 1..5. Speed 0 is not a device token; callers
// turn the swing off instead.
func (t Table) Speed(speed int) (Command, error) {
	if speed < MinSpeed || speed > MaxSpeed {
		return Command{}, fmt.Errorf("%w: swing speed %d outside %d..%d", ErrInvalidArgument, speed, MinSpeed, MaxSpeed)
	}
	return Command{token: t.Speeds[speed-1]}, nil
}

// Melody encodes melody 1..9.
func (t Table) Melody(melody int) (Command, error) {
	if melody < MinMelody || melody > MaxMelody {
		return Command{}, fmt.Errorf("%w: melody %d outside %d..%d", ErrInvalidArgument, melody, MinMelody, MaxMelody)
	}
	return Command{token: t.Melodies[melody-1]}, nil
}

// Lookup returns the command for an optional control. ok is false when no
// wire token is configured.
func (t Table) Lookup(c Control) (cmd Command, ok bool) {
	tok := t.token(c)
	if tok == "" {
		return Command{}, false
	}
	if c == ControlPowerOff {
		return Command{kind: KindOff, token: tok}, true
	}
	return Command{token: tok}, true
}

func (t Table) token(c Control) string {
	switch c {
	case ControlPowerOff:
		return t.PowerOff
	case ControlMelodyOn:
		return t.MelodyOn
	case ControlMelodyOff:
		return t.MelodyOff
	case ControlTimer:
		return t.TimerStep
	case ControlVolumeUp:
		return t.VolumeUp
	case ControlVolumeDown:
		return t.VolumeDown
	case ControlInductionOn:
		return t.InductionOn
	case ControlInductionOff:
		return t.InductionOff
	}
	return ""
}

// Raw encodes a free-form debug token. The wake token is returned as the
// wake variant so it is never preceded by another wake, and the power-off
// token as the off variant.
func (t Table) Raw(token string) (Command, error) {
	if err := ValidateToken(token); err != nil {
		return Command{}, err
	}
	switch token {
	case t.PowerOn:
		return t.Wake(), nil
	case t.PowerOff:
		return Command{kind: KindOff, token: token}, nil
	}
	return Command{token: token}, nil
}

// ValidateToken checks that token is non-empty printable ASCII without
// spaces and fits in a single write.
func ValidateToken(token string) error {
	if token == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidArgument)
	}
	if len(token) > MaxTokenBytes {
		return fmt.Errorf("%w: token %q longer than %d bytes", ErrInvalidArgument, token, MaxTokenBytes)
	}
	for i := 0; i < len(token); i++ {
		if b := token[i]; b < 0x21 || b > 0x7e {
			return fmt.Errorf("%w: token %q contains non-printable byte 0x%02x", ErrInvalidArgument, token, b)
		}
	}
	return nil
}

// ValidateTimer checks a timer value in minutes.
func ValidateTimer(minutes int) error {
	if minutes < 0 || minutes > MaxTimerMinutes || minutes%TimerStepMinutes != 0 {
		return fmt.Errorf("%w: timer %d must be a multiple of %d in 0..%d", ErrInvalidArgument, minutes, TimerStepMinutes, MaxTimerMinutes)
	}
	return nil
}

// NextMelody returns the melody after m, wrapping 9 to 1.
func NextMelody(m int) int {
	return wrapMelody(m + 1)
}

// PreviousMelody returns the melody before m, wrapping 1 to 9.
func PreviousMelody(m int) int {
	return wrapMelody(m - 1)
}

func wrapMelody(m int) int {
	n := MaxMelody - MinMelody + 1
	return ((m-MinMelody)%n+n)%n + MinMelody
}

// StepVolume moves volume by delta steps and clamps to 0..100.
func StepVolume(volume, delta int) int {
	v := volume + delta*VolumeStep
	if v < 0 {
		return 0
	}
	if v > MaxVolume {
		return MaxVolume
	}
	return v
}
