package entity

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/chaz8081/ptbaby/internal/ble/protocol"
	"github.com/chaz8081/ptbaby/internal/swing"
)

const sourcePrefix = "Melody "

// MelodyPlayer presents the melodies as a media player.
type MelodyPlayer struct{ base }

var _ Entity = (*MelodyPlayer)(nil)

func (p *MelodyPlayer) IsPlaying() bool { return p.ctl.State().MelodyOn }

// Source returns the selected melody name.
func (p *MelodyPlayer) Source() string { return SourceName(p.ctl.State().Melody) }

// Sources lists every melody name.
func (p *MelodyPlayer) Sources() []string {
	names := make([]string, 0, protocol.MaxMelody)
	for m := protocol.MinMelody; m <= protocol.MaxMelody; m++ {
		names = append(names, SourceName(m))
	}
	return names
}

// VolumeLevel returns the cached volume as 0..1.
func (p *MelodyPlayer) VolumeLevel() float64 {
	return float64(p.ctl.State().VolumePercent) / protocol.MaxVolume
}

func (p *MelodyPlayer) SelectSource(ctx context.Context, name string) error {
	melody, err := ParseSource(name)
	if err != nil {
		return err
	}
	return p.ctl.SetMelody(ctx, melody)
}

func (p *MelodyPlayer) Play(ctx context.Context) error     { return p.ctl.MelodyOn(ctx) }
func (p *MelodyPlayer) Stop(ctx context.Context) error     { return p.ctl.MelodyOff(ctx) }
func (p *MelodyPlayer) Next(ctx context.Context) error     { return p.ctl.NextMelody(ctx) }
func (p *MelodyPlayer) Previous(ctx context.Context) error { return p.ctl.PreviousMelody(ctx) }
func (p *MelodyPlayer) VolumeUp(ctx context.Context) error { return p.ctl.VolumeUp(ctx) }

func (p *MelodyPlayer) VolumeDown(ctx context.Context) error { return p.ctl.VolumeDown(ctx) }

func (p *MelodyPlayer) AssumedState() bool {
	return p.cacheOnly(protocol.ControlMelodyOff, protocol.ControlVolumeUp, protocol.ControlVolumeDown)
}

// SourceName returns the display name of melody m.
func SourceName(m int) string { return sourcePrefix + strconv.Itoa(m) }

// ParseSource accepts "Melody N" or a bare number.
func ParseSource(name string) (int, error) {
	s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), sourcePrefix))
	m, err := strconv.Atoi(s)
	if err != nil || m < protocol.MinMelody || m > protocol.MaxMelody {
		return 0, fmt.Errorf("%w: unknown melody source %q", swing.ErrInvalidArgument, name)
	}
	return m, nil
}
