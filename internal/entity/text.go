package entity

import (
	"context"
	"strings"
	"sync"
)

// DebugText sends free-form tokens to the device, for finding tokens that
// are not in the table yet.
type DebugText struct {
	base

	mu   sync.Mutex
	last string
}

var _ Entity = (*DebugText)(nil)

// Value returns the last token sent successfully.
func (t *DebugText) Value() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Submit trims text and sends it. Blank input is ignored.
func (t *DebugText) Submit(ctx context.Context, text string) error {
	token := strings.TrimSpace(text)
	if token == "" {
		return nil
	}
	if err := t.ctl.SendRawCommand(ctx, token); err != nil {
		return err
	}
	t.mu.Lock()
	t.last = token
	t.mu.Unlock()
	return nil
}

func (t *DebugText) AssumedState() bool { return true }
