package osc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"github.com/chaz8081/ptbaby/internal/entity"
)

type fakeControls struct {
	mu      sync.Mutex
	applied []entity.Action
	err     error
}

func (f *fakeControls) Apply(_ context.Context, a entity.Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, a)
	return f.err
}

func (f *fakeControls) Ops() []string { return []string{"power_on", "speed", "melody", "raw"} }

func TestActionFromMessage(t *testing.T) {
	tests := []struct {
		name string
		args []interface{}
		want entity.Action
	}{
		{"no args", nil, entity.Action{Op: "op"}},
		{"int32", []interface{}{int32(3)}, entity.Action{Op: "op", Value: 3}},
		{"float32", []interface{}{float32(0.5)}, entity.Action{Op: "op", Value: 0.5}},
		{"string", []interface{}{"Melody 2"}, entity.Action{Op: "op", Text: "Melody 2"}},
		{"true", []interface{}{true}, entity.Action{Op: "op", Value: 1}},
		{"false", []interface{}{false}, entity.Action{Op: "op"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ActionFromMessage("op", osc.NewMessage("/ptbaby/op", tt.args...))
			if err != nil {
				t.Fatalf("ActionFromMessage() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ActionFromMessage() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestActionFromMessageRejectsBlob(t *testing.T) {
	_, err := ActionFromMessage("raw", osc.NewMessage("/ptbaby/raw", []byte{1, 2}))
	if !errors.Is(err, errArgument) {
		t.Errorf("error = %v, want errArgument", err)
	}
}

func TestDispatcherRoutesMessages(t *testing.T) {
	controls := &fakeControls{}
	d, err := New(controls, time.Second).Dispatcher()
	if err != nil {
		t.Fatalf("Dispatcher() error = %v", err)
	}

	d.Dispatch(osc.NewMessage("/ptbaby/speed", int32(4)))
	d.Dispatch(osc.NewMessage("/ptbaby/melody", "Melody 3"))
	d.Dispatch(osc.NewMessage("/other/speed", int32(1)))

	controls.mu.Lock()
	defer controls.mu.Unlock()
	want := []entity.Action{
		{Op: "speed", Value: 4},
		{Op: "melody", Text: "Melody 3"},
	}
	if len(controls.applied) != len(want) {
		t.Fatalf("applied = %+v, want %+v", controls.applied, want)
	}
	for i := range want {
		if controls.applied[i] != want[i] {
			t.Errorf("applied[%d] = %+v, want %+v", i, controls.applied[i], want[i])
		}
	}
}

func TestHandlerSurvivesApplyError(t *testing.T) {
	controls := &fakeControls{err: errors.New("device unreachable")}
	d, err := New(controls, time.Second).Dispatcher()
	if err != nil {
		t.Fatalf("Dispatcher() error = %v", err)
	}
	d.Dispatch(osc.NewMessage("/ptbaby/power_on"))

	controls.mu.Lock()
	defer controls.mu.Unlock()
	if len(controls.applied) != 1 {
		t.Errorf("applied = %+v, want one action", controls.applied)
	}
}
