// Package osc accepts swing actions as OSC messages, one address per
// operation: /ptbaby/speed 3, /ptbaby/melody "Melody 2", /ptbaby/power_on.
package osc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"github.com/chaz8081/ptbaby/internal/entity"
)

// Prefix is prepended to every operation name.
const Prefix = "/ptbaby/"

// Controls applies named actions to the device.
type Controls interface {
	Apply(ctx context.Context, a entity.Action) error
	Ops() []string
}

// Server listens for OSC messages and applies them.
type Server struct {
	controls Controls
	timeout  time.Duration
}

// New creates a Server. Each message is given timeout to complete.
func New(controls Controls, timeout time.Duration) *Server {
	return &Server{controls: controls, timeout: timeout}
}

// Dispatcher returns a dispatcher with a handler for every operation.
func (s *Server) Dispatcher() (*osc.StandardDispatcher, error) {
	d := osc.NewStandardDispatcher()
	for _, op := range s.controls.Ops() {
		if err := d.AddMsgHandler(Prefix+op, s.handler(op)); err != nil {
			return nil, fmt.Errorf("osc: register %s: %w", op, err)
		}
	}
	return d, nil
}

// ListenAndServe serves UDP on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	d, err := s.Dispatcher()
	if err != nil {
		return err
	}

	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("osc: listen %s: %w", addr, err)
	}
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	slog.Info("[OSC] listening", "addr", conn.LocalAddr().String())
	srv := &osc.Server{Dispatcher: d}
	if err := srv.Serve(conn); err != nil && ctx.Err() == nil {
		return fmt.Errorf("osc: serve: %w", err)
	}
	return nil
}

func (s *Server) handler(op string) osc.HandlerFunc {
	return func(msg *osc.Message) {
		a, err := ActionFromMessage(op, msg)
		if err != nil {
			slog.Warn("[OSC] bad message", "address", msg.Address, "error", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		slog.Info("[OSC] action", "op", a.Op, "value", a.Value, "text", a.Text)
		if err := s.controls.Apply(ctx, a); err != nil {
			slog.Warn("[OSC] action failed", "op", a.Op, "error", err)
		}
	}
}

var errArgument = errors.New("unsupported argument")

// ActionFromMessage builds the action for op from the first argument of
// msg, if any. Numbers set Value, strings set Text and booleans set Value
// to 0 or 1.
func ActionFromMessage(op string, msg *osc.Message) (entity.Action, error) {
	a := entity.Action{Op: op}
	if len(msg.Arguments) == 0 {
		return a, nil
	}
	switch v := msg.Arguments[0].(type) {
	case int32:
		a.Value = float64(v)
	case int64:
		a.Value = float64(v)
	case float32:
		a.Value = float64(v)
	case float64:
		a.Value = v
	case string:
		a.Text = v
	case bool:
		if v {
			a.Value = 1
		}
	default:
		return a, fmt.Errorf("%w: %T", errArgument, v)
	}
	return a, nil
}
