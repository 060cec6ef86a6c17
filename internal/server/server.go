// Package server exposes the swing over HTTP: a JSON state snapshot, an
// action endpoint and a websocket that streams state and accepts actions.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chaz8081/ptbaby/internal/entity"
	"github.com/chaz8081/ptbaby/internal/swing"
)

// States publishes the cached device state.
type States interface {
	State() swing.State
	Subscribe() (<-chan swing.State, func())
}

// Controls applies named actions to the device.
type Controls interface {
	Apply(ctx context.Context, a entity.Action) error
	Ops() []string
	Entities() []entity.Entity
}

// DefaultActionTimeout bounds a single action, including any reconnect.
const DefaultActionTimeout = 30 * time.Second

// Server serves the HTTP and websocket endpoints.
type Server struct {
	states        States
	controls      Controls
	actionTimeout time.Duration
	upgrader      websocket.Upgrader
	mux           *http.ServeMux
}

// New creates a Server.
func New(states States, controls Controls) *Server {
	s := &Server{
		states:        states,
		controls:      controls,
		actionTimeout: DefaultActionTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /state", s.handleState)
	s.mux.HandleFunc("GET /entities", s.handleEntities)
	s.mux.HandleFunc("GET /ops", s.handleOps)
	s.mux.HandleFunc("POST /action", s.handleAction)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("[HTTP] shutdown", "error", err)
		}
	}()

	slog.Info("[HTTP] listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type entityInfo struct {
	UniqueID     string `json:"unique_id"`
	Name         string `json:"name"`
	AssumedState bool   `json:"assumed_state"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.states.State())
}

func (s *Server) handleEntities(w http.ResponseWriter, _ *http.Request) {
	var out []entityInfo
	for _, e := range s.controls.Entities() {
		out = append(out, entityInfo{UniqueID: e.UniqueID(), Name: e.Name(), AssumedState: e.AssumedState()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOps(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.controls.Ops())
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var a entity.Action
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&a); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid action: " + err.Error()})
		return
	}
	if err := s.apply(r.Context(), a); err != nil {
		writeJSON(w, statusFor(err), errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.states.State())
}

func (s *Server) apply(ctx context.Context, a entity.Action) error {
	ctx, cancel := context.WithTimeout(ctx, s.actionTimeout)
	defer cancel()

	slog.Info("[HTTP] action", "op", a.Op, "value", a.Value, "text", a.Text)
	if err := s.controls.Apply(ctx, a); err != nil {
		slog.Warn("[HTTP] action failed", "op", a.Op, "error", err)
		return err
	}
	return nil
}

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps coordinator errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, swing.ErrInvalidArgument), errors.Is(err, entity.ErrUnknownAction):
		return http.StatusBadRequest
	case errors.Is(err, swing.ErrDeviceUnreachable):
		return http.StatusServiceUnavailable
	case errors.Is(err, swing.ErrCommandFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("[HTTP] write response", "error", err)
	}
}
