package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chaz8081/ptbaby/internal/entity"
	"github.com/chaz8081/ptbaby/internal/swing"
)

// Message types sent to websocket clients.
const (
	TypeState  = "state"
	TypeResult = "result"
)

const writeWait = 5 * time.Second

// Message is one websocket frame from the server. State frames carry every
// change of the cached state; a result frame answers each action and carries
// the state after it.
type Message struct {
	Type  string       `json:"type"`
	Op    string       `json:"op,omitempty"`
	Error string       `json:"error,omitempty"`
	State *swing.State `json:"state,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("[HTTP] websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	states, unsubscribe := s.states.Subscribe()
	defer unsubscribe()

	results := make(chan Message, 8)
	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(conn, states, results, stop)
	}()

	slog.Debug("[HTTP] websocket client connected", "remote", r.RemoteAddr)
	s.readLoop(r, conn, results, writerDone)
	close(stop)
	<-writerDone
	slog.Debug("[HTTP] websocket client gone", "remote", r.RemoteAddr)
}

// readLoop applies actions until the client goes away. Results go to the
// writer; conn is never written from here.
func (s *Server) readLoop(r *http.Request, conn *websocket.Conn, results chan<- Message, writerDone <-chan struct{}) {
	for {
		var a entity.Action
		if err := conn.ReadJSON(&a); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("[HTTP] websocket read", "error", err)
			}
			return
		}

		msg := Message{Type: TypeResult, Op: a.Op}
		if err := s.apply(r.Context(), a); err != nil {
			msg.Error = err.Error()
		}
		st := s.states.State()
		msg.State = &st

		select {
		case results <- msg:
		case <-writerDone:
			return
		}
	}
}

// writeLoop is the only goroutine that writes to conn.
func (s *Server) writeLoop(conn *websocket.Conn, states <-chan swing.State, results <-chan Message, stop <-chan struct{}) {
	write := func(msg Message) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			slog.Debug("[HTTP] websocket write", "error", err)
			// Unblocks the reader.
			_ = conn.Close()
			return false
		}
		return true
	}

	for {
		select {
		case <-stop:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			if !write(Message{Type: TypeState, State: &st}) {
				return
			}
		case msg := <-results:
			if !write(msg) {
				return
			}
		}
	}
}
