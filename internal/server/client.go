package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chaz8081/ptbaby/internal/entity"
	"github.com/chaz8081/ptbaby/internal/swing"
)

// Do sends a over the websocket at url and waits for its result. It returns
// the state reported with the result.
func Do(ctx context.Context, url string, a entity.Action) (swing.State, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return swing.State{}, fmt.Errorf("server: dial %s: %w", url, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	if err := conn.WriteJSON(a); err != nil {
		return swing.State{}, fmt.Errorf("server: send action: %w", err)
	}

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return swing.State{}, fmt.Errorf("server: read result: %w", err)
		}
		if msg.Type != TypeResult {
			continue
		}
		var st swing.State
		if msg.State != nil {
			st = *msg.State
		}
		if msg.Error != "" {
			return st, errors.New(msg.Error)
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return st, nil
	}
}
