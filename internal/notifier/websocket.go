package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// WebSocketSink writes events as JSON frames to a websocket connection. A
// failed write cancels the run through onClose so the driver stops at its
// next suspension point.
type WebSocketSink struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	onClose context.CancelFunc
	closed  bool
}

func NewWebSocketSink(conn *websocket.Conn, onClose context.CancelFunc) *WebSocketSink {
	return &WebSocketSink{conn: conn, onClose: onClose}
}

func (s *WebSocketSink) Emit(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return websocket.ErrCloseSent
	}

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(e); err != nil {
		s.closed = true
		if s.onClose != nil {
			s.onClose()
		}
		return err
	}
	return nil
}

// Close sends a normal closure frame. Further events are rejected.
func (s *WebSocketSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run complete")
	return s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
