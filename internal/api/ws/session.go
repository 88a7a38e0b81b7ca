package ws

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"live_contest/internal/domain/model"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Session is one authenticated participant connection. Its socket is only
// read by the handler goroutine that owns it; writes are serialized.
type Session struct {
	id           string
	identity     model.Identity
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	mu        sync.RWMutex
	contestID string
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, identity model.Identity, writeTimeout time.Duration) *Session {
	return &Session{
		id:           uuid.NewString(),
		identity:     identity,
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

func (s *Session) ID() string               { return s.id }
func (s *Session) Identity() model.Identity { return s.identity }

// ContestID is empty while the session is idle.
func (s *Session) ContestID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contestID
}

func (s *Session) attach(contestID string) {
	s.mu.Lock()
	s.contestID = contestID
	s.mu.Unlock()
}

func (s *Session) send(resp Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// close sends a close frame with code and reason, then drops the socket.
// Safe to call from any goroutine, any number of times.
func (s *Session) close(code int, reason string) {
	s.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(code, reason)
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.writeTimeout))
		_ = s.conn.Close()
	})
}
