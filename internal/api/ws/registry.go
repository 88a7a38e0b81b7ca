package ws

import (
	"sync"

	"live_contest/internal/platform/metrics"

	"github.com/gorilla/websocket"
)

// Registry tracks the sessions live on this process. It is owned by the
// websocket handler and built once at startup.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

func (r *Registry) add(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
	metrics.ActiveSessions.Inc()
}

// remove is idempotent.
func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	_, ok := r.sessions[s.ID()]
	delete(r.sessions, s.ID())
	r.mu.Unlock()
	if ok {
		metrics.ActiveSessions.Dec()
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll sends every session a going-away close frame. Handler goroutines
// notice on their next read and unregister themselves.
func (r *Registry) CloseAll(reason string) int {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	for _, s := range sessions {
		s.close(websocket.CloseGoingAway, reason)
	}
	return len(sessions)
}
