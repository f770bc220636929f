package editor

import (
	"sync"
	"time"
)

// Registry keeps the sessions that are live in this process.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// LoadOrStore keeps the first session registered under s.ID() and returns it.
func (r *Registry) LoadOrStore(s *Session) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[s.ID()]; ok {
		return cur, true
	}
	r.sessions[s.ID()] = s
	return s, false
}

// Remove closes the session and forgets it.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Close()
		delete(r.sessions, id)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// EvictIdle closes and drops sessions that are idle for ttl and returns their ids.
func (r *Registry) EvictIdle(ttl time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var evicted []string
	for id, s := range r.sessions {
		if s.CloseIfIdle(ttl) {
			delete(r.sessions, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}
