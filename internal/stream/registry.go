package stream

import "sync"

// Registry is the goroutine-safe set of live sessions on this server
// instance. Sessions are created when a streamer goes live and removed
// when the stream ends; all their chat and gift state is discarded with
// them.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Create starts a session for streamID. If one already exists it is
// returned unchanged, so a reconnecting broadcaster does not reset chat.
func (r *Registry) Create(streamID, streamer string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[streamID]; ok {
		return s
	}
	s := NewSession(streamID, streamer)
	r.sessions[streamID] = s
	return s
}

// Get returns the session for streamID, or nil if the stream is not live
// on this instance.
func (r *Registry) Get(streamID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[streamID]
}

// End removes and returns the session, or nil if it was not live. The
// final snapshot can still be taken from the returned session.
func (r *Registry) End(streamID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.sessions[streamID]
	delete(r.sessions, streamID)
	return s
}

// All returns a snapshot slice of the live sessions.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
