package dialogue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry holds the live sessions keyed by session ID. Sessions that go
// quiet for longer than the TTL are evicted; their durable state (medical
// record, transcript) has already been persisted by the engine, so eviction
// only loses in-flight conversational position.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*registryEntry
	ttl      time.Duration
	now      func() time.Time
}

type registryEntry struct {
	sess     *Session
	lastSeen time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*registryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Resolve returns the session for id, creating it if absent. An empty id
// allocates a fresh session with a generated UUID.
func (r *Registry) Resolve(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictLocked()

	if id == "" {
		id = uuid.NewString()
	}
	if entry, ok := r.sessions[id]; ok {
		entry.lastSeen = r.now()
		return entry.sess
	}

	sess := NewSession(id)
	r.sessions[id] = &registryEntry{sess: sess, lastSeen: r.now()}
	return sess
}

// Lookup returns the session for id without creating one.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictLocked()

	entry, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	entry.lastSeen = r.now()
	return entry.sess, true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) evictLocked() {
	if r.ttl <= 0 {
		return
	}
	cutoff := r.now().Add(-r.ttl)
	for id, entry := range r.sessions {
		if entry.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
		}
	}
}

// Sweep runs periodic eviction until ctx is cancelled.
func (r *Registry) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			r.evictLocked()
			r.mu.Unlock()
		}
	}
}
