package templateeditor

import (
	"errors"
	"sync"
	"time"

	"github.com/dalemusser/stratanotify/internal/domain/models"
	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for an unknown or closed session id.
var ErrSessionNotFound = errors.New("editing session not found")

// Registry tracks open editing sessions by id. The mutex guards the map only;
// each Session serializes its own edits.
type Registry struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	subscribers []Subscriber
	now         func() time.Time
}

// NewRegistry creates an empty registry. Every session it opens notifies subs
// after a successful save.
func NewRegistry(subs ...Subscriber) *Registry {
	return &Registry{
		sessions:    make(map[string]*Session),
		subscribers: subs,
		now:         time.Now,
	}
}

// Open starts a session on a copy of rec.
func (r *Registry) Open(rec models.NotificationTemplate) *Session {
	s := newSession(uuid.NewString(), rec, r.now, r.subscribers)

	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()
	return s
}

// Get returns the session with id and marks it used.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch()
	return s, nil
}

// Close discards the session. It reports whether the session existed.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// PruneIdle closes sessions not used for longer than maxIdle and returns how
// many were closed. Unsaved changes in those sessions are lost. It never
// waits on a session lock.
func (r *Registry) PruneIdle(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, s := range r.sessions {
		if s.LastUsed().Before(cutoff) {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}
