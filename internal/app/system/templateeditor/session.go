// Package templateeditor holds the working copies operators edit before a
// template is saved. A Session owns one working copy; nothing else sees its
// changes until Save succeeds.
package templateeditor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dalemusser/stratanotify/internal/app/system/templaterender"
	"github.com/dalemusser/stratanotify/internal/app/system/templatesync"
	"github.com/dalemusser/stratanotify/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrSaveFailed is returned by Save when the persister rejects the record.
// The working copy is unchanged and the save may be retried.
var ErrSaveFailed = errors.New("failed to save template, please retry")

// Persister loads and stores template records.
type Persister interface {
	LoadTemplates(ctx context.Context) ([]models.NotificationTemplate, error)
	SaveTemplate(ctx context.Context, rec models.NotificationTemplate) (models.NotificationTemplate, error)
}

// Subscriber is told about every successful save.
type Subscriber interface {
	TemplateSaved(ctx context.Context, rec models.NotificationTemplate, actor Actor)
}

// Actor identifies the operator behind an edit.
type Actor struct {
	ID   string
	Name string
}

// Session is one operator's working copy of a template. mu guards the
// working copy and is never held across a persister call; saveMu keeps one
// save in flight per session.
type Session struct {
	mu     sync.Mutex
	saveMu sync.Mutex

	id       string
	base     models.NotificationTemplate
	state    templatesync.State
	isActive bool
	dirty    bool
	rev      uint64 // bumped on every edit

	openedAt time.Time
	lastUsed atomic.Int64 // unix nanoseconds
	now      func() time.Time

	subscribers []Subscriber
}

func newSession(id string, rec models.NotificationTemplate, now func() time.Time, subs []Subscriber) *Session {
	t := now()
	s := &Session{
		id:          id,
		base:        rec.Clone(),
		state:       templatesync.FromTemplate(rec),
		isActive:    rec.IsActive,
		openedAt:    t,
		now:         now,
		subscribers: subs,
	}
	s.lastUsed.Store(t.UnixNano())
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// TriggerType returns the trigger of the template being edited.
func (s *Session) TriggerType() string { return s.base.TriggerType }

// InsertLink appends a link to the working copy.
func (s *Session) InsertLink(d models.LinkDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.state.InsertLink(d)
	if err != nil {
		return err
	}
	s.apply(next)
	return nil
}

// RemoveLink removes the link at index. The bool is false when the link's
// directive had already been removed from the text.
func (s *Session) RemoveLink(index int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, removed, err := s.state.RemoveLink(index)
	if err != nil {
		return false, err
	}
	s.apply(next)
	return removed, nil
}

// SetText replaces the message text.
func (s *Session) SetText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(s.state.SetText(text))
}

// SetActive sets the active flag on the working copy.
func (s *Session) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isActive = active
	s.edited()
}

// Prune drops links whose directive is gone from the text.
func (s *Session) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(s.state.Prune())
}

// Adopt adds links for directives typed directly into the text.
func (s *Session) Adopt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(s.state.Adopt())
}

// Drifted returns the indices of links missing from the text.
func (s *Session) Drifted() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Drifted()
}

// Render renders the working copy.
func (s *Session) Render() templaterender.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return templaterender.Render(s.state.MessageText, s.state.Links)
}

// Snapshot returns the working copy as a record.
func (s *Session) Snapshot() models.NotificationTemplate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Dirty reports whether the working copy has unsaved changes.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// LastUsed returns when the session was last read or changed. It does not
// wait for edits or a pending save.
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// Save persists the working copy. On failure the working copy is left exactly
// as it was and ErrSaveFailed wraps the cause. On success the persisted form
// becomes the new working copy and subscribers are notified. The working copy
// stays usable while the persister runs; if it is edited meanwhile, those
// edits are kept on top of the saved record and the session stays dirty.
func (s *Session) Save(ctx context.Context, p Persister, actor Actor) (models.NotificationTemplate, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	rec := s.snapshot()
	rev := s.rev
	subs := s.subscribers
	s.mu.Unlock()

	rec.UpdatedByName = actor.Name
	rec.UpdatedByID = nil
	if oid, err := primitive.ObjectIDFromHex(actor.ID); err == nil {
		rec.UpdatedByID = &oid
	}

	saved, err := p.SaveTemplate(ctx, rec)
	if err != nil {
		return models.NotificationTemplate{}, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	s.mu.Lock()
	s.base = saved.Clone()
	if s.rev == rev {
		s.state = templatesync.FromTemplate(saved)
		s.isActive = saved.IsActive
		s.dirty = false
	}
	s.mu.Unlock()
	s.touch()

	for _, sub := range subs {
		sub.TemplateSaved(ctx, saved.Clone(), actor)
	}
	return saved, nil
}

func (s *Session) apply(next templatesync.State) {
	s.state = next
	s.edited()
}

// edited records a change to the working copy. Callers hold mu.
func (s *Session) edited() {
	s.rev++
	s.dirty = true
	s.touch()
}

func (s *Session) snapshot() models.NotificationTemplate {
	rec := s.state.Apply(s.base)
	rec.IsActive = s.isActive
	return rec
}

func (s *Session) touch() {
	s.lastUsed.Store(s.now().UnixNano())
}
