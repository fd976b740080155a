package templates

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	notificationtemplatestore "github.com/dalemusser/stratanotify/internal/app/store/notificationtemplates"
	"github.com/dalemusser/stratanotify/internal/app/system/auditlog"
	"github.com/dalemusser/stratanotify/internal/app/system/inputval"
	"github.com/dalemusser/stratanotify/internal/app/system/jsonutil"
	"github.com/dalemusser/stratanotify/internal/app/system/linkdirective"
	"github.com/dalemusser/stratanotify/internal/app/system/templateeditor"
	"github.com/dalemusser/stratanotify/internal/app/system/templatesync"
	"github.com/dalemusser/stratanotify/internal/app/system/timeouts"
	"github.com/dalemusser/stratanotify/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SessionView is an editing session's working copy.
type SessionView struct {
	SessionID string       `json:"session_id"`
	Dirty     bool         `json:"dirty"`
	LastUsed  time.Time    `json:"last_used"`
	Template  TemplateView `json:"template"`
}

// RemoveLinkView adds whether the link's text was found and removed.
type RemoveLinkView struct {
	SessionView
	TextRemoved bool `json:"text_removed"`
}

func sessionViewOf(s *templateeditor.Session) SessionView {
	return SessionView{
		SessionID: s.ID(),
		Dirty:     s.Dirty(),
		LastUsed:  s.LastUsed(),
		Template:  viewOf(s.Snapshot()),
	}
}

// session looks up {id}. It writes a 404 and returns false for an unknown id.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*templateeditor.Session, bool) {
	s, err := h.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.NotFound(w, err.Error())
		return nil, false
	}
	return s, true
}

// tooLong reports whether text exceeds the configured cap, writing a 400 if so.
func (h *Handler) tooLong(w http.ResponseWriter, text string) bool {
	if h.maxLen > 0 && utf8.RuneCountInString(text) > h.maxLen {
		jsonutil.BadRequest(w, "message text must be at most "+strconv.Itoa(h.maxLen)+" characters")
		return true
	}
	return false
}

// openSession handles POST /{trigger}/sessions. A trigger without a stored
// record starts from an empty, inactive template.
func (h *Handler) openSession(w http.ResponseWriter, r *http.Request) {
	trigger, ok := triggerParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	rec, err := h.store.GetByTrigger(ctx, trigger)
	switch {
	case errors.Is(err, notificationtemplatestore.ErrNotFound):
		rec = models.NotificationTemplate{TriggerType: trigger}
	case err != nil:
		h.errLog.LogWithFields(r, "failed to load template for editing", err, zap.String("trigger_type", trigger))
		jsonutil.InternalError(w, "failed to load template")
		return
	}

	s := h.registry.Open(rec)
	h.auditLogger.SessionOpened(auditlog.WithRequest(r), s.ID(), trigger, actorFrom(r))
	jsonutil.Created(w, sessionViewOf(s))
}

// getSession handles GET /sessions/{id}.
func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	jsonutil.OK(w, sessionViewOf(s))
}

type textInput struct {
	MessageText *string `json:"message_text"`
}

// setText handles PUT /sessions/{id}/text. Links are left as they are and
// may drift.
func (h *Handler) setText(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var in textInput
	if err := jsonutil.Decode(w, r, &in); err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	if in.MessageText == nil {
		jsonutil.BadRequest(w, "message_text is required")
		return
	}
	if h.tooLong(w, *in.MessageText) {
		return
	}

	s.SetText(*in.MessageText)
	jsonutil.OK(w, sessionViewOf(s))
}

// setSessionActive handles PUT /sessions/{id}/active.
func (h *Handler) setSessionActive(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	active, ok := decodeActive(w, r)
	if !ok {
		return
	}

	s.SetActive(active)
	jsonutil.OK(w, sessionViewOf(s))
}

type insertLinkInput struct {
	URL         string `json:"url" validate:"required,linkurl,max=2048" label:"Link URL"`
	Placeholder string `json:"placeholder" validate:"required,nodelim,max=200" label:"Placeholder"`
}

// insertLink handles POST /sessions/{id}/links.
func (h *Handler) insertLink(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var in insertLinkInput
	if err := jsonutil.Decode(w, r, &in); err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonutil.ValidationError(w, res.Fields())
		return
	}

	d := models.LinkDescriptor{URL: in.URL, Placeholder: in.Placeholder}
	next := linkdirective.Encode(d)
	if text := s.Snapshot().MessageText; text != "" {
		next = text + " " + next
	}
	if h.tooLong(w, next) {
		return
	}

	if err := s.InsertLink(d); err != nil {
		if errors.Is(err, linkdirective.ErrEmptyField) || errors.Is(err, linkdirective.ErrDelimiter) {
			jsonutil.BadRequest(w, err.Error())
			return
		}
		h.errLog.Log(r, "failed to insert link", err)
		jsonutil.InternalError(w, "failed to insert link")
		return
	}
	jsonutil.OK(w, sessionViewOf(s))
}

// removeLink handles DELETE /sessions/{id}/links/{index}. A link whose text
// is already gone is still removed and reported with text_removed false.
func (h *Handler) removeLink(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		jsonutil.BadRequest(w, "link index must be a number")
		return
	}

	removed, err := s.RemoveLink(index)
	if errors.Is(err, templatesync.ErrIndexOutOfRange) {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	if err != nil {
		h.errLog.Log(r, "failed to remove link", err)
		jsonutil.InternalError(w, "failed to remove link")
		return
	}

	if !removed {
		h.logger.Debug("removed link had drifted from the text",
			zap.String("session_id", s.ID()),
			zap.Int("index", index))
	}
	jsonutil.OK(w, RemoveLinkView{SessionView: sessionViewOf(s), TextRemoved: removed})
}

// prune handles POST /sessions/{id}/prune.
func (h *Handler) prune(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Prune()
	jsonutil.OK(w, sessionViewOf(s))
}

// adopt handles POST /sessions/{id}/adopt.
func (h *Handler) adopt(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Adopt()
	jsonutil.OK(w, sessionViewOf(s))
}

// preview handles GET /sessions/{id}/preview, the working copy as an HTML fragment.
func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(s.Render().HTML()))
}

// save handles POST /sessions/{id}/save. On failure the working copy is
// untouched and the client may retry.
func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	actor := actorFrom(r)
	ctx, cancel := timeouts.WithTimeout(auditlog.WithRequest(r), timeouts.Medium(), h.logger, "template_save")
	defer cancel()

	if _, err := s.Save(ctx, h.store, actor); err != nil {
		h.errLog.LogWithFields(r, "template save failed", err,
			zap.String("session_id", s.ID()),
			zap.String("trigger_type", s.TriggerType()))
		h.auditLogger.SaveFailed(ctx, s.ID(), s.TriggerType(), actor, err.Error())
		jsonutil.BadGateway(w, templateeditor.ErrSaveFailed.Error())
		return
	}
	jsonutil.OK(w, sessionViewOf(s))
}

// discard handles DELETE /sessions/{id}. Unsaved changes are dropped.
func (h *Handler) discard(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	dirty := s.Dirty()
	h.registry.Close(s.ID())
	h.auditLogger.SessionDiscarded(auditlog.WithRequest(r), s.ID(), s.TriggerType(), dirty, actorFrom(r))
	jsonutil.NoContent(w)
}
