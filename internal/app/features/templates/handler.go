// Package templates is the operator API for editing notification templates.
//
// Records are read and toggled directly. Text and link edits go through an
// editing session: a private working copy that only reaches the store on save.
package templates

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	errorsfeature "github.com/dalemusser/stratanotify/internal/app/features/errors"
	"github.com/dalemusser/stratanotify/internal/app/store/audit"
	notificationtemplatestore "github.com/dalemusser/stratanotify/internal/app/store/notificationtemplates"
	"github.com/dalemusser/stratanotify/internal/app/system/auditlog"
	"github.com/dalemusser/stratanotify/internal/app/system/auth"
	"github.com/dalemusser/stratanotify/internal/app/system/inputval"
	"github.com/dalemusser/stratanotify/internal/app/system/jsonutil"
	"github.com/dalemusser/stratanotify/internal/app/system/normalize"
	"github.com/dalemusser/stratanotify/internal/app/system/templateeditor"
	"github.com/dalemusser/stratanotify/internal/app/system/templaterender"
	"github.com/dalemusser/stratanotify/internal/app/system/templatesync"
	"github.com/dalemusser/stratanotify/internal/app/system/timeouts"
	"github.com/dalemusser/stratanotify/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// TemplateStore is the persistence the API needs.
// *notificationtemplatestore.Store implements it.
type TemplateStore interface {
	templateeditor.Persister
	GetByTrigger(ctx context.Context, triggerType string) (models.NotificationTemplate, error)
	SetActive(ctx context.Context, triggerType string, active bool) error
	Delete(ctx context.Context, triggerType string) error
}

// HistoryReader returns audit events for one template. *audit.Store implements it.
type HistoryReader interface {
	GetByTrigger(ctx context.Context, triggerType string, limit int64) ([]audit.Event, error)
}

// Handler serves the template API.
type Handler struct {
	store       TemplateStore
	history     HistoryReader // nil disables /history
	registry    *templateeditor.Registry
	auditLogger *auditlog.Logger
	errLog      *errorsfeature.ErrorLogger
	maxLen      int // 0 means unlimited
	logger      *zap.Logger
}

// NewHandler creates a template API handler. maxMessageLength caps the
// message text in characters; 0 disables the cap.
func NewHandler(
	store TemplateStore,
	history HistoryReader,
	registry *templateeditor.Registry,
	auditLogger *auditlog.Logger,
	errLog *errorsfeature.ErrorLogger,
	maxMessageLength int,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		store:       store,
		history:     history,
		registry:    registry,
		auditLogger: auditLogger,
		errLog:      errLog,
		maxLen:      maxMessageLength,
		logger:      logger,
	}
}

// TemplateView is a record plus its rendered preview.
type TemplateView struct {
	TriggerType   string                  `json:"trigger_type"`
	MessageText   string                  `json:"message_text"`
	Links         []models.LinkDescriptor `json:"links"`
	IsActive      bool                    `json:"is_active"`
	UpdatedAt     *time.Time              `json:"updated_at,omitempty"`
	UpdatedByName string                  `json:"updated_by_name,omitempty"`
	Drifted       []int                   `json:"drifted"`
	PreviewHTML   string                  `json:"preview_html"`
	PreviewText   string                  `json:"preview_text"`
}

func viewOf(rec models.NotificationTemplate) TemplateView {
	node := templaterender.RenderTemplate(rec)
	links := rec.Links
	if links == nil {
		links = []models.LinkDescriptor{}
	}
	drifted := templatesync.FromTemplate(rec).Drifted()
	if drifted == nil {
		drifted = []int{}
	}
	return TemplateView{
		TriggerType:   rec.TriggerType,
		MessageText:   rec.MessageText,
		Links:         links,
		IsActive:      rec.IsActive,
		UpdatedAt:     rec.UpdatedAt,
		UpdatedByName: rec.UpdatedByName,
		Drifted:       drifted,
		PreviewHTML:   string(node.HTML()),
		PreviewText:   node.PlainText(),
	}
}

// HistoryItem is one audit event about a template.
type HistoryItem struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	ActorName string            `json:"actor_name,omitempty"`
	Success   bool              `json:"success"`
	Details   map[string]string `json:"details,omitempty"`
}

func actorFrom(r *http.Request) templateeditor.Actor {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return templateeditor.Actor{}
	}
	return templateeditor.Actor{ID: u.ID, Name: u.Name}
}

// triggerParam reads and checks {trigger}. It writes a 400 and returns false
// for a malformed key.
func triggerParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	trigger := normalize.TriggerType(chi.URLParam(r, "trigger"))
	if !inputval.IsValidTriggerType(trigger) {
		jsonutil.BadRequest(w, "trigger type must be lower-case letters, digits and underscores")
		return "", false
	}
	return trigger, true
}

// list handles GET /.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	recs, err := h.store.LoadTemplates(ctx)
	if err != nil {
		h.errLog.Log(r, "failed to load templates", err)
		jsonutil.InternalError(w, "failed to load templates")
		return
	}

	views := make([]TemplateView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, viewOf(rec))
	}
	jsonutil.OK(w, map[string]any{"templates": views})
}

// get handles GET /{trigger}.
func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	trigger, ok := triggerParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	rec, err := h.store.GetByTrigger(ctx, trigger)
	if errors.Is(err, notificationtemplatestore.ErrNotFound) {
		jsonutil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		h.errLog.LogWithFields(r, "failed to load template", err, zap.String("trigger_type", trigger))
		jsonutil.InternalError(w, "failed to load template")
		return
	}
	jsonutil.OK(w, viewOf(rec))
}

type activeInput struct {
	IsActive *bool `json:"is_active"`
}

func decodeActive(w http.ResponseWriter, r *http.Request) (bool, bool) {
	var in activeInput
	if err := jsonutil.Decode(w, r, &in); err != nil {
		jsonutil.BadRequest(w, err.Error())
		return false, false
	}
	if in.IsActive == nil {
		jsonutil.BadRequest(w, "is_active is required")
		return false, false
	}
	return *in.IsActive, true
}

// setActive handles PUT /{trigger}/active. It flips the stored record
// without opening a session.
func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	trigger, ok := triggerParam(w, r)
	if !ok {
		return
	}
	active, ok := decodeActive(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	err := h.store.SetActive(ctx, trigger, active)
	if errors.Is(err, notificationtemplatestore.ErrNotFound) {
		jsonutil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		h.errLog.LogWithFields(r, "failed to set template active flag", err, zap.String("trigger_type", trigger))
		jsonutil.InternalError(w, "failed to update template")
		return
	}

	h.auditLogger.TemplateActiveChanged(auditlog.WithRequest(r), trigger, active, actorFrom(r))

	rec, err := h.store.GetByTrigger(ctx, trigger)
	if err != nil {
		h.errLog.LogWithFields(r, "failed to reload template", err, zap.String("trigger_type", trigger))
		jsonutil.InternalError(w, "failed to load template")
		return
	}
	jsonutil.OK(w, viewOf(rec))
}

// remove handles DELETE /{trigger}.
func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	trigger, ok := triggerParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	err := h.store.Delete(ctx, trigger)
	if errors.Is(err, notificationtemplatestore.ErrNotFound) {
		jsonutil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		h.errLog.LogWithFields(r, "failed to delete template", err, zap.String("trigger_type", trigger))
		jsonutil.InternalError(w, "failed to delete template")
		return
	}

	h.auditLogger.TemplateDeleted(auditlog.WithRequest(r), trigger, actorFrom(r))
	jsonutil.NoContent(w)
}

// historyFor handles GET /{trigger}/history?limit=N (default 50, max 500).
func (h *Handler) historyFor(w http.ResponseWriter, r *http.Request) {
	trigger, ok := triggerParam(w, r)
	if !ok {
		return
	}
	if h.history == nil {
		jsonutil.OK(w, map[string]any{"events": []HistoryItem{}})
		return
	}

	limit := int64(50)
	if s := normalize.QueryParam(r.URL.Query().Get("limit")); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 1 || n > 500 {
			jsonutil.BadRequest(w, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	events, err := h.history.GetByTrigger(ctx, trigger, limit)
	if err != nil {
		h.errLog.LogWithFields(r, "failed to load template history", err, zap.String("trigger_type", trigger))
		jsonutil.InternalError(w, "failed to load history")
		return
	}

	items := make([]HistoryItem, 0, len(events))
	for _, e := range events {
		items = append(items, HistoryItem{
			Timestamp: e.CreatedAt,
			EventType: e.EventType,
			ActorName: e.ActorName,
			Success:   e.Success,
			Details:   e.Details,
		})
	}
	jsonutil.OK(w, map[string]any{"events": items})
}
