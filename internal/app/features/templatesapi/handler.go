// Package templatesapi serves active notification templates to the systems
// that send notifications.
//
// Endpoints (API key required):
//   - GET /api/templates            - all active templates
//   - GET /api/templates/{trigger}  - one active template
//
// Each template is returned raw and rendered as HTML and plain text.
// {{variable}} placeholders are left for the caller to substitute.
package templatesapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	errorsfeature "github.com/dalemusser/stratanotify/internal/app/features/errors"
	notificationtemplatestore "github.com/dalemusser/stratanotify/internal/app/store/notificationtemplates"
	"github.com/dalemusser/stratanotify/internal/app/system/inputval"
	"github.com/dalemusser/stratanotify/internal/app/system/jsonutil"
	"github.com/dalemusser/stratanotify/internal/app/system/normalize"
	"github.com/dalemusser/stratanotify/internal/app/system/templaterender"
	"github.com/dalemusser/stratanotify/internal/app/system/timeouts"
	"github.com/dalemusser/stratanotify/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// TemplateReader reads stored templates. *notificationtemplatestore.Store implements it.
type TemplateReader interface {
	ListActive(ctx context.Context) ([]models.NotificationTemplate, error)
	GetByTrigger(ctx context.Context, triggerType string) (models.NotificationTemplate, error)
}

// Handler handles delivery API requests.
type Handler struct {
	store  TemplateReader
	errLog *errorsfeature.ErrorLogger
	logger *zap.Logger
}

// NewHandler creates a new templatesapi handler.
func NewHandler(store TemplateReader, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		store:  store,
		errLog: errLog,
		logger: logger,
	}
}

// Template is one deliverable template.
type Template struct {
	TriggerType string                  `json:"trigger_type"`
	MessageText string                  `json:"message_text"`
	Links       []models.LinkDescriptor `json:"links"`
	HTML        string                  `json:"html"`
	Text        string                  `json:"text"`
	UpdatedAt   *time.Time              `json:"updated_at,omitempty"`
}

func deliverable(rec models.NotificationTemplate) Template {
	node := templaterender.RenderTemplate(rec)
	links := rec.Links
	if links == nil {
		links = []models.LinkDescriptor{}
	}
	return Template{
		TriggerType: rec.TriggerType,
		MessageText: rec.MessageText,
		Links:       links,
		HTML:        string(node.HTML()),
		Text:        node.PlainText(),
		UpdatedAt:   rec.UpdatedAt,
	}
}

// ListHandler handles GET /. Inactive templates are omitted.
func (h *Handler) ListHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.logger, "list_active_templates")
	defer cancel()

	recs, err := h.store.ListActive(ctx)
	if err != nil {
		h.errLog.Log(r, "failed to list active templates", err)
		jsonutil.InternalError(w, "failed to load templates")
		return
	}

	out := make([]Template, 0, len(recs))
	for _, rec := range recs {
		out = append(out, deliverable(rec))
	}
	w.Header().Set("Cache-Control", "no-cache")
	jsonutil.OK(w, map[string]any{"templates": out})
}

// GetHandler handles GET /{trigger}. A missing or inactive template is 404.
func (h *Handler) GetHandler(w http.ResponseWriter, r *http.Request) {
	trigger := normalize.TriggerType(chi.URLParam(r, "trigger"))
	if !inputval.IsValidTriggerType(trigger) {
		jsonutil.BadRequest(w, "invalid trigger type")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	rec, err := h.store.GetByTrigger(ctx, trigger)
	if errors.Is(err, notificationtemplatestore.ErrNotFound) || (err == nil && !rec.IsActive) {
		jsonutil.NotFound(w, "no active template for "+trigger)
		return
	}
	if err != nil {
		h.errLog.LogWithFields(r, "failed to load template", err, zap.String("trigger_type", trigger))
		jsonutil.InternalError(w, "failed to load template")
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	jsonutil.OK(w, deliverable(rec))
}
