// internal/app/features/auditlog/auditlog.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"
	"time"

	errorsfeature "github.com/dalemusser/stratanotify/internal/app/features/errors"
	"github.com/dalemusser/stratanotify/internal/app/store/audit"
	"github.com/dalemusser/stratanotify/internal/app/system/auth"
	"github.com/dalemusser/stratanotify/internal/app/system/jsonutil"
	"github.com/dalemusser/stratanotify/internal/app/system/normalize"
	"github.com/dalemusser/stratanotify/internal/app/system/timezones"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const pageSize = 50

// EventQuerier reads audit events. *audit.Store implements it.
type EventQuerier interface {
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
	CountByFilter(ctx context.Context, filter audit.QueryFilter) (int64, error)
}

// Handler provides audit log handlers.
type Handler struct {
	events EventQuerier
	errLog *errorsfeature.ErrorLogger
	logger *zap.Logger
}

// NewHandler creates a new audit log Handler.
func NewHandler(events EventQuerier, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		events: events,
		errLog: errLog,
		logger: logger,
	}
}

// Item is a single audit event in the list response.
type Item struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	Category      string            `json:"category"`
	EventType     string            `json:"event_type"`
	TriggerType   string            `json:"trigger_type,omitempty"`
	ActorName     string            `json:"actor_name,omitempty"`
	IP            string            `json:"ip,omitempty"`
	Success       bool              `json:"success"`
	FailureReason string            `json:"failure_reason,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
}

// ListResponse is one page of audit events, newest first.
type ListResponse struct {
	Items      []Item `json:"items"`
	Page       int    `json:"page"`
	TotalPages int    `json:"total_pages"`
	Total      int64  `json:"total"`
}

// eventTypesForCategory returns the event types for a given category.
// If category is empty, returns all event types.
func eventTypesForCategory(category string) []string {
	templateEvents := []string{
		audit.EventTemplateSaved,
		audit.EventTemplateActivated,
		audit.EventTemplateDeactivated,
		audit.EventTemplateDeleted,
		audit.EventTemplatesSeeded,
	}
	editorEvents := []string{
		audit.EventSessionOpened,
		audit.EventSessionDiscarded,
		audit.EventSessionsPruned,
		audit.EventSaveFailed,
	}
	authEvents := []string{
		audit.EventOperatorSignedIn,
		audit.EventOperatorSignInFailed,
		audit.EventOperatorSignedOut,
	}

	switch category {
	case audit.CategoryTemplate:
		return templateEvents
	case audit.CategoryEditor:
		return editorEvents
	case audit.CategoryAuth:
		return authEvents
	case "":
		all := make([]string, 0, len(templateEvents)+len(editorEvents)+len(authEvents))
		all = append(all, templateEvents...)
		all = append(all, editorEvents...)
		all = append(all, authEvents...)
		return all
	default:
		return nil
	}
}

// Routes returns a chi.Router with audit log routes mounted.
//
//	GET /             events, filtered and paginated
//	GET /event-types  event types, optionally for ?category=
//	GET /timezones    zones accepted by ?tz=, grouped by region
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireRole(auth.RoleAdmin))

	r.Get("/", h.list)
	r.Get("/event-types", h.eventTypes)
	r.Get("/timezones", h.zoneList)

	return r
}

func (h *Handler) eventTypes(w http.ResponseWriter, r *http.Request) {
	types := eventTypesForCategory(normalize.QueryParam(r.URL.Query().Get("category")))
	if types == nil {
		jsonutil.BadRequest(w, "unknown category")
		return
	}
	jsonutil.OK(w, map[string][]string{"event_types": types})
}

func (h *Handler) zoneList(w http.ResponseWriter, r *http.Request) {
	groups, err := timezones.Groups()
	if err != nil {
		h.errLog.Log(r, "failed to load time zones", err)
		jsonutil.InternalError(w, "failed to load time zones")
		return
	}
	jsonutil.OK(w, map[string][]timezones.ZoneGroup{"groups": groups})
}

// list returns audit events. Query parameters: category, event_type, trigger,
// start_date and end_date (YYYY-MM-DD, in tz or server local time), page.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := normalize.QueryParam(q.Get("category"))
	eventType := normalize.QueryParam(q.Get("event_type"))
	trigger := normalize.TriggerType(q.Get("trigger"))
	startDate := normalize.QueryParam(q.Get("start_date"))
	endDate := normalize.QueryParam(q.Get("end_date"))
	tzParam := normalize.QueryParam(q.Get("tz"))

	page := 1
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page = p
	}

	loc := time.Local
	if tzParam != "" {
		parsed, err := timezones.Location(tzParam)
		if err != nil {
			jsonutil.BadRequest(w, "unknown time zone")
			return
		}
		loc = parsed
	}

	filter := audit.QueryFilter{
		Category:    category,
		EventType:   eventType,
		TriggerType: trigger,
		Limit:       pageSize,
		Offset:      int64((page - 1) * pageSize),
	}

	if startDate != "" {
		t, err := time.ParseInLocation("2006-01-02", startDate, loc)
		if err != nil {
			jsonutil.BadRequest(w, "start_date must be YYYY-MM-DD")
			return
		}
		filter.StartTime = &t
	}
	if endDate != "" {
		t, err := time.ParseInLocation("2006-01-02", endDate, loc)
		if err != nil {
			jsonutil.BadRequest(w, "end_date must be YYYY-MM-DD")
			return
		}
		endOfDay := t.Add(24*time.Hour - time.Second)
		filter.EndTime = &endOfDay
	}

	events, err := h.events.Query(r.Context(), filter)
	if err != nil {
		h.errLog.Log(r, "failed to query audit events", err)
		jsonutil.InternalError(w, "failed to load audit log")
		return
	}

	total, err := h.events.CountByFilter(r.Context(), filter)
	if err != nil {
		h.logger.Warn("failed to count audit events", zap.Error(err))
		total = int64(len(events))
	}

	items := make([]Item, 0, len(events))
	for _, e := range events {
		items = append(items, Item{
			ID:            e.ID.Hex(),
			Timestamp:     e.CreatedAt,
			Category:      e.Category,
			EventType:     e.EventType,
			TriggerType:   e.TriggerType,
			ActorName:     e.ActorName,
			IP:            e.IP,
			Success:       e.Success,
			FailureReason: e.FailureReason,
			Details:       e.Details,
		})
	}

	totalPages := int((total + pageSize - 1) / pageSize)
	if totalPages < 1 {
		totalPages = 1
	}

	jsonutil.OK(w, ListResponse{
		Items:      items,
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
	})
}
