// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/stratanotify/internal/app/store/audit"
	"github.com/dalemusser/stratanotify/internal/app/system/network"
	"github.com/dalemusser/stratanotify/internal/app/system/templateeditor"
	"github.com/dalemusser/stratanotify/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Template controls logging for changes to stored templates.
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Template string
	// Editor controls logging for editing session lifecycle events.
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Editor string
	// Auth controls logging for operator sign-in and sign-out.
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Auth string
}

// Logger records audit events to MongoDB (via audit.Store) and zap.
// It also receives save notifications from editing sessions.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

var _ templateeditor.Subscriber = (*Logger)(nil)

// New creates a new audit Logger. store may be nil when no setting uses "db"
// or "all".
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

type requestKey struct{}

type requestInfo struct {
	ip        string
	userAgent string
}

// WithRequest returns r's context carrying the client address, so events
// logged further down the call chain can record where the request came from.
func WithRequest(r *http.Request) context.Context {
	return context.WithValue(r.Context(), requestKey{}, requestInfo{
		ip:        network.GetClientIP(r),
		userAgent: r.UserAgent(),
	})
}

func fromContext(ctx context.Context) requestInfo {
	info, _ := ctx.Value(requestKey{}).(requestInfo)
	return info
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}

	if event.TriggerType != "" {
		fields = append(fields, zap.String("trigger_type", event.TriggerType))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.ActorName != "" {
		fields = append(fields, zap.String("actor_name", event.ActorName))
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// A nil Logger is a no-op.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryTemplate:
		setting = l.config.Template
	case audit.CategoryEditor:
		setting = l.config.Editor
	case audit.CategoryAuth:
		setting = l.config.Auth
	default:
		setting = "all"
	}

	if setting == "off" {
		return
	}

	info := fromContext(ctx)
	if event.IP == "" {
		event.IP = info.ip
	}
	if event.UserAgent == "" {
		event.UserAgent = info.userAgent
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if (setting == "all" || setting == "db") && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func actorID(a templateeditor.Actor) *primitive.ObjectID {
	oid, err := primitive.ObjectIDFromHex(a.ID)
	if err != nil {
		return nil
	}
	return &oid
}

// --- Template events ---

// TemplateSaved records a successful save from an editing session.
func (l *Logger) TemplateSaved(ctx context.Context, rec models.NotificationTemplate, actor templateeditor.Actor) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryTemplate,
		EventType:   audit.EventTemplateSaved,
		TriggerType: rec.TriggerType,
		ActorID:     actorID(actor),
		ActorName:   actor.Name,
		Success:     true,
		Details: map[string]string{
			"links":          strconv.Itoa(len(rec.Links)),
			"message_length": strconv.Itoa(len(rec.MessageText)),
			"is_active":      strconv.FormatBool(rec.IsActive),
		},
	})
}

// TemplateActiveChanged records a direct activate or deactivate.
func (l *Logger) TemplateActiveChanged(ctx context.Context, triggerType string, active bool, actor templateeditor.Actor) {
	eventType := audit.EventTemplateDeactivated
	if active {
		eventType = audit.EventTemplateActivated
	}
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryTemplate,
		EventType:   eventType,
		TriggerType: triggerType,
		ActorID:     actorID(actor),
		ActorName:   actor.Name,
		Success:     true,
	})
}

// TemplateDeleted records a template removal.
func (l *Logger) TemplateDeleted(ctx context.Context, triggerType string, actor templateeditor.Actor) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryTemplate,
		EventType:   audit.EventTemplateDeleted,
		TriggerType: triggerType,
		ActorID:     actorID(actor),
		ActorName:   actor.Name,
		Success:     true,
	})
}

// TemplatesSeeded records defaults inserted at startup.
func (l *Logger) TemplatesSeeded(ctx context.Context, triggers []string) {
	if len(triggers) == 0 {
		return
	}
	details := make(map[string]string, len(triggers))
	for i, t := range triggers {
		details["trigger_"+strconv.Itoa(i)] = t
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryTemplate,
		EventType: audit.EventTemplatesSeeded,
		Success:   true,
		Details:   details,
	})
}

// --- Editor events ---

// SessionOpened records a new editing session.
func (l *Logger) SessionOpened(ctx context.Context, sessionID, triggerType string, actor templateeditor.Actor) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryEditor,
		EventType:   audit.EventSessionOpened,
		TriggerType: triggerType,
		ActorID:     actorID(actor),
		ActorName:   actor.Name,
		Success:     true,
		Details:     map[string]string{"session_id": sessionID},
	})
}

// SessionDiscarded records an operator closing a session without saving.
func (l *Logger) SessionDiscarded(ctx context.Context, sessionID, triggerType string, dirty bool, actor templateeditor.Actor) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryEditor,
		EventType:   audit.EventSessionDiscarded,
		TriggerType: triggerType,
		ActorID:     actorID(actor),
		ActorName:   actor.Name,
		Success:     true,
		Details: map[string]string{
			"session_id":      sessionID,
			"unsaved_changes": strconv.FormatBool(dirty),
		},
	})
}

// SaveFailed records a save the persister rejected.
func (l *Logger) SaveFailed(ctx context.Context, sessionID, triggerType string, actor templateeditor.Actor, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryEditor,
		EventType:     audit.EventSaveFailed,
		TriggerType:   triggerType,
		ActorID:       actorID(actor),
		ActorName:     actor.Name,
		Success:       false,
		FailureReason: reason,
		Details:       map[string]string{"session_id": sessionID},
	})
}

// SessionsPruned records idle sessions closed by the background job.
func (l *Logger) SessionsPruned(ctx context.Context, count int) {
	if count == 0 {
		return
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryEditor,
		EventType: audit.EventSessionsPruned,
		Success:   true,
		Details:   map[string]string{"count": strconv.Itoa(count)},
	})
}

// --- Operator events ---

// OperatorSignedIn records a successful operator sign-in.
func (l *Logger) OperatorSignedIn(ctx context.Context, actor templateeditor.Actor) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventOperatorSignedIn,
		ActorID:   actorID(actor),
		ActorName: actor.Name,
		Success:   true,
	})
}

// OperatorSignInFailed records a rejected sign-in attempt.
func (l *Logger) OperatorSignInFailed(ctx context.Context, name, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventOperatorSignInFailed,
		ActorName:     name,
		Success:       false,
		FailureReason: reason,
	})
}

// OperatorSignedOut records an operator ending their session.
func (l *Logger) OperatorSignedOut(ctx context.Context, actor templateeditor.Actor) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventOperatorSignedOut,
		ActorID:   actorID(actor),
		ActorName: actor.Name,
		Success:   true,
	})
}
