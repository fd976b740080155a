// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the MongoDB collection holding audit events.
const CollectionName = "audit_logs"

// Event categories
const (
	CategoryTemplate = "template"
	CategoryEditor   = "editor"
	CategoryAuth     = "auth"
)

// Template event types
const (
	EventTemplateSaved       = "template_saved"
	EventTemplateActivated   = "template_activated"
	EventTemplateDeactivated = "template_deactivated"
	EventTemplateDeleted     = "template_deleted"
	EventTemplatesSeeded     = "templates_seeded"
)

// Editor event types
const (
	EventSessionOpened    = "editor_session_opened"
	EventSessionDiscarded = "editor_session_discarded"
	EventSessionsPruned   = "editor_sessions_pruned"
	EventSaveFailed       = "editor_save_failed"
)

// Operator sign-in event types
const (
	EventOperatorSignedIn     = "operator_signed_in"
	EventOperatorSignInFailed = "operator_sign_in_failed"
	EventOperatorSignedOut    = "operator_signed_out"
)

// Event represents an audit event.
type Event struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	CreatedAt time.Time          `bson:"created_at"`

	Category  string `bson:"category"`
	EventType string `bson:"event_type"`

	// Template the event concerns, empty for service-wide events.
	TriggerType string `bson:"trigger_type,omitempty"`

	// Operator who performed the action; nil for background jobs.
	ActorID   *primitive.ObjectID `bson:"actor_id,omitempty"`
	ActorName string              `bson:"actor_name,omitempty"`

	IP        string `bson:"ip,omitempty"`
	UserAgent string `bson:"user_agent,omitempty"`

	Success       bool   `bson:"success"`
	FailureReason string `bson:"failure_reason,omitempty"`

	Details map[string]string `bson:"details,omitempty"`
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	TriggerType string
	ActorID     *primitive.ObjectID
	Category    string
	EventType   string
	StartTime   *time.Time
	EndTime     *time.Time
	Limit       int64
	Offset      int64
}

func (f QueryFilter) toBSON() bson.M {
	query := bson.M{}
	if f.TriggerType != "" {
		query["trigger_type"] = f.TriggerType
	}
	if f.ActorID != nil {
		query["actor_id"] = f.ActorID
	}
	if f.Category != "" {
		query["category"] = f.Category
	}
	if f.EventType != "" {
		query["event_type"] = f.EventType
	}
	if f.StartTime != nil || f.EndTime != nil {
		timeQuery := bson.M{}
		if f.StartTime != nil {
			timeQuery["$gte"] = *f.StartTime
		}
		if f.EndTime != nil {
			timeQuery["$lte"] = *f.EndTime
		}
		query["created_at"] = timeQuery
	}
	return query
}

// Store manages audit event records.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

// Query retrieves audit events matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cursor, err := s.c.Find(ctx, filter.toBSON(), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountByFilter returns the count of events matching the filter.
func (s *Store) CountByFilter(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, filter.toBSON())
}

// GetByTrigger retrieves the recent history of one template.
func (s *Store) GetByTrigger(ctx context.Context, triggerType string, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{TriggerType: triggerType, Limit: limit})
}


// DeleteOlderThan removes events created before cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
