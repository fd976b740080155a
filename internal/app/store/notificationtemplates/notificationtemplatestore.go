// internal/app/store/notificationtemplates/notificationtemplatestore.go
package notificationtemplatestore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/stratanotify/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the MongoDB collection holding template records.
const CollectionName = "notification_templates"

var (
	// ErrNotFound is returned when no template exists for a trigger type.
	ErrNotFound = errors.New("notification template not found")

	// ErrTriggerRequired is returned when saving a record without a trigger type.
	ErrTriggerRequired = errors.New("trigger type is required")
)

// Store provides access to the notification_templates collection.
// Records are keyed by trigger_type.
type Store struct {
	c *mongo.Collection
}

// New creates a new notification template store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

// LoadTemplates returns every template ordered by trigger type.
func (s *Store) LoadTemplates(ctx context.Context) ([]models.NotificationTemplate, error) {
	return s.find(ctx, bson.M{})
}

// ListActive returns the active templates ordered by trigger type.
func (s *Store) ListActive(ctx context.Context) ([]models.NotificationTemplate, error) {
	return s.find(ctx, bson.M{"is_active": true})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.NotificationTemplate, error) {
	opts := options.Find().SetSort(bson.D{{Key: "trigger_type", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.NotificationTemplate
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByTrigger returns the template for triggerType.
func (s *Store) GetByTrigger(ctx context.Context, triggerType string) (models.NotificationTemplate, error) {
	var t models.NotificationTemplate
	err := s.c.FindOne(ctx, bson.M{"trigger_type": triggerType}).Decode(&t)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.NotificationTemplate{}, ErrNotFound
		}
		return models.NotificationTemplate{}, err
	}
	return t, nil
}

// SaveTemplate creates or replaces the record for rec.TriggerType and returns
// the stored document.
func (s *Store) SaveTemplate(ctx context.Context, rec models.NotificationTemplate) (models.NotificationTemplate, error) {
	if rec.TriggerType == "" {
		return models.NotificationTemplate{}, ErrTriggerRequired
	}

	now := time.Now().UTC()
	links := rec.Links
	if links == nil {
		links = []models.LinkDescriptor{}
	}

	filter := bson.M{"trigger_type": rec.TriggerType}
	update := bson.M{
		"$set": bson.M{
			"message_text":    rec.MessageText,
			"links":           links,
			"is_active":       rec.IsActive,
			"updated_at":      now,
			"updated_by_id":   rec.UpdatedByID,
			"updated_by_name": rec.UpdatedByName,
		},
		"$setOnInsert": bson.M{
			"_id":          primitive.NewObjectID(),
			"trigger_type": rec.TriggerType,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var saved models.NotificationTemplate
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&saved); err != nil {
		return models.NotificationTemplate{}, err
	}
	return saved, nil
}

// CreateIfMissing inserts rec unless a record for its trigger type exists.
// It reports whether a record was inserted.
func (s *Store) CreateIfMissing(ctx context.Context, rec models.NotificationTemplate) (bool, error) {
	if rec.TriggerType == "" {
		return false, ErrTriggerRequired
	}

	links := rec.Links
	if links == nil {
		links = []models.LinkDescriptor{}
	}

	now := time.Now().UTC()
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":          primitive.NewObjectID(),
			"trigger_type": rec.TriggerType,
			"message_text": rec.MessageText,
			"links":        links,
			"is_active":    rec.IsActive,
			"updated_at":   now,
		},
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"trigger_type": rec.TriggerType}, update, options.Update().SetUpsert(true))
	if err != nil {
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

// SetActive flips the active flag without touching text or links.
func (s *Store) SetActive(ctx context.Context, triggerType string, active bool) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"trigger_type": triggerType},
		bson.M{"$set": bson.M{"is_active": active, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the template for triggerType.
func (s *Store) Delete(ctx context.Context, triggerType string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"trigger_type": triggerType})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of stored templates.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{})
}
