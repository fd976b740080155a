// Package apistats stores bucketed request statistics for the delivery API.
package apistats

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the MongoDB collection for API statistics.
const CollectionName = "api_stats"

// StatType identifies the type of API operation being tracked.
type StatType string

const (
	StatTypeListTemplates StatType = "templates_list"
	StatTypeGetTemplate   StatType = "template_get"
)

// Bucket represents a time bucket of aggregated statistics.
type Bucket struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Bucket         time.Time          `bson:"bucket"`          // Bucket start time
	BucketDuration string             `bson:"bucket_duration"` // e.g. "1h", "15m"
	StatType       StatType           `bson:"stat_type"`
	Requests       int64              `bson:"requests"`
	Errors         int64              `bson:"errors"` // 4xx and 5xx
	TotalMs        int64              `bson:"total_ms"`
	MinMs          int64              `bson:"min_ms"`
	MaxMs          int64              `bson:"max_ms"`
	UpdatedAt      time.Time          `bson:"updated_at"`
}

// AvgMs returns the average response time in milliseconds.
func (b *Bucket) AvgMs() float64 {
	if b.Requests == 0 {
		return 0
	}
	return float64(b.TotalMs) / float64(b.Requests)
}

// Store provides API statistics persistence.
type Store struct {
	c   *mongo.Collection
	now func() time.Time
}

// New creates a new API stats store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName), now: time.Now}
}

// TruncateToBucket truncates a time to the start of its bucket.
func TruncateToBucket(t time.Time, duration time.Duration) time.Time {
	return t.UTC().Truncate(duration)
}

// Record adds one request to the bucket containing now. The upsert creates
// the bucket from the filter fields on first use; $min and $max seed the
// latency bounds the same way.
func (s *Store) Record(ctx context.Context, statType StatType, bucketDuration time.Duration, durationMs int64, isError bool) error {
	now := s.now().UTC()
	key := bson.M{
		"bucket":          TruncateToBucket(now, bucketDuration),
		"stat_type":       statType,
		"bucket_duration": bucketDuration.String(),
	}

	inc := bson.M{"requests": 1, "total_ms": durationMs}
	if isError {
		inc["errors"] = 1
	}
	update := bson.M{
		"$inc": inc,
		"$set": bson.M{"updated_at": now},
		"$min": bson.M{"min_ms": durationMs},
		"$max": bson.M{"max_ms": durationMs},
	}

	_, err := s.c.UpdateOne(ctx, key, update, options.Update().SetUpsert(true))
	return err
}

// inRange matches buckets that start within [start, end].
func inRange(start, end time.Time) bson.M {
	return bson.M{"$gte": start.UTC(), "$lte": end.UTC()}
}

// GetRange retrieves buckets for a stat type in [startTime, endTime], oldest first.
func (s *Store) GetRange(ctx context.Context, statType StatType, startTime, endTime time.Time) ([]Bucket, error) {
	filter := bson.M{"stat_type": statType, "bucket": inRange(startTime, endTime)}
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "bucket", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var buckets []Bucket
	if err := cur.All(ctx, &buckets); err != nil {
		return nil, err
	}
	return buckets, nil
}

// DeleteOlderThan deletes buckets that started before cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.c.DeleteMany(ctx, bson.M{"bucket": bson.M{"$lt": cutoff.UTC()}})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// Summary totals one stat type over a range.
type Summary struct {
	StatType      StatType  `json:"stat_type"`
	TotalRequests int64     `json:"requests"`
	TotalErrors   int64     `json:"errors"`
	AvgMs         float64   `json:"avg_ms"`
	MinMs         int64     `json:"min_ms"`
	MaxMs         int64     `json:"max_ms"`
	FirstBucket   time.Time `json:"first_bucket"`
	LastBucket    time.Time `json:"last_bucket"`
}

// GetSummary returns one Summary per stat type with buckets in the range,
// ordered by stat type.
func (s *Store) GetSummary(ctx context.Context, startTime, endTime time.Time) ([]Summary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"bucket": inRange(startTime, endTime)}}},
		{{Key: "$group", Value: bson.M{
			"_id":          "$stat_type",
			"requests":     bson.M{"$sum": "$requests"},
			"errors":       bson.M{"$sum": "$errors"},
			"total_ms":     bson.M{"$sum": "$total_ms"},
			"min_ms":       bson.M{"$min": "$min_ms"},
			"max_ms":       bson.M{"$max": "$max_ms"},
			"first_bucket": bson.M{"$min": "$bucket"},
			"last_bucket":  bson.M{"$max": "$bucket"},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var groups []struct {
		ID          StatType  `bson:"_id"`
		Requests    int64     `bson:"requests"`
		Errors      int64     `bson:"errors"`
		TotalMs     int64     `bson:"total_ms"`
		MinMs       int64     `bson:"min_ms"`
		MaxMs       int64     `bson:"max_ms"`
		FirstBucket time.Time `bson:"first_bucket"`
		LastBucket  time.Time `bson:"last_bucket"`
	}
	if err := cur.All(ctx, &groups); err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(groups))
	for _, g := range groups {
		totals := Bucket{Requests: g.Requests, TotalMs: g.TotalMs}
		summaries = append(summaries, Summary{
			StatType:      g.ID,
			TotalRequests: g.Requests,
			TotalErrors:   g.Errors,
			AvgMs:         totals.AvgMs(),
			MinMs:         g.MinMs,
			MaxMs:         g.MaxMs,
			FirstBucket:   g.FirstBucket,
			LastBucket:    g.LastBucket,
		})
	}
	return summaries, nil
}
