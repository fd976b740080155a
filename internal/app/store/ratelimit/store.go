// Package ratelimit throttles failed operator sign-ins per client address.
package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the MongoDB collection holding sign-in attempt counters.
const CollectionName = "sign_in_attempts"

// Attempt tracks failed operator sign-ins from one client.
type Attempt struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Key          string             `bson:"key"`           // client address, lower-cased
	AttemptCount int                `bson:"attempt_count"` // failures in the current window
	WindowStart  time.Time          `bson:"window_start"`
	LockedUntil  *time.Time         `bson:"locked_until"`
	LastAttempt  time.Time          `bson:"last_attempt"` // TTL index field
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

// Store counts failed sign-ins and locks a client out after maxAttempts
// failures within window.
type Store struct {
	c               *mongo.Collection
	maxAttempts     int
	windowDuration  time.Duration
	lockoutDuration time.Duration
	now             func() time.Time
}

// New creates a new rate limit Store with the given configuration.
func New(db *mongo.Database, maxAttempts int, window, lockout time.Duration) *Store {
	return &Store{
		c:               db.Collection(CollectionName),
		maxAttempts:     maxAttempts,
		windowDuration:  window,
		lockoutDuration: lockout,
		now:             time.Now,
	}
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// CheckAllowed reports whether key may attempt to sign in.
// remaining is -1 while locked. Lookup errors fail open.
func (s *Store) CheckAllowed(ctx context.Context, key string) (allowed bool, remaining int, lockedUntil *time.Time) {
	now := s.now()

	var attempt Attempt
	err := s.c.FindOne(ctx, bson.M{"key": normalizeKey(key)}).Decode(&attempt)
	if err != nil {
		return true, s.maxAttempts, nil
	}

	if attempt.LockedUntil != nil && now.Before(*attempt.LockedUntil) {
		return false, -1, attempt.LockedUntil
	}
	if now.After(attempt.WindowStart.Add(s.windowDuration)) {
		return true, s.maxAttempts, nil
	}

	remaining = s.maxAttempts - attempt.AttemptCount
	if remaining <= 0 {
		return false, 0, nil
	}
	return true, remaining, nil
}

// RecordFailure counts a failed sign-in for key and reports whether it
// triggered a lockout. The counter is incremented atomically, so concurrent
// failures from one client are all counted. Storage errors fail open.
func (s *Store) RecordFailure(ctx context.Context, key string) (lockedOut bool, lockedUntil *time.Time) {
	key = normalizeKey(key)
	now := s.now()

	// A window that has run out (and is not under lockout) starts over.
	_, _ = s.c.UpdateOne(ctx, bson.M{
		"key":          key,
		"window_start": bson.M{"$lt": now.Add(-s.windowDuration)},
		"$or": bson.A{
			bson.M{"locked_until": nil},
			bson.M{"locked_until": bson.M{"$lte": now}},
		},
	}, bson.M{"$set": bson.M{
		"attempt_count": 0,
		"window_start":  now,
		"locked_until":  nil,
	}})

	attempt, err := s.increment(ctx, key, now)
	if mongo.IsDuplicateKeyError(err) {
		// Lost an insert race on the unique key; the document exists now.
		attempt, err = s.increment(ctx, key, now)
	}
	if err != nil || attempt.AttemptCount < s.maxAttempts {
		return false, nil
	}

	until := now.Add(s.lockoutDuration)
	_, _ = s.c.UpdateOne(ctx, bson.M{"_id": attempt.ID}, bson.M{"$set": bson.M{"locked_until": until}})
	return true, &until
}

func (s *Store) increment(ctx context.Context, key string, now time.Time) (Attempt, error) {
	var attempt Attempt
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"key": key},
		bson.M{
			"$inc": bson.M{"attempt_count": 1},
			"$set": bson.M{"last_attempt": now, "updated_at": now},
			"$setOnInsert": bson.M{
				"window_start": now,
				"locked_until": nil,
				"created_at":   now,
			},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&attempt)
	return attempt, err
}

// ClearOnSuccess removes the counter for key after a successful sign-in.
func (s *Store) ClearOnSuccess(ctx context.Context, key string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"key": normalizeKey(key)})
	return err
}

// GetAttempt returns the counter for key, or nil if there is none.
func (s *Store) GetAttempt(ctx context.Context, key string) (*Attempt, error) {
	var attempt Attempt
	err := s.c.FindOne(ctx, bson.M{"key": normalizeKey(key)}).Decode(&attempt)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}
