// Package validators creates the service's collections and attaches
// $jsonSchema validators to them.
package validators

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Mongo error codes checked below.
const (
	codeNamespaceExists = 48
	codeCommandNotFound = 59
	codeNotImplemented  = 115
)

type collectionSchema struct {
	name   string
	schema bson.M // nil creates the collection without a validator
}

func collections() []collectionSchema {
	return []collectionSchema{
		{"notification_templates", notificationTemplatesSchema()},
		{"audit_logs", auditLogsSchema()},
		{"sign_in_attempts", signInAttemptsSchema()},
		{"api_stats", apiStatsSchema()},
	}
}

// EnsureAll creates any missing collection and sets its validator. Servers
// without collMod support (some DocumentDB versions) keep the collection
// unvalidated. Every failure is collected into the returned error.
func EnsureAll(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		logger.Warn("listing collections failed; creating each one", zap.Error(err))
	}
	have := make(map[string]bool, len(existing))
	for _, n := range existing {
		have[n] = true
	}

	var problems []string
	for _, c := range collections() {
		log := logger.With(zap.String("collection", c.name))

		if !have[c.name] {
			if err := db.CreateCollection(ctx, c.name); err != nil && !commandFailed(err, codeNamespaceExists, "already exists", "namespace exists") {
				problems = append(problems, c.name+": "+err.Error())
				continue
			}
			log.Info("created collection")
		}

		if c.schema == nil {
			continue
		}
		switch err := setValidator(ctx, db, c.name, c.schema); {
		case err == nil:
			log.Debug("validator ensured")
		case commandFailed(err, codeCommandNotFound, "no such command"),
			commandFailed(err, codeNotImplemented, "not implemented", "not supported"):
			log.Info("validator skipped (unsupported)")
		default:
			problems = append(problems, c.name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func setValidator(ctx context.Context, db *mongo.Database, name string, schema bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: schema},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	return db.RunCommand(ctx, cmd).Err()
}

// commandFailed reports whether err is a server command error with the
// given code, or mentions one of phrases.
func commandFailed(err error, code int32, phrases ...string) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == code {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range phrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func jsonSchema(required bson.A, props bson.M) bson.M {
	return bson.M{"$jsonSchema": bson.M{
		"bsonType":   "object",
		"required":   required,
		"properties": props,
	}}
}

var nonEmptyString = bson.M{"bsonType": "string", "minLength": 1}

// notificationTemplatesSchema mirrors models.NotificationTemplate. Link
// fields must be non-empty; delimiter checks stay in application code.
func notificationTemplatesSchema() bson.M {
	link := bson.M{
		"bsonType": "object",
		"required": bson.A{"url", "placeholder"},
		"properties": bson.M{
			"url":         nonEmptyString,
			"placeholder": nonEmptyString,
		},
	}
	return jsonSchema(bson.A{"trigger_type", "message_text", "links", "is_active"}, bson.M{
		"trigger_type":    bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
		"message_text":    bson.M{"bsonType": "string"},
		"is_active":       bson.M{"bsonType": "bool"},
		"links":           bson.M{"bsonType": "array", "items": link},
		"updated_by_name": bson.M{"bsonType": bson.A{"string", "null"}},
	})
}

func auditLogsSchema() bson.M {
	return jsonSchema(bson.A{"created_at", "category", "event_type"}, bson.M{
		"created_at": bson.M{"bsonType": "date"},
		"category":   bson.M{"enum": bson.A{"template", "editor", "auth"}},
		"event_type": nonEmptyString,
	})
}

func signInAttemptsSchema() bson.M {
	return jsonSchema(bson.A{"key"}, bson.M{
		"key":           nonEmptyString,
		"attempt_count": bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
	})
}

func apiStatsSchema() bson.M {
	return jsonSchema(bson.A{"bucket", "stat_type"}, bson.M{
		"bucket":    bson.M{"bsonType": "date"},
		"stat_type": nonEmptyString,
		"requests":  bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
	})
}
