// Package indexes reconciles the service's MongoDB indexes at startup.
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type collectionIndexes struct {
	collection string
	models     []mongo.IndexModel
}

func index(name string, unique bool, keys ...bson.E) mongo.IndexModel {
	opts := options.Index().SetName(name)
	if unique {
		opts.SetUnique(true)
	}
	return mongo.IndexModel{Keys: bson.D(keys), Options: opts}
}

func asc(field string) bson.E  { return bson.E{Key: field, Value: 1} }
func desc(field string) bson.E { return bson.E{Key: field, Value: -1} }

// wanted lists every index the service relies on.
func wanted() []collectionIndexes {
	// Sign-in counters expire a day after the last failure.
	attemptTTL := index("idx_sign_in_attempts_ttl", false, asc("last_attempt"))
	attemptTTL.Options.SetExpireAfterSeconds(86400)

	return []collectionIndexes{
		{"notification_templates", []mongo.IndexModel{
			// One template per trigger.
			index("uniq_notification_templates_trigger", true, asc("trigger_type")),
			// Delivery API lists active templates.
			index("idx_notification_templates_active_trigger", false, asc("is_active"), asc("trigger_type")),
		}},
		{"audit_logs", []mongo.IndexModel{
			index("idx_audit_created", false, desc("created_at")),
			index("idx_audit_category_created", false, asc("category"), desc("created_at")),
			index("idx_audit_trigger_created", false, asc("trigger_type"), desc("created_at")),
			index("idx_audit_actor_created", false, asc("actor_id"), desc("created_at")),
		}},
		{"sign_in_attempts", []mongo.IndexModel{
			index("uniq_sign_in_attempts_key", true, asc("key")),
			attemptTTL,
		}},
		{"api_stats", []mongo.IndexModel{
			// Record upserts on this key.
			index("uniq_api_stats_bucket_type_duration", true, asc("bucket"), asc("stat_type"), asc("bucket_duration")),
			index("idx_api_stats_type_bucket", false, asc("stat_type"), asc("bucket")),
		}},
	}
}

// EnsureAll creates any missing index. It is idempotent, and every failure
// across all collections is reported in the returned error.
func EnsureAll(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	var problems []string
	for _, ci := range wanted() {
		if err := ensureIndexSet(ctx, db.Collection(ci.collection), ci.models, logger); err != nil {
			problems = append(problems, ci.collection+": "+err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique bool   `bson:"unique,omitempty"`
}

// keySig renders an index key pattern, e.g. "category:1, created_at:-1".
func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

// existingBySig lists coll's indexes keyed by keySig. A missing collection
// has none.
func existingBySig(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	out := map[string]existingIndex{}
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return out
	}
	defer cur.Close(ctx)

	var all []existingIndex
	if err := cur.All(ctx, &all); err != nil {
		return out
	}
	for _, idx := range all {
		out[keySig(idx.Key)] = idx
	}
	return out
}

// ensureIndexSet creates each model unless an index with the same key
// pattern and uniqueness exists. One whose uniqueness differs is dropped and
// recreated.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel, logger *zap.Logger) error {
	existing := existingBySig(ctx, coll)

	var errs []string
	for _, m := range models {
		name := *m.Options.Name
		unique := m.Options.Unique != nil && *m.Options.Unique
		sig := keySig(m.Keys.(bson.D))
		log := logger.With(
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", sig))

		if ex, ok := existing[sig]; ok {
			if ex.Unique == unique {
				log.Debug("reusing existing index")
				continue
			}
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s: drop failed: %v", name, err))
				continue
			}
		}

		start := time.Now()
		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if unique && mongo.IsDuplicateKeyError(err) {
				errs = append(errs, name+": cannot create unique index (duplicates present)")
			} else {
				errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			}
			log.Warn("index ensure failed", zap.Error(err))
			continue
		}
		log.Info("index ensured",
			zap.Bool("unique", unique),
			zap.Duration("took", time.Since(start)))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
