// Package testutil provides MongoDB and HTTP helpers shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/stratanotify/internal/app/system/indexes"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	// TestDBURI is used unless STRATANOTIFY_TEST_MONGO_URI is set.
	TestDBURI = "mongodb://localhost:27017"
	// TestDBName prefixes every per-test database.
	TestDBName = "stratanotify_test"

	// Mongo database names are limited to 63 bytes.
	maxDBName = 63
)

func testURI() string {
	if uri := os.Getenv("STRATANOTIFY_TEST_MONGO_URI"); uri != "" {
		return uri
	}
	return TestDBURI
}

var sharedClient = sync.OnceValues(func() (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool := wafflemongo.DefaultPoolConfig()
	pool.MaxPoolSize = 200 // packages run in parallel
	client, err := wafflemongo.ConnectWithPool(ctx, testURI(), TestDBName, pool)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client, nil
})

// SetupTestDB returns an empty database with production indexes, private to
// the calling test and dropped when it ends. Skipped under -short.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping MongoDB test in short mode")
	}

	client, err := sharedClient()
	if err != nil {
		t.Fatalf("failed to connect to test MongoDB at %s: %v", testURI(), err)
	}

	db := client.Database(dbNameFor(t.Name()))

	ctx, cancel := TestContext()
	defer cancel()
	if err := db.Drop(ctx); err != nil {
		t.Fatalf("failed to drop test database: %v", err)
	}
	if err := indexes.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("failed to create indexes: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.Drop(ctx); err != nil {
			t.Logf("warning: failed to drop test database on cleanup: %v", err)
		}
	})

	return db
}

// dbNameFor maps a test name to a database name. Long names are cut and
// suffixed with a hash of the full name so they stay distinct.
func dbNameFor(testName string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, testName)

	name := TestDBName + "_" + clean
	if len(name) <= maxDBName {
		return name
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(testName))
	suffix := fmt.Sprintf("_%08x", h.Sum32())
	return name[:maxDBName-len(suffix)] + suffix
}

// TestContext returns a context with a reasonable timeout for test operations.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
