package tasks_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/stratanotify/internal/app/store/audit"
	"github.com/dalemusser/stratanotify/internal/app/system/tasks"
	"github.com/dalemusser/stratanotify/internal/app/system/templateeditor"
	"github.com/dalemusser/stratanotify/internal/domain/models"
	"github.com/dalemusser/stratanotify/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

type countingReporter struct{ total int }

func (c *countingReporter) SessionsPruned(ctx context.Context, count int) { c.total += count }

func TestEditorSessionPruneJob(t *testing.T) {
	reg := templateeditor.NewRegistry()
	reg.Open(models.NotificationTemplate{TriggerType: models.TriggerUserCreated})
	reg.Open(models.NotificationTemplate{TriggerType: models.TriggerPasswordReset})

	rep := &countingReporter{}
	runner := tasks.New(zap.NewNop())
	runner.Register(tasks.EditorSessionPruneJob(reg, time.Millisecond, rep, zap.NewNop()))

	time.Sleep(10 * time.Millisecond)

	if err := runner.RunOnce(context.Background(), "editor-session-prune"); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if reg.Len() != 0 {
		t.Errorf("expected all sessions pruned, %d left", reg.Len())
	}
	if rep.total != 2 {
		t.Errorf("reporter saw %d pruned sessions, want 2", rep.total)
	}
}

func TestEditorSessionPruneJob_KeepsActive(t *testing.T) {
	reg := templateeditor.NewRegistry()
	reg.Open(models.NotificationTemplate{TriggerType: models.TriggerUserCreated})

	runner := tasks.New(zap.NewNop())
	runner.Register(tasks.EditorSessionPruneJob(reg, time.Hour, nil, zap.NewNop()))

	if err := runner.RunOnce(context.Background(), "editor-session-prune"); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if reg.Len() != 1 {
		t.Errorf("active session should survive, %d open", reg.Len())
	}
}

func TestAuditRetentionJob(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	coll := db.Collection("audit_logs")
	now := time.Now().UTC()
	_, err := coll.InsertMany(ctx, []any{
		bson.M{"created_at": now.Add(-100 * 24 * time.Hour), "category": "template", "event_type": "template_saved"},
		bson.M{"created_at": now.Add(-time.Hour), "category": "template", "event_type": "template_saved"},
	})
	if err != nil {
		t.Fatalf("InsertMany() error = %v", err)
	}

	runner := tasks.New(zap.NewNop())
	runner.Register(tasks.AuditRetentionJob(audit.New(db), 90*24*time.Hour, zap.NewNop()))
	if err := runner.RunOnce(ctx, "audit-retention"); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	count, err := coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatalf("CountDocuments() error = %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 remaining event, got %d", count)
	}
}

type fakePruner struct {
	cutoff time.Time
	err    error
}

func (f *fakePruner) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 3, f.err
}

func TestAPIStatsRetentionJob(t *testing.T) {
	p := &fakePruner{}
	runner := tasks.New(zap.NewNop())
	runner.Register(tasks.APIStatsRetentionJob(p, 30*24*time.Hour, zap.NewNop()))

	before := time.Now().UTC().Add(-30 * 24 * time.Hour)
	if err := runner.RunOnce(context.Background(), "api-stats-retention"); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if p.cutoff.Before(before.Add(-time.Second)) || p.cutoff.After(time.Now().UTC().Add(-30*24*time.Hour)) {
		t.Errorf("cutoff = %v, want about %v", p.cutoff, before)
	}
}

func TestAPIStatsRetentionJob_Error(t *testing.T) {
	p := &fakePruner{err: errors.New("boom")}
	runner := tasks.New(zap.NewNop())
	runner.Register(tasks.APIStatsRetentionJob(p, time.Hour, zap.NewNop()))

	if err := runner.RunOnce(context.Background(), "api-stats-retention"); err == nil {
		t.Error("expected error from pruner")
	}
}
