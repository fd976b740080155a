// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"github.com/dalemusser/stratanotify/internal/app/system/templateeditor"
	"go.uber.org/zap"
)

// PruneReporter is told how many sessions a prune closed.
type PruneReporter interface {
	SessionsPruned(ctx context.Context, count int)
}

// EditorSessionPruneJob closes editing sessions idle for longer than maxIdle.
// Unsaved changes in those sessions are discarded.
func EditorSessionPruneJob(reg *templateeditor.Registry, maxIdle time.Duration, reporter PruneReporter, logger *zap.Logger) Job {
	return Job{
		Name:        "editor-session-prune",
		Interval:    10 * time.Minute,
		SkipInitial: true,
		Run: func(ctx context.Context) error {
			n := reg.PruneIdle(maxIdle)
			if n > 0 {
				logger.Info("closed idle editing sessions",
					zap.Int("count", n),
					zap.Duration("max_idle", maxIdle),
					zap.Int("open", reg.Len()))
				if reporter != nil {
					reporter.SessionsPruned(ctx, n)
				}
			}
			return nil
		},
	}
}

// Pruner deletes records older than a cutoff. The audit and API stats
// stores implement it.
type Pruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

func retentionJob(name, what string, interval time.Duration, p Pruner, retention time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     name,
		Interval: interval,
		Timeout:  time.Minute,
		Run: func(ctx context.Context) error {
			n, err := p.DeleteOlderThan(ctx, time.Now().UTC().Add(-retention))
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("removed old "+what,
					zap.Int64("deleted", n),
					zap.Duration("retention", retention))
			}
			return nil
		},
	}
}

// AuditRetentionJob removes audit events older than retention.
func AuditRetentionJob(events Pruner, retention time.Duration, logger *zap.Logger) Job {
	return retentionJob("audit-retention", "audit events", 6*time.Hour, events, retention, logger)
}

// APIStatsRetentionJob removes delivery API stat buckets older than retention.
func APIStatsRetentionJob(stats Pruner, retention time.Duration, logger *zap.Logger) Job {
	return retentionJob("api-stats-retention", "API stat buckets", 24*time.Hour, stats, retention, logger)
}
