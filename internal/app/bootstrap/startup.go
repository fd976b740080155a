// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	apistatsstore "github.com/dalemusser/stratanotify/internal/app/store/apistats"
	"github.com/dalemusser/stratanotify/internal/app/store/audit"
	"github.com/dalemusser/stratanotify/internal/app/system/apistats"
	"github.com/dalemusser/stratanotify/internal/app/system/auditlog"
	"github.com/dalemusser/stratanotify/internal/app/system/network"
	"github.com/dalemusser/stratanotify/internal/app/system/tasks"
	"github.com/dalemusser/stratanotify/internal/app/system/templateeditor"
	"github.com/dalemusser/stratanotify/internal/app/system/timeouts"
	"github.com/dalemusser/stratanotify/internal/app/system/timezones"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Process-wide state built in Startup and shared by BuildHandler and Shutdown.
var (
	// registry holds the open editing sessions.
	registry *templateeditor.Registry

	auditLogger *auditlog.Logger

	// statsRecorder records delivery API request stats.
	statsRecorder *apistats.Recorder

	// taskRunner is used for graceful shutdown.
	taskRunner *tasks.Runner
)

// Startup runs once after DB connections and schema/index setup are complete,
// but before the HTTP handler is built and requests are served.
//
// Returning a non-nil error aborts startup.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.MongoDatabase

	t := timeouts.Configure(timeouts.Config{
		Ping:   appCfg.TimeoutPing,
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
	})
	logger.Info("handler timeouts configured",
		zap.Duration("ping", t.Ping),
		zap.Duration("short", t.Short),
		zap.Duration("medium", t.Medium))

	network.SetTrustProxyHeaders(appCfg.TrustProxyHeaders)

	if err := timezones.Load(); err != nil {
		logger.Error("failed to load time zone list", zap.Error(err))
		return err
	}

	auditStore := audit.New(db)
	auditLogger = auditlog.New(auditStore, logger, auditlog.Config{
		Template: appCfg.AuditLogTemplate,
		Editor:   appCfg.AuditLogEditor,
		Auth:     appCfg.AuditLogAuth,
	})

	// The audit logger is told about every successful save.
	registry = templateeditor.NewRegistry(auditLogger)

	if len(seededTriggers) > 0 {
		auditLogger.TemplatesSeeded(ctx, seededTriggers)
	}

	statsStore := apistatsstore.New(db)
	statsRecorder = apistats.NewRecorder(statsStore, logger, appCfg.APIStatsBucket)

	startTaskRunner(appCfg, auditStore, statsStore, logger)

	return nil
}

// startTaskRunner registers the background jobs and starts them.
func startTaskRunner(appCfg AppConfig, auditStore *audit.Store, statsStore *apistatsstore.Store, logger *zap.Logger) {
	taskRunner = tasks.New(logger)

	taskRunner.Register(tasks.EditorSessionPruneJob(registry, appCfg.EditorSessionIdle, auditLogger, logger))
	taskRunner.Register(tasks.AuditRetentionJob(auditStore, appCfg.AuditRetention, logger))
	taskRunner.Register(tasks.APIStatsRetentionJob(statsStore, appCfg.APIStatsRetention, logger))

	taskRunner.Start()
}
