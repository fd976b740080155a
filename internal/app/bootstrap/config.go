// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// EnvVarPrefix is the prefix for environment variables.
const EnvVarPrefix = "STRATANOTIFY"

// appConfigKeys defines the configuration keys for this application.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: STRATANOTIFY_MONGO_URI, STRATANOTIFY_ADMIN_TOKEN, etc.
//   - Command-line flags: --mongo_uri, --admin_token, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "stratanotify", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "stratanotify-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie max age (e.g., 24h, 720h, 30m)"},

	{Name: "admin_token", Default: "", Desc: "Shared token for operator sign-in (leave empty to disable sign-in)"},

	// Rate limiting configuration
	{Name: "rate_limit_enabled", Default: true, Desc: "Enable rate limiting for operator sign-in attempts"},
	{Name: "rate_limit_login_attempts", Default: 5, Desc: "Max failed sign-in attempts before lockout"},
	{Name: "rate_limit_login_window", Default: "15m", Desc: "Time window for counting failed attempts"},
	{Name: "rate_limit_login_lockout", Default: "15m", Desc: "Lockout duration after exceeding limit"},

	{Name: "trust_proxy_headers", Default: true, Desc: "Use X-Forwarded-For/X-Real-IP for the client address (disable when not behind a proxy)"},

	{Name: "csrf_key", Default: "dev-only-csrf-key-please-change-0123456789", Desc: "CSRF token signing key (32+ chars in production)"},

	// Delivery API
	{Name: "api_key", Default: "", Desc: "API key for the delivery API (leave empty to disable API key auth)"},
	{Name: "api_cors_origins", Default: "", Desc: "Comma-separated origins allowed to call the delivery API (empty allows any)"},

	// Audit logging settings
	{Name: "audit_log_template", Default: "all", Desc: "Template change logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_editor", Default: "log", Desc: "Editing session logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_auth", Default: "all", Desc: "Operator sign-in logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_retention", Default: "2160h", Desc: "How long audit events are kept (e.g., 2160h for 90 days)"},

	// Template editing
	{Name: "editor_session_idle", Default: "2h", Desc: "Idle time before an editing session is closed"},
	{Name: "max_message_length", Default: 2000, Desc: "Max message text length in characters (0 disables the cap)"},
	{Name: "seed_templates", Default: true, Desc: "Create a default template for each known trigger on startup"},

	// API stats configuration
	{Name: "api_stats_bucket", Default: "1h", Desc: "API stats bucket duration (e.g., '1m', '15m', '1h', '24h')"},
	{Name: "api_stats_retention", Default: "720h", Desc: "How long API stat buckets are kept"},

	// Handler timeouts
	{Name: "timeout_ping", Default: "2s", Desc: "Timeout for database health pings"},
	{Name: "timeout_short", Default: "5s", Desc: "Timeout for single-record reads and writes"},
	{Name: "timeout_medium", Default: "10s", Desc: "Timeout for list queries and template saves"},
}

var auditModes = map[string]bool{"all": true, "db": true, "log": true, "off": true}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, STRATANOTIFY_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, EnvVarPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 24*time.Hour),

		AdminToken: appValues.String("admin_token"),

		// Rate limiting
		RateLimitEnabled:       appValues.Bool("rate_limit_enabled"),
		RateLimitLoginAttempts: appValues.Int("rate_limit_login_attempts"),
		RateLimitLoginWindow:   appValues.Duration("rate_limit_login_window", 15*time.Minute),
		RateLimitLoginLockout:  appValues.Duration("rate_limit_login_lockout", 15*time.Minute),

		TrustProxyHeaders: appValues.Bool("trust_proxy_headers"),

		CSRFKey: appValues.String("csrf_key"),

		// Delivery API
		APIKey:         appValues.String("api_key"),
		APICORSOrigins: splitList(appValues.String("api_cors_origins")),

		// Audit logging
		AuditLogTemplate: appValues.String("audit_log_template"),
		AuditLogEditor:   appValues.String("audit_log_editor"),
		AuditLogAuth:     appValues.String("audit_log_auth"),
		AuditRetention:   appValues.Duration("audit_retention", 90*24*time.Hour),

		// Template editing
		EditorSessionIdle: appValues.Duration("editor_session_idle", 2*time.Hour),
		MaxMessageLength:  appValues.Int("max_message_length"),
		SeedTemplates:     appValues.Bool("seed_templates"),

		// API stats
		APIStatsBucket:    appValues.Duration("api_stats_bucket", time.Hour),
		APIStatsRetention: appValues.Duration("api_stats_retention", 30*24*time.Hour),

		// Timeouts
		TimeoutPing:   appValues.Duration("timeout_ping", 2*time.Second),
		TimeoutShort:  appValues.Duration("timeout_short", 5*time.Second),
		TimeoutMedium: appValues.Duration("timeout_medium", 10*time.Second),
	}

	return coreCfg, appCfg, nil
}

// splitList parses a comma-separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	for key, val := range map[string]string{
		"audit_log_template": appCfg.AuditLogTemplate,
		"audit_log_editor":   appCfg.AuditLogEditor,
		"audit_log_auth":     appCfg.AuditLogAuth,
	} {
		if !auditModes[val] {
			return fmt.Errorf("%s must be one of all, db, log, off (got %q)", key, val)
		}
	}

	if appCfg.MaxMessageLength < 0 {
		return fmt.Errorf("max_message_length must not be negative (got %d)", appCfg.MaxMessageLength)
	}
	if appCfg.EditorSessionIdle <= 0 {
		return fmt.Errorf("editor_session_idle must be positive (got %s)", appCfg.EditorSessionIdle)
	}

	if appCfg.AdminToken == "" {
		logger.Warn("admin_token is empty; the admin API can not be signed in to")
	}

	return nil
}
