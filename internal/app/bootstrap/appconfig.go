// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - CORS settings for the admin API
//   - Request body size limits
//   - Database connection timeouts
//
// The struct is passed to most lifecycle hooks, so any configuration needed
// during startup, request handling, or shutdown should live here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Maximum connections in pool (default: 100)
	MongoMinPoolSize uint64 // Minimum connections to keep warm (default: 10)

	// Operator session configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: stratanotify-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Maximum session cookie lifetime (default: 24h)

	// AdminToken is the shared secret operators present to sign in.
	// Leave empty to disable operator sign-in entirely.
	AdminToken string

	// Rate limiting of failed operator sign-ins
	RateLimitEnabled       bool          // Enable rate limiting for sign-in attempts (default: true)
	RateLimitLoginAttempts int           // Max failed attempts before lockout (default: 5)
	RateLimitLoginWindow   time.Duration // Time window for counting failed attempts (default: 15m)
	RateLimitLoginLockout  time.Duration // Lockout duration after exceeding limit (default: 15m)

	// TrustProxyHeaders honors X-Forwarded-For and X-Real-IP for the client
	// address. Disable when not behind a proxy that sets them.
	TrustProxyHeaders bool

	// CSRF protection configuration
	CSRFKey string // Secret key for CSRF token signing (32 bytes, must be strong in production)

	// Delivery API. When APIKey is set, /api/* requires a Bearer token.
	APIKey         string
	APICORSOrigins []string // Origins allowed to call /api/* from a browser (empty allows any)

	// Audit logging configuration
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	AuditLogTemplate string        // Stored template changes (save, active, delete, seed)
	AuditLogEditor   string        // Editing session lifecycle (open, discard, failed save, prune)
	AuditLogAuth     string        // Operator sign-in and sign-out
	AuditRetention   time.Duration // How long audit events are kept (default: 2160h)

	// Template editing
	EditorSessionIdle time.Duration // Idle time before an editing session is closed (default: 2h)
	MaxMessageLength  int           // Max message text length in characters (0 disables the cap)
	SeedTemplates     bool          // Create a default record for each known trigger on startup

	// API stats configuration
	APIStatsBucket    time.Duration // Bucket size for delivery API stats (default: 1h)
	APIStatsRetention time.Duration // How long stat buckets are kept (default: 720h)

	// Timeouts for database work done inside request handlers
	TimeoutPing   time.Duration
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
}
