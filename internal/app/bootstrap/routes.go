// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"strings"
	"time"

	apistatsfeature "github.com/dalemusser/stratanotify/internal/app/features/apistats"
	auditlogfeature "github.com/dalemusser/stratanotify/internal/app/features/auditlog"
	errorsfeature "github.com/dalemusser/stratanotify/internal/app/features/errors"
	healthfeature "github.com/dalemusser/stratanotify/internal/app/features/health"
	loginfeature "github.com/dalemusser/stratanotify/internal/app/features/login"
	templatesfeature "github.com/dalemusser/stratanotify/internal/app/features/templates"
	templatesapifeature "github.com/dalemusser/stratanotify/internal/app/features/templatesapi"
	apistatsstore "github.com/dalemusser/stratanotify/internal/app/store/apistats"
	"github.com/dalemusser/stratanotify/internal/app/store/audit"
	notificationtemplatestore "github.com/dalemusser/stratanotify/internal/app/store/notificationtemplates"
	"github.com/dalemusser/stratanotify/internal/app/store/ratelimit"
	"github.com/dalemusser/stratanotify/internal/app/system/auth"
	"github.com/dalemusser/stratanotify/internal/app/system/jsonutil"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// csrfExempt reports whether path skips CSRF checks. The delivery API uses
// API key auth and sign-in has no session to bind a token to yet.
func csrfExempt(path string) bool {
	return path == "/auth/login" || path == "/api" || strings.HasPrefix(path, "/api/")
}

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed.
//
// Two kinds of routes share the router:
//   - Admin API (/auth, /templates, /audit, /api-stats): session auth + CSRF header + WAFFLE CORS
//   - Delivery API (/api/templates): API key auth + no CSRF + its own CORS
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}
	// Rotating admin_token signs every operator out.
	sessionMgr.SetCredentialEpoch(auth.CredentialEpoch(appCfg.AdminToken))

	errLog := errorsfeature.NewErrorLogger(logger)
	errorsHandler := errorsfeature.NewHandler(logger)

	templateStore := notificationtemplatestore.New(db)
	statsStore := apistatsstore.New(db)

	r := chi.NewRouter()
	r.NotFound(errorsHandler.NotFound)
	r.MethodNotAllowed(errorsHandler.MethodNotAllowed)

	// ─────────────────────────────────────────────────────────────────────────────
	// Global Middleware (applies to ALL routes)
	// ─────────────────────────────────────────────────────────────────────────────

	// Request timeout middleware: prevents requests from hanging indefinitely.
	r.Use(chimw.Timeout(30 * time.Second))

	// CORS middleware: must be early in the chain to handle preflight requests.
	r.Use(middleware.CORSFromConfig(coreCfg))

	// Security headers middleware: adds X-Frame-Options, X-Content-Type-Options, etc.
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))

	// Session middleware: loads the operator into context if signed in.
	r.Use(sessionMgr.LoadSessionUser)

	// CSRF protection. Clients fetch a token from GET /auth/csrf and echo it
	// in X-CSRF-Token on unsafe methods.
	csrfOpts := []csrf.Option{
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.CookieName("stratanotify_csrf"),
		csrf.RequestHeader("X-CSRF-Token"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(errorsHandler.CSRFFailure)),
	}
	// In dev mode, trust localhost origins for CSRF validation.
	if !secure {
		csrfOpts = append(csrfOpts, csrf.TrustedOrigins([]string{
			"localhost:8080",
			"localhost:3000",
			"127.0.0.1:8080",
			"127.0.0.1:3000",
		}))
	}
	if appCfg.SessionDomain != "" {
		csrfOpts = append(csrfOpts, csrf.Domain(appCfg.SessionDomain))
	}
	csrfProtect := csrf.Protect([]byte(appCfg.CSRFKey), csrfOpts...)

	r.Use(func(next http.Handler) http.Handler {
		protected := csrfProtect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if csrfExempt(req.URL.Path) {
				next.ServeHTTP(w, req)
				return
			}
			protected.ServeHTTP(w, req)
		})
	})

	// ─────────────────────────────────────────────────────────────────────────────
	// Routes
	// ─────────────────────────────────────────────────────────────────────────────

	// Health check endpoints for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, registry, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	healthfeature.MountRootEndpoints(r, healthHandler)

	// Operator sign-in. Failed attempts are throttled per client IP.
	var limiter loginfeature.Limiter
	if appCfg.RateLimitEnabled {
		limiter = ratelimit.New(db, appCfg.RateLimitLoginAttempts, appCfg.RateLimitLoginWindow, appCfg.RateLimitLoginLockout)
	}
	loginHandler := loginfeature.NewHandler(sessionMgr, limiter, auditLogger, errLog, appCfg.AdminToken, logger)
	r.Route("/auth", func(r chi.Router) {
		r.Get("/csrf", func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			jsonutil.OK(w, map[string]string{"csrf_token": csrf.Token(req)})
		})
		r.Mount("/", loginfeature.Routes(loginHandler, sessionMgr))
	})

	// Template administration and editing sessions (admin only)
	templatesHandler := templatesfeature.NewHandler(
		templateStore,
		audit.New(db),
		registry,
		auditLogger,
		errLog,
		appCfg.MaxMessageLength,
		logger,
	)
	r.Mount("/templates", templatesfeature.Routes(templatesHandler, sessionMgr))

	// Delivery API: active templates for the notification sender.
	// CSRF is skipped above via path exemption.
	deliveryHandler := templatesapifeature.NewHandler(templateStore, errLog, logger)
	r.Mount("/api/templates", templatesapifeature.Routes(deliveryHandler, statsRecorder, appCfg.APIKey, appCfg.APICORSOrigins, logger))

	// Audit log (admin only)
	auditHandler := auditlogfeature.NewHandler(audit.New(db), errLog, logger)
	r.Mount("/audit", auditlogfeature.Routes(auditHandler, sessionMgr))

	// Delivery API statistics (admin only)
	apistatsHandler := apistatsfeature.NewHandler(statsStore, statsRecorder, errLog, logger)
	r.Mount("/api-stats", apistatsfeature.Routes(apistatsHandler, sessionMgr))

	return r, nil
}
