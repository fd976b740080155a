// Package auth keeps signed-in operators in a signed cookie and guards the
// admin API.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dalemusser/stratanotify/internal/app/system/jsonutil"
	"github.com/dalemusser/stratanotify/internal/app/system/normalize"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

// RoleAdmin is the role allowed to edit notification templates.
const RoleAdmin = "admin"

// DefaultSessionName is the cookie name used when none is configured.
const DefaultSessionName = "stratanotify-session"

// Session value keys.
const (
	keyOperatorID = "operator_id"
	keyName       = "operator_name"
	keyRole       = "operator_role"
	keyEpoch      = "credential_epoch"
	keySignedInAt = "signed_in_at"
)

// SessionConfigError is returned when session configuration is invalid.
type SessionConfigError struct {
	Message string
}

func (e *SessionConfigError) Error() string {
	return e.Message
}

// SessionManager reads and writes the operator session cookie.
type SessionManager struct {
	store  *sessions.CookieStore
	name   string
	epoch  atomic.Value // string
	logger *zap.Logger
}

// NewSessionManager creates a new SessionManager.
//
// sessionKey signs the cookie and must be at least 32 characters and not a
// placeholder when secure is set; in dev a weak key only logs a warning. An
// empty name falls back to DefaultSessionName.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, &SessionConfigError{Message: "session key is empty; provide ≥32 random chars"}
	}
	if weak := len(sessionKey) < 32 || isDefaultKey(sessionKey); weak {
		if secure {
			return nil, &SessionConfigError{
				Message: "session key is too weak for production; provide ≥32 random chars (not the default dev key)",
			}
		}
		logger.Warn("session key is weak; 32+ random chars required in production",
			zap.Int("length", len(sessionKey)),
			zap.Bool("is_default", isDefaultKey(sessionKey)))
	}

	if name == "" {
		name = DefaultSessionName
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	store.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	store.MaxAge(int(maxAge.Seconds()))

	sm := &SessionManager{store: store, name: name, logger: logger}
	sm.epoch.Store("")

	logger.Info("session manager initialized",
		zap.Bool("secure", secure),
		zap.String("name", name),
		zap.String("domain", domain),
		zap.Duration("max_age", maxAge))
	return sm, nil
}

// CredentialEpoch fingerprints the sign-in secret. Sessions remember the
// epoch they were created under.
func CredentialEpoch(secret string) string {
	if secret == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:8])
}

// SetCredentialEpoch sets the epoch stamped on new sessions. Once set,
// sessions carrying a different epoch are treated as signed out, so rotating
// the admin token ends every existing session.
func (sm *SessionManager) SetCredentialEpoch(epoch string) {
	sm.epoch.Store(epoch)
}

func (sm *SessionManager) currentEpoch() string {
	return sm.epoch.Load().(string)
}

// SessionUser is the signed-in operator carried in the request context.
type SessionUser struct {
	ID         string
	Name       string
	Role       string
	SignedInAt time.Time
}

type ctxKey struct{}

// CurrentUser returns the signed-in operator, if any.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(ctxKey{}).(*SessionUser)
	return u, ok
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), ctxKey{}, u))
}

// WithTestUser injects a SessionUser into the request context for testing.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

// LoadSessionUser is middleware that puts the operator in the request
// context when the request carries a valid session. A bad or stale cookie
// is logged and the request continues anonymously.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sm.store.Get(r, sm.name)
		if err != nil {
			sm.logCookieError(r, err)
			next.ServeHTTP(w, r)
			return
		}

		id, _ := sess.Values[keyOperatorID].(string)
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}

		if epoch := sm.currentEpoch(); epoch != "" {
			if got, _ := sess.Values[keyEpoch].(string); got != epoch {
				sm.logger.Info("ignoring session from before admin token rotation",
					zap.String("operator_id", id),
					zap.String("path", r.URL.Path))
				next.ServeHTTP(w, r)
				return
			}
		}

		u := &SessionUser{ID: id}
		u.Name, _ = sess.Values[keyName].(string)
		u.Role, _ = sess.Values[keyRole].(string)
		if ts, ok := sess.Values[keySignedInAt].(int64); ok {
			u.SignedInAt = time.Unix(ts, 0).UTC()
		}
		next.ServeHTTP(w, withUser(r, u))
	})
}

// RequireSignedIn is middleware that answers 401 when no operator is
// signed in.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			jsonutil.Unauthorized(w, "sign in required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole returns middleware that answers 401 without a signed-in
// operator and 403 when the operator's role is not in allowed.
func (sm *SessionManager) RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]bool, len(allowed))
	for _, role := range allowed {
		set[normalize.Role(role)] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				jsonutil.Unauthorized(w, "sign in required")
				return
			}
			if !set[normalize.Role(u.Role)] {
				sm.logger.Info("operator role not permitted",
					zap.String("operator_id", u.ID),
					zap.String("role", u.Role),
					zap.String("path", r.URL.Path))
				jsonutil.Forbidden(w, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CreateSession signs the operator in, stamping the current credential
// epoch and sign-in time.
func (sm *SessionManager) CreateSession(w http.ResponseWriter, r *http.Request, u SessionUser) error {
	// A cookie that fails to decode still yields a usable new session.
	sess, _ := sm.store.Get(r, sm.name)

	signedIn := u.SignedInAt
	if signedIn.IsZero() {
		signedIn = time.Now()
	}

	sess.Values[keyOperatorID] = u.ID
	sess.Values[keyName] = u.Name
	sess.Values[keyRole] = normalize.Role(u.Role)
	sess.Values[keyEpoch] = sm.currentEpoch()
	sess.Values[keySignedInAt] = signedIn.Unix()
	return sess.Save(r, w)
}

// DestroySession signs the operator out and expires the cookie.
func (sm *SessionManager) DestroySession(w http.ResponseWriter, r *http.Request) {
	sess, _ := sm.store.Get(r, sm.name)
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		sm.logger.Warn("failed to expire session cookie", zap.Error(err))
	}
}

// logCookieError logs a cookie that could not be read at a level matching
// how suspicious the failure is.
func (sm *SessionManager) logCookieError(r *http.Request, err error) {
	kind := classifySessionError(err)
	fields := []zap.Field{
		zap.String("category", kind),
		zap.String("path", r.URL.Path),
	}
	switch kind {
	case "expired":
		sm.logger.Debug("session expired", fields...)
	case "mac_invalid":
		sm.logger.Warn("session MAC validation failed (possible tampering)",
			append(fields, zap.String("remote_addr", r.RemoteAddr), zap.String("user_agent", r.UserAgent()))...)
	case "backend":
		sm.logger.Error("session store error", append(fields, zap.Error(err))...)
	default:
		sm.logger.Info("session cookie unreadable, continuing without session", fields...)
	}
}

// classifySessionError names a cookie decoding failure: expired,
// mac_invalid, decrypt_failed, decode_failed, decode_other or backend.
func classifySessionError(err error) string {
	scErr, ok := err.(securecookie.Error)
	if !ok || !scErr.IsDecode() {
		return "backend"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "expired timestamp"):
		return "expired"
	case strings.Contains(msg, "mac") || strings.Contains(msg, "hash"):
		return "mac_invalid"
	case strings.Contains(msg, "decrypt"):
		return "decrypt_failed"
	case strings.Contains(msg, "base64") || strings.Contains(msg, "decode"):
		return "decode_failed"
	default:
		return "decode_other"
	}
}

var placeholderKeyMarkers = []string{
	"dev-only", "change-me", "placeholder", "default", "example",
	"insecure", "test-key", "secret123", "password",
}

// isDefaultKey reports whether key looks like a placeholder value.
func isDefaultKey(key string) bool {
	lower := strings.ToLower(key)
	for _, p := range placeholderKeyMarkers {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
