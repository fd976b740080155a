// internal/app/features/login/login.go
package login

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"strconv"
	"time"

	errorsfeature "github.com/dalemusser/stratanotify/internal/app/features/errors"
	"github.com/dalemusser/stratanotify/internal/app/system/auditlog"
	"github.com/dalemusser/stratanotify/internal/app/system/auth"
	"github.com/dalemusser/stratanotify/internal/app/system/inputval"
	"github.com/dalemusser/stratanotify/internal/app/system/jsonutil"
	"github.com/dalemusser/stratanotify/internal/app/system/network"
	"github.com/dalemusser/stratanotify/internal/app/system/normalize"
	"github.com/dalemusser/stratanotify/internal/app/system/templateeditor"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Limiter throttles failed sign-ins per client. *ratelimit.Store implements it.
type Limiter interface {
	CheckAllowed(ctx context.Context, key string) (allowed bool, remaining int, lockedUntil *time.Time)
	RecordFailure(ctx context.Context, key string) (lockedOut bool, lockedUntil *time.Time)
	ClearOnSuccess(ctx context.Context, key string) error
}

// Handler signs operators in and out of the admin API.
type Handler struct {
	sessionMgr  *auth.SessionManager
	limiter     Limiter // nil disables rate limiting
	auditLogger *auditlog.Logger
	errLog      *errorsfeature.ErrorLogger
	adminToken  string
	logger      *zap.Logger
}

// NewHandler creates a new login Handler. An empty adminToken disables sign-in.
func NewHandler(
	sessionMgr *auth.SessionManager,
	limiter Limiter,
	auditLogger *auditlog.Logger,
	errLog *errorsfeature.ErrorLogger,
	adminToken string,
	logger *zap.Logger,
) *Handler {
	if adminToken == "" {
		logger.Warn("admin token not configured - operator sign-in is disabled")
	}
	return &Handler{
		sessionMgr:  sessionMgr,
		limiter:     limiter,
		auditLogger: auditLogger,
		errLog:      errLog,
		adminToken:  adminToken,
		logger:      logger,
	}
}

// Routes mounts POST /login, POST /logout and GET /me.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Post("/login", h.handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(sessionMgr.RequireSignedIn)
		r.Post("/logout", h.handleLogout)
		r.Get("/me", h.handleMe)
	})
	return r
}

type loginInput struct {
	Name  string `json:"name" validate:"required,max=100" label:"Name"`
	Token string `json:"token" validate:"required" label:"Token"`
}

// OperatorResponse describes the signed-in operator.
type OperatorResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	SignedInAt time.Time `json:"signed_in_at"`
}

func operatorResponse(u auth.SessionUser) OperatorResponse {
	return OperatorResponse{ID: u.ID, Name: u.Name, Role: u.Role, SignedInAt: u.SignedInAt}
}

// OperatorID derives a stable operator id from a display name, so audit
// entries and updated_by_id group by operator across sign-ins.
func OperatorID(name string) primitive.ObjectID {
	sum := sha256.Sum256([]byte(normalize.Name(name)))
	var oid primitive.ObjectID
	copy(oid[:], sum[:len(oid)])
	return oid
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := auditlog.WithRequest(r)

	var in loginInput
	if err := jsonutil.Decode(w, r, &in); err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	in.Name = normalize.Name(in.Name)
	if res := inputval.Validate(in); res.HasErrors() {
		jsonutil.BadRequest(w, res.First())
		return
	}

	if h.adminToken == "" {
		jsonutil.Unauthorized(w, "operator sign-in is not configured")
		return
	}

	client := network.GetClientIP(r)
	if h.limiter != nil {
		if allowed, _, lockedUntil := h.limiter.CheckAllowed(r.Context(), client); !allowed {
			h.auditLogger.OperatorSignInFailed(ctx, in.Name, "rate limited")
			tooManyAttempts(w, lockedUntil)
			return
		}
	}

	if !auth.KeysEqual(in.Token, h.adminToken) {
		h.auditLogger.OperatorSignInFailed(ctx, in.Name, "invalid token")
		if h.limiter != nil {
			if lockedOut, lockedUntil := h.limiter.RecordFailure(r.Context(), client); lockedOut {
				tooManyAttempts(w, lockedUntil)
				return
			}
		}
		jsonutil.Unauthorized(w, "invalid credentials")
		return
	}

	if h.limiter != nil {
		if err := h.limiter.ClearOnSuccess(r.Context(), client); err != nil {
			h.logger.Warn("failed to clear sign-in attempts", zap.Error(err), zap.String("client", client))
		}
	}

	op := auth.SessionUser{
		ID:         OperatorID(in.Name).Hex(),
		Name:       in.Name,
		Role:       auth.RoleAdmin,
		SignedInAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := h.sessionMgr.CreateSession(w, r, op); err != nil {
		h.errLog.Log(r, "failed to create operator session", err)
		jsonutil.InternalError(w, "failed to sign in")
		return
	}

	h.auditLogger.OperatorSignedIn(ctx, templateeditor.Actor{ID: op.ID, Name: op.Name})
	jsonutil.OK(w, operatorResponse(op))
}

func tooManyAttempts(w http.ResponseWriter, lockedUntil *time.Time) {
	msg := "too many failed sign-in attempts, please try again later"
	if lockedUntil != nil {
		secs := int(time.Until(*lockedUntil).Seconds()) + 1
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		msg = fmt.Sprintf("too many failed sign-in attempts, try again in %d second(s)", secs)
	}
	jsonutil.Error(w, http.StatusTooManyRequests, msg)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if u, ok := auth.CurrentUser(r); ok {
		h.auditLogger.OperatorSignedOut(auditlog.WithRequest(r), templateeditor.Actor{ID: u.ID, Name: u.Name})
	}
	h.sessionMgr.DestroySession(w, r)
	jsonutil.NoContent(w)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	jsonutil.OK(w, operatorResponse(*u))
}
