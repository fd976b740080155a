package apistats

import (
	"net/http"

	"github.com/dalemusser/stratanotify/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router for the API stats feature.
//
//	GET /        stats for ?range=
//	PUT /bucket  change the recording bucket duration
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireRole(auth.RoleAdmin))

	r.Get("/", h.ServeStats)
	r.Put("/bucket", h.HandleSetBucket)

	return r
}
