package templatesapi

import (
	"net/http"

	apistatsstore "github.com/dalemusser/stratanotify/internal/app/store/apistats"
	"github.com/dalemusser/stratanotify/internal/app/system/apicors"
	"github.com/dalemusser/stratanotify/internal/app/system/apistats"
	"github.com/dalemusser/stratanotify/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Routes returns a router with the delivery API endpoints.
//
// Authentication is via API key (Bearer token in Authorization header).
// CORS allows corsOrigins, or any origin when corsOrigins is empty.
// A nil recorder disables request statistics.
func Routes(h *Handler, recorder *apistats.Recorder, apiKey string, corsOrigins []string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(apicors.Middleware(corsOrigins...))
	r.Use(auth.APIKeyAuth(apiKey, logger))

	r.With(recorder.Middleware(apistatsstore.StatTypeListTemplates)).
		Get("/", h.ListHandler)
	r.With(recorder.Middleware(apistatsstore.StatTypeGetTemplate)).
		Get("/{trigger}", h.GetHandler)

	return r
}
