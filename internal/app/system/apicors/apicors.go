// Package apicors provides CORS middleware for the template delivery API,
// which authenticates with an API key instead of cookies.
//
// No credentials are involved, so AllowCredentials stays false and the
// default is to allow any origin.
package apicors

import (
	"net/http"
)

const (
	allowMethods = "GET, OPTIONS"
	allowHeaders = "Authorization, Accept"
	maxAge       = "86400"
)

// Middleware returns CORS middleware for read-only API key endpoints.
//
// With no origins it answers every origin with "*". With origins it echoes
// only those; other origins get no Allow-Origin header and the browser blocks
// the response. Preflight OPTIONS requests are answered with 204.
//
//	r := chi.NewRouter()
//	r.Use(apicors.Middleware(corsOrigins...))
//	r.Use(auth.APIKeyAuth(apiKey, logger))
//	r.Get("/", h.ListHandler)
func Middleware(origins ...string) func(http.Handler) http.Handler {
	originSet := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		originSet[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(originSet) == 0 {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if origin := r.Header.Get("Origin"); origin != "" {
				if _, ok := originSet[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
				}
				w.Header().Add("Vary", "Origin")
			}

			w.Header().Set("Access-Control-Allow-Methods", allowMethods)
			w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
			w.Header().Set("Access-Control-Max-Age", maxAge)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
