package templates

import (
	"net/http"

	"github.com/dalemusser/stratanotify/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the template API router. Every route requires an admin.
//
//	GET    /                               all templates with previews
//	GET    /{trigger}                      one template
//	PUT    /{trigger}/active               toggle a stored template
//	DELETE /{trigger}                      delete a stored template
//	GET    /{trigger}/history              audit events for a template
//	POST   /{trigger}/sessions             open an editing session
//	GET    /sessions/{id}                  working copy
//	PUT    /sessions/{id}/text             replace the message text
//	PUT    /sessions/{id}/active           set the active flag
//	POST   /sessions/{id}/links            insert a link
//	DELETE /sessions/{id}/links/{index}    remove a link
//	POST   /sessions/{id}/prune            drop links missing from the text
//	POST   /sessions/{id}/adopt            add links typed into the text
//	GET    /sessions/{id}/preview          HTML fragment
//	POST   /sessions/{id}/save             persist the working copy
//	DELETE /sessions/{id}                  discard the session
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireRole(auth.RoleAdmin))

	r.Get("/", h.list)

	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", h.getSession)
		r.Delete("/", h.discard)
		r.Put("/text", h.setText)
		r.Put("/active", h.setSessionActive)
		r.Post("/links", h.insertLink)
		r.Delete("/links/{index}", h.removeLink)
		r.Post("/prune", h.prune)
		r.Post("/adopt", h.adopt)
		r.Get("/preview", h.preview)
		r.Post("/save", h.save)
	})

	r.Route("/{trigger}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Delete("/", h.remove)
		r.Put("/active", h.setActive)
		r.Get("/history", h.historyFor)
		r.Post("/sessions", h.openSession)
	})

	return r
}
