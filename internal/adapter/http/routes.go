package http

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the API and the public entry points. The
// host-based catch-all is registered last so every explicit prefix wins.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/resolve", h.ResolvePage)
		r.Get("/sites/{subdomain}/{kind}", h.ListContent)
	})

	r.Get("/_sites/{subdomain}", h.ServeSubdomain)
	r.Get("/_sites/{subdomain}/*", h.ServeSubdomain)
	r.Get("/_preview/*", h.ServePreview)

	r.Get("/", h.ServeHost)
	r.Get("/*", h.ServeHost)
}
