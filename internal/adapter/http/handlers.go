package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Strob0t/SiteForge/internal/domain/content"
	"github.com/Strob0t/SiteForge/internal/domain/page"
	"github.com/Strob0t/SiteForge/internal/middleware"
)

// SiteResolver is the pipeline the handlers adapt.
type SiteResolver interface {
	Resolve(ctx context.Context, host, escapedPath string) (*page.ResolvedPage, error)
	ResolveSubdomain(ctx context.Context, subdomain, escapedPath string) (*page.ResolvedPage, error)
	ResolvePrefixed(ctx context.Context, escapedPath string) (*page.ResolvedPage, error)
	List(ctx context.Context, subdomain, kind string, opts content.ListOptions) ([]content.Summary, error)
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Sites SiteResolver
	// Ping checks storage health; nil reports healthy.
	Ping func(ctx context.Context) error
}

// Health reports process and storage health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.Ping != nil {
		if err := h.Ping(r.Context()); err != nil {
			slog.WarnContext(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "storage": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ServeHost resolves the request by its effective Host and URL path.
func (h *Handlers) ServeHost(w http.ResponseWriter, r *http.Request) {
	host := middleware.Host(r.Context())
	if host == "" {
		host = r.Host
	}
	h.writePage(w, r)(h.Sites.Resolve(r.Context(), host, r.URL.EscapedPath()))
}

// ServeSubdomain resolves /_sites/{subdomain}/{path...}.
func (h *Handlers) ServeSubdomain(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.EscapedPath(), "/_sites/")
	_, rest, _ = strings.Cut(rest, "/")
	h.writePage(w, r)(h.Sites.ResolveSubdomain(r.Context(), urlParam(r, "subdomain"), "/"+rest))
}

// ServePreview resolves /_preview/{subdomain}/{path...}.
func (h *Handlers) ServePreview(w http.ResponseWriter, r *http.Request) {
	h.writePage(w, r)(h.Sites.ResolvePrefixed(r.Context(), strings.TrimPrefix(r.URL.EscapedPath(), "/_preview")))
}

// ResolvePage handles GET /api/v1/resolve?host=&path=.
func (h *Handlers) ResolvePage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	host := q.Get("host")
	if host == "" {
		writeError(w, http.StatusBadRequest, "host is required")
		return
	}
	path := q.Get("path")
	if path == "" {
		path = "/"
	}
	h.writePage(w, r)(h.Sites.Resolve(r.Context(), host, path))
}

// ListContent handles GET /api/v1/sites/{subdomain}/{kind}.
func (h *Handlers) ListContent(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset")
	if !ok {
		return
	}
	items, err := h.Sites.List(r.Context(), urlParam(r, "subdomain"), urlParam(r, "kind"),
		content.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handlers) writePage(w http.ResponseWriter, r *http.Request) func(*page.ResolvedPage, error) {
	return func(p *page.ResolvedPage, err error) {
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}
