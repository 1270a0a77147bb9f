package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	sfhttp "github.com/Strob0t/SiteForge/internal/adapter/http"
	"github.com/Strob0t/SiteForge/internal/adapter/sqlite"
	"github.com/Strob0t/SiteForge/internal/domain"
	"github.com/Strob0t/SiteForge/internal/domain/block"
	"github.com/Strob0t/SiteForge/internal/domain/content"
	"github.com/Strob0t/SiteForge/internal/domain/page"
	"github.com/Strob0t/SiteForge/internal/domain/tenant"
	"github.com/Strob0t/SiteForge/internal/middleware"
	"github.com/Strob0t/SiteForge/internal/service"
)

// fakeSites records the arguments each entry point forwards.
type fakeSites struct {
	call string
	args []string
	opts content.ListOptions
	err  error
}

func (f *fakeSites) page() (*page.ResolvedPage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &page.ResolvedPage{
		Tenant: &tenant.Tenant{Name: "Acme"},
		Body:   []block.Block{{ID: "h", Type: block.TypeHero, Content: map[string]any{}}},
	}, nil
}

func (f *fakeSites) Resolve(_ context.Context, host, path string) (*page.ResolvedPage, error) {
	f.call, f.args = "host", []string{host, path}
	return f.page()
}

func (f *fakeSites) ResolveSubdomain(_ context.Context, sub, path string) (*page.ResolvedPage, error) {
	f.call, f.args = "subdomain", []string{sub, path}
	return f.page()
}

func (f *fakeSites) ResolvePrefixed(_ context.Context, path string) (*page.ResolvedPage, error) {
	f.call, f.args = "prefixed", []string{path}
	return f.page()
}

func (f *fakeSites) List(_ context.Context, sub, kind string, opts content.ListOptions) ([]content.Summary, error) {
	f.call, f.args, f.opts = "list", []string{sub, kind}, opts
	if f.err != nil {
		return nil, f.err
	}
	return []content.Summary{{Slug: "widget", Kind: content.KindProduct}}, nil
}

func newTestRouter(h *sfhttp.Handlers) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.ForwardedHost("X-Forwarded-Host"))
	sfhttp.MountRoutes(r, h)
	return r
}

func do(t *testing.T, r http.Handler, host, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	req.Host = host
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestEntryPointsForwardHostAndPath(t *testing.T) {
	tests := []struct {
		name   string
		host   string
		target string
		header []string
		call   string
		args   []string
	}{
		{"host home", "acme.example.com", "/", nil, "host", []string{"acme.example.com", "/"}},
		{"host product", "acme.example.com", "/products/widget", nil, "host", []string{"acme.example.com", "/products/widget"}},
		{"host escaped", "acme.com", "/caf%C3%A9", nil, "host", []string{"acme.com", "/caf%C3%A9"}},
		{"forwarded host", "internal:8080", "/about", []string{"X-Forwarded-Host", "shop.com, proxy"}, "host", []string{"shop.com", "/about"}},
		{"subdomain param", "any", "/_sites/acme/products/widget", nil, "subdomain", []string{"acme", "/products/widget"}},
		{"subdomain root", "any", "/_sites/acme", nil, "subdomain", []string{"acme", "/"}},
		{"preview", "any", "/_preview/acme/company/team", nil, "prefixed", []string{"/acme/company/team"}},
		{"api resolve", "any", "/api/v1/resolve?host=acme.com&path=%2Fabout", nil, "host", []string{"acme.com", "/about"}},
		{"api resolve default path", "any", "/api/v1/resolve?host=acme.com", nil, "host", []string{"acme.com", "/"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeSites{}
			w := do(t, newTestRouter(&sfhttp.Handlers{Sites: f}), tt.host, tt.target, tt.header...)
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
			}
			if f.call != tt.call || fmt.Sprint(f.args) != fmt.Sprint(tt.args) {
				t.Fatalf("expected %s%v, got %s%v", tt.call, tt.args, f.call, f.args)
			}
			var p page.ResolvedPage
			if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(p.Body) != 1 || p.Tenant.Name != "Acme" {
				t.Fatalf("unexpected page %+v", p)
			}
		})
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("tenant: %w", domain.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("db: %w", domain.ErrStorage), http.StatusInternalServerError},
		{fmt.Errorf("bad: %w", domain.ErrValidation), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := do(t, newTestRouter(&sfhttp.Handlers{Sites: &fakeSites{err: tt.err}}), "acme.com", "/about")
			if w.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, w.Code)
			}
			if tt.code == http.StatusInternalServerError && w.Body.String() == "" {
				t.Fatal("expected error body")
			}
		})
	}
}

func TestResolveAPIRequiresHost(t *testing.T) {
	f := &fakeSites{}
	w := do(t, newTestRouter(&sfhttp.Handlers{Sites: f}), "any", "/api/v1/resolve?path=/")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if f.call != "" {
		t.Fatalf("expected no resolution, got %s", f.call)
	}
}

func TestListContent(t *testing.T) {
	f := &fakeSites{}
	r := newTestRouter(&sfhttp.Handlers{Sites: f})

	w := do(t, r, "any", "/api/v1/sites/acme/products?limit=5&offset=10")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if f.call != "list" || f.args[0] != "acme" || f.args[1] != "products" {
		t.Fatalf("unexpected call %s%v", f.call, f.args)
	}
	if f.opts.Limit != 5 || f.opts.Offset != 10 {
		t.Fatalf("unexpected options %+v", f.opts)
	}
	var items []content.Summary
	if err := json.NewDecoder(w.Body).Decode(&items); err != nil || len(items) != 1 {
		t.Fatalf("unexpected body %v %v", items, err)
	}

	for _, q := range []string{"limit=x", "offset=-1"} {
		if w := do(t, r, "any", "/api/v1/sites/acme/products?"+q); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, w.Code)
		}
	}
}

func TestHealth(t *testing.T) {
	w := do(t, newTestRouter(&sfhttp.Handlers{Sites: &fakeSites{}}), "any", "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	h := &sfhttp.Handlers{Sites: &fakeSites{}, Ping: func(context.Context) error {
		return errors.New("dial tcp 10.0.0.5:5432: password authentication failed for user siteforge")
	}}
	w = do(t, newTestRouter(h), "any", "/health")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["storage"] != "unavailable" {
		t.Fatalf("expected generic storage status, got %q", body["storage"])
	}
	if strings.Contains(w.Body.String(), "10.0.0.5") || strings.Contains(w.Body.String(), "password") {
		t.Fatalf("health response leaks driver detail: %s", w.Body.String())
	}
}

// TestSQLiteEndToEnd runs the real pipeline over a temp-dir database.
func TestSQLiteEndToEnd(t *testing.T) {
	ctx := context.Background()
	vis := tenant.Visibility{DraftVisible: true}
	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "siteforge.db"), vis)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	tn, err := store.CreateTenant(ctx, &tenant.CreateRequest{
		Name:      "Acme",
		Subdomain: "acme",
		Status:    tenant.StatusActive,
		Settings: map[string]any{
			"navigation": map[string]any{"links": []any{map[string]any{"href": "/", "label": "Home"}}},
			"footer":     map[string]any{"copyright": "© Acme"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.SaveEntity(ctx, &content.SaveRequest{
		TenantID: tn.ID, Kind: content.KindProduct, Slug: "widget", Title: "Widget", Published: true,
		Blocks: json.RawMessage(`[{"type":"product-hero","display_order":0,"content":{"title":"Widget"}}]`),
	}); err != nil {
		t.Fatal(err)
	}

	dir := service.NewDirectoryService(store, vis, "", time.Minute)
	h := &sfhttp.Handlers{Sites: service.NewSiteService(dir, store, nil, nil), Ping: store.Ping}
	r := newTestRouter(h)

	w := do(t, r, "acme.example.com", "/products/widget")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var p page.ResolvedPage
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.Navigation == nil || p.Footer == nil || len(p.Body) != 1 || p.Body[0].Type != block.TypeProductHero {
		t.Fatalf("unexpected page %+v", p)
	}

	for _, target := range []string{"/products/gizmo", "/products/..%2Fwidget", "/nowhere"} {
		if w := do(t, r, "acme.example.com", target); w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", target, w.Code)
		}
	}
	if w := do(t, r, "unknown.example.com", "/"); w.Code != http.StatusNotFound {
		t.Errorf("unknown host: expected 404, got %d", w.Code)
	}
}
