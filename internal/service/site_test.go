package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/SiteForge/internal/domain"
	"github.com/Strob0t/SiteForge/internal/domain/block"
	"github.com/Strob0t/SiteForge/internal/domain/content"
	"github.com/Strob0t/SiteForge/internal/domain/page"
	"github.com/Strob0t/SiteForge/internal/domain/tenant"
	mq "github.com/Strob0t/SiteForge/internal/port/messagequeue"
	"github.com/Strob0t/SiteForge/internal/resilience"
)

// acmeStore seeds the tenant and product used across pipeline tests.
func acmeStore() *mockStore {
	store := newMockStore()
	store.addTenant(tenant.Tenant{
		Identity: tenant.Identity{ID: "t-acme", Subdomain: "acme", Status: tenant.StatusActive},
		Name:     "Acme",
		Settings: map[string]any{
			"navigation": map[string]any{"links": []any{map[string]any{"href": "/", "label": "Home"}}},
			"footer":     map[string]any{"copyright": "© Acme"},
		},
	})
	store.homeBlocks["t-acme"] = []block.Block{
		{ID: "welcome", Type: block.TypeHero, Content: map[string]any{"title": "Welcome"}, Order: 0},
	}
	store.addEntity(content.Entity{
		ID: "p-widget", TenantID: "t-acme", Kind: content.KindProduct, Slug: "widget", Title: "Widget", Published: true,
		Blocks: []block.Block{{ID: "ph", Type: block.TypeProductHero, Content: map[string]any{"title": "Widget"}, Order: 0}},
	})
	return store
}

func newTestSiteService(store *mockStore) *SiteService {
	dir := NewDirectoryService(store, tenant.Visibility{DraftVisible: true}, "", time.Minute)
	return NewSiteService(dir, store, nil, nil)
}

func TestResolveProductScenario(t *testing.T) {
	svc := newTestSiteService(acmeStore())

	p, err := svc.Resolve(context.Background(), "acme.example.com", "/products/widget")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	all := p.Blocks()
	if len(all) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(all))
	}
	if all[0].Type != block.TypeNavigation || all[1].Type != block.TypeProductHero || all[2].Type != block.TypeFooter {
		t.Fatalf("unexpected sequence: %s, %s, %s", all[0].Type, all[1].Type, all[2].Type)
	}
	if p.Navigation == nil || p.Footer == nil || len(p.Body) != 1 {
		t.Fatalf("expected three addressable parts, got %+v", p)
	}
	if p.Tenant.Name != "Acme" {
		t.Fatalf("expected tenant context, got %+v", p.Tenant)
	}
}

func TestResolveHome(t *testing.T) {
	svc := newTestSiteService(acmeStore())

	p, err := svc.Resolve(context.Background(), "acme.example.com", "/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Entity != nil {
		t.Fatalf("expected no entity for home, got %+v", p.Entity)
	}
	if len(p.Body) != 1 || p.Body[0].ID != "welcome" {
		t.Fatalf("expected home blocks, got %+v", p.Body)
	}
}

func TestResolveRejectsTraversalBeforeLookup(t *testing.T) {
	store := acmeStore()
	svc := newTestSiteService(store)

	for _, path := range []string{"/products/../widget", "/..", "/a/b..c", "/products/a%2F..%2Fb"} {
		t.Run(path, func(t *testing.T) {
			_, err := svc.Resolve(context.Background(), "acme.example.com", path)
			if !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
	if n := store.calls(); n != 0 {
		t.Fatalf("expected no repository calls, got %d", n)
	}
}

func TestResolveCatchAll(t *testing.T) {
	store := acmeStore()
	store.addEntity(content.Entity{
		ID: "pg-about", TenantID: "t-acme", Kind: content.KindPage, Slug: "about", Title: "About", Published: true,
		Blocks: []block.Block{{ID: "txt", Type: block.TypeRichText, Order: 0}},
	})
	store.addEntity(content.Entity{
		ID: "pg-team", TenantID: "t-acme", Kind: content.KindPage, Slug: "company/team", Title: "Team", Published: true,
	})
	store.addEntity(content.Entity{
		ID: "pg-draft", TenantID: "t-acme", Kind: content.KindPage, Slug: "secret", Title: "Secret",
	})
	svc := newTestSiteService(store)
	ctx := context.Background()

	t.Run("page", func(t *testing.T) {
		p, err := svc.Resolve(ctx, "acme.example.com", "/about")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Entity == nil || p.Entity.Kind != content.KindPage || p.Entity.Slug != "about" {
			t.Fatalf("expected about page, got %+v", p.Entity)
		}
		if len(p.Body) != 1 || p.Body[0].ID != "txt" {
			t.Fatalf("expected page blocks, got %+v", p.Body)
		}
	})

	t.Run("nested page has no fallback", func(t *testing.T) {
		p, err := svc.Resolve(ctx, "acme.example.com", "/company/team")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(p.Body) != 0 || p.Navigation == nil || p.Footer == nil {
			t.Fatalf("expected chrome only, got %+v", p)
		}
	})

	t.Run("product fallback", func(t *testing.T) {
		p, err := svc.Resolve(ctx, "acme.example.com", "/widget")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Entity == nil || p.Entity.Kind != content.KindProduct {
			t.Fatalf("expected product, got %+v", p.Entity)
		}
	})

	t.Run("unpublished page", func(t *testing.T) {
		_, err := svc.Resolve(ctx, "acme.example.com", "/secret")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("miss", func(t *testing.T) {
		_, err := svc.Resolve(ctx, "acme.example.com", "/nowhere")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestResolveEntityNotFound(t *testing.T) {
	store := acmeStore()
	store.addEntity(content.Entity{ID: "draft", TenantID: "t-acme", Kind: content.KindPost, Slug: "soon", Title: "Soon"})
	svc := newTestSiteService(store)

	for _, path := range []string{"/products/gizmo", "/posts/soon", "/pages/widget"} {
		t.Run(path, func(t *testing.T) {
			_, err := svc.Resolve(context.Background(), "acme.example.com", path)
			if !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
	if _, err := svc.Resolve(context.Background(), "nobody.example.com", "/"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown host, got %v", err)
	}
}

func TestResolvePostFallback(t *testing.T) {
	store := acmeStore()
	store.addEntity(content.Entity{
		ID: "post-1", TenantID: "t-acme", Kind: content.KindPost, Slug: "hello", Title: "Hello", Description: "First post", Published: true,
	})
	svc := newTestSiteService(store)

	p, err := svc.Resolve(context.Background(), "acme.example.com", "/posts/hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Synthesized || len(p.Body) != 1 || p.Body[0].ID != page.FallbackBlockID {
		t.Fatalf("expected synthesized fallback, got %+v", p.Body)
	}
}

func TestResolveStorageErrorIsNotNotFound(t *testing.T) {
	store := acmeStore()
	svc := newTestSiteService(store)
	store.getErr = errors.Join(domain.ErrStorage, errors.New("timeout"))

	_, err := svc.Resolve(context.Background(), "acme.example.com", "/products/widget")
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if errors.Is(err, domain.ErrNotFound) {
		t.Fatal("storage failure reported as not found")
	}
}

func TestResolveSubdomainAndPrefixed(t *testing.T) {
	svc := newTestSiteService(acmeStore())
	ctx := context.Background()

	p, err := svc.ResolveSubdomain(ctx, "acme", "/products/widget")
	if err != nil || p.Entity == nil || p.Entity.Slug != "widget" {
		t.Fatalf("ResolveSubdomain: %+v %v", p, err)
	}
	p, err = svc.ResolvePrefixed(ctx, "/acme/products/widget")
	if err != nil || p.Entity == nil || p.Entity.Slug != "widget" {
		t.Fatalf("ResolvePrefixed: %+v %v", p, err)
	}
	if _, err := svc.ResolveSubdomain(ctx, "..", "/"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for invalid subdomain, got %v", err)
	}
	if _, err := svc.ResolvePrefixed(ctx, "/"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing prefix, got %v", err)
	}
}

func TestList(t *testing.T) {
	store := acmeStore()
	store.addEntity(content.Entity{ID: "p2", TenantID: "t-acme", Kind: content.KindProduct, Slug: "gadget", Title: "Gadget", Published: true})
	store.addEntity(content.Entity{ID: "p3", TenantID: "t-acme", Kind: content.KindProduct, Slug: "hidden", Title: "Hidden"})
	svc := newTestSiteService(store)
	ctx := context.Background()

	got, err := svc.List(ctx, "acme", "products", content.ListOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 published products, got %d", len(got))
	}
	got, err = svc.List(ctx, "acme", "product", content.ListOptions{Limit: 1, Offset: 1})
	if err != nil || len(got) != 1 || got[0].Slug != "gadget" {
		t.Fatalf("expected second page with gadget, got %+v %v", got, err)
	}
	if _, err := svc.List(ctx, "acme", "users", content.ListOptions{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown kind, got %v", err)
	}
	if _, err := svc.List(ctx, "nobody", "posts", content.ListOptions{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown tenant, got %v", err)
	}
}

func TestResolvePublishesBlockDiagnostics(t *testing.T) {
	store := acmeStore()
	store.homeBlocks["t-acme"] = append(store.homeBlocks["t-acme"], block.Block{ID: "m", Type: "marquee"})
	q := newMockQueue()
	diag := NewDiagnostics(nil, q)
	dir := NewDirectoryService(store, tenant.Visibility{DraftVisible: true}, "", time.Minute)
	svc := NewSiteService(dir, store, diag, nil)

	p, err := svc.Resolve(context.Background(), "acme.example.com", "/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Body) != 1 {
		t.Fatalf("expected unknown block dropped, got %+v", p.Body)
	}
	diag.Close()

	if n := q.count(mq.SubjectDiagnosticsBlocks); n != 1 {
		t.Fatalf("expected 1 diagnostic published, got %d", n)
	}
	var ev mq.BlockDiagnosticPayload
	if err := json.Unmarshal(q.published[mq.SubjectDiagnosticsBlocks][0], &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Diagnostic != mq.DiagnosticUnknownType || ev.BlockID != "m" || ev.TenantID != "t-acme" {
		t.Fatalf("unexpected diagnostic %+v", ev)
	}
	if err := mq.Validate(mq.SubjectDiagnosticsBlocks, q.published[mq.SubjectDiagnosticsBlocks][0]); err != nil {
		t.Fatalf("published diagnostic fails schema: %v", err)
	}
}

func TestResolveMissingEntityKeepsBreakerClosed(t *testing.T) {
	store := acmeStore()
	// The tenant load only returns once the sibling lookup has failed and
	// cancelled the group.
	store.loadWait = interruptedLoad
	breaker := resilience.NewBreaker(2, time.Hour,
		resilience.WithFailurePredicate(StorageFailure), resilience.WithIgnore(Abandoned))
	dir := NewDirectoryService(store, tenant.Visibility{DraftVisible: true}, "", time.Minute)
	svc := NewSiteService(dir, NewGuardedStore(store, breaker, nil), nil, nil)

	for _, path := range []string{"/products/missing", "/posts/missing", "/products/gone"} {
		_, err := svc.Resolve(context.Background(), "acme.example.com", path)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("%s: expected ErrNotFound, got %v", path, err)
		}
	}
	if s := breaker.State(); s != resilience.StateClosed {
		t.Fatalf("expected closed breaker after not-found lookups, got %s", s)
	}
	if got := store.loadCalls.Load(); got != 3 {
		t.Fatalf("expected every tenant load to run, got %d", got)
	}
}

func TestResolveReportsTenantIssuesOnEveryRoute(t *testing.T) {
	for _, path := range []string{"/", "/products/widget"} {
		t.Run(path, func(t *testing.T) {
			store := acmeStore()
			store.tenantIssues = []block.Issue{{BlockID: tenant.SettingsIssueID, Reason: "settings dropped: bad json"}}
			q := newMockQueue()
			diag := NewDiagnostics(nil, q)
			dir := NewDirectoryService(store, tenant.Visibility{DraftVisible: true}, "", time.Minute)
			svc := NewSiteService(dir, store, diag, nil)

			if _, err := svc.Resolve(context.Background(), "acme.example.com", path); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			diag.Close()

			if n := q.count(mq.SubjectDiagnosticsBlocks); n != 1 {
				t.Fatalf("expected 1 diagnostic, got %d", n)
			}
			var ev mq.BlockDiagnosticPayload
			if err := json.Unmarshal(q.published[mq.SubjectDiagnosticsBlocks][0], &ev); err != nil {
				t.Fatal(err)
			}
			if ev.Diagnostic != mq.DiagnosticMalformed || ev.BlockID != tenant.SettingsIssueID {
				t.Fatalf("unexpected diagnostic %+v", ev)
			}
		})
	}
}
