package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/SiteForge/internal/adapter/otel"
	"github.com/Strob0t/SiteForge/internal/domain"
	"github.com/Strob0t/SiteForge/internal/domain/content"
	"github.com/Strob0t/SiteForge/internal/domain/page"
	"github.com/Strob0t/SiteForge/internal/domain/site"
	"github.com/Strob0t/SiteForge/internal/domain/tenant"
	"github.com/Strob0t/SiteForge/internal/logger"
	"github.com/Strob0t/SiteForge/internal/port/database"
)

// TenantDirectory maps hosts and subdomains to visible tenant identities.
type TenantDirectory interface {
	Resolve(ctx context.Context, host string) (tenant.Identity, error)
	ResolveSubdomain(ctx context.Context, subdomain string) (tenant.Identity, error)
}

// SiteRepository is the read side of the store used by the pipeline.
type SiteRepository interface {
	database.TenantRepository
	database.ContentRepository
}

// SiteService runs the resolution pipeline: sanitize the path, resolve the
// tenant, load tenant and content, compose the page. Every entry point
// (Host header, subdomain parameter, preview prefix) funnels into it.
type SiteService struct {
	directory   TenantDirectory
	repo        SiteRepository
	diagnostics *Diagnostics
	metrics     *otel.Metrics
}

// NewSiteService creates a SiteService. diagnostics and metrics may be nil.
func NewSiteService(dir TenantDirectory, repo SiteRepository, diagnostics *Diagnostics, metrics *otel.Metrics) *SiteService {
	return &SiteService{directory: dir, repo: repo, diagnostics: diagnostics, metrics: metrics}
}

// Resolve resolves a request by Host header and escaped URL path.
func (s *SiteService) Resolve(ctx context.Context, host, escapedPath string) (*page.ResolvedPage, error) {
	start := time.Now()
	ctx, span := otel.StartResolveSpan(ctx, host, escapedPath)
	p, route, err := s.resolve(ctx, escapedPath, func(ctx context.Context) (tenant.Identity, error) {
		return s.directory.Resolve(ctx, host)
	})
	s.record(ctx, start, route, err)
	otel.EndSpan(span, err)
	return p, err
}

// ResolveSubdomain resolves a request that names its tenant explicitly.
func (s *SiteService) ResolveSubdomain(ctx context.Context, subdomain, escapedPath string) (*page.ResolvedPage, error) {
	start := time.Now()
	ctx, span := otel.StartResolveSpan(ctx, subdomain, escapedPath)
	p, route, err := s.resolve(ctx, escapedPath, func(ctx context.Context) (tenant.Identity, error) {
		if err := site.CheckSegment(subdomain); err != nil {
			return tenant.Identity{}, err
		}
		return s.directory.ResolveSubdomain(ctx, subdomain)
	})
	s.record(ctx, start, route, err)
	otel.EndSpan(span, err)
	return p, err
}

// ResolvePrefixed resolves a path whose first segment is the tenant
// subdomain, e.g. "/acme/products/widget".
func (s *SiteService) ResolvePrefixed(ctx context.Context, escapedPath string) (*page.ResolvedPage, error) {
	sub, rest, err := site.SplitPrefix(escapedPath)
	if err != nil {
		s.record(ctx, time.Now(), site.Route{Kind: site.RouteCatchAll}, err)
		return nil, err
	}
	return s.ResolveSubdomain(ctx, sub, rest)
}

// List returns the published entities of one kind for a tenant, newest
// first. kind accepts the singular or plural form.
func (s *SiteService) List(ctx context.Context, subdomain, kind string, opts content.ListOptions) ([]content.Summary, error) {
	k, ok := content.ParseKind(kind)
	if !ok {
		return nil, fmt.Errorf("unknown content kind %q: %w", kind, domain.ErrNotFound)
	}
	if err := site.CheckSegment(subdomain); err != nil {
		return nil, err
	}
	id, err := s.directory.ResolveSubdomain(ctx, subdomain)
	if err != nil {
		return nil, err
	}
	ctx, span := otel.StartLoadSpan(ctx, "list", id.ID)
	out, err := s.repo.GetAll(ctx, id.ID, k, opts.Normalize())
	otel.EndSpan(span, err)
	return out, err
}

func (s *SiteService) resolve(ctx context.Context, escapedPath string, lookup func(context.Context) (tenant.Identity, error)) (*page.ResolvedPage, site.Route, error) {
	// Sanitize before any lookup so a rejected path never reaches storage.
	route, err := site.ParsePath(escapedPath)
	if err != nil {
		return nil, route, err
	}
	id, err := lookup(ctx)
	if err != nil {
		return nil, route, err
	}
	ctx = logger.WithTenant(ctx, id.Subdomain)

	ctx, span := otel.StartLoadSpan(ctx, route.Kind.String(), id.ID)
	in, err := s.load(ctx, id, route)
	otel.EndSpan(span, err)
	if err != nil {
		return nil, route, err
	}
	return page.NewComposer(s.diagnostics.ForRequest(ctx)).Compose(in), route, nil
}

func (s *SiteService) load(ctx context.Context, id tenant.Identity, route site.Route) (page.Input, error) {
	switch route.Kind {
	case site.RouteEntity:
		return s.loadEntity(ctx, id, route.EntityKind, route.Slug)
	case site.RouteCatchAll:
		return s.loadCatchAll(ctx, id, route.Slug)
	default:
		b, err := s.repo.LoadSite(ctx, id, "")
		if err != nil {
			return page.Input{}, err
		}
		issues := append(b.TenantIssues[:len(b.TenantIssues):len(b.TenantIssues)], b.Issues...)
		return page.Input{Tenant: b.Tenant, Blocks: b.Blocks, Issues: issues}, nil
	}
}

// loadEntity loads the tenant record and the entity concurrently; neither
// depends on the other once the tenant id is known.
func (s *SiteService) loadEntity(ctx context.Context, id tenant.Identity, kind content.Kind, slug string) (page.Input, error) {
	var (
		bundle *tenant.Bundle
		entity *content.Entity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bundle, err = s.repo.LoadSite(gctx, id, "")
		return err
	})
	g.Go(func() error {
		var err error
		entity, err = s.repo.GetBySlug(gctx, id.ID, kind, slug)
		return err
	})
	if err := g.Wait(); err != nil {
		return page.Input{}, err
	}
	return page.Input{Tenant: bundle.Tenant, Entity: entity, Issues: bundle.TenantIssues}, nil
}

// loadCatchAll probes slug as a page through the repository's slug hint,
// then as a product.
func (s *SiteService) loadCatchAll(ctx context.Context, id tenant.Identity, slug string) (page.Input, error) {
	b, err := s.repo.LoadSite(ctx, id, slug)
	if err != nil {
		return page.Input{}, err
	}
	if b.Page != nil {
		return page.Input{Tenant: b.Tenant, Issues: b.TenantIssues, Entity: &content.Entity{
			ID:        b.Page.ID,
			TenantID:  b.Tenant.ID,
			Kind:      content.KindPage,
			Slug:      b.Page.Slug,
			Title:     b.Page.Title,
			Published: true,
			Blocks:    b.Blocks,
			Issues:    b.Issues,
		}}, nil
	}
	e, err := s.repo.GetBySlug(ctx, id.ID, content.KindProduct, slug)
	if err != nil {
		return page.Input{}, err
	}
	return page.Input{Tenant: b.Tenant, Entity: e, Issues: b.TenantIssues}, nil
}

func (s *SiteService) record(ctx context.Context, start time.Time, route site.Route, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	s.metrics.RecordResolve(ctx, outcome, route.Kind.String(), time.Since(start).Seconds())
}
