// Package database defines the storage ports consumed by the site pipeline.
package database

import (
	"context"

	"github.com/Strob0t/SiteForge/internal/domain/content"
	"github.com/Strob0t/SiteForge/internal/domain/tenant"
)

// DirectorySource lists the identities the tenant directory matches hosts
// against. Implementations return every tenant regardless of status; the
// directory applies the visibility policy.
type DirectorySource interface {
	ListTenantIdentities(ctx context.Context) ([]tenant.Identity, error)
}

// TenantRepository loads a tenant record with its block collection.
type TenantRepository interface {
	// LoadSite returns the tenant and its home blocks. With a non-empty
	// pageSlugHint it returns the blocks of that published page instead and
	// sets Bundle.Page; when no such page exists Bundle.Page is nil and
	// Bundle.Blocks is empty.
	//
	// A missing or invisible tenant yields an error wrapping
	// domain.ErrNotFound; store failures wrap domain.ErrStorage.
	LoadSite(ctx context.Context, id tenant.Identity, pageSlugHint string) (*tenant.Bundle, error)
}

// ContentRepository loads published content entities. Unpublished entities
// are indistinguishable from absent ones.
type ContentRepository interface {
	GetBySlug(ctx context.Context, tenantID string, kind content.Kind, slug string) (*content.Entity, error)
	GetAll(ctx context.Context, tenantID string, kind content.Kind, opts content.ListOptions) ([]content.Summary, error)
}

// Writer is the minimal authoring surface used by seeding and tests.
type Writer interface {
	CreateTenant(ctx context.Context, req *tenant.CreateRequest) (*tenant.Tenant, error)
	SaveEntity(ctx context.Context, req *content.SaveRequest) (*content.Entity, error)
}

// Store is the full storage port implemented by the postgres and sqlite adapters.
type Store interface {
	DirectorySource
	TenantRepository
	ContentRepository
	Writer
	Ping(ctx context.Context) error
}
