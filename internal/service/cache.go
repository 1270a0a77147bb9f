package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/SiteForge/internal/adapter/otel"
	"github.com/Strob0t/SiteForge/internal/domain/content"
	"github.com/Strob0t/SiteForge/internal/domain/tenant"
	"github.com/Strob0t/SiteForge/internal/port/cache"
	"github.com/Strob0t/SiteForge/internal/port/database"
)

// globalGeneration is the generation key rotated by InvalidateAll.
const globalGeneration = "*"

// CachedStore decorates a Store with a read-through cache for tenant
// bundles and published entities. Keys embed a per-tenant generation token
// and a global one; rotating a token orphans every entry built under it.
// Not-found answers and errors are never cached. Listings are not cached.
type CachedStore struct {
	database.Store
	cache   cache.Cache
	ttl     time.Duration
	metrics *otel.Metrics
}

// NewCachedStore wraps store. metrics may be nil.
func NewCachedStore(store database.Store, c cache.Cache, ttl time.Duration, metrics *otel.Metrics) *CachedStore {
	return &CachedStore{Store: store, cache: c, ttl: ttl, metrics: metrics}
}

// LoadSite serves the bundle from cache when present.
func (s *CachedStore) LoadSite(ctx context.Context, id tenant.Identity, pageSlugHint string) (*tenant.Bundle, error) {
	if id.ID == "" {
		return s.Store.LoadSite(ctx, id, pageSlugHint)
	}
	key := s.key(ctx, id.ID, "site", pageSlugHint)
	var b tenant.Bundle
	if s.lookup(ctx, key, "site", &b) {
		return &b, nil
	}
	out, err := s.Store.LoadSite(ctx, id, pageSlugHint)
	if err != nil {
		return nil, err
	}
	// A hint that named no page is a miss in disguise; arbitrary paths
	// must not fill the cache.
	if pageSlugHint == "" || out.Page != nil {
		s.store(ctx, key, out)
	}
	return out, nil
}

// GetBySlug serves the entity from cache when present.
func (s *CachedStore) GetBySlug(ctx context.Context, tenantID string, kind content.Kind, slug string) (*content.Entity, error) {
	key := s.key(ctx, tenantID, "entity", string(kind)+"/"+slug)
	var e content.Entity
	if s.lookup(ctx, key, "entity", &e) {
		return &e, nil
	}
	out, err := s.Store.GetBySlug(ctx, tenantID, kind, slug)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, out)
	return out, nil
}

// Invalidate rotates the tenant's generation token.
func (s *CachedStore) Invalidate(ctx context.Context, tenantID string) {
	if tenantID == "" {
		tenantID = globalGeneration
	}
	if err := s.cache.Set(ctx, genKey(tenantID), []byte(uuid.NewString()), 0); err != nil {
		// The cache cannot honour the rotation; drop the token instead so a
		// new one is minted on the next read.
		slog.WarnContext(ctx, "cache generation rotate failed", "tenant_id", tenantID, "error", err)
		_ = s.cache.Delete(ctx, genKey(tenantID))
	}
}

// InvalidateAll rotates the global generation token.
func (s *CachedStore) InvalidateAll(ctx context.Context) {
	s.Invalidate(ctx, "")
}

func genKey(tenantID string) string { return "gen:" + tenantID }

// generation returns the current token for tenantID, minting one if absent.
func (s *CachedStore) generation(ctx context.Context, tenantID string) string {
	key := genKey(tenantID)
	if v, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		return string(v)
	}
	gen := uuid.NewString()
	_ = s.cache.Set(ctx, key, []byte(gen), 0)
	return gen
}

func (s *CachedStore) key(ctx context.Context, tenantID, kind, suffix string) string {
	return kind + ":" + tenantID + ":" + s.generation(ctx, globalGeneration) + ":" +
		s.generation(ctx, tenantID) + ":" + suffix
}

func (s *CachedStore) lookup(ctx context.Context, key, kind string, dst any) bool {
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "cache get failed", "key", key, "error", err)
		ok = false
	}
	if ok {
		if err := json.Unmarshal(data, dst); err != nil {
			slog.WarnContext(ctx, "cache entry undecodable", "key", key, "error", err)
			_ = s.cache.Delete(ctx, key)
			ok = false
		}
	}
	s.metrics.RecordCache(ctx, kind, ok)
	return ok
}

func (s *CachedStore) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.WarnContext(ctx, "cache entry unencodable", "key", key, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		slog.WarnContext(ctx, "cache set failed", "key", key, "error", err)
	}
}
