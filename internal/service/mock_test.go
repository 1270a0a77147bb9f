package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Strob0t/SiteForge/internal/domain"
	"github.com/Strob0t/SiteForge/internal/domain/block"
	"github.com/Strob0t/SiteForge/internal/domain/content"
	"github.com/Strob0t/SiteForge/internal/domain/tenant"
	"github.com/Strob0t/SiteForge/internal/port/cache"
	"github.com/Strob0t/SiteForge/internal/port/database"
	mq "github.com/Strob0t/SiteForge/internal/port/messagequeue"
)

// Ensure the fakes implement their ports at compile time.
var (
	_ database.Store = (*mockStore)(nil)
	_ cache.Cache    = (*memCache)(nil)
	_ mq.Queue       = (*mockQueue)(nil)
)

// mockStore is a minimal in-memory implementation of database.Store for testing.
type mockStore struct {
	mu         sync.Mutex
	tenants    []tenant.Tenant
	homeBlocks map[string][]block.Block
	entities   []content.Entity
	visibility tenant.Visibility

	// Error hooks inject failures.
	listErr error
	loadErr error
	getErr  error

	// tenantIssues are attached to every loaded bundle.
	tenantIssues []block.Issue

	// loadWait, when set, replaces LoadSite's lookup, e.g. to block on ctx.
	loadWait func(ctx context.Context) error

	listCalls atomic.Int32
	loadCalls atomic.Int32
	getCalls  atomic.Int32
	allCalls  atomic.Int32
}

func newMockStore() *mockStore {
	return &mockStore{
		homeBlocks: map[string][]block.Block{},
		visibility: tenant.Visibility{DraftVisible: true},
	}
}

func (m *mockStore) calls() int32 {
	return m.listCalls.Load() + m.loadCalls.Load() + m.getCalls.Load() + m.allCalls.Load()
}

func (m *mockStore) ListTenantIdentities(_ context.Context) ([]tenant.Identity, error) {
	m.listCalls.Add(1)
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]tenant.Identity, len(m.tenants))
	for i := range m.tenants {
		out[i] = m.tenants[i].Identity
	}
	return out, nil
}

func (m *mockStore) LoadSite(ctx context.Context, id tenant.Identity, hint string) (*tenant.Bundle, error) {
	m.loadCalls.Add(1)
	if m.loadWait != nil {
		return nil, m.loadWait(ctx)
	}
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tenants {
		t := m.tenants[i]
		if t.ID != id.ID || !m.visibility.Visible(t.Status) {
			continue
		}
		b := &tenant.Bundle{Tenant: &t, Blocks: []block.Block{}, TenantIssues: m.tenantIssues}
		if hint == "" {
			b.Blocks = append(b.Blocks, m.homeBlocks[t.ID]...)
			return b, nil
		}
		for _, e := range m.entities {
			if e.TenantID == t.ID && e.Kind == content.KindPage && e.Slug == hint && e.Published {
				b.Blocks = append(b.Blocks, e.Blocks...)
				b.Page = &tenant.PageRef{ID: e.ID, Slug: e.Slug, Title: e.Title}
			}
		}
		return b, nil
	}
	return nil, fmt.Errorf("tenant %s: %w", id.ID, domain.ErrNotFound)
}

func (m *mockStore) GetBySlug(_ context.Context, tenantID string, kind content.Kind, slug string) (*content.Entity, error) {
	m.getCalls.Add(1)
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entities {
		e := m.entities[i]
		if e.TenantID == tenantID && e.Kind == kind && e.Slug == slug && e.Published {
			return &e, nil
		}
	}
	return nil, fmt.Errorf("%s %q: %w", kind, slug, domain.ErrNotFound)
}

func (m *mockStore) GetAll(_ context.Context, tenantID string, kind content.Kind, opts content.ListOptions) ([]content.Summary, error) {
	m.allCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []content.Summary{}
	for _, e := range m.entities {
		if e.TenantID == tenantID && e.Kind == kind && e.Published {
			out = append(out, content.Summary{ID: e.ID, Kind: e.Kind, Slug: e.Slug, Title: e.Title})
		}
	}
	if opts.Offset >= len(out) {
		return []content.Summary{}, nil
	}
	out = out[opts.Offset:]
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *mockStore) CreateTenant(_ context.Context, req *tenant.CreateRequest) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := tenant.Tenant{
		Identity: tenant.Identity{
			ID:           fmt.Sprintf("t%d", len(m.tenants)+1),
			Subdomain:    req.Subdomain,
			CustomDomain: req.CustomDomain,
			Status:       req.Status,
		},
		Name:     req.Name,
		Settings: req.Settings,
	}
	m.tenants = append(m.tenants, t)
	return &t, nil
}

func (m *mockStore) SaveEntity(_ context.Context, req *content.SaveRequest) (*content.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blocks, issues := block.Decode(req.Blocks)
	e := content.Entity{
		ID:        fmt.Sprintf("e%d", len(m.entities)+1),
		TenantID:  req.TenantID,
		Kind:      req.Kind,
		Slug:      req.Slug,
		Title:     req.Title,
		Published: req.Published,
		Blocks:    blocks,
		Issues:    issues,
	}
	m.entities = append(m.entities, e)
	return &e, nil
}

func (m *mockStore) Ping(context.Context) error { return m.loadErr }

func (m *mockStore) addTenant(t tenant.Tenant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants = append(m.tenants, t)
}

func (m *mockStore) addEntity(e content.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities = append(m.entities, e)
}

// memCache is a map-backed cache.Cache ignoring TTLs.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// mockQueue records publications and delivers them to local subscribers.
type mockQueue struct {
	mu        sync.Mutex
	published map[string][][]byte
	handlers  map[string][]mq.Handler
	connected bool
	pubErr    error
}

func newMockQueue() *mockQueue {
	return &mockQueue{published: map[string][][]byte{}, handlers: map[string][]mq.Handler{}, connected: true}
}

func (q *mockQueue) Publish(ctx context.Context, subject string, data []byte) error {
	q.mu.Lock()
	if q.pubErr != nil {
		q.mu.Unlock()
		return q.pubErr
	}
	q.published[subject] = append(q.published[subject], data)
	handlers := append([]mq.Handler(nil), q.handlers[subject]...)
	q.mu.Unlock()
	for _, h := range handlers {
		_ = h(ctx, subject, data)
	}
	return nil
}

func (q *mockQueue) Subscribe(_ context.Context, subject string, h mq.Handler) (func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[subject] = append(q.handlers[subject], h)
	return func() {}, nil
}

func (q *mockQueue) count(subject string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.published[subject])
}

func (q *mockQueue) Drain() error      { return nil }
func (q *mockQueue) Close() error      { return nil }
func (q *mockQueue) IsConnected() bool { return q.connected }
