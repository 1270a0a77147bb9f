package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Strob0t/SiteForge/internal/domain"
	"github.com/Strob0t/SiteForge/internal/domain/tenant"
	"github.com/Strob0t/SiteForge/internal/port/database"
)

// DirectoryService resolves request hosts to tenant identities. It keeps an
// immutable snapshot of the visible tenants, rebuilt from the directory
// source when older than the refresh interval or after Invalidate.
type DirectoryService struct {
	source     database.DirectorySource
	visibility tenant.Visibility
	localDev   string
	ttl        time.Duration
	now        func() time.Time

	mu    sync.RWMutex
	index *hostIndex
	stale bool
	group singleflight.Group
}

// hostIndex is one snapshot. It is never mutated after build.
type hostIndex struct {
	byDomain    map[string]tenant.Identity
	bySubdomain map[string]tenant.Identity
	size        int
	builtAt     time.Time
}

// NewDirectoryService creates a DirectoryService. localDevDomain names the
// custom domain that bare "localhost" falls back to; empty disables the
// fallback.
func NewDirectoryService(source database.DirectorySource, vis tenant.Visibility, localDevDomain string, ttl time.Duration) *DirectoryService {
	return &DirectoryService{
		source:     source,
		visibility: vis,
		localDev:   normalizeHost(localDevDomain),
		ttl:        ttl,
		now:        time.Now,
	}
}

// Resolve maps a raw Host header value to a visible tenant identity.
// Precedence, first match wins:
//  1. exact custom domain, port included
//  2. bare "localhost" falls back to the local-dev custom domain
//  3. first host label against the tenant subdomain
//
// No match yields domain.ErrNotFound.
func (d *DirectoryService) Resolve(ctx context.Context, host string) (tenant.Identity, error) {
	host = normalizeHost(host)
	if host == "" {
		return tenant.Identity{}, fmt.Errorf("resolve host: empty host: %w", domain.ErrNotFound)
	}
	idx, err := d.snapshot(ctx)
	if err != nil {
		return tenant.Identity{}, err
	}

	if id, ok := idx.byDomain[host]; ok {
		return id, nil
	}

	hostname := stripPort(host)
	if hostname == "localhost" && d.localDev != "" {
		if id, ok := idx.byDomain[d.localDev]; ok {
			return id, nil
		}
	}

	if net.ParseIP(hostname) == nil {
		label, _, _ := strings.Cut(hostname, ".")
		if id, ok := idx.bySubdomain[label]; ok {
			return id, nil
		}
	}

	return tenant.Identity{}, fmt.Errorf("resolve host %q: %w", host, domain.ErrNotFound)
}

// ResolveSubdomain looks a visible tenant up by its subdomain alone, for
// entry points that carry the subdomain explicitly.
func (d *DirectoryService) ResolveSubdomain(ctx context.Context, subdomain string) (tenant.Identity, error) {
	sub := strings.ToLower(strings.TrimSpace(subdomain))
	if sub == "" {
		return tenant.Identity{}, fmt.Errorf("resolve subdomain: empty: %w", domain.ErrNotFound)
	}
	idx, err := d.snapshot(ctx)
	if err != nil {
		return tenant.Identity{}, err
	}
	if id, ok := idx.bySubdomain[sub]; ok {
		return id, nil
	}
	return tenant.Identity{}, fmt.Errorf("resolve subdomain %q: %w", sub, domain.ErrNotFound)
}

// Invalidate marks the snapshot stale; the next lookup rebuilds it.
func (d *DirectoryService) Invalidate() {
	d.mu.Lock()
	d.stale = true
	d.mu.Unlock()
}

// Refresh rebuilds the snapshot now.
func (d *DirectoryService) Refresh(ctx context.Context) error {
	_, err := d.rebuild(ctx)
	return err
}

// Size returns the number of indexed tenants in the current snapshot.
func (d *DirectoryService) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.index == nil {
		return 0
	}
	return d.index.size
}

func (d *DirectoryService) snapshot(ctx context.Context) (*hostIndex, error) {
	d.mu.RLock()
	idx, stale := d.index, d.stale
	d.mu.RUnlock()

	if idx != nil && !stale && d.now().Sub(idx.builtAt) < d.ttl {
		return idx, nil
	}

	fresh, err := d.rebuild(ctx)
	if err != nil {
		if idx != nil {
			slog.WarnContext(ctx, "tenant directory refresh failed, serving previous snapshot", "error", err)
			return idx, nil
		}
		return nil, err
	}
	return fresh, nil
}

// rebuild loads the source once even when many requests find the
// snapshot stale at the same moment.
func (d *DirectoryService) rebuild(ctx context.Context) (*hostIndex, error) {
	v, err, _ := d.group.Do("rebuild", func() (any, error) {
		// Shared by all waiters; one caller's cancellation must not fail the rest.
		ctx := context.WithoutCancel(ctx)
		ids, err := d.source.ListTenantIdentities(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrStorage) {
				err = fmt.Errorf("%w: %w", domain.ErrStorage, err)
			}
			return nil, fmt.Errorf("load tenant directory: %w", err)
		}
		idx := buildIndex(ctx, ids, d.visibility, d.now())

		d.mu.Lock()
		d.index = idx
		d.stale = false
		d.mu.Unlock()
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*hostIndex), nil
}

// buildIndex indexes the visible identities. On conflicting claims the
// earlier identity keeps the host and the later one is logged and skipped
// for that key.
func buildIndex(ctx context.Context, ids []tenant.Identity, vis tenant.Visibility, now time.Time) *hostIndex {
	idx := &hostIndex{
		byDomain:    make(map[string]tenant.Identity, len(ids)),
		bySubdomain: make(map[string]tenant.Identity, len(ids)),
		builtAt:     now,
	}
	for _, id := range ids {
		if !vis.Visible(id.Status) {
			continue
		}
		idx.size++
		if sub := strings.ToLower(id.Subdomain); sub != "" {
			if prev, dup := idx.bySubdomain[sub]; dup {
				slog.WarnContext(ctx, "duplicate subdomain claim skipped", "subdomain", sub, "kept", prev.ID, "skipped", id.ID)
			} else {
				idx.bySubdomain[sub] = id
			}
		}
		if dom := normalizeHost(id.CustomDomain); dom != "" {
			if prev, dup := idx.byDomain[dom]; dup {
				slog.WarnContext(ctx, "duplicate custom domain claim skipped", "domain", dom, "kept", prev.ID, "skipped", id.ID)
			} else {
				idx.byDomain[dom] = id
			}
		}
	}
	return idx
}

// normalizeHost lowercases h and drops surrounding space and a trailing
// root dot ("acme.com." and "acme.com" are the same host).
func normalizeHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	if host, port, err := net.SplitHostPort(h); err == nil {
		return net.JoinHostPort(strings.TrimSuffix(host, "."), port)
	}
	return strings.TrimSuffix(h, ".")
}

func stripPort(h string) string {
	if host, _, err := net.SplitHostPort(h); err == nil {
		return host
	}
	return strings.Trim(h, "[]")
}
