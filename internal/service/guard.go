package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Strob0t/SiteForge/internal/domain"
	"github.com/Strob0t/SiteForge/internal/domain/content"
	"github.com/Strob0t/SiteForge/internal/domain/tenant"
	"github.com/Strob0t/SiteForge/internal/port/database"
	"github.com/Strob0t/SiteForge/internal/resilience"
)

// GuardedStore runs the read operations of a Store behind a circuit
// breaker and an optional bulkhead. Only storage failures trip the breaker;
// not-found answers count as healthy responses. Writes pass through
// unguarded.
type GuardedStore struct {
	database.Store
	breaker  *resilience.Breaker
	bulkhead *resilience.Bulkhead
}

// NewGuardedStore wraps store with b. A nil bulkhead admits every call.
func NewGuardedStore(store database.Store, b *resilience.Breaker, bh *resilience.Bulkhead) *GuardedStore {
	return &GuardedStore{Store: store, breaker: b, bulkhead: bh}
}

// StorageFailure is the breaker failure predicate for store calls. A call
// abandoned by its caller is not a storage failure, even when the driver
// reports the interruption as one.
func StorageFailure(err error) bool {
	return errors.Is(err, domain.ErrStorage) && !Abandoned(err)
}

// Abandoned reports whether err stems from the caller cancelling the call.
// Pass it to resilience.WithIgnore so cancellations neither trip nor reset
// the breaker.
func Abandoned(err error) bool {
	return errors.Is(err, context.Canceled)
}

func (g *GuardedStore) run(ctx context.Context, fn func() error) error {
	err := g.breaker.Execute(func() error {
		err := g.bulkhead.Run(ctx, fn)
		// Drivers may surface an interrupted query as a plain driver error;
		// attach the cancellation so it is classified as abandoned.
		if err != nil && errors.Is(ctx.Err(), context.Canceled) && !errors.Is(err, context.Canceled) {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	return err
}

func (g *GuardedStore) ListTenantIdentities(ctx context.Context) ([]tenant.Identity, error) {
	var out []tenant.Identity
	err := g.run(ctx, func() error {
		var err error
		out, err = g.Store.ListTenantIdentities(ctx)
		return err
	})
	return out, err
}

func (g *GuardedStore) LoadSite(ctx context.Context, id tenant.Identity, pageSlugHint string) (*tenant.Bundle, error) {
	var out *tenant.Bundle
	err := g.run(ctx, func() error {
		var err error
		out, err = g.Store.LoadSite(ctx, id, pageSlugHint)
		return err
	})
	return out, err
}

func (g *GuardedStore) GetBySlug(ctx context.Context, tenantID string, kind content.Kind, slug string) (*content.Entity, error) {
	var out *content.Entity
	err := g.run(ctx, func() error {
		var err error
		out, err = g.Store.GetBySlug(ctx, tenantID, kind, slug)
		return err
	})
	return out, err
}

func (g *GuardedStore) GetAll(ctx context.Context, tenantID string, kind content.Kind, opts content.ListOptions) ([]content.Summary, error) {
	var out []content.Summary
	err := g.run(ctx, func() error {
		var err error
		out, err = g.Store.GetAll(ctx, tenantID, kind, opts)
		return err
	})
	return out, err
}

func (g *GuardedStore) Ping(ctx context.Context) error {
	return g.run(ctx, func() error { return g.Store.Ping(ctx) })
}
