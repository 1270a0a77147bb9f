package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Strob0t/SiteForge/internal/domain"
	"github.com/Strob0t/SiteForge/internal/domain/content"
	"github.com/Strob0t/SiteForge/internal/resilience"
)

func TestGuardedStoreTripsOnStorageErrors(t *testing.T) {
	store := acmeStore()
	g := NewGuardedStore(store, resilience.NewBreaker(2, time.Hour, resilience.WithFailurePredicate(StorageFailure)), nil)
	ctx := context.Background()

	store.loadErr = errors.Join(domain.ErrStorage, errors.New("timeout"))
	for range 2 {
		if _, err := g.LoadSite(ctx, acmeID, ""); !errors.Is(err, domain.ErrStorage) {
			t.Fatalf("expected ErrStorage, got %v", err)
		}
	}
	store.loadErr = nil

	_, err := g.LoadSite(ctx, acmeID, "")
	if !errors.Is(err, resilience.ErrCircuitOpen) || !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected open circuit reported as storage error, got %v", err)
	}
	if got := store.loadCalls.Load(); got != 2 {
		t.Fatalf("expected open circuit to skip the store, got %d calls", got)
	}
}

func TestGuardedStoreIgnoresNotFound(t *testing.T) {
	store := acmeStore()
	g := NewGuardedStore(store, resilience.NewBreaker(1, time.Hour, resilience.WithFailurePredicate(StorageFailure)), nil)
	ctx := context.Background()

	for range 3 {
		if _, err := g.GetBySlug(ctx, "t-acme", content.KindProduct, "gizmo"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
	if _, err := g.GetBySlug(ctx, "t-acme", content.KindProduct, "widget"); err != nil {
		t.Fatalf("expected closed circuit, got %v", err)
	}
}

func TestGuardedStoreBulkheadRespectsContext(t *testing.T) {
	store := acmeStore()
	bh := resilience.NewBulkhead(1)
	g := NewGuardedStore(store, resilience.NewBreaker(1, time.Hour, resilience.WithFailurePredicate(StorageFailure)), bh)

	hold := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = bh.Run(context.Background(), func() error {
			close(held)
			<-hold
			return nil
		})
	}()
	<-held
	defer close(hold)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := g.LoadSite(ctx, acmeID, ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline while waiting for a slot, got %v", err)
	}
	if got := store.loadCalls.Load(); got != 0 {
		t.Fatalf("expected no store call, got %d", got)
	}
}

// interruptedLoad blocks until ctx ends and then fails the way a driver
// reports an interrupted query: as a storage error without the context
// cause in the chain.
func interruptedLoad(ctx context.Context) error {
	<-ctx.Done()
	return fmt.Errorf("%w: interrupted (9)", domain.ErrStorage)
}

func TestGuardedStoreIgnoresCancelledCalls(t *testing.T) {
	tests := []struct {
		name string
		opts []resilience.Option
	}{
		{"predicate only", []resilience.Option{resilience.WithFailurePredicate(StorageFailure)}},
		{"predicate and ignore", []resilience.Option{resilience.WithFailurePredicate(StorageFailure), resilience.WithIgnore(Abandoned)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := acmeStore()
			breaker := resilience.NewBreaker(3, time.Hour, tt.opts...)
			g := NewGuardedStore(store, breaker, nil)

			store.loadWait = interruptedLoad
			for i := range 5 {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				_, err := g.LoadSite(ctx, acmeID, "")
				if !errors.Is(err, context.Canceled) {
					t.Fatalf("call %d: expected context.Canceled in chain, got %v", i, err)
				}
				if StorageFailure(err) {
					t.Fatalf("call %d: cancelled call classified as storage failure: %v", i, err)
				}
			}
			if s := breaker.State(); s != resilience.StateClosed {
				t.Fatalf("expected closed breaker after cancellations, got %s", s)
			}

			store.loadWait = nil
			if _, err := g.LoadSite(context.Background(), acmeID, ""); err != nil {
				t.Fatalf("expected healthy call to pass, got %v", err)
			}
		})
	}
}

func TestGuardedStoreCancellationKeepsFailureStreak(t *testing.T) {
	store := acmeStore()
	breaker := resilience.NewBreaker(2, time.Hour,
		resilience.WithFailurePredicate(StorageFailure), resilience.WithIgnore(Abandoned))
	g := NewGuardedStore(store, breaker, nil)

	store.loadErr = fmt.Errorf("%w: connection refused", domain.ErrStorage)
	_, _ = g.LoadSite(context.Background(), acmeID, "")

	store.loadWait = interruptedLoad
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _ = g.LoadSite(ctx, acmeID, "")

	store.loadWait = nil
	_, _ = g.LoadSite(context.Background(), acmeID, "")
	if s := breaker.State(); s != resilience.StateOpen {
		t.Fatalf("expected two storage failures to open the breaker, got %s", s)
	}
}
