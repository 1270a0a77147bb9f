package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/SiteForge/internal/domain/tenant"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool       *pgxpool.Pool
	visibility tenant.Visibility
}

// NewStore creates a new Store backed by the given connection pool. vis
// decides which tenant statuses LoadSite may return.
func NewStore(pool *pgxpool.Pool, vis tenant.Visibility) *Store {
	return &Store{pool: pool, visibility: vis}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return storageWrap(err, "ping")
	}
	return nil
}
