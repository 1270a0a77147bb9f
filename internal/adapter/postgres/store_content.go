package postgres

import (
	"context"

	"github.com/Strob0t/SiteForge/internal/domain/block"
	"github.com/Strob0t/SiteForge/internal/domain/content"
)

const entityColumns = `id, tenant_id, kind, slug, title, description, image, is_published, created_at, updated_at`

func scanEntity(row scannable, withBlocks bool) (*content.Entity, error) {
	var e content.Entity
	var kind string
	var blocksJSON []byte
	dest := []any{&e.ID, &e.TenantID, &kind, &e.Slug, &e.Title, &e.Description, &e.Image, &e.Published, &e.CreatedAt, &e.UpdatedAt}
	if withBlocks {
		dest = append(dest, &blocksJSON)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	e.Kind = content.Kind(kind)
	if withBlocks {
		e.Blocks, e.Issues = block.Decode(blocksJSON)
	}
	return &e, nil
}

// --- Content repository ---

func (s *Store) GetBySlug(ctx context.Context, tenantID string, kind content.Kind, slug string) (*content.Entity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+entityColumns+`, blocks
		 FROM content_entities
		 WHERE tenant_id = $1 AND kind = $2 AND slug = $3 AND is_published`,
		tenantID, string(kind), slug)
	e, err := scanEntity(row, true)
	if err != nil {
		return nil, notFoundWrap(err, "get %s %s", kind, slug)
	}
	return e, nil
}

func (s *Store) GetAll(ctx context.Context, tenantID string, kind content.Kind, opts content.ListOptions) ([]content.Summary, error) {
	opts = opts.Normalize()
	rows, err := s.pool.Query(ctx,
		`SELECT `+entityColumns+`
		 FROM content_entities
		 WHERE tenant_id = $1 AND kind = $2 AND is_published
		 ORDER BY updated_at DESC, id ASC
		 LIMIT $3 OFFSET $4`,
		tenantID, string(kind), opts.Limit, opts.Offset)
	if err != nil {
		return nil, storageWrap(err, "list %s", kind)
	}
	defer rows.Close()

	out := []content.Summary{}
	for rows.Next() {
		e, err := scanEntity(rows, false)
		if err != nil {
			return nil, storageWrap(err, "scan %s", kind)
		}
		out = append(out, summarize(e))
	}
	if err := rows.Err(); err != nil {
		return nil, storageWrap(err, "list %s", kind)
	}
	return out, nil
}

func (s *Store) SaveEntity(ctx context.Context, req *content.SaveRequest) (*content.Entity, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO content_entities (tenant_id, kind, slug, title, description, image, is_published, blocks)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (tenant_id, kind, slug) DO UPDATE SET
		   title = EXCLUDED.title,
		   description = EXCLUDED.description,
		   image = EXCLUDED.image,
		   is_published = EXCLUDED.is_published,
		   blocks = EXCLUDED.blocks,
		   updated_at = now()
		 RETURNING `+entityColumns+`, blocks`,
		req.TenantID, string(req.Kind), req.Slug, req.Title, req.Description, req.Image, req.Published, jsonOr(req.Blocks, "[]"))
	e, err := scanEntity(row, true)
	if err != nil {
		return nil, storageWrap(err, "save %s %s", req.Kind, req.Slug)
	}
	return e, nil
}

func summarize(e *content.Entity) content.Summary {
	return content.Summary{
		ID:          e.ID,
		Kind:        e.Kind,
		Slug:        e.Slug,
		Title:       e.Title,
		Description: e.Description,
		Image:       e.Image,
		UpdatedAt:   e.UpdatedAt,
	}
}
