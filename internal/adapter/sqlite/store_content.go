package sqlite

import (
	"context"

	"github.com/google/uuid"

	"github.com/Strob0t/SiteForge/internal/domain/block"
	"github.com/Strob0t/SiteForge/internal/domain/content"
)

const entityColumns = `id, tenant_id, kind, slug, title, description, image, is_published, created_at, updated_at`

func scanEntity(row scannable, withBlocks bool) (*content.Entity, error) {
	var e content.Entity
	var kind, created, updated, blocksJSON string
	var published int
	dest := []any{&e.ID, &e.TenantID, &kind, &e.Slug, &e.Title, &e.Description, &e.Image, &published, &created, &updated}
	if withBlocks {
		dest = append(dest, &blocksJSON)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	e.Kind = content.Kind(kind)
	e.Published = published != 0
	e.CreatedAt = parseTime(created)
	e.UpdatedAt = parseTime(updated)
	if withBlocks {
		e.Blocks, e.Issues = block.Decode([]byte(blocksJSON))
	}
	return &e, nil
}

func (s *Store) GetBySlug(ctx context.Context, tenantID string, kind content.Kind, slug string) (*content.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+`, blocks
		 FROM content_entities
		 WHERE tenant_id = ? AND kind = ? AND slug = ? AND is_published = 1`,
		tenantID, string(kind), slug)
	e, err := scanEntity(row, true)
	if err != nil {
		return nil, notFoundWrap(err, "get %s %s", kind, slug)
	}
	return e, nil
}

func (s *Store) GetAll(ctx context.Context, tenantID string, kind content.Kind, opts content.ListOptions) ([]content.Summary, error) {
	opts = opts.Normalize()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entityColumns+`
		 FROM content_entities
		 WHERE tenant_id = ? AND kind = ? AND is_published = 1
		 ORDER BY updated_at DESC, id ASC
		 LIMIT ? OFFSET ?`,
		tenantID, string(kind), opts.Limit, opts.Offset)
	if err != nil {
		return nil, storageWrap(err, "list %s", kind)
	}
	defer func() { _ = rows.Close() }()

	out := []content.Summary{}
	for rows.Next() {
		e, err := scanEntity(rows, false)
		if err != nil {
			return nil, storageWrap(err, "scan %s", kind)
		}
		out = append(out, content.Summary{
			ID:          e.ID,
			Kind:        e.Kind,
			Slug:        e.Slug,
			Title:       e.Title,
			Description: e.Description,
			Image:       e.Image,
			UpdatedAt:   e.UpdatedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, storageWrap(err, "list %s", kind)
	}
	return out, nil
}

func (s *Store) SaveEntity(ctx context.Context, req *content.SaveRequest) (*content.Entity, error) {
	now := s.now().UTC().Format(timeLayout)
	published := 0
	if req.Published {
		published = 1
	}
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO content_entities (id, tenant_id, kind, slug, title, description, image, is_published, blocks, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, kind, slug) DO UPDATE SET
		   title = excluded.title,
		   description = excluded.description,
		   image = excluded.image,
		   is_published = excluded.is_published,
		   blocks = excluded.blocks,
		   updated_at = excluded.updated_at
		 RETURNING `+entityColumns+`, blocks`,
		uuid.NewString(), req.TenantID, string(req.Kind), req.Slug, req.Title, req.Description, req.Image,
		published, jsonOr(req.Blocks, "[]"), now, now)
	e, err := scanEntity(row, true)
	if err != nil {
		return nil, storageWrap(err, "save %s %s", req.Kind, req.Slug)
	}
	return e, nil
}
