package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Strob0t/SiteForge/internal/domain"
	"github.com/Strob0t/SiteForge/internal/domain/block"
	"github.com/Strob0t/SiteForge/internal/domain/tenant"
)

const (
	tenantColumns   = `t.id, t.name, t.subdomain, t.custom_domain, t.status, t.theme, t.settings, t.created_at, t.updated_at`
	tenantReturning = `id, name, subdomain, custom_domain, status, theme, settings, created_at, updated_at`
)

type scannable interface {
	Scan(dest ...any) error
}

// scanTenant reads the tenant columns followed by extra destinations. A
// corrupt settings bag is returned as issues rather than an error.
func scanTenant(row scannable, extra ...any) (*tenant.Tenant, []block.Issue, error) {
	var t tenant.Tenant
	var customDomain sql.NullString
	var status, settingsJSON, created, updated string
	dest := append([]any{
		&t.ID, &t.Name, &t.Subdomain, &customDomain, &status, &t.Theme, &settingsJSON, &created, &updated,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, nil, err
	}
	t.CustomDomain = customDomain.String
	t.Status = tenant.Status(status)
	var issues []block.Issue
	t.Settings, issues = tenant.DecodeSettings([]byte(settingsJSON))
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	return &t, issues, nil
}

func (s *Store) ListTenantIdentities(ctx context.Context) ([]tenant.Identity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subdomain, custom_domain, status FROM tenants ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, storageWrap(err, "list tenant identities")
	}
	defer func() { _ = rows.Close() }()

	var out []tenant.Identity
	for rows.Next() {
		var id tenant.Identity
		var customDomain sql.NullString
		var status string
		if err := rows.Scan(&id.ID, &id.Subdomain, &customDomain, &status); err != nil {
			return nil, storageWrap(err, "scan tenant identity")
		}
		id.CustomDomain = customDomain.String
		id.Status = tenant.Status(status)
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storageWrap(err, "list tenant identities")
	}
	return out, nil
}

// LoadSite mirrors the postgres query: one round trip for the tenant and
// the hinted published page.
func (s *Store) LoadSite(ctx context.Context, id tenant.Identity, pageSlugHint string) (*tenant.Bundle, error) {
	if id.ID == "" && id.Subdomain == "" {
		return nil, fmt.Errorf("load site: empty identity: %w", domain.ErrNotFound)
	}

	statuses := s.visibility.Statuses()
	args := []any{pageSlugHint, id.ID, id.ID, strings.ToLower(id.Subdomain)}
	for _, st := range statuses {
		args = append(args, string(st))
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+`, t.blocks, p.id, p.slug, p.title, p.blocks
		 FROM tenants t
		 LEFT JOIN content_entities p
		   ON p.tenant_id = t.id AND p.kind = 'page' AND p.slug = ? AND p.is_published = 1
		 WHERE (t.id = ? OR (? = '' AND t.subdomain = ?))
		   AND t.status IN (`+placeholders(len(statuses))+`)`,
		args...)

	var homeBlocks string
	var pageID, pageSlug, pageTitle, pageBlocks sql.NullString
	t, issues, err := scanTenant(row, &homeBlocks, &pageID, &pageSlug, &pageTitle, &pageBlocks)
	if err != nil {
		return nil, notFoundWrap(err, "load site %s (%s)", id.ID, id.Subdomain)
	}

	b := &tenant.Bundle{Tenant: t, TenantIssues: issues}
	switch {
	case pageSlugHint == "":
		b.Blocks, b.Issues = block.Decode([]byte(homeBlocks))
	case pageID.Valid:
		b.Page = &tenant.PageRef{ID: pageID.String, Slug: pageSlug.String, Title: pageTitle.String}
		b.Blocks, b.Issues = block.Decode([]byte(pageBlocks.String))
	}
	return b, nil
}

func (s *Store) CreateTenant(ctx context.Context, req *tenant.CreateRequest) (*tenant.Tenant, error) {
	settingsJSON, err := json.Marshal(req.Settings)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	status := req.Status
	if status == "" {
		status = tenant.StatusDraft
	}
	now := s.now().UTC().Format(timeLayout)

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO tenants (id, name, subdomain, custom_domain, status, theme, settings, blocks, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING `+tenantReturning,
		uuid.NewString(), req.Name, strings.ToLower(req.Subdomain), nullIfEmpty(strings.ToLower(req.CustomDomain)),
		string(status), req.Theme, jsonOr(settingsJSON, "{}"), jsonOr(req.Blocks, "[]"), now, now)
	t, _, err := scanTenant(row)
	if err != nil {
		return nil, storageWrap(err, "create tenant %s", req.Subdomain)
	}
	return t, nil
}
