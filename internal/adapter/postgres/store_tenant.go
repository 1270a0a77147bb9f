package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Strob0t/SiteForge/internal/domain"
	"github.com/Strob0t/SiteForge/internal/domain/block"
	"github.com/Strob0t/SiteForge/internal/domain/tenant"
)

const tenantColumns = `t.id, t.name, t.subdomain, t.custom_domain, t.status, t.theme, t.settings, t.created_at, t.updated_at`

// scanTenant reads tenantColumns followed by any extra destinations. A
// corrupt settings bag is returned as issues rather than an error.
func scanTenant(row scannable, extra ...any) (*tenant.Tenant, []block.Issue, error) {
	var t tenant.Tenant
	var customDomain *string
	var status string
	var settingsJSON []byte
	dest := append([]any{
		&t.ID, &t.Name, &t.Subdomain, &customDomain, &status, &t.Theme, &settingsJSON, &t.CreatedAt, &t.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, nil, err
	}
	if customDomain != nil {
		t.CustomDomain = *customDomain
	}
	t.Status = tenant.Status(status)
	var issues []block.Issue
	t.Settings, issues = tenant.DecodeSettings(settingsJSON)
	return &t, issues, nil
}

// --- Directory ---

func (s *Store) ListTenantIdentities(ctx context.Context) ([]tenant.Identity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, subdomain, custom_domain, status FROM tenants ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, storageWrap(err, "list tenant identities")
	}
	defer rows.Close()

	var out []tenant.Identity
	for rows.Next() {
		var id tenant.Identity
		var customDomain *string
		var status string
		if err := rows.Scan(&id.ID, &id.Subdomain, &customDomain, &status); err != nil {
			return nil, storageWrap(err, "scan tenant identity")
		}
		if customDomain != nil {
			id.CustomDomain = *customDomain
		}
		id.Status = tenant.Status(status)
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storageWrap(err, "list tenant identities")
	}
	return out, nil
}

// --- Tenant repository ---

// LoadSite fetches the tenant and, when pageSlugHint is set, the matching
// published page in the same round trip.
func (s *Store) LoadSite(ctx context.Context, id tenant.Identity, pageSlugHint string) (*tenant.Bundle, error) {
	if id.ID == "" && id.Subdomain == "" {
		return nil, fmt.Errorf("load site: empty identity: %w", domain.ErrNotFound)
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+`, t.blocks, p.id, p.slug, p.title, p.blocks
		 FROM tenants t
		 LEFT JOIN content_entities p
		   ON p.tenant_id = t.id AND p.kind = 'page' AND p.slug = $4 AND p.is_published
		 WHERE (t.id = $1 OR ($1 = '' AND t.subdomain = $2))
		   AND t.status = ANY($3)`,
		id.ID, strings.ToLower(id.Subdomain), statusStrings(s.visibility.Statuses()), pageSlugHint)

	var homeBlocks, pageBlocks []byte
	var pageID, pageSlug, pageTitle *string
	t, issues, err := scanTenant(row, &homeBlocks, &pageID, &pageSlug, &pageTitle, &pageBlocks)
	if err != nil {
		return nil, notFoundWrap(err, "load site %s (%s)", id.ID, id.Subdomain)
	}

	b := &tenant.Bundle{Tenant: t, TenantIssues: issues}
	switch {
	case pageSlugHint == "":
		b.Blocks, b.Issues = block.Decode(homeBlocks)
	case pageID != nil:
		b.Page = &tenant.PageRef{ID: *pageID, Slug: deref(pageSlug), Title: deref(pageTitle)}
		b.Blocks, b.Issues = block.Decode(pageBlocks)
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

	row := s.pool.QueryRow(ctx,
		`INSERT INTO tenants AS t (name, subdomain, custom_domain, status, theme, settings, blocks)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+tenantColumns,
		req.Name, strings.ToLower(req.Subdomain), nullIfEmpty(strings.ToLower(req.CustomDomain)),
		string(status), req.Theme, jsonOr(settingsJSON, "{}"), jsonOr(req.Blocks, "[]"))
	t, _, err := scanTenant(row)
	if err != nil {
		return nil, storageWrap(err, "create tenant %s", req.Subdomain)
	}
	return t, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
