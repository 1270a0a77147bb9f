// Package tenant defines the hosted site (tenant) domain model.
package tenant

import (
	"encoding/json"
	"time"

	"github.com/Strob0t/SiteForge/internal/domain/block"
)

// Status is the lifecycle state of a tenant.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusInactive:
		return true
	}
	return false
}

// Settings keys holding the shared chrome blocks.
const (
	SettingNavigation = "navigation"
	SettingFooter     = "footer"
)

// Identity is the lightweight record the directory matches hosts against.
type Identity struct {
	ID           string `json:"id" yaml:"id" validate:"required"`
	Subdomain    string `json:"subdomain" yaml:"subdomain" validate:"required,hostname_rfc1123,excludes=."`
	CustomDomain string `json:"custom_domain,omitempty" yaml:"custom_domain" validate:"omitempty,hostname_port|hostname_rfc1123"`
	Status       Status `json:"status" yaml:"status" validate:"required,oneof=draft active inactive"`
}

// Tenant is a hosted site with its settings and theme.
type Tenant struct {
	Identity
	Name      string         `json:"name"`
	Theme     string         `json:"theme,omitempty"`
	Settings  map[string]any `json:"settings,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// SharedBlocks holds the tenant-level chrome blocks. Either may be nil.
type SharedBlocks struct {
	Navigation *block.Block
	Footer     *block.Block
}

// SharedBlocks extracts the navigation and footer blocks from the settings
// bag. A missing or non-object entry yields nil for that slot.
func (t *Tenant) SharedBlocks() SharedBlocks {
	var sb SharedBlocks
	if t == nil || t.Settings == nil {
		return sb
	}
	if v, ok := t.Settings[SettingNavigation].(map[string]any); ok {
		sb.Navigation = &block.Block{ID: SettingNavigation, Type: block.TypeNavigation, Content: v}
	}
	if v, ok := t.Settings[SettingFooter].(map[string]any); ok {
		sb.Footer = &block.Block{ID: SettingFooter, Type: block.TypeFooter, Content: v}
	}
	return sb
}

// Visibility decides which tenant statuses the public directory may return.
type Visibility struct {
	// DraftVisible makes draft tenants resolvable like active ones.
	DraftVisible bool
}

// Visible reports whether a tenant in status s may be resolved publicly.
// Inactive tenants are never visible.
func (v Visibility) Visible(s Status) bool {
	switch s {
	case StatusActive:
		return true
	case StatusDraft:
		return v.DraftVisible
	}
	return false
}

// Bundle is a tenant record together with the block collection the
// repository selected for it: the page named by the slug hint when Page is
// set, otherwise the tenant's home blocks. TenantIssues hold irregularities
// of the tenant record itself and concern every page of the site.
type Bundle struct {
	Tenant       *Tenant       `json:"tenant"`
	Blocks       []block.Block `json:"blocks"`
	Issues       []block.Issue `json:"issues,omitempty"`
	TenantIssues []block.Issue `json:"tenant_issues,omitempty"`
	Page         *PageRef      `json:"page,omitempty"`
}

// SettingsIssueID marks issues raised by a malformed settings bag.
const SettingsIssueID = "settings"

// DecodeSettings parses a stored settings bag. A bag that is not a JSON
// object yields nil settings and an issue; the site then renders without
// shared chrome.
func DecodeSettings(raw []byte) (map[string]any, []block.Issue) {
	if len(raw) == 0 {
		return nil, nil
	}
	var s map[string]any
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, []block.Issue{{BlockID: SettingsIssueID, Reason: "settings dropped: " + err.Error()}}
	}
	return s, nil
}

// PageRef identifies the page a slug hint resolved to.
type PageRef struct {
	ID    string `json:"id"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

// Statuses returns the statuses v allows, for store-side filtering.
func (v Visibility) Statuses() []Status {
	if v.DraftVisible {
		return []Status{StatusActive, StatusDraft}
	}
	return []Status{StatusActive}
}

// CreateRequest holds the fields required to create a tenant.
type CreateRequest struct {
	Name         string          `json:"name" yaml:"name" validate:"required"`
	Subdomain    string          `json:"subdomain" yaml:"subdomain" validate:"required,hostname_rfc1123,excludes=."`
	CustomDomain string          `json:"custom_domain,omitempty" yaml:"custom_domain" validate:"omitempty,hostname_port|hostname_rfc1123"`
	Status       Status          `json:"status" yaml:"status" validate:"omitempty,oneof=draft active inactive"`
	Theme        string          `json:"theme,omitempty" yaml:"theme"`
	Settings     map[string]any  `json:"settings,omitempty" yaml:"settings"`
	Blocks       json.RawMessage `json:"blocks,omitempty" yaml:"-"`
}
