// Package content defines tenant-owned content entities: pages, products and posts.
package content

import (
	"encoding/json"
	"time"

	"github.com/Strob0t/SiteForge/internal/domain/block"
)

// Kind distinguishes the content entity families. Slugs are unique per
// (tenant, kind).
type Kind string

const (
	KindPage    Kind = "page"
	KindProduct Kind = "product"
	KindPost    Kind = "post"
)

// ParseKind accepts the singular or plural form used in URLs.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "page", "pages":
		return KindPage, true
	case "product", "products":
		return KindProduct, true
	case "post", "posts":
		return KindPost, true
	}
	return "", false
}

// Entity is a page, product or post with its own block collection.
type Entity struct {
	ID          string        `json:"id"`
	TenantID    string        `json:"tenant_id"`
	Kind        Kind          `json:"kind"`
	Slug        string        `json:"slug"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Image       string        `json:"image,omitempty"`
	Published   bool          `json:"is_published"`
	Blocks      []block.Block `json:"blocks"`
	Issues      []block.Issue `json:"issues,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Summary is the listing projection of an Entity (no blocks).
type Summary struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListOptions paginates GetAll.
type ListOptions struct {
	Limit  int
	Offset int
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Normalize clamps the options to supported bounds.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// SaveRequest creates or replaces an entity identified by (tenant, kind, slug).
// Blocks is stored as given, in either collection shape.
type SaveRequest struct {
	TenantID    string          `json:"tenant_id" yaml:"tenant_id"`
	Kind        Kind            `json:"kind" yaml:"kind" validate:"required,oneof=page product post"`
	Slug        string          `json:"slug" yaml:"slug" validate:"required,max=200"`
	Title       string          `json:"title" yaml:"title" validate:"required"`
	Description string          `json:"description,omitempty" yaml:"description"`
	Image       string          `json:"image,omitempty" yaml:"image"`
	Published   bool            `json:"is_published" yaml:"is_published"`
	Blocks      json.RawMessage `json:"blocks,omitempty" yaml:"-"`
}
