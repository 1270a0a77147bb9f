// Package page composes a tenant's shared chrome and a content entity's
// blocks into the ordered structure handed to a renderer.
package page

import (
	"github.com/Strob0t/SiteForge/internal/domain/block"
	"github.com/Strob0t/SiteForge/internal/domain/content"
	"github.com/Strob0t/SiteForge/internal/domain/tenant"
)

// Observer receives composition diagnostics. Diagnostics never fail a page.
type Observer interface {
	// UnknownBlock is called for each block dropped because its type is not
	// in the allow-list.
	UnknownBlock(tenantID string, b *block.Block)
	// MalformedBlock is called for each data irregularity that was absorbed.
	MalformedBlock(tenantID string, issue block.Issue)
}

// NopObserver discards diagnostics.
type NopObserver struct{}

func (NopObserver) UnknownBlock(string, *block.Block)  {}
func (NopObserver) MalformedBlock(string, block.Issue) {}

// Input is one composition request.
type Input struct {
	// Tenant owning the page. Required.
	Tenant *tenant.Tenant
	// Entity is the page, product or post being rendered; nil for the tenant
	// home. When set, its Blocks are used and its Issues reported.
	Entity *content.Entity
	// Blocks of the tenant home, used when Entity is nil.
	Blocks []block.Block
	// Issues found while loading, reported for every page: the tenant
	// record's own and, for the home, those of its blocks.
	Issues []block.Issue
}

// Composer merges entity blocks with tenant chrome. It is stateless and
// safe for concurrent use.
type Composer struct {
	observer Observer
}

// NewComposer returns a Composer reporting to obs (nil discards).
func NewComposer(obs Observer) *Composer {
	if obs == nil {
		obs = NopObserver{}
	}
	return &Composer{observer: obs}
}

// Compose builds the ResolvedPage. It never fails for data irregularities;
// it panics only when in.Tenant is nil, which is a caller defect.
func (c *Composer) Compose(in Input) *ResolvedPage {
	if in.Tenant == nil {
		panic("page: Compose called without a tenant")
	}
	tenantID := in.Tenant.ID

	own := in.Blocks
	issues := in.Issues
	if in.Entity != nil {
		own = in.Entity.Blocks
		issues = append(issues[:len(issues):len(issues)], in.Entity.Issues...)
	}
	for _, is := range issues {
		c.observer.MalformedBlock(tenantID, is)
	}

	blocks := make([]block.Block, 0, len(own))
	for i := range own {
		b := own[i]
		if !b.Type.Known() {
			c.observer.UnknownBlock(tenantID, &b)
			continue
		}
		b.Content = b.ContentOrEmpty()
		blocks = append(blocks, b)
	}
	block.SortStable(blocks)

	p := &ResolvedPage{Tenant: in.Tenant, Body: make([]block.Block, 0, len(blocks))}
	if in.Entity != nil {
		p.Entity = &Ref{Kind: in.Entity.Kind, Slug: in.Entity.Slug, Title: in.Entity.Title}
	}

	for i := range blocks {
		b := blocks[i]
		switch b.Type {
		case block.TypeNavigation:
			if p.Navigation != nil {
				c.observer.MalformedBlock(tenantID, block.Issue{BlockID: b.ID, Type: b.Type, Reason: "duplicate navigation block dropped"})
				continue
			}
			p.Navigation = chrome(&b, block.NavigationOrder)
		case block.TypeFooter:
			if p.Footer != nil {
				c.observer.MalformedBlock(tenantID, block.Issue{BlockID: b.ID, Type: b.Type, Reason: "duplicate footer block dropped"})
				continue
			}
			p.Footer = chrome(&b, block.FooterOrder)
		default:
			p.Body = append(p.Body, b)
		}
	}

	// Entity-embedded chrome wins over the tenant-level copy.
	shared := in.Tenant.SharedBlocks()
	if p.Navigation == nil && shared.Navigation != nil {
		p.Navigation = chrome(shared.Navigation, block.NavigationOrder)
	}
	if p.Footer == nil && shared.Footer != nil {
		p.Footer = chrome(shared.Footer, block.FooterOrder)
	}

	if len(p.Body) == 0 && in.Entity != nil {
		if fb, ok := fallbackBlock(in.Entity); ok {
			p.Body = append(p.Body, fb)
			p.Synthesized = true
		}
	}
	return p
}

func chrome(b *block.Block, order int) *block.Block {
	out := *b
	out.Content = out.ContentOrEmpty()
	out.Order = order
	return &out
}

// FallbackBlockID identifies the block synthesized for empty products and posts.
const FallbackBlockID = "fallback-hero"

// fallbackBlock builds a minimal hero from the entity's own fields so a
// product or post page is never blank. Pages get no fallback.
func fallbackBlock(e *content.Entity) (block.Block, bool) {
	var t block.Type
	switch e.Kind {
	case content.KindProduct:
		t = block.TypeProductHero
	case content.KindPost:
		t = block.TypeHero
	default:
		return block.Block{}, false
	}
	c := map[string]any{"title": e.Title}
	if e.Description != "" {
		c["description"] = e.Description
	}
	if e.Image != "" {
		c["image"] = e.Image
	}
	return block.Block{ID: FallbackBlockID, Type: t, Content: c, Order: 0}, true
}
