// Package block defines the polymorphic content block model and the
// canonical decoding of stored block collections.
package block

import (
	"cmp"
	"math"
	"slices"
	"strings"
)

// Type is the tag selecting a block's rendering contract.
type Type string

const (
	TypeNavigation   Type = "navigation"
	TypeFooter       Type = "footer"
	TypeHero         Type = "hero"
	TypeRichText     Type = "rich-text"
	TypeFAQ          Type = "faq"
	TypeProductHero  Type = "product-hero"
	TypeDivider      Type = "divider"
	TypeListingViews Type = "listing-views"
	TypeImage        Type = "image"
	TypeGallery      Type = "gallery"
	TypeCallToAction Type = "call-to-action"
	TypeTestimonials Type = "testimonials"
	TypeContactForm  Type = "contact-form"
	TypeProductGrid  Type = "product-grid"
	TypePostList     Type = "post-list"
)

// known is the allow-list of render-capable block types.
var known = map[Type]struct{}{
	TypeNavigation:   {},
	TypeFooter:       {},
	TypeHero:         {},
	TypeRichText:     {},
	TypeFAQ:          {},
	TypeProductHero:  {},
	TypeDivider:      {},
	TypeListingViews: {},
	TypeImage:        {},
	TypeGallery:      {},
	TypeCallToAction: {},
	TypeTestimonials: {},
	TypeContactForm:  {},
	TypeProductGrid:  {},
	TypePostList:     {},
}

// Known reports whether t is in the render-capable allow-list.
func (t Type) Known() bool {
	_, ok := known[t]
	return ok
}

// Shared reports whether t is page chrome sourced from tenant settings.
func (t Type) Shared() bool {
	return t == TypeNavigation || t == TypeFooter
}

// Types returns the allow-list in lexical order.
func Types() []Type {
	out := make([]Type, 0, len(known))
	for t := range known {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// ParseType normalizes a stored type tag. The result may still be unknown.
func ParseType(s string) Type {
	return Type(strings.ToLower(strings.TrimSpace(s)))
}

// UnorderedPosition is the order given to blocks without an explicit
// display_order when at least one sibling carries one.
const UnorderedPosition = math.MaxInt32

// Sentinel orders of the page chrome. They lie outside the range any stored
// display_order can take, so navigation always sorts first and footer last.
const (
	NavigationOrder = math.MinInt
	FooterOrder     = math.MaxInt
)

// Block is a typed unit of page content.
type Block struct {
	ID      string         `json:"id"`
	Type    Type           `json:"type"`
	Content map[string]any `json:"content"`
	Order   int            `json:"display_order"`
}

// ContentOrEmpty returns the block content, never nil.
func (b *Block) ContentOrEmpty() map[string]any {
	if b.Content == nil {
		return map[string]any{}
	}
	return b.Content
}

// SortStable orders blocks by ascending Order, keeping the input order of
// blocks that share a value.
func SortStable(blocks []Block) {
	slices.SortStableFunc(blocks, func(a, b Block) int {
		return cmp.Compare(a.Order, b.Order)
	})
}

// Issue describes a data irregularity found while decoding or composing.
// Issues are diagnostics, never errors.
type Issue struct {
	BlockID string `json:"block_id,omitempty"`
	Type    Type   `json:"type,omitempty"`
	Reason  string `json:"reason"`
}
