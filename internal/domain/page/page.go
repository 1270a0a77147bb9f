package page

import (
	"github.com/Strob0t/SiteForge/internal/domain/block"
	"github.com/Strob0t/SiteForge/internal/domain/content"
	"github.com/Strob0t/SiteForge/internal/domain/tenant"
)

// Ref names the content entity a page was built from.
type Ref struct {
	Kind  content.Kind `json:"kind"`
	Slug  string       `json:"slug"`
	Title string       `json:"title,omitempty"`
}

// ResolvedPage is the composer output: chrome and body addressable
// separately, plus the owning tenant for cross-cutting context.
type ResolvedPage struct {
	Tenant      *tenant.Tenant `json:"tenant"`
	Entity      *Ref           `json:"entity,omitempty"`
	Navigation  *block.Block   `json:"navigation,omitempty"`
	Body        []block.Block  `json:"body"`
	Footer      *block.Block   `json:"footer,omitempty"`
	Synthesized bool           `json:"synthesized,omitempty"`
}

// Blocks returns the full render sequence: navigation, body, footer.
func (p *ResolvedPage) Blocks() []block.Block {
	out := make([]block.Block, 0, len(p.Body)+2)
	if p.Navigation != nil {
		out = append(out, *p.Navigation)
	}
	out = append(out, p.Body...)
	if p.Footer != nil {
		out = append(out, *p.Footer)
	}
	return out
}

// Empty reports whether the page has nothing to render.
func (p *ResolvedPage) Empty() bool {
	return p.Navigation == nil && p.Footer == nil && len(p.Body) == 0
}
