package block

import (
	"testing"
)

func ids(blocks []Block) []string {
	out := make([]string, len(blocks))
	for i := range blocks {
		out[i] = blocks[i].ID
	}
	return out
}

func equalIDs(t *testing.T, got []Block, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("expected ids %v, got %v", want, g)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("expected ids %v, got %v", want, g)
		}
	}
}

func TestDecodeEmpty(t *testing.T) {
	for _, in := range []string{"", "  ", "null", "[]", "{}"} {
		blocks, issues := Decode([]byte(in))
		if len(blocks) != 0 {
			t.Errorf("Decode(%q): expected no blocks, got %d", in, len(blocks))
		}
		if len(issues) != 0 {
			t.Errorf("Decode(%q): expected no issues, got %v", in, issues)
		}
	}
}

func TestDecodeFlatArray(t *testing.T) {
	blocks, issues := Decode([]byte(`[
		{"id":"a","type":"hero","content":{"title":"Hi"},"display_order":5},
		{"id":"b","type":"Rich-Text ","content":{"html":"<p>x</p>"},"display_order":1}
	]`))
	if len(issues) != 0 {
		t.Fatalf("unexpected issues: %v", issues)
	}
	equalIDs(t, blocks, "a", "b")
	if blocks[0].Order != 5 || blocks[1].Order != 1 {
		t.Fatalf("unexpected orders: %d, %d", blocks[0].Order, blocks[1].Order)
	}
	if blocks[1].Type != TypeRichText {
		t.Fatalf("expected normalized type rich-text, got %q", blocks[1].Type)
	}
	if blocks[0].Content["title"] != "Hi" {
		t.Fatalf("expected content title Hi, got %v", blocks[0].Content["title"])
	}
}

func TestDecodeKeyedPreservesDocumentOrder(t *testing.T) {
	blocks, issues := Decode([]byte(`{
		"zeta": {"type":"hero","content":{}},
		"alpha": {"type":"faq","content":{}},
		"mid": {"type":"divider"}
	}`))
	if len(issues) != 0 {
		t.Fatalf("unexpected issues: %v", issues)
	}
	equalIDs(t, blocks, "zeta", "alpha", "mid")
	for i, b := range blocks {
		if b.Order != i {
			t.Errorf("block %s: expected positional order %d, got %d", b.ID, i, b.Order)
		}
	}
}

func TestDecodeKeyedByType(t *testing.T) {
	blocks, _ := Decode([]byte(`{
		"hero": {"title":"Welcome","subtitle":"to Acme"},
		"footer": {"copyright":"(c) Acme"}
	}`))
	equalIDs(t, blocks, "hero", "footer")
	if blocks[0].Type != TypeHero {
		t.Fatalf("expected type from key, got %q", blocks[0].Type)
	}
	if blocks[0].Content["title"] != "Welcome" || blocks[0].Content["subtitle"] != "to Acme" {
		t.Fatalf("expected remaining fields as content, got %v", blocks[0].Content)
	}
	if blocks[1].Type != TypeFooter {
		t.Fatalf("expected footer type, got %q", blocks[1].Type)
	}
}

func TestDecodeKeyedValueIDWins(t *testing.T) {
	blocks, _ := Decode([]byte(`{"k1": {"id":"explicit","type":"hero"}}`))
	equalIDs(t, blocks, "explicit")
}

func TestDecodeMixedOrdering(t *testing.T) {
	blocks, _ := Decode([]byte(`[
		{"id":"a","type":"hero"},
		{"id":"b","type":"faq","display_order":2},
		{"id":"c","type":"divider"}
	]`))
	if blocks[0].Order != UnorderedPosition || blocks[2].Order != UnorderedPosition {
		t.Fatalf("expected unordered sentinel, got %d and %d", blocks[0].Order, blocks[2].Order)
	}
	SortStable(blocks)
	equalIDs(t, blocks, "b", "a", "c")
}

func TestDecodeNumericStringOrder(t *testing.T) {
	blocks, issues := Decode([]byte(`[{"id":"a","type":"hero","display_order":"3"},{"id":"b","type":"hero","display_order":1.7}]`))
	if len(issues) != 0 {
		t.Fatalf("unexpected issues: %v", issues)
	}
	if blocks[0].Order != 3 || blocks[1].Order != 1 {
		t.Fatalf("unexpected orders %d %d", blocks[0].Order, blocks[1].Order)
	}
}

func TestDecodeMalformedDegrades(t *testing.T) {
	blocks, issues := Decode([]byte(`[
		"not a block",
		{"id":"a","type":"hero","content":"oops","display_order":{"x":1}},
		{"type":"faq","content":null}
	]`))
	equalIDs(t, blocks, "a", "block-2")
	if blocks[0].Content == nil || len(blocks[0].Content) != 0 {
		t.Fatalf("expected empty content default, got %v", blocks[0].Content)
	}
	if blocks[1].Content == nil {
		t.Fatal("expected non-nil content for null")
	}
	if len(issues) != 3 {
		t.Fatalf("expected 3 issues, got %d: %v", len(issues), issues)
	}
}

func TestDecodeInvalidJSON(t *testing.T) {
	blocks, issues := Decode([]byte(`[{"id":`))
	if blocks != nil {
		t.Fatalf("expected nil blocks, got %v", blocks)
	}
	if len(issues) != 1 {
		t.Fatalf("expected one issue, got %v", issues)
	}

	blocks, issues = Decode([]byte(`"scalar"`))
	if blocks != nil || len(issues) != 1 {
		t.Fatalf("expected scalar collection to be rejected, got %v %v", blocks, issues)
	}
}

func TestTypeAllowList(t *testing.T) {
	tests := []struct {
		in    string
		known bool
	}{
		{"hero", true},
		{" NAVIGATION", true},
		{"product-hero", true},
		{"listing-views", true},
		{"marquee", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseType(tt.in).Known(); got != tt.known {
				t.Errorf("Known(%q) = %v, want %v", tt.in, got, tt.known)
			}
		})
	}
	if !TypeFooter.Shared() || TypeHero.Shared() {
		t.Fatal("unexpected Shared result")
	}
	if len(Types()) != len(known) {
		t.Fatalf("Types() returned %d entries, want %d", len(Types()), len(known))
	}
}

func TestSortStableTies(t *testing.T) {
	blocks := []Block{{ID: "a", Order: 1}, {ID: "b", Order: 1}, {ID: "c", Order: 0}}
	SortStable(blocks)
	equalIDs(t, blocks, "c", "a", "b")
}
