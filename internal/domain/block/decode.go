package block

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Field names of a stored block record.
const (
	fieldID      = "id"
	fieldType    = "type"
	fieldContent = "content"
	fieldOrder   = "display_order"
)

// Decode normalizes a stored block collection into the canonical ordered
// slice. Two storage shapes are accepted:
//
//   - a flat array of block records, each carrying id/type/content/display_order;
//   - an object keyed by block id (or by type in older sites), decoded in
//     document order. A record without a type takes its key as type and a
//     record without a content field uses its remaining fields as content.
//
// Decode never fails. Unusable entries are skipped and reported as issues;
// an empty or null collection yields no blocks. The returned slice is in
// storage order; callers sort it with SortStable.
func Decode(data []byte) ([]Block, []Issue) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	var entries []entry
	var issues []Issue
	switch data[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, []Issue{{Reason: "collection is not valid JSON: " + err.Error()}}
		}
		for i, item := range items {
			fields, ok := objectFields(item)
			if !ok {
				issues = append(issues, Issue{BlockID: strconv.Itoa(i), Reason: "block record is not an object"})
				continue
			}
			entries = append(entries, entry{fields: fields, fallbackID: "block-" + strconv.Itoa(i)})
		}
	case '{':
		om := orderedmap.New[string, json.RawMessage]()
		if err := json.Unmarshal(data, om); err != nil {
			return nil, []Issue{{Reason: "collection is not valid JSON: " + err.Error()}}
		}
		for pair := om.Oldest(); pair != nil; pair = pair.Next() {
			fields, ok := objectFields(pair.Value)
			if !ok {
				issues = append(issues, Issue{BlockID: pair.Key, Reason: "block record is not an object"})
				continue
			}
			entries = append(entries, entry{fields: fields, fallbackID: pair.Key, keyed: true})
		}
	default:
		return nil, []Issue{{Reason: "collection is neither an array nor an object"}}
	}

	blocks := make([]Block, 0, len(entries))
	explicit := make([]bool, 0, len(entries))
	anyOrdered := false
	for _, e := range entries {
		b, ordered, blockIssues := e.build()
		issues = append(issues, blockIssues...)
		blocks = append(blocks, b)
		explicit = append(explicit, ordered)
		anyOrdered = anyOrdered || ordered
	}

	for i := range blocks {
		switch {
		case !anyOrdered:
			blocks[i].Order = i
		case !explicit[i]:
			blocks[i].Order = UnorderedPosition
		}
	}
	return blocks, issues
}

type entry struct {
	fields     map[string]json.RawMessage
	fallbackID string
	keyed      bool
}

func (e entry) build() (Block, bool, []Issue) {
	var issues []Issue
	b := Block{ID: stringField(e.fields[fieldID])}
	if b.ID == "" {
		b.ID = e.fallbackID
	}

	b.Type = ParseType(stringField(e.fields[fieldType]))
	if b.Type == "" && e.keyed {
		b.Type = ParseType(e.fallbackID)
	}

	raw, hasContent := e.fields[fieldContent]
	switch {
	case hasContent:
		content, ok := decodeContent(raw)
		if !ok {
			issues = append(issues, Issue{BlockID: b.ID, Type: b.Type, Reason: "content is not an object"})
		}
		b.Content = content
	case e.keyed:
		b.Content = restContent(e.fields)
	default:
		b.Content = map[string]any{}
	}

	order, ordered, valid := parseOrder(e.fields[fieldOrder])
	if !valid {
		issues = append(issues, Issue{BlockID: b.ID, Type: b.Type, Reason: "display_order is not a number"})
	}
	b.Order = order
	return b, ordered, issues
}

// objectFields decodes a JSON object into its raw fields.
func objectFields(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false
	}
	return fields, true
}

func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// decodeContent returns an empty map for null content; ok is false only when
// content is present but not an object.
func decodeContent(raw json.RawMessage) (map[string]any, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]any{}, true
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return map[string]any{}, false
	}
	return m, true
}

func restContent(fields map[string]json.RawMessage) map[string]any {
	out := make(map[string]any, len(fields))
	for k, raw := range fields {
		if k == fieldID || k == fieldType || k == fieldOrder {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			out[k] = v
		}
	}
	return out
}

// parseOrder reads display_order. Numbers and numeric strings are accepted;
// fractional values are truncated. valid is false for present but unusable
// values, which are then treated as absent.
func parseOrder(raw json.RawMessage) (order int, ordered, valid bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false, true
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
			return 0, false, false
		}
		return int(f), true, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && n <= math.MaxInt32 && n >= math.MinInt32 {
			return n, true, true
		}
	}
	return 0, false, false
}
