// Package site turns a raw request path into a validated route.
package site

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/Strob0t/SiteForge/internal/domain"
	"github.com/Strob0t/SiteForge/internal/domain/content"
)

// maxSegmentLen bounds a single path segment.
const maxSegmentLen = 200

// RouteKind classifies a parsed path.
type RouteKind int

const (
	// RouteHome is the bare domain.
	RouteHome RouteKind = iota
	// RouteEntity is /products/{slug}, /posts/{slug} or /pages/{slug}.
	RouteEntity
	// RouteCatchAll is any other path; it is probed as a page slug, then as
	// a product slug.
	RouteCatchAll
)

func (k RouteKind) String() string {
	switch k {
	case RouteHome:
		return "home"
	case RouteEntity:
		return "entity"
	case RouteCatchAll:
		return "catch_all"
	}
	return "unknown"
}

// Route is a sanitized request path.
type Route struct {
	Kind       RouteKind
	EntityKind content.Kind
	Slug       string
}

// CheckSegment validates one unescaped path segment. Segments containing
// "..", a path separator, control characters, or nothing but whitespace are
// rejected with domain.ErrNotFound.
func CheckSegment(seg string) error {
	switch {
	case strings.TrimSpace(seg) == "":
		return fmt.Errorf("empty path segment: %w", domain.ErrNotFound)
	case strings.Contains(seg, ".."):
		return fmt.Errorf("path segment %q contains '..': %w", seg, domain.ErrNotFound)
	case strings.ContainsAny(seg, `/\`):
		return fmt.Errorf("path segment %q contains a separator: %w", seg, domain.ErrNotFound)
	case len(seg) > maxSegmentLen:
		return fmt.Errorf("path segment too long: %w", domain.ErrNotFound)
	}
	for _, r := range seg {
		if unicode.IsControl(r) {
			return fmt.Errorf("path segment contains control characters: %w", domain.ErrNotFound)
		}
	}
	return nil
}

// Segments splits an escaped URL path into unescaped, validated segments.
// Redundant slashes are ignored; any invalid segment rejects the whole path.
func Segments(escapedPath string) ([]string, error) {
	var out []string
	for _, raw := range strings.Split(escapedPath, "/") {
		if raw == "" {
			continue
		}
		seg, err := url.PathUnescape(raw)
		if err != nil {
			return nil, fmt.Errorf("path segment %q: %w", raw, domain.ErrNotFound)
		}
		if err := CheckSegment(seg); err != nil {
			return nil, err
		}
		out = append(out, seg)
	}
	return out, nil
}

// ParsePath sanitizes escapedPath and classifies it.
func ParsePath(escapedPath string) (Route, error) {
	segs, err := Segments(escapedPath)
	if err != nil {
		return Route{}, err
	}
	return Classify(segs), nil
}

// Classify maps already validated segments to a Route.
func Classify(segs []string) Route {
	switch len(segs) {
	case 0:
		return Route{Kind: RouteHome}
	case 2:
		if kind, ok := content.ParseKind(segs[0]); ok && segs[0] != string(kind) {
			return Route{Kind: RouteEntity, EntityKind: kind, Slug: segs[1]}
		}
	}
	return Route{Kind: RouteCatchAll, Slug: strings.Join(segs, "/")}
}

// SplitPrefix detaches the first segment of escapedPath, for entry points
// that carry the tenant subdomain as a leading path segment. The prefix is
// unescaped and validated; rest keeps its escaping and is validated later
// by ParsePath.
func SplitPrefix(escapedPath string) (prefix, rest string, err error) {
	raw, rest, _ := strings.Cut(strings.TrimLeft(escapedPath, "/"), "/")
	prefix, err = url.PathUnescape(raw)
	if err != nil {
		return "", "", fmt.Errorf("path segment %q: %w", raw, domain.ErrNotFound)
	}
	if err := CheckSegment(prefix); err != nil {
		return "", "", err
	}
	return prefix, "/" + rest, nil
}
