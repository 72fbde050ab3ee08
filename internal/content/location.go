// Package content models the versioned, hierarchical content tree that the
// indexer reads: scope keys, block locations, nodes and immutable tree
// snapshots, plus an in-memory store with draft/publish semantics.
package content

import (
	"fmt"
	"strings"

	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
)

// ScopeKind distinguishes courses from libraries.
type ScopeKind string

const (
	KindCourse  ScopeKind = "course"
	KindLibrary ScopeKind = "library"
)

const (
	coursePrefix      = "course-v1:"
	libraryPrefix     = "library-v1:"
	courseBlockPrefix = "block-v1:"
	libBlockPrefix    = "lib-block-v1:"
)

// ScopeKey identifies a course (Org+Code+Run) or a library (Org+Code).
type ScopeKey struct {
	Kind ScopeKind
	Org  string
	Code string
	Run  string
}

// CourseKey builds a course scope key.
func CourseKey(org, code, run string) ScopeKey {
	return ScopeKey{Kind: KindCourse, Org: org, Code: code, Run: run}
}

// LibraryKey builds a library scope key.
func LibraryKey(org, code string) ScopeKey {
	return ScopeKey{Kind: KindLibrary, Org: org, Code: code}
}

// String returns the normalized key, e.g. "course-v1:Org+Code+Run".
func (k ScopeKey) String() string {
	if k.Kind == KindLibrary {
		return libraryPrefix + k.Org + "+" + k.Code
	}
	return coursePrefix + k.Org + "+" + k.Code + "+" + k.Run
}

// IsLibrary reports whether the key names a library.
func (k ScopeKey) IsLibrary() bool { return k.Kind == KindLibrary }

// RootCategory is the category of the scope's root block.
func (k ScopeKey) RootCategory() string {
	if k.IsLibrary() {
		return "library"
	}
	return "course"
}

// Root returns the location of the scope's root block.
func (k ScopeKey) Root() Location {
	return Location{Scope: k, Category: k.RootCategory(), Block: k.RootCategory()}
}

// ParseScopeKey parses a course or library key. Version and branch
// qualifiers ("+branch@draft", "+version@abc") are dropped.
func ParseScopeKey(s string) (ScopeKey, error) {
	var (
		kind ScopeKind
		body string
	)
	switch {
	case strings.HasPrefix(s, coursePrefix):
		kind, body = KindCourse, strings.TrimPrefix(s, coursePrefix)
	case strings.HasPrefix(s, libraryPrefix):
		kind, body = KindLibrary, strings.TrimPrefix(s, libraryPrefix)
	default:
		return ScopeKey{}, invalidKey(s, "unknown prefix")
	}

	parts, _ := splitQualified(body)
	return scopeFromParts(s, kind, parts)
}

func scopeFromParts(raw string, kind ScopeKind, parts []string) (ScopeKey, error) {
	want := 3
	if kind == KindLibrary {
		want = 2
	}
	if len(parts) != want {
		return ScopeKey{}, invalidKey(raw, fmt.Sprintf("expected %d key parts, got %d", want, len(parts)))
	}
	for _, p := range parts {
		if p == "" {
			return ScopeKey{}, invalidKey(raw, "empty key part")
		}
	}

	key := ScopeKey{Kind: kind, Org: parts[0], Code: parts[1]}
	if kind == KindCourse {
		key.Run = parts[2]
	}
	return key, nil
}

// splitQualified splits "A+B+C+branch@x+type@html" into plain parts and
// name@value qualifiers.
func splitQualified(body string) ([]string, map[string]string) {
	var parts []string
	qualifiers := make(map[string]string)
	for _, p := range strings.Split(body, "+") {
		if name, value, ok := strings.Cut(p, "@"); ok {
			qualifiers[name] = value
			continue
		}
		parts = append(parts, p)
	}
	return parts, qualifiers
}

// Location addresses one block inside a scope.
type Location struct {
	Scope    ScopeKey
	Category string
	Block    string
}

// NewLocation builds a location in scope.
func NewLocation(scope ScopeKey, category, block string) Location {
	return Location{Scope: scope, Category: category, Block: block}
}

// String returns the usage key, e.g.
// "block-v1:Org+Code+Run+type@html+block@intro". It doubles as document id.
func (l Location) String() string {
	k := l.Scope
	if k.IsLibrary() {
		return libBlockPrefix + k.Org + "+" + k.Code + "+type@" + l.Category + "+block@" + l.Block
	}
	return courseBlockPrefix + k.Org + "+" + k.Code + "+" + k.Run + "+type@" + l.Category + "+block@" + l.Block
}

// IsZero reports whether l is the zero Location.
func (l Location) IsZero() bool { return l == Location{} }

// ParseLocation parses a usage key produced by Location.String. Version and
// branch qualifiers are dropped.
func ParseLocation(s string) (Location, error) {
	var (
		kind ScopeKind
		body string
	)
	switch {
	case strings.HasPrefix(s, courseBlockPrefix):
		kind, body = KindCourse, strings.TrimPrefix(s, courseBlockPrefix)
	case strings.HasPrefix(s, libBlockPrefix):
		kind, body = KindLibrary, strings.TrimPrefix(s, libBlockPrefix)
	default:
		return Location{}, invalidLocation(s, "unknown prefix")
	}

	parts, qualifiers := splitQualified(body)
	scope, err := scopeFromParts(s, kind, parts)
	if err != nil {
		return Location{}, invalidLocation(s, err.Error())
	}
	category, block := qualifiers["type"], qualifiers["block"]
	if category == "" || block == "" {
		return Location{}, invalidLocation(s, "missing type or block")
	}
	return Location{Scope: scope, Category: category, Block: block}, nil
}

func invalidKey(s, reason string) error {
	return ierrors.New(ierrors.ErrCodeInvalidInput, fmt.Sprintf("invalid scope key %q: %s", s, reason), nil)
}

func invalidLocation(s, reason string) error {
	return ierrors.New(ierrors.ErrCodeInvalidLocation, fmt.Sprintf("invalid location %q: %s", s, reason), nil)
}
