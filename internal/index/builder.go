package index

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/Aman-CERP/courseindex/internal/content"
	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
	"github.com/Aman-CERP/courseindex/internal/search"
)

// DefaultUnnamedPlaceholder replaces missing display names in breadcrumbs.
const DefaultUnnamedPlaceholder = "Unnamed"

// Document is the search record of one block.
type Document struct {
	ID          string            `json:"id"`
	Course      string            `json:"course,omitempty"`
	Library     string            `json:"library,omitempty"`
	Org         string            `json:"org"`
	CourseName  string            `json:"course_name,omitempty"`
	Category    string            `json:"category"`
	Content     map[string]string `json:"content"`
	ContentType string            `json:"content_type,omitempty"`
	StartDate   *time.Time        `json:"start_date,omitempty"`
	// Location holds the names of the containing sections, outermost first.
	Location []string `json:"location"`
}

// Text joins the content values: display name first, then by key.
func (d *Document) Text() string {
	keys := make([]string, 0, len(d.Content))
	for k := range d.Content {
		if k != "display_name" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(d.Content))
	if v := d.Content["display_name"]; v != "" {
		parts = append(parts, v)
	}
	for _, k := range keys {
		if v := d.Content[k]; v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, "\n")
}

// SearchDocument converts d for the engine. scopeField names the filter
// that holds the scope id.
func (d *Document) SearchDocument(scopeField string) (search.Document, error) {
	src, err := json.Marshal(d)
	if err != nil {
		return search.Document{}, err
	}
	scope := d.Course
	if d.Library != "" {
		scope = d.Library
	}
	fields := map[string]string{
		scopeField: scope,
		"org":      d.Org,
		"category": d.Category,
	}
	if d.ContentType != "" {
		fields["content_type"] = d.ContentType
	}
	return search.Document{ID: d.ID, Fields: fields, Text: d.Text(), Source: src}, nil
}

// Builder turns a block of a tree snapshot into a Document.
type Builder struct {
	registry    *Registry
	placeholder string
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithRegistry replaces the default extractor registry.
func WithRegistry(r *Registry) BuilderOption {
	return func(b *Builder) { b.registry = r }
}

// WithUnnamedPlaceholder sets the breadcrumb name used for unnamed sections.
func WithUnnamedPlaceholder(name string) BuilderOption {
	return func(b *Builder) {
		if name != "" {
			b.placeholder = name
		}
	}
}

// NewBuilder creates a Builder with the default registry and placeholder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{registry: DefaultRegistry(), placeholder: DefaultUnnamedPlaceholder}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build creates the document for loc. An extractor failure is returned as
// one ERR_502 error naming the location.
func (b *Builder) Build(tree *content.Tree, loc content.Location) (*Document, error) {
	node, err := tree.Node(loc)
	if err != nil {
		return nil, err
	}
	ancestors, err := tree.Ancestors(loc)
	if err != nil {
		return nil, err
	}

	scope := loc.Scope
	doc := &Document{
		ID:       loc.String(),
		Org:      scope.Org,
		Category: node.Category(),
		Content:  map[string]string{},
		Location: b.breadcrumb(ancestors),
	}
	if scope.IsLibrary() {
		doc.Library = scope.String()
	} else {
		doc.Course = scope.String()
		doc.CourseName = tree.Root().DisplayName
	}

	if start := effectiveStart(node, ancestors); start != nil {
		s := start.UTC()
		doc.StartDate = &s
	}

	if node.DisplayName != "" {
		doc.Content["display_name"] = node.DisplayName
	}
	if extract, ok := b.registry.Lookup(node.Category()); ok {
		ex, err := extract(node)
		if err != nil {
			return nil, ierrors.New(ierrors.ErrCodeDocumentBuildFailed, "failed to build document", err).
				WithDetail("location", loc.String())
		}
		for k, v := range ex.Content {
			doc.Content[k] = v
		}
		doc.ContentType = ex.ContentType
	}
	return doc, nil
}

// breadcrumb lists ancestor names between the root and the node, outermost
// first. ancestors runs from the parent to the root.
func (b *Builder) breadcrumb(ancestors []*content.Node) []string {
	out := []string{}
	for i := len(ancestors) - 2; i >= 0; i-- {
		name := ancestors[i].DisplayName
		if name == "" {
			name = b.placeholder
		}
		out = append(out, name)
	}
	return out
}

// effectiveStart is the node's own start or the nearest ancestor's.
func effectiveStart(n *content.Node, ancestors []*content.Node) *time.Time {
	if n.Start != nil {
		return n.Start
	}
	for _, a := range ancestors {
		if a.Start != nil {
			return a.Start
		}
	}
	return nil
}
