// Package search is the client side of the search engine: a small document
// model, the Engine interface the indexers write through, and the bleve and
// SQLite FTS5 backends behind it.
package search

import (
	"context"
	"encoding/json"

	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
)

// Backend names an engine implementation.
type Backend string

const (
	// BackendBleve stores each index as a bleve directory (single process).
	BackendBleve Backend = "bleve"
	// BackendSQLite stores each index as an SQLite FTS5 database (WAL).
	BackendSQLite Backend = "sqlite"
	// BackendNone disables indexing.
	BackendNone Backend = "none"
)

// DefaultPageSize is used when a query does not set Size.
const DefaultPageSize = 20

// ErrDisabled is returned when no search engine is configured.
var ErrDisabled = ierrors.New(ierrors.ErrCodeEngineDisabled, "search engine disabled", nil)

// Document is one indexed unit.
type Document struct {
	// ID is unique within a doc type.
	ID string
	// Fields are exact-match filter values (course, org, content_type...).
	Fields map[string]string
	// Text is the free-text body matched by Query.Text.
	Text string
	// Source is the JSON returned verbatim in results.
	Source json.RawMessage
}

// Query selects documents. All constraints must hold.
type Query struct {
	// Text matches documents containing every term.
	Text string
	// Fields are exact-match filters.
	Fields map[string]string
	// DocType restricts results to one doc type. Empty searches all types.
	DocType string
	From    int
	// Size defaults to DefaultPageSize.
	Size int
}

func (q Query) size() int {
	if q.Size <= 0 {
		return DefaultPageSize
	}
	return q.Size
}

// Result is one hit.
type Result struct {
	ID    string          `json:"id"`
	Score float64         `json:"score"`
	Data  json.RawMessage `json:"data"`
}

// Response is a page of hits plus the total match count.
type Response struct {
	Total   int      `json:"total"`
	Results []Result `json:"results"`
}

// IDs returns the ids of the page.
func (r *Response) IDs() []string {
	ids := make([]string, len(r.Results))
	for i, res := range r.Results {
		ids[i] = res.ID
	}
	return ids
}

// Engine is a search index that documents are written to and queried from.
type Engine interface {
	// Index upserts docs under docType.
	Index(ctx context.Context, docType string, docs ...Document) error
	// Remove deletes ids under docType. Unknown ids are ignored.
	Remove(ctx context.Context, docType string, ids ...string) error
	Search(ctx context.Context, q Query) (*Response, error)
	// Count returns the number of documents of docType (all types when empty).
	Count(ctx context.Context, docType string) (int, error)
	Close() error
}

// Batcher is implemented by engines that apply upserts and removals
// atomically.
type Batcher interface {
	Apply(ctx context.Context, docType string, upserts []Document, removals []string) error
}

// AllIDs pages through every id matching fields under docType.
func AllIDs(ctx context.Context, e Engine, docType string, fields map[string]string, pageSize int) ([]string, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	var ids []string
	for from := 0; ; from += pageSize {
		resp, err := e.Search(ctx, Query{DocType: docType, Fields: fields, From: from, Size: pageSize})
		if err != nil {
			return nil, err
		}
		ids = append(ids, resp.IDs()...)
		if len(resp.Results) < pageSize || from+pageSize >= resp.Total {
			return ids, nil
		}
	}
}
