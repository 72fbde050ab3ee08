package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

// TextAnalyzerName is the analyzer applied to document text.
const TextAnalyzerName = "courseware_text"

const (
	fieldDocType = "doc_type"
	fieldText    = "text"
	fieldSource  = "source"
	fieldFilter  = "filter"

	keySep = "\x00"
)

// BleveEngine is an Engine backed by a bleve index.
type BleveEngine struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

var (
	_ Engine  = (*BleveEngine)(nil)
	_ Batcher = (*BleveEngine)(nil)
)

// validateBleveIntegrity checks index_meta.json of an existing index.
// A missing directory is valid: it will be created.
func validateBleveIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment") ||
		strings.Contains(msg, "error opening bolt") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// NewBleveEngine opens or creates a bleve index at path. An empty path
// creates an in-memory index. A corrupted index is cleared and recreated;
// the next full reindex repopulates it.
func NewBleveEngine(path string) (*BleveEngine, error) {
	indexMapping, err := newIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
		}

		if validErr := validateBleveIntegrity(path); validErr != nil {
			slog.Warn("bleve_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isCorruptionError(err) {
			slog.Warn("bleve_index_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("index corrupted, cannot clear: %w (original: %v)", removeErr, err)
			}
			slog.Info("bleve_index_cleared",
				slog.String("path", path),
				slog.String("reason", "open failed with corruption, run a full reindex"))
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &BleveEngine{index: idx, path: path}, nil
}

// newIndexMapping maps doc_type as a keyword, text through the custom
// analyzer, source as stored-only, and every filter.* value as a keyword.
func newIndexMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer(TextAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	doc := bleve.NewDocumentMapping()

	docType := bleve.NewKeywordFieldMapping()
	docType.IncludeInAll = false
	doc.AddFieldMappingsAt(fieldDocType, docType)

	text := bleve.NewTextFieldMapping()
	text.Analyzer = TextAnalyzerName
	text.Store = false
	doc.AddFieldMappingsAt(fieldText, text)

	source := bleve.NewTextFieldMapping()
	source.Index = false
	source.Store = true
	source.IncludeInAll = false
	source.IncludeTermVectors = false
	source.DocValues = false
	doc.AddFieldMappingsAt(fieldSource, source)

	filter := bleve.NewDocumentMapping()
	filter.DefaultAnalyzer = keyword.Name
	doc.AddSubDocumentMapping(fieldFilter, filter)

	im.DefaultMapping = doc
	im.StoreDynamic = false
	im.DocValuesDynamic = false
	return im, nil
}

func bleveKey(docType, id string) string {
	return docType + keySep + id
}

func splitBleveKey(key string) string {
	if _, id, ok := strings.Cut(key, keySep); ok {
		return id
	}
	return key
}

func bleveBody(docType string, d Document) map[string]interface{} {
	filter := make(map[string]interface{}, len(d.Fields))
	for k, v := range d.Fields {
		filter[k] = v
	}
	return map[string]interface{}{
		fieldDocType: docType,
		fieldText:    d.Text,
		fieldSource:  string(d.Source),
		fieldFilter:  filter,
	}
}

// Index implements Engine.
func (b *BleveEngine) Index(ctx context.Context, docType string, docs ...Document) error {
	return b.Apply(ctx, docType, docs, nil)
}

// Remove implements Engine.
func (b *BleveEngine) Remove(ctx context.Context, docType string, ids ...string) error {
	return b.Apply(ctx, docType, nil, ids)
}

// Apply writes upserts and removals in one bleve batch.
func (b *BleveEngine) Apply(ctx context.Context, docType string, upserts []Document, removals []string) error {
	if len(upserts) == 0 && len(removals) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, d := range upserts {
		if err := batch.Index(bleveKey(docType, d.ID), bleveBody(docType, d)); err != nil {
			return fmt.Errorf("failed to index document %s: %w", d.ID, err)
		}
	}
	for _, id := range removals {
		batch.Delete(bleveKey(docType, id))
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Search implements Engine. Text terms are ANDed. Filter-only queries are
// ordered by id so paging is stable.
func (b *BleveEngine) Search(ctx context.Context, q Query) (*Response, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}

	req := bleve.NewSearchRequestOptions(buildBleveQuery(q), q.size(), q.From, false)
	req.Fields = []string{fieldSource}
	if strings.TrimSpace(q.Text) == "" {
		req.SortBy([]string{"_id"})
	} else {
		req.SortBy([]string{"-_score", "_id"})
	}

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	resp := &Response{Total: int(result.Total), Results: make([]Result, 0, len(result.Hits))}
	for _, hit := range result.Hits {
		r := Result{ID: splitBleveKey(hit.ID), Score: hit.Score}
		if src, ok := hit.Fields[fieldSource].(string); ok && src != "" {
			r.Data = json.RawMessage(src)
		}
		resp.Results = append(resp.Results, r)
	}
	return resp, nil
}

func buildBleveQuery(q Query) query.Query {
	var must []query.Query
	if q.DocType != "" {
		tq := bleve.NewTermQuery(q.DocType)
		tq.SetField(fieldDocType)
		must = append(must, tq)
	}
	for name, value := range q.Fields {
		tq := bleve.NewTermQuery(value)
		tq.SetField(fieldFilter + "." + name)
		must = append(must, tq)
	}
	if text := strings.TrimSpace(q.Text); text != "" {
		mq := bleve.NewMatchQuery(text)
		mq.SetField(fieldText)
		mq.SetOperator(query.MatchQueryOperatorAnd)
		must = append(must, mq)
	}

	if len(must) == 0 {
		return bleve.NewMatchAllQuery()
	}
	return bleve.NewConjunctionQuery(must...)
}

// Count implements Engine.
func (b *BleveEngine) Count(ctx context.Context, docType string) (int, error) {
	if docType == "" {
		b.mu.RLock()
		defer b.mu.RUnlock()
		if b.closed {
			return 0, fmt.Errorf("index is closed")
		}
		n, err := b.index.DocCount()
		return int(n), err
	}
	resp, err := b.Search(ctx, Query{DocType: docType, Size: 1})
	if err != nil {
		return 0, err
	}
	return resp.Total, nil
}

// Close implements Engine. It is idempotent.
func (b *BleveEngine) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}
