package index

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/courseindex/internal/content"
	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
	"github.com/Aman-CERP/courseindex/internal/search"
)

// Index names and document types.
const (
	CoursewareIndexName = "courseware_index"
	CoursewareDocType   = "courseware_content"
	LibraryIndexName    = "library_index"
	LibraryDocType      = "library_content"
)

// Mode is the kind of reindex pass.
type Mode string

const (
	// ModeFull rewrites every eligible document.
	ModeFull Mode = "full"
	// ModeIncremental rewrites only documents affected by edits since a time.
	ModeIncremental Mode = "incremental"
)

// Outcome labels reported to the Recorder.
const (
	OutcomeSuccess  = "success"
	OutcomeDisabled = "disabled"
	OutcomeError    = "error"
)

// Scope is one reindex request. A zero Since means a full reindex.
type Scope struct {
	Key   content.ScopeKey
	Since time.Time
}

// Mode returns the pass kind implied by Since.
func (s Scope) Mode() Mode {
	if s.Since.IsZero() {
		return ModeFull
	}
	return ModeIncremental
}

// EngineSource resolves an index name to an engine. *search.Manager
// implements it.
type EngineSource interface {
	Engine(name string) (search.Engine, error)
}

// Recorder receives one observation per reindex pass.
type Recorder interface {
	ObserveReindex(index string, mode Mode, outcome string, indexed, removed int, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveReindex(string, Mode, string, int, int, time.Duration) {}

// Config describes one family of documents.
type Config struct {
	IndexName string
	DocType   string
	// ScopeField is the filter holding the course or library id.
	ScopeField string
	Kind       content.ScopeKind
	// PageSize is used when listing the ids an engine holds for a scope.
	PageSize int
}

// CoursewareConfig indexes the published branch of courses.
var CoursewareConfig = Config{
	IndexName:  CoursewareIndexName,
	DocType:    CoursewareDocType,
	ScopeField: "course",
	Kind:       content.KindCourse,
	PageSize:   500,
}

// LibraryConfig indexes the current branch of libraries.
var LibraryConfig = Config{
	IndexName:  LibraryIndexName,
	DocType:    LibraryDocType,
	ScopeField: "library",
	Kind:       content.KindLibrary,
	PageSize:   500,
}

// Deps are the collaborators of an Indexer. Content and Engines are
// required.
type Deps struct {
	Content    content.Accessor
	Engines    EngineSource
	Classifier *Classifier
	Builder    *Builder
	Recorder   Recorder
	// About, when set, refreshes the discovery document after every course
	// pass.
	About *AboutIndexer
}

// Result describes a finished pass.
type Result struct {
	Scope    string        `json:"scope"`
	Mode     Mode          `json:"mode"`
	Indexed  int           `json:"indexed"`
	Removed  int           `json:"removed"`
	Skipped  int           `json:"skipped"`
	Disabled bool          `json:"disabled,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Indexer keeps one index in sync with a content scope.
type Indexer struct {
	cfg        Config
	content    content.Accessor
	engines    EngineSource
	classifier *Classifier
	builder    *Builder
	recorder   Recorder
	about      *AboutIndexer
}

// NewIndexer creates an Indexer for cfg.
func NewIndexer(cfg Config, deps Deps) *Indexer {
	if cfg.PageSize <= 0 {
		cfg.PageSize = search.DefaultPageSize
	}
	ix := &Indexer{
		cfg:        cfg,
		content:    deps.Content,
		engines:    deps.Engines,
		classifier: deps.Classifier,
		builder:    deps.Builder,
		recorder:   deps.Recorder,
		about:      deps.About,
	}
	if ix.classifier == nil {
		ix.classifier = DefaultClassifier()
	}
	if ix.builder == nil {
		ix.builder = NewBuilder()
	}
	if ix.recorder == nil {
		ix.recorder = nopRecorder{}
	}
	return ix
}

// NewCoursewareIndexer creates the course content indexer.
func NewCoursewareIndexer(deps Deps) *Indexer {
	return NewIndexer(CoursewareConfig, deps)
}

// NewLibraryIndexer creates the library content indexer. Libraries have no
// discovery document.
func NewLibraryIndexer(deps Deps) *Indexer {
	deps.About = nil
	return NewIndexer(LibraryConfig, deps)
}

// Config returns the indexer's configuration.
func (ix *Indexer) Config() Config { return ix.cfg }

// Reindex runs a pass and returns the number of documents written. A
// disabled engine yields 0 and no error.
func (ix *Indexer) Reindex(ctx context.Context, scope Scope) (int, error) {
	res, err := ix.Run(ctx, scope)
	if err != nil {
		return 0, err
	}
	return res.Indexed, nil
}

// Run performs one pass over scope:
//
//  1. snapshot the tree on the scope's branch;
//  2. walk the root's descendants, collecting every indexable id and
//     building documents for the blocks the pass must rewrite;
//  3. list the ids the engine holds for the scope and mark the ones no
//     longer eligible as stale;
//  4. write upserts and removals, as one batch when the engine supports it.
//
// Documents are all built before the first write, so a build failure leaves
// the index untouched. A failed write aborts the pass with a
// SearchIndexingError.
func (ix *Indexer) Run(ctx context.Context, scope Scope) (*Result, error) {
	start := time.Now()
	mode := scope.Mode()
	res := &Result{Scope: scope.Key.String(), Mode: mode}

	if scope.Key.Kind != ix.cfg.Kind {
		return nil, ierrors.New(ierrors.ErrCodeUnknownScope,
			fmt.Sprintf("%s cannot index %s", ix.cfg.IndexName, scope.Key), nil)
	}

	engine, err := ix.engines.Engine(ix.cfg.IndexName)
	if err != nil {
		if stderrors.Is(err, search.ErrDisabled) {
			res.Disabled = true
			ix.recorder.ObserveReindex(ix.cfg.IndexName, mode, OutcomeDisabled, 0, 0, time.Since(start))
			return res, nil
		}
		return ix.fail(res, start, ierrors.SearchIndexingError(res.Scope, err))
	}

	tree, err := ix.content.Tree(ctx, scope.Key, content.BranchFor(scope.Key))
	if err != nil {
		return ix.fail(res, start, err)
	}

	plan, err := ix.plan(tree, scope.Since)
	if err != nil {
		return ix.fail(res, start, err)
	}
	res.Skipped = plan.skipped

	held, err := ix.heldIDs(ctx, engine, res.Scope)
	if err != nil {
		return ix.fail(res, start, ierrors.SearchIndexingError(res.Scope, err))
	}
	var stale []string
	for _, id := range held {
		if _, ok := plan.eligible[id]; !ok {
			stale = append(stale, id)
		}
	}

	if err := ix.write(ctx, engine, plan.docs, stale); err != nil {
		return ix.fail(res, start, ierrors.SearchIndexingError(res.Scope, err))
	}
	res.Indexed = len(plan.docs)
	res.Removed = len(stale)

	if ix.about != nil && !scope.Key.IsLibrary() {
		if _, err := ix.about.Reindex(ctx, scope.Key); err != nil {
			res.Indexed, res.Removed = 0, 0
			return ix.fail(res, start, err)
		}
	}

	res.Duration = time.Since(start)
	ix.recorder.ObserveReindex(ix.cfg.IndexName, mode, OutcomeSuccess, res.Indexed, res.Removed, res.Duration)
	slog.Info("reindex_complete",
		slog.String("index", ix.cfg.IndexName),
		slog.String("scope", res.Scope),
		slog.String("mode", string(mode)),
		slog.Int("indexed", res.Indexed),
		slog.Int("removed", res.Removed),
		slog.Int("skipped", res.Skipped),
		slog.Duration("duration", res.Duration))
	return res, nil
}

func (ix *Indexer) fail(res *Result, start time.Time, err error) (*Result, error) {
	res.Duration = time.Since(start)
	ix.recorder.ObserveReindex(ix.cfg.IndexName, res.Mode, OutcomeError, 0, 0, res.Duration)
	slog.Error("reindex_failed",
		slog.String("index", ix.cfg.IndexName),
		slog.String("scope", res.Scope),
		slog.String("mode", string(res.Mode)),
		slog.String("error", err.Error()))
	return res, err
}

type plan struct {
	eligible map[string]struct{}
	docs     []search.Document
	skipped  int
}

// plan walks the tree. Children of the root are always rewritten. A deeper
// block is rewritten when its parent's subtree was edited at or after since,
// or when any ancestor was itself edited then, since inherited fields may
// have changed. A zero since rewrites everything.
func (ix *Indexer) plan(tree *content.Tree, since time.Time) (*plan, error) {
	p := &plan{eligible: make(map[string]struct{})}
	root := tree.Root()
	full := since.IsZero()

	// ancestorEdited[loc] reports whether loc or one of its ancestors was
	// edited at or after since.
	ancestorEdited := map[string]bool{root.Location.String(): !root.EditedOn.Before(since)}

	var buildErr error
	err := tree.Walk(func(n *content.Node, depth int) bool {
		if buildErr != nil {
			return false
		}
		key := n.Location.String()
		if depth == 0 {
			return true
		}

		parent, _ := tree.Parent(n.Location)
		inherited := ancestorEdited[parent.Location.String()]
		ancestorEdited[key] = inherited || !n.EditedOn.Before(since)

		if !ix.classifier.Indexable(n.Category()) {
			return true
		}
		p.eligible[key] = struct{}{}

		write := full || depth == 1 || inherited || !tree.SubtreeEditedOn(parent.Location).Before(since)
		if !write {
			p.skipped++
			return true
		}

		doc, err := ix.builder.Build(tree, n.Location)
		if err != nil {
			buildErr = err
			return false
		}
		sd, err := doc.SearchDocument(ix.cfg.ScopeField)
		if err != nil {
			buildErr = ierrors.New(ierrors.ErrCodeDocumentBuildFailed, "failed to encode document", err).
				WithDetail("location", key)
			return false
		}
		p.docs = append(p.docs, sd)
		return true
	})
	if err != nil {
		return nil, err
	}
	if buildErr != nil {
		return nil, buildErr
	}
	return p, nil
}

func (ix *Indexer) heldIDs(ctx context.Context, engine search.Engine, scope string) ([]string, error) {
	return search.AllIDs(ctx, engine, ix.cfg.DocType, map[string]string{ix.cfg.ScopeField: scope}, ix.cfg.PageSize)
}

func (ix *Indexer) write(ctx context.Context, engine search.Engine, docs []search.Document, stale []string) error {
	if b, ok := engine.(search.Batcher); ok {
		return b.Apply(ctx, ix.cfg.DocType, docs, stale)
	}
	if err := engine.Index(ctx, ix.cfg.DocType, docs...); err != nil {
		return err
	}
	return engine.Remove(ctx, ix.cfg.DocType, stale...)
}

// EligibleIDs returns the ids a full pass over key would write.
func (ix *Indexer) EligibleIDs(ctx context.Context, key content.ScopeKey) (map[string]struct{}, error) {
	tree, err := ix.content.Tree(ctx, key, content.BranchFor(key))
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{})
	err = tree.Walk(func(n *content.Node, depth int) bool {
		if depth > 0 && ix.classifier.Indexable(n.Category()) {
			ids[n.Location.String()] = struct{}{}
		}
		return true
	})
	return ids, err
}

// Purge removes every document the engine holds for key, and the course's
// discovery document, without reading content. It is used for scopes that
// no longer exist. A disabled engine yields 0 and no error.
func (ix *Indexer) Purge(ctx context.Context, key content.ScopeKey) (int, error) {
	start := time.Now()
	if key.Kind != ix.cfg.Kind {
		return 0, ierrors.New(ierrors.ErrCodeUnknownScope,
			fmt.Sprintf("%s cannot purge %s", ix.cfg.IndexName, key), nil)
	}
	engine, err := ix.engines.Engine(ix.cfg.IndexName)
	if err != nil {
		if stderrors.Is(err, search.ErrDisabled) {
			return 0, nil
		}
		return 0, ierrors.SearchIndexingError(key.String(), err)
	}

	held, err := ix.heldIDs(ctx, engine, key.String())
	if err != nil {
		return 0, ierrors.SearchIndexingError(key.String(), err)
	}
	if err := ix.write(ctx, engine, nil, held); err != nil {
		ix.recorder.ObserveReindex(ix.cfg.IndexName, ModeFull, OutcomeError, 0, 0, time.Since(start))
		return 0, ierrors.SearchIndexingError(key.String(), err)
	}
	if ix.about != nil && !key.IsLibrary() {
		if err := ix.about.Remove(ctx, key); err != nil {
			return 0, err
		}
	}

	ix.recorder.ObserveReindex(ix.cfg.IndexName, ModeFull, OutcomeSuccess, 0, len(held), time.Since(start))
	slog.Info("scope_purged",
		slog.String("index", ix.cfg.IndexName),
		slog.String("scope", key.String()),
		slog.Int("removed", len(held)))
	return len(held), nil
}

// IndexedIDs returns the ids the engine holds for key.
func (ix *Indexer) IndexedIDs(ctx context.Context, key content.ScopeKey) ([]string, error) {
	engine, err := ix.engines.Engine(ix.cfg.IndexName)
	if err != nil {
		return nil, err
	}
	return ix.heldIDs(ctx, engine, key.String())
}
