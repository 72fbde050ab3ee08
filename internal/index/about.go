package index

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Aman-CERP/courseindex/internal/content"
	"github.com/Aman-CERP/courseindex/internal/enrollment"
	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
	"github.com/Aman-CERP/courseindex/internal/search"
)

// Discovery index name and document type.
const (
	AboutIndexName = "course_info"
	AboutDocType   = "course_info"
)

// DiscoveryDocument is the catalog record of one course.
type DiscoveryDocument struct {
	ID       string `json:"id"`
	Course   string `json:"course"`
	Org      string `json:"org"`
	Language string `json:"language,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	// Content holds the searchable text fields.
	Content         map[string]string `json:"content"`
	Modes           []string          `json:"modes,omitempty"`
	Start           *time.Time        `json:"start,omitempty"`
	End             *time.Time        `json:"end,omitempty"`
	EnrollmentStart *time.Time        `json:"enrollment_start,omitempty"`
	EnrollmentEnd   *time.Time        `json:"enrollment_end,omitempty"`
}

type aboutSource int

const (
	fromProperty aboutSource = iota
	fromAboutStore
)

// aboutField is one row of the discovery table. Searchable rows land in
// Content; the others are applied to the top level by set.
type aboutField struct {
	name       string
	source     aboutSource
	searchable bool
	transform  func(string) (string, error)
	set        func(d *DiscoveryDocument, value string) error
}

var aboutFields = []aboutField{
	{name: "display_name", source: fromProperty, searchable: true},
	{name: "number", source: fromProperty, searchable: true},
	{name: "short_description", source: fromAboutStore, searchable: true},
	{name: "overview", source: fromAboutStore, searchable: true, transform: StripTags},
	{name: "effort", source: fromAboutStore, searchable: true},
	{name: "title", source: fromAboutStore, searchable: true},
	{name: "description", source: fromAboutStore, searchable: true},
	{name: "language", source: fromProperty, set: func(d *DiscoveryDocument, v string) error {
		d.Language = v
		return nil
	}},
	{name: "course_image", source: fromProperty, set: func(d *DiscoveryDocument, v string) error {
		d.ImageURL = v
		return nil
	}},
	{name: "start", source: fromProperty, set: setTime(func(d *DiscoveryDocument) **time.Time { return &d.Start })},
	{name: "end", source: fromProperty, set: setTime(func(d *DiscoveryDocument) **time.Time { return &d.End })},
	{name: "enrollment_start", source: fromProperty, set: setTime(func(d *DiscoveryDocument) **time.Time { return &d.EnrollmentStart })},
	{name: "enrollment_end", source: fromProperty, set: setTime(func(d *DiscoveryDocument) **time.Time { return &d.EnrollmentEnd })},
}

func setTime(field func(*DiscoveryDocument) **time.Time) func(*DiscoveryDocument, string) error {
	return func(d *DiscoveryDocument, v string) error {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return err
		}
		t = t.UTC()
		*field(d) = &t
		return nil
	}
}

// AboutIndexer maintains one discovery document per course from the course
// properties, the about store and the enrollment modes.
type AboutIndexer struct {
	content  content.Accessor
	about    content.AboutSource
	modes    enrollment.Store
	engines  EngineSource
	recorder Recorder
	now      func() time.Time
}

// AboutDeps are the collaborators of an AboutIndexer. About and Modes may
// be nil.
type AboutDeps struct {
	Content  content.Accessor
	About    content.AboutSource
	Modes    enrollment.Store
	Engines  EngineSource
	Recorder Recorder
	// Now decides which modes have expired. Defaults to time.Now.
	Now func() time.Time
}

// NewAboutIndexer creates an AboutIndexer.
func NewAboutIndexer(deps AboutDeps) *AboutIndexer {
	a := &AboutIndexer{
		content:  deps.Content,
		about:    deps.About,
		modes:    deps.Modes,
		engines:  deps.Engines,
		recorder: deps.Recorder,
		now:      deps.Now,
	}
	if a.recorder == nil {
		a.recorder = nopRecorder{}
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Reindex upserts the discovery document of course. It returns 1 when the
// document was written and 0 when indexing is disabled.
func (a *AboutIndexer) Reindex(ctx context.Context, course content.ScopeKey) (int, error) {
	start := time.Now()
	if course.IsLibrary() {
		return 0, ierrors.New(ierrors.ErrCodeUnknownScope, "libraries have no discovery document: "+course.String(), nil)
	}

	engine, err := a.engines.Engine(AboutIndexName)
	if err != nil {
		if stderrors.Is(err, search.ErrDisabled) {
			a.recorder.ObserveReindex(AboutIndexName, ModeFull, OutcomeDisabled, 0, 0, time.Since(start))
			return 0, nil
		}
		return 0, ierrors.SearchIndexingError(course.String(), err)
	}

	doc, err := a.Build(ctx, course)
	if err != nil {
		a.recorder.ObserveReindex(AboutIndexName, ModeFull, OutcomeError, 0, 0, time.Since(start))
		return 0, err
	}
	sd, err := doc.searchDocument()
	if err != nil {
		return 0, ierrors.New(ierrors.ErrCodeDocumentBuildFailed, "failed to encode discovery document", err).
			WithDetail("course", course.String())
	}

	if err := engine.Index(ctx, AboutDocType, sd); err != nil {
		a.recorder.ObserveReindex(AboutIndexName, ModeFull, OutcomeError, 0, 0, time.Since(start))
		return 0, ierrors.SearchIndexingError(course.String(), err)
	}

	a.recorder.ObserveReindex(AboutIndexName, ModeFull, OutcomeSuccess, 1, 0, time.Since(start))
	slog.Debug("about_reindex_complete",
		slog.String("course", course.String()),
		slog.Int("modes", len(doc.Modes)))
	return 1, nil
}

// Remove deletes the discovery document of course. A disabled engine is
// not an error.
func (a *AboutIndexer) Remove(ctx context.Context, course content.ScopeKey) error {
	engine, err := a.engines.Engine(AboutIndexName)
	if err != nil {
		if stderrors.Is(err, search.ErrDisabled) {
			return nil
		}
		return ierrors.SearchIndexingError(course.String(), err)
	}
	if err := engine.Remove(ctx, AboutDocType, course.String()); err != nil {
		return ierrors.SearchIndexingError(course.String(), err)
	}
	return nil
}

// Build assembles the discovery document without writing it. Only a missing
// course is an error; unreadable or malformed values are left out.
func (a *AboutIndexer) Build(ctx context.Context, course content.ScopeKey) (*DiscoveryDocument, error) {
	root, err := a.content.Node(ctx, course.Root(), content.BranchPublished)
	if err != nil {
		return nil, err
	}

	doc := &DiscoveryDocument{
		ID:      course.String(),
		Course:  course.String(),
		Org:     course.Org,
		Content: map[string]string{},
	}

	for _, f := range aboutFields {
		value, ok := a.read(ctx, course, root, f)
		if !ok {
			continue
		}
		if f.transform != nil {
			if value, err = f.transform(value); err != nil || value == "" {
				a.omit(course, f.name, err)
				continue
			}
		}
		if f.searchable {
			doc.Content[f.name] = value
			continue
		}
		if err := f.set(doc, value); err != nil {
			a.omit(course, f.name, err)
		}
	}

	if a.modes != nil {
		modes, err := a.modes.ModesForCourse(ctx, course.String())
		if err != nil {
			a.omit(course, "modes", err)
		} else {
			doc.Modes = enrollment.ActiveSlugs(modes, a.now())
		}
	}
	return doc, nil
}

func (a *AboutIndexer) read(ctx context.Context, course content.ScopeKey, root *content.Node, f aboutField) (string, bool) {
	switch f.source {
	case fromProperty:
		v := courseProperty(course, root, f.name)
		return v, v != ""
	case fromAboutStore:
		if a.about == nil {
			return "", false
		}
		v, err := a.about.About(ctx, course, f.name)
		if err != nil {
			if !ierrors.IsNotFound(err) {
				a.omit(course, f.name, err)
			}
			return "", false
		}
		return v, strings.TrimSpace(v) != ""
	}
	return "", false
}

func courseProperty(course content.ScopeKey, root *content.Node, name string) string {
	switch name {
	case "display_name":
		return root.DisplayName
	case "number":
		return course.Code
	case "start":
		if root.Start == nil {
			return ""
		}
		return root.Start.UTC().Format(time.RFC3339)
	default:
		return root.Field(name)
	}
}

func (a *AboutIndexer) omit(course content.ScopeKey, field string, err error) {
	attrs := []any{slog.String("course", course.String()), slog.String("field", field)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	slog.Warn("about_field_omitted", attrs...)
}

func (d *DiscoveryDocument) searchDocument() (search.Document, error) {
	src, err := json.Marshal(d)
	if err != nil {
		return search.Document{}, err
	}
	keys := make([]string, 0, len(d.Content))
	for k := range d.Content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, d.Content[k])
	}
	return search.Document{
		ID:     d.ID,
		Fields: map[string]string{"course": d.Course, "org": d.Org},
		Text:   strings.Join(parts, "\n"),
		Source: src,
	}, nil
}
