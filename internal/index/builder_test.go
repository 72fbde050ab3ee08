package index

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/courseindex/internal/content"
	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
)

func TestBuilder_Build(t *testing.T) {
	// Given: a published course
	f := newCourseFixture(t)
	require.NoError(t, f.store.UpdateItem(f.html, func(n *content.Node) { n.Data = "<p>Lorem <b>ipsum</b></p>" }))
	f.publish(f.vertical)
	tree, err := f.store.Tree(context.Background(), f.course, content.BranchPublished)
	require.NoError(t, err)

	// When: building the html unit's document
	doc, err := NewBuilder().Build(tree, f.html)

	// Then: identity, breadcrumb, start and content are filled in
	require.NoError(t, err)
	assert.Equal(t, f.html.String(), doc.ID)
	assert.Equal(t, f.course.String(), doc.Course)
	assert.Empty(t, doc.Library)
	assert.Equal(t, "edX", doc.Org)
	assert.Equal(t, "Search Index Test Course", doc.CourseName)
	assert.Equal(t, "html", doc.Category)
	assert.Equal(t, []string{"Week 1", "Lesson 1", "Subsection 1"}, doc.Location)
	require.NotNil(t, doc.StartDate)
	assert.True(t, doc.StartDate.Equal(date(2015, 4, 1)))
	assert.Equal(t, map[string]string{
		"display_name": "Html Content",
		"html_content": "Lorem ipsum",
	}, doc.Content)
	assert.Equal(t, "Html Content\nLorem ipsum", doc.Text())
}

func TestBuilder_BreadcrumbOfTopLevelBlock(t *testing.T) {
	f := newCourseFixture(t)
	tree, err := f.store.Tree(context.Background(), f.course, content.BranchPublished)
	require.NoError(t, err)

	doc, err := NewBuilder().Build(tree, f.chapter)

	require.NoError(t, err)
	assert.Equal(t, []string{}, doc.Location)
	assert.Equal(t, map[string]string{"display_name": "Week 1"}, doc.Content)
	assert.Empty(t, doc.ContentType)
}

func TestBuilder_CustomPlaceholder(t *testing.T) {
	// Given: an unnamed chapter
	f := newCourseFixture(t)
	ch := f.create(f.course.Root(), content.ItemSpec{Category: "chapter", Publish: true})
	seq := f.create(ch, content.ItemSpec{Category: "sequential", DisplayName: "Inside", Publish: true})
	tree, err := f.store.Tree(context.Background(), f.course, content.BranchPublished)
	require.NoError(t, err)

	// When: building with a custom placeholder
	doc, err := NewBuilder(WithUnnamedPlaceholder("(untitled)")).Build(tree, seq)

	// Then: the placeholder names the chapter
	require.NoError(t, err)
	assert.Equal(t, []string{"(untitled)"}, doc.Location)
	assert.Equal(t, ContentTypeSequence, doc.ContentType)
}

func TestBuilder_ExtractorFailure(t *testing.T) {
	// Given: a registry whose html extractor fails
	f := newCourseFixture(t)
	f.publish(f.vertical)
	tree, err := f.store.Tree(context.Background(), f.course, content.BranchPublished)
	require.NoError(t, err)

	boom := errors.New("bad markup")
	r := NewRegistry()
	r.Register("html", func(*content.Node) (Extraction, error) { return Extraction{}, boom })

	// When: building
	_, err = NewBuilder(WithRegistry(r)).Build(tree, f.html)

	// Then: one build error names the location
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, ierrors.ErrCodeDocumentBuildFailed, ierrors.GetCode(err))
	var ie *ierrors.IndexerError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, f.html.String(), ie.Details["location"])
}

func TestBuilder_ExtractorFailureLeavesIndexUntouched(t *testing.T) {
	// Given: an indexed course and a builder that cannot build html
	f := newCourseFixture(t)
	f.publish(f.vertical)
	f.reindex()

	r := DefaultRegistry()
	r.Register("html", func(*content.Node) (Extraction, error) { return Extraction{}, errors.New("bad markup") })
	ix := NewCoursewareIndexer(Deps{Content: f.store, Engines: f.engines, Builder: NewBuilder(WithRegistry(r))})

	// When: the html unit is deleted and published, then reindexed
	require.NoError(t, f.store.DeleteItem(f.vertical))
	f.publish(f.seq)
	f.create(f.seq, content.ItemSpec{Category: "html", DisplayName: "New", Publish: true})
	_, err := ix.Reindex(context.Background(), Scope{Key: f.course})

	// Then: the pass fails before any write
	require.Error(t, err)
	assert.Equal(t, 4, f.search("").Total)
}

func TestBuilder_LibraryDocument(t *testing.T) {
	f := newLibraryFixture(t)
	tree, err := f.store.Tree(context.Background(), f.library, content.BranchCurrent)
	require.NoError(t, err)

	doc, err := NewBuilder().Build(tree, f.html1)

	require.NoError(t, err)
	assert.Equal(t, f.library.String(), doc.Library)
	assert.Empty(t, doc.Course)
	assert.Empty(t, doc.CourseName)
	assert.Nil(t, doc.StartDate)
	assert.Equal(t, []string{}, doc.Location)
}

func TestDocument_SearchDocument(t *testing.T) {
	doc := &Document{
		ID:          "block-v1:edX+X+1+type@html+block@a",
		Course:      "course-v1:edX+X+1",
		Org:         "edX",
		Category:    "html",
		ContentType: ContentTypeText,
		Content:     map[string]string{"html_content": "body", "display_name": "Title"},
		Location:    []string{"Week 1"},
	}

	sd, err := doc.SearchDocument("course")

	require.NoError(t, err)
	assert.Equal(t, doc.ID, sd.ID)
	assert.Equal(t, map[string]string{
		"course":       doc.Course,
		"org":          "edX",
		"category":     "html",
		"content_type": ContentTypeText,
	}, sd.Fields)
	assert.Equal(t, "Title\nbody", sd.Text)

	var back Document
	require.NoError(t, json.Unmarshal(sd.Source, &back))
	assert.Equal(t, *doc, back)
}
