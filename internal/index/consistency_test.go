package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/courseindex/internal/search"
)

func TestConsistencyChecker_Check(t *testing.T) {
	// Given: an indexed course
	f := newCourseFixture(t)
	checker := NewConsistencyChecker(f.indexer())
	f.reindex()

	// When: checking right after the reindex
	res, err := checker.Check(context.Background(), f.course)

	// Then: content and index agree
	require.NoError(t, err)
	assert.True(t, res.Consistent())
	assert.Equal(t, 3, res.Eligible)
	assert.Equal(t, 3, res.Indexed)

	// When: the vertical is published and a foreign document appears
	f.publish(f.vertical)
	e, err := f.engines.Engine(CoursewareIndexName)
	require.NoError(t, err)
	ghost := doc(f.course.String(), "ghost")
	require.NoError(t, e.Index(context.Background(), CoursewareDocType, ghost))

	res, err = checker.Check(context.Background(), f.course)

	// Then: one missing and one stale id are reported
	require.NoError(t, err)
	require.Len(t, res.Inconsistencies, 2)
	assert.Equal(t, Inconsistency{Type: InconsistencyMissing, ID: f.html.String()}, res.Inconsistencies[0])
	assert.Equal(t, Inconsistency{Type: InconsistencyStale, ID: "ghost"}, res.Inconsistencies[1])
	assert.Equal(t, "missing", res.Inconsistencies[0].Type.String())
	assert.Equal(t, "stale", res.Inconsistencies[1].Type.String())
}

func TestConsistencyChecker_Repair(t *testing.T) {
	// Given: an index missing the newly published unit
	f := newCourseFixture(t)
	checker := NewConsistencyChecker(f.indexer())
	f.reindex()
	f.publish(f.vertical)

	// When: repairing
	res, err := checker.Repair(context.Background(), f.course)

	// Then: a full pass brings the index in line
	require.NoError(t, err)
	assert.Equal(t, 4, res.Indexed)
	check, err := checker.Check(context.Background(), f.course)
	require.NoError(t, err)
	assert.True(t, check.Consistent())

	// When: repairing a consistent index
	res, err = checker.Repair(context.Background(), f.course)

	// Then: nothing is written
	require.NoError(t, err)
	assert.Zero(t, res.Indexed)
}

func doc(course, id string) search.Document {
	return search.Document{
		ID:     id,
		Fields: map[string]string{"course": course},
		Text:   id,
		Source: []byte(`{"id":"` + id + `"}`),
	}
}
