package content

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
)

var treeScope = CourseKey("Org", "Tree", "Run")

func loc(category, block string) Location {
	return NewLocation(treeScope, category, block)
}

func at(minute int) time.Time {
	return time.Date(2024, 1, 1, 0, minute, 0, 0, time.UTC)
}

// course -> chapter -> (seq1 -> html1, seq2)
func sampleNodes() []*Node {
	return []*Node{
		{Location: treeScope.Root(), DisplayName: "Course", EditedOn: at(0), Children: []Location{loc("chapter", "ch")}},
		{Location: loc("chapter", "ch"), DisplayName: "Week 1", EditedOn: at(1), Children: []Location{loc("sequential", "s1"), loc("sequential", "s2")}},
		{Location: loc("sequential", "s1"), EditedOn: at(2), Children: []Location{loc("html", "h1")}},
		{Location: loc("html", "h1"), EditedOn: at(7)},
		{Location: loc("sequential", "s2"), EditedOn: at(3)},
	}
}

func TestNewTree_NavigatesRelations(t *testing.T) {
	// Given a snapshot
	tree, err := NewTree(treeScope.Root(), sampleNodes())
	require.NoError(t, err)

	// Then children keep their order
	children, err := tree.Children(loc("chapter", "ch"))
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "s1", children[0].Location.Block)
	assert.Equal(t, "s2", children[1].Location.Block)

	// And ancestors run from the parent to the root
	ancestors, err := tree.Ancestors(loc("html", "h1"))
	require.NoError(t, err)
	require.Len(t, ancestors, 3)
	assert.Equal(t, "s1", ancestors[0].Location.Block)
	assert.Equal(t, "course", ancestors[2].Category())

	// And the root has no parent
	_, ok := tree.Parent(treeScope.Root())
	assert.False(t, ok)
	assert.Equal(t, 5, tree.Len())
}

func TestTree_SubtreeEditedOn(t *testing.T) {
	tree, err := NewTree(treeScope.Root(), sampleNodes())
	require.NoError(t, err)

	assert.Equal(t, at(7), tree.SubtreeEditedOn(treeScope.Root()))
	assert.Equal(t, at(7), tree.SubtreeEditedOn(loc("sequential", "s1")))
	assert.Equal(t, at(3), tree.SubtreeEditedOn(loc("sequential", "s2")))
	assert.True(t, tree.SubtreeEditedOn(loc("html", "missing")).IsZero())
}

func TestTree_WalkPreOrderAndPrune(t *testing.T) {
	tree, err := NewTree(treeScope.Root(), sampleNodes())
	require.NoError(t, err)

	// When walking without pruning
	var order []string
	require.NoError(t, tree.Walk(func(n *Node, depth int) bool {
		order = append(order, n.Location.Block)
		return true
	}))
	// Then nodes come in pre-order
	assert.Equal(t, []string{"course", "ch", "s1", "h1", "s2"}, order)

	// When pruning below s1
	order = nil
	require.NoError(t, tree.Walk(func(n *Node, depth int) bool {
		order = append(order, n.Location.Block)
		return n.Location.Block != "s1"
	}))
	// Then h1 is not visited
	assert.Equal(t, []string{"course", "ch", "s1", "s2"}, order)
}

func TestNewTree_DanglingChildIsNotFound(t *testing.T) {
	nodes := sampleNodes()
	nodes[4].Children = []Location{loc("vertical", "ghost")}

	_, err := NewTree(treeScope.Root(), nodes)
	require.Error(t, err)
	assert.True(t, ierrors.IsNotFound(err))
}

func TestNewTree_RejectsTwoParents(t *testing.T) {
	nodes := sampleNodes()
	nodes[4].Children = []Location{loc("html", "h1")}

	_, err := NewTree(treeScope.Root(), nodes)
	require.Error(t, err)
	assert.Equal(t, ierrors.ErrCodeContentUnreadable, ierrors.GetCode(err))
}

func TestNewTree_RejectsRepeatedChild(t *testing.T) {
	// Given: a sequential listing its html unit twice
	nodes := sampleNodes()
	nodes[2].Children = []Location{loc("html", "h1"), loc("html", "h1")}

	// When: snapshotting
	_, err := NewTree(treeScope.Root(), nodes)

	// Then: the tree is unreadable rather than walked twice
	require.Error(t, err)
	assert.Equal(t, ierrors.ErrCodeContentUnreadable, ierrors.GetCode(err))
}

func TestNewTree_IsDetachedFromInput(t *testing.T) {
	nodes := sampleNodes()
	tree, err := NewTree(treeScope.Root(), nodes)
	require.NoError(t, err)

	// When the input is mutated after the snapshot
	nodes[1].DisplayName = "changed"

	// Then the snapshot is unaffected
	n, err := tree.Node(loc("chapter", "ch"))
	require.NoError(t, err)
	assert.Equal(t, "Week 1", n.DisplayName)
}
