package content

import (
	"context"
	"time"
)

// Branch selects which version of a scope is read.
type Branch string

const (
	// BranchPublished is the learner-visible version of a course.
	BranchPublished Branch = "published"
	// BranchDraft is the authoring version of a course.
	BranchDraft Branch = "draft"
	// BranchCurrent is the single version of a library.
	BranchCurrent Branch = "current"
)

// Node is one block of the content tree.
type Node struct {
	Location    Location
	DisplayName string
	// Start is the explicit start date. Nil means inherited.
	Start    *time.Time
	EditedOn time.Time
	Children []Location
	// Data is the block payload, e.g. the body of an html block.
	Data string
	// Fields holds category specific values and course properties.
	Fields map[string]string
}

// Category is the block type.
func (n *Node) Category() string { return n.Location.Category }

// HasChildren reports whether the node is a container.
func (n *Node) HasChildren() bool { return len(n.Children) > 0 }

// Field returns Fields[name] or "".
func (n *Node) Field(name string) string {
	if n.Fields == nil {
		return ""
	}
	return n.Fields[name]
}

// Clone returns a deep copy.
func (n *Node) Clone() *Node {
	c := *n
	if n.Start != nil {
		start := *n.Start
		c.Start = &start
	}
	c.Children = append([]Location(nil), n.Children...)
	if n.Fields != nil {
		c.Fields = make(map[string]string, len(n.Fields))
		for k, v := range n.Fields {
			c.Fields[k] = v
		}
	}
	return &c
}

// Accessor gives read access to the content store.
type Accessor interface {
	// Tree snapshots the whole scope on branch.
	Tree(ctx context.Context, scope ScopeKey, branch Branch) (*Tree, error)
	// Node reads one block. Missing blocks return a NotFound error.
	Node(ctx context.Context, loc Location, branch Branch) (*Node, error)
}

// AboutSource reads course about entries (short_description, overview, ...).
// A missing key returns a NotFound error.
type AboutSource interface {
	About(ctx context.Context, course ScopeKey, key string) (string, error)
}

// BranchFor returns the branch the indexer reads for scope.
func BranchFor(scope ScopeKey) Branch {
	if scope.IsLibrary() {
		return BranchCurrent
	}
	return BranchPublished
}
