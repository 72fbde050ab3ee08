package content

import (
	"fmt"
	"time"

	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
)

// Tree is an immutable point-in-time snapshot of one scope. Nodes are held
// in an arena keyed by location string; parent and child relations are
// lookups, not references.
type Tree struct {
	root    Location
	nodes   map[string]*Node
	parents map[string]Location
	subtree map[string]time.Time
}

// NewTree snapshots nodes rooted at root. Nodes are cloned. A child reference
// without a node, a child listed twice, or a node with two parents is
// rejected.
func NewTree(root Location, nodes []*Node) (*Tree, error) {
	t := &Tree{
		root:    root,
		nodes:   make(map[string]*Node, len(nodes)),
		parents: make(map[string]Location, len(nodes)),
	}
	for _, n := range nodes {
		t.nodes[n.Location.String()] = n.Clone()
	}
	if _, ok := t.nodes[root.String()]; !ok {
		return nil, ierrors.NotFound(root.String())
	}

	for key, n := range t.nodes {
		for _, child := range n.Children {
			ck := child.String()
			if _, ok := t.nodes[ck]; !ok {
				return nil, ierrors.NotFound(ck).WithDetail("parent", key)
			}
			if prev, dup := t.parents[ck]; dup {
				if prev == n.Location {
					return nil, ierrors.New(ierrors.ErrCodeContentUnreadable,
						fmt.Sprintf("%s lists %s twice", key, ck), nil)
				}
				return nil, ierrors.New(ierrors.ErrCodeContentUnreadable,
					fmt.Sprintf("%s has two parents: %s and %s", ck, prev, n.Location), nil)
			}
			t.parents[ck] = n.Location
		}
	}
	if p, ok := t.parents[root.String()]; ok {
		return nil, ierrors.New(ierrors.ErrCodeContentUnreadable,
			fmt.Sprintf("root %s is a child of %s", root, p), nil)
	}

	t.subtree = make(map[string]time.Time, len(t.nodes))
	t.fillSubtree(root)
	return t, nil
}

// Root returns the scope root node.
func (t *Tree) Root() *Node { return t.nodes[t.root.String()] }

// Len returns the number of nodes in the snapshot.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node at loc.
func (t *Tree) Node(loc Location) (*Node, error) {
	n, ok := t.nodes[loc.String()]
	if !ok {
		return nil, ierrors.NotFound(loc.String())
	}
	return n, nil
}

// Children returns the ordered children of loc.
func (t *Tree) Children(loc Location) ([]*Node, error) {
	n, err := t.Node(loc)
	if err != nil {
		return nil, err
	}
	out := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		child, err := t.Node(c)
		if err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	return out, nil
}

// Parent returns the parent of loc, or false for the root and detached nodes.
func (t *Tree) Parent(loc Location) (*Node, bool) {
	p, ok := t.parents[loc.String()]
	if !ok {
		return nil, false
	}
	return t.nodes[p.String()], true
}

// Ancestors returns loc's ancestors from the immediate parent up to the root.
func (t *Tree) Ancestors(loc Location) ([]*Node, error) {
	if _, err := t.Node(loc); err != nil {
		return nil, err
	}
	var out []*Node
	for cur := loc; ; {
		parent, ok := t.Parent(cur)
		if !ok {
			break
		}
		out = append(out, parent)
		cur = parent.Location
	}
	return out, nil
}

// Walk visits the subtree of the root in pre-order with each node's depth
// (root = 0). Returning false from fn skips that node's children.
func (t *Tree) Walk(fn func(n *Node, depth int) bool) error {
	return t.walk(t.root, 0, fn)
}

func (t *Tree) walk(loc Location, depth int, fn func(*Node, int) bool) error {
	n, err := t.Node(loc)
	if err != nil {
		return err
	}
	if !fn(n, depth) {
		return nil
	}
	for _, c := range n.Children {
		if err := t.walk(c, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}

// SubtreeEditedOn returns the latest EditedOn over loc and its descendants.
// Nodes not reachable from the root report the zero time.
func (t *Tree) SubtreeEditedOn(loc Location) time.Time {
	return t.subtree[loc.String()]
}

func (t *Tree) fillSubtree(loc Location) time.Time {
	n, ok := t.nodes[loc.String()]
	if !ok {
		return time.Time{}
	}
	latest := n.EditedOn
	for _, c := range n.Children {
		if ts := t.fillSubtree(c); ts.After(latest) {
			latest = ts
		}
	}
	t.subtree[loc.String()] = latest
	return latest
}
