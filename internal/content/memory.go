package content

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
)

// DefaultCourseStart is used for courses created without a start date.
var DefaultCourseStart = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

// directOnly categories skip the draft step: edits land on both branches.
var directOnly = map[string]bool{
	"course":      true,
	"about":       true,
	"course_info": true,
	"static_tab":  true,
}

type scopeState struct {
	key       ScopeKey
	draft     map[string]*Node
	published map[string]*Node
}

// MemoryStore is an in-memory content store. Courses keep a draft and a
// published branch; libraries keep a single current branch.
type MemoryStore struct {
	mu     sync.RWMutex
	now    func() time.Time
	scopes map[string]*scopeState
	about  map[string]map[string]string
}

// StoreOption configures a MemoryStore.
type StoreOption func(*MemoryStore)

// WithClock sets the clock used to stamp EditedOn.
func WithClock(now func() time.Time) StoreOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	s := &MemoryStore{
		now:    func() time.Time { return time.Now().UTC() },
		scopes: make(map[string]*scopeState),
		about:  make(map[string]map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Accessor = (*MemoryStore)(nil)
var _ AboutSource = (*MemoryStore)(nil)

// CourseSpec describes a new course root.
type CourseSpec struct {
	DisplayName string
	Start       time.Time
	// Fields holds course properties: end, enrollment_start, enrollment_end,
	// language, course_image.
	Fields map[string]string
}

// CreateCourse creates a course whose root exists on both branches.
func (s *MemoryStore) CreateCourse(key ScopeKey, spec CourseSpec) (*Node, error) {
	if key.IsLibrary() {
		return nil, ierrors.ValidationError("CreateCourse needs a course key: "+key.String(), nil)
	}
	start := spec.Start
	if start.IsZero() {
		start = DefaultCourseStart
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.scopes[key.String()]; exists {
		return nil, ierrors.ValidationError("course already exists: "+key.String(), nil)
	}
	root := &Node{
		Location:    key.Root(),
		DisplayName: spec.DisplayName,
		Start:       &start,
		EditedOn:    s.now(),
		Fields:      copyFields(spec.Fields),
	}
	st := &scopeState{
		key:       key,
		draft:     map[string]*Node{root.Location.String(): root},
		published: map[string]*Node{root.Location.String(): root.Clone()},
	}
	s.scopes[key.String()] = st
	return root.Clone(), nil
}

// CreateLibrary creates an empty library.
func (s *MemoryStore) CreateLibrary(key ScopeKey, displayName string) (*Node, error) {
	if !key.IsLibrary() {
		return nil, ierrors.ValidationError("CreateLibrary needs a library key: "+key.String(), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.scopes[key.String()]; exists {
		return nil, ierrors.ValidationError("library already exists: "+key.String(), nil)
	}
	root := &Node{Location: key.Root(), DisplayName: displayName, EditedOn: s.now()}
	s.scopes[key.String()] = &scopeState{
		key:   key,
		draft: map[string]*Node{root.Location.String(): root},
	}
	return root.Clone(), nil
}

// ItemSpec describes a new block.
type ItemSpec struct {
	Category    string
	Block       string // generated when empty
	DisplayName string
	Start       *time.Time
	Data        string
	Fields      map[string]string
	// Publish publishes the new block immediately (courses only).
	Publish bool
}

// CreateItem adds a block as the last child of parent on the draft branch.
func (s *MemoryStore) CreateItem(parent Location, spec ItemSpec) (Location, error) {
	if spec.Category == "" {
		return Location{}, ierrors.ValidationError("item category is required", nil)
	}
	block := spec.Block
	if block == "" {
		block = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	loc := NewLocation(parent.Scope, spec.Category, block)

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.scope(parent.Scope)
	if err != nil {
		return Location{}, err
	}
	p, ok := st.draft[parent.String()]
	if !ok {
		return Location{}, ierrors.NotFound(parent.String())
	}
	if _, exists := st.draft[loc.String()]; exists {
		return Location{}, ierrors.ValidationError("item already exists: "+loc.String(), nil)
	}

	now := s.now()
	node := &Node{
		Location:    loc,
		DisplayName: spec.DisplayName,
		Data:        spec.Data,
		EditedOn:    now,
		Fields:      copyFields(spec.Fields),
	}
	if spec.Start != nil {
		start := *spec.Start
		node.Start = &start
	}
	st.draft[loc.String()] = node
	p.Children = append(p.Children, loc)
	p.EditedOn = now

	if spec.Publish || directOnly[spec.Category] {
		s.publish(st, loc)
	}
	return loc, nil
}

// UpdateItem applies fn to the draft of loc. Location and children are not
// editable through fn. Direct-only blocks are updated on both branches.
func (s *MemoryStore) UpdateItem(loc Location, fn func(*Node)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.scope(loc.Scope)
	if err != nil {
		return err
	}
	cur, ok := st.draft[loc.String()]
	if !ok {
		return ierrors.NotFound(loc.String())
	}

	next := cur.Clone()
	fn(next)
	next.Location = cur.Location
	next.Children = cur.Children
	next.EditedOn = s.now()
	st.draft[loc.String()] = next

	if st.published != nil && directOnly[loc.Category] {
		if pub, ok := st.published[loc.String()]; ok {
			updated := next.Clone()
			updated.Children = pub.Children
			st.published[loc.String()] = updated
		}
	}
	return nil
}

// Publish copies the draft subtree of loc to the published branch. Blocks
// deleted from the draft subtree disappear from the published one. Every
// published copy is stamped with the publish time. Libraries ignore Publish.
func (s *MemoryStore) Publish(loc Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.scope(loc.Scope)
	if err != nil {
		return err
	}
	if _, ok := st.draft[loc.String()]; !ok {
		return ierrors.NotFound(loc.String())
	}
	s.publish(st, loc)
	return nil
}

func (s *MemoryStore) publish(st *scopeState, loc Location) {
	if st.published == nil {
		return
	}
	now := s.now()

	stale := make(map[string]bool)
	collect(st.published, loc, func(n *Node) { stale[n.Location.String()] = true })

	collect(st.draft, loc, func(n *Node) {
		c := n.Clone()
		c.EditedOn = now
		st.published[n.Location.String()] = c
		delete(stale, n.Location.String())
	})
	for key := range stale {
		delete(st.published, key)
	}

	if parent, ok := parentOf(st.draft, loc); ok {
		if pub, ok := st.published[parent.String()]; ok && !containsLocation(pub.Children, loc) {
			pub.Children = append(pub.Children, loc)
		}
	}
}

// DeleteItem removes loc and its subtree from the draft branch (the only
// branch of a library). The published branch of a course keeps the block
// until its parent is published again.
func (s *MemoryStore) DeleteItem(loc Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.scope(loc.Scope)
	if err != nil {
		return err
	}
	if loc == st.key.Root() {
		return ierrors.ValidationError("cannot delete the root of "+st.key.String(), nil)
	}
	if _, ok := st.draft[loc.String()]; !ok {
		return ierrors.NotFound(loc.String())
	}

	if parent, ok := parentOf(st.draft, loc); ok {
		p := st.draft[parent.String()]
		p.Children = removeLocation(p.Children, loc)
		p.EditedOn = s.now()
	}

	var doomed []string
	collect(st.draft, loc, func(n *Node) { doomed = append(doomed, n.Location.String()) })
	for _, key := range doomed {
		delete(st.draft, key)
	}
	return nil
}

// SetAbout stores an about entry for course.
func (s *MemoryStore) SetAbout(course ScopeKey, key, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.scope(course); err != nil {
		return err
	}
	entries, ok := s.about[course.String()]
	if !ok {
		entries = make(map[string]string)
		s.about[course.String()] = entries
	}
	entries[key] = data
	return nil
}

// DeleteAbout removes an about entry.
func (s *MemoryStore) DeleteAbout(course ScopeKey, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.about[course.String()], key)
}

// About implements AboutSource.
func (s *MemoryStore) About(_ context.Context, course ScopeKey, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.about[course.String()][key]
	if !ok {
		return "", ierrors.NotFound(fmt.Sprintf("%s about %s", course, key))
	}
	return data, nil
}

// Scopes returns every course and library key, sorted.
func (s *MemoryStore) Scopes() []ScopeKey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]ScopeKey, 0, len(s.scopes))
	for _, st := range s.scopes {
		keys = append(keys, st.key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Tree implements Accessor. Libraries are read from their single branch.
func (s *MemoryStore) Tree(_ context.Context, scope ScopeKey, branch Branch) (*Tree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes, err := s.branchNodes(scope, branch)
	if err != nil {
		return nil, err
	}

	var reachable []*Node
	collect(nodes, scope.Root(), func(n *Node) { reachable = append(reachable, n) })
	return NewTree(scope.Root(), reachable)
}

// Node implements Accessor.
func (s *MemoryStore) Node(_ context.Context, loc Location, branch Branch) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes, err := s.branchNodes(loc.Scope, branch)
	if err != nil {
		return nil, err
	}
	n, ok := nodes[loc.String()]
	if !ok {
		return nil, ierrors.NotFound(loc.String())
	}
	return n.Clone(), nil
}

func (s *MemoryStore) branchNodes(scope ScopeKey, branch Branch) (map[string]*Node, error) {
	st, err := s.scope(scope)
	if err != nil {
		return nil, err
	}
	if scope.IsLibrary() {
		return st.draft, nil
	}
	switch branch {
	case BranchPublished:
		return st.published, nil
	case BranchDraft:
		return st.draft, nil
	default:
		return nil, ierrors.ValidationError(fmt.Sprintf("course %s has no %s branch", scope, branch), nil)
	}
}

func (s *MemoryStore) scope(key ScopeKey) (*scopeState, error) {
	st, ok := s.scopes[key.String()]
	if !ok {
		return nil, ierrors.NotFound(key.String())
	}
	return st, nil
}

// collect visits loc and its descendants present in nodes, pre-order.
func collect(nodes map[string]*Node, loc Location, fn func(*Node)) {
	n, ok := nodes[loc.String()]
	if !ok {
		return
	}
	fn(n)
	for _, c := range n.Children {
		collect(nodes, c, fn)
	}
}

func parentOf(nodes map[string]*Node, loc Location) (Location, bool) {
	for _, n := range nodes {
		if containsLocation(n.Children, loc) {
			return n.Location, true
		}
	}
	return Location{}, false
}

func containsLocation(list []Location, loc Location) bool {
	for _, l := range list {
		if l == loc {
			return true
		}
	}
	return false
}

func removeLocation(list []Location, loc Location) []Location {
	out := list[:0:0]
	for _, l := range list {
		if l != loc {
			out = append(out, l)
		}
	}
	return out
}

func copyFields(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
