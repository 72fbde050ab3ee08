// Package index turns content trees into search documents and keeps the
// courseware, library and course discovery indexes in sync with them.
package index

import "sort"

// DefaultExcludedCategories are never indexed.
var DefaultExcludedCategories = []string{"openassessment"}

// Classifier decides from the category alone whether a block is searchable.
type Classifier struct {
	excluded map[string]struct{}
}

// NewClassifier excludes exactly the given categories. Use
// DefaultClassifier for the built-in policy.
func NewClassifier(excluded ...string) *Classifier {
	c := &Classifier{excluded: make(map[string]struct{}, len(excluded))}
	for _, cat := range excluded {
		c.excluded[cat] = struct{}{}
	}
	return c
}

// DefaultClassifier excludes DefaultExcludedCategories.
func DefaultClassifier() *Classifier {
	return NewClassifier(DefaultExcludedCategories...)
}

// Indexable reports whether blocks of category get a search document.
func (c *Classifier) Indexable(category string) bool {
	_, excluded := c.excluded[category]
	return !excluded
}

// Excluded returns the excluded categories, sorted.
func (c *Classifier) Excluded() []string {
	out := make([]string, 0, len(c.excluded))
	for cat := range c.excluded {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}
