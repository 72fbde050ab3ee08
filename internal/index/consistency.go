package index

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/Aman-CERP/courseindex/internal/content"
)

// InconsistencyType categorizes a difference between content and index.
type InconsistencyType int

const (
	// InconsistencyMissing is an eligible block without a document.
	InconsistencyMissing InconsistencyType = iota
	// InconsistencyStale is a document without an eligible block.
	InconsistencyStale
)

// String returns a human-readable description of the inconsistency type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyMissing:
		return "missing"
	case InconsistencyStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Inconsistency is one differing id.
type Inconsistency struct {
	Type InconsistencyType `json:"type"`
	ID   string            `json:"id"`
}

// CheckResult is the outcome of a consistency check.
type CheckResult struct {
	Scope string `json:"scope"`
	// Eligible is the number of blocks that should have a document.
	Eligible int `json:"eligible"`
	// Indexed is the number of documents the engine holds for the scope.
	Indexed         int             `json:"indexed"`
	Inconsistencies []Inconsistency `json:"inconsistencies"`
	Duration        time.Duration   `json:"duration"`
}

// Consistent reports whether content and index agree.
func (r *CheckResult) Consistent() bool { return len(r.Inconsistencies) == 0 }

// ConsistencyChecker compares the eligible blocks of a scope with the
// documents its index holds. It only reads; Repair rewrites the scope.
type ConsistencyChecker struct {
	indexer *Indexer
}

// NewConsistencyChecker creates a checker for the index behind indexer.
func NewConsistencyChecker(indexer *Indexer) *ConsistencyChecker {
	return &ConsistencyChecker{indexer: indexer}
}

// Check lists missing and stale ids, sorted by type then id.
func (c *ConsistencyChecker) Check(ctx context.Context, key content.ScopeKey) (*CheckResult, error) {
	start := time.Now()

	eligible, err := c.indexer.EligibleIDs(ctx, key)
	if err != nil {
		return nil, err
	}
	indexed, err := c.indexer.IndexedIDs(ctx, key)
	if err != nil {
		return nil, err
	}

	held := make(map[string]bool, len(indexed))
	var issues []Inconsistency
	for _, id := range indexed {
		held[id] = true
		if _, ok := eligible[id]; !ok {
			issues = append(issues, Inconsistency{Type: InconsistencyStale, ID: id})
		}
	}
	for id := range eligible {
		if !held[id] {
			issues = append(issues, Inconsistency{Type: InconsistencyMissing, ID: id})
		}
	}
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Type != issues[j].Type {
			return issues[i].Type < issues[j].Type
		}
		return issues[i].ID < issues[j].ID
	})

	return &CheckResult{
		Scope:           key.String(),
		Eligible:        len(eligible),
		Indexed:         len(indexed),
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}, nil
}

// Repair runs a full reindex of key when Check finds differences.
func (c *ConsistencyChecker) Repair(ctx context.Context, key content.ScopeKey) (*Result, error) {
	check, err := c.Check(ctx, key)
	if err != nil {
		return nil, err
	}
	if check.Consistent() {
		return &Result{Scope: check.Scope, Mode: ModeFull}, nil
	}
	slog.Warn("index_inconsistent",
		slog.String("scope", check.Scope),
		slog.Int("issues", len(check.Inconsistencies)))
	return c.indexer.Run(ctx, Scope{Key: key})
}
