// Package preflight checks that the indexer can run before it starts:
// the data directory is writable and has free space, the process may open
// enough files, the search backend is usable, the content fixture parses,
// and no other process holds the index lock.
//
//	checker := preflight.New(preflight.WithOutput(os.Stdout))
//	results := checker.RunAll(ctx, target)
//	if checker.HasCriticalFailures(results) {
//	    // refuse to start
//	}
//
// The daemon runs the checks once per data directory and records a marker
// file when they pass.
package preflight
