// Package logging sets up structured slog logging for courseindex.
// Records are JSON, written to a size-rotated file under ~/.courseindex/logs/
// and optionally mirrored to stderr.
package logging
