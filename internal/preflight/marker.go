package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MarkerFile is written to the data directory once the checks pass there.
const MarkerFile = ".courseindex-preflight"

// NeedsCheck reports whether dataDir has no record of passing checks.
func NeedsCheck(dataDir string) bool {
	_, err := os.Stat(filepath.Join(dataDir, MarkerFile))
	return os.IsNotExist(err)
}

// MarkPassed records that the checks passed, creating dataDir if needed.
func MarkPassed(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create marker directory: %w", err)
	}
	stamp := []byte(time.Now().UTC().Format(time.RFC3339))
	return os.WriteFile(filepath.Join(dataDir, MarkerFile), stamp, 0o644)
}

// ClearMarker removes the marker so the next start checks again.
func ClearMarker(dataDir string) error {
	err := os.Remove(filepath.Join(dataDir, MarkerFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove marker file: %w", err)
	}
	return nil
}

// MarkerAge returns how long ago the checks passed, or zero without a
// readable marker.
func MarkerAge(dataDir string) time.Duration {
	data, err := os.ReadFile(filepath.Join(dataDir, MarkerFile))
	if err != nil {
		return 0
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return time.Since(t)
}
