package preflight

import (
	"fmt"
	"syscall"
)

// MinDiskSpaceBytes is the free space required under the data directory.
const MinDiskSpaceBytes = 100 * 1024 * 1024

// CheckDiskSpace checks the free space on the file system holding path.
func (c *Checker) CheckDiskSpace(path string) CheckResult {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return CheckResult{
			Name:     "disk_space",
			Status:   StatusFail,
			Message:  fmt.Sprintf("cannot stat %s: %v", path, err),
			Required: true,
		}
	}

	free := stat.Bavail * uint64(stat.Bsize)
	status := StatusPass
	if free < MinDiskSpaceBytes {
		status = StatusFail
	}
	return CheckResult{
		Name:     "disk_space",
		Status:   status,
		Message:  fmt.Sprintf("%s free (minimum: %s)", formatBytes(free), formatBytes(MinDiskSpaceBytes)),
		Required: true,
	}
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d bytes", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit && exp < 3; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}
