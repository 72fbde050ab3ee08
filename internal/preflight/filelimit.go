package preflight

import (
	"fmt"
	"syscall"
)

// MinFileDescriptors is the lowest open-file limit the daemon accepts.
// Each open bleve index holds several segment files.
const MinFileDescriptors = 1024

// CheckFileDescriptors checks the soft RLIMIT_NOFILE.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{Name: "file_descriptors", Required: true}

	var lim syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &lim); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot read limit: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%d (minimum: %d)", lim.Cur, MinFileDescriptors)
	if lim.Cur < MinFileDescriptors {
		result.Status = StatusFail
		result.Details = fmt.Sprintf("Run 'ulimit -n %d' before starting the daemon", 4*MinFileDescriptors)
		return result
	}
	result.Status = StatusPass
	return result
}
