package preflight

import (
	"fmt"
	"syscall"
)

// MinFileDescriptors is the lowest open-file limit that does not warn.
// The watcher holds one descriptor per watched directory.
const MinFileDescriptors = 1024

// CheckFileDescriptors checks the soft open-file limit. A low limit only
// warns since small corpora index fine.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{Name: "file_descriptors"}

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("failed to read limit: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%d (minimum: %d)", rLimit.Cur, MinFileDescriptors)
	if rLimit.Cur < MinFileDescriptors {
		result.Status = StatusWarn
		result.Details = "Run 'ulimit -n 10240' before 'docsift index --watch'"
		return result
	}
	result.Status = StatusPass
	return result
}
