// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Pins the shared-memory polling thread to one CPU so its spin loop does
// not migrate between cores.

package affinity

import "github.com/pkg/errors"

// ErrUnsupported is returned where thread pinning is not available.
var ErrUnsupported = errors.New("affinity: not supported on this platform")

// SetAffinity restricts the calling OS thread to cpuID. The caller must
// hold runtime.LockOSThread, or the goroutine may move off the pinned
// thread on its next reschedule.
func SetAffinity(cpuID int) error {
	if cpuID < 0 || cpuID >= maxCPU {
		return errors.Errorf("affinity: cpu %d out of range [0,%d)", cpuID, maxCPU)
	}
	return pinThread(cpuID)
}
