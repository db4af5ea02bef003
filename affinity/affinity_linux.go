//go:build linux

// File: affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>
//
// sched_setaffinity(2) on the calling thread.

package affinity

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// maxCPU is the width of unix.CPUSet.
const maxCPU = 1024

func pinThread(cpuID int) error {
	var set unix.CPUSet
	set.Set(cpuID)
	// pid 0 is the calling thread.
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return errors.Wrapf(err, "affinity: sched_setaffinity cpu %d", cpuID)
	}
	return nil
}
