// control/platform.go
// Author: momentics <momentics@gmail.com>
//
// Process-level probes, reported by INFO next to the shm.* ones.

package control

import (
	"os"
	"runtime"
)

// RegisterPlatformProbes adds platform.cpus, platform.pid and
// platform.goroutines to dp.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.pid", func() any {
		return os.Getpid()
	})
	dp.RegisterProbe("platform.goroutines", func() any {
		return runtime.NumGoroutine()
	})
}
