//go:build !darwin && !linux

package tuner

import (
	"runtime"
)

// Detect detects available system resources (CPU and RAM).
// Memory is not probed on this platform; a fixed estimate is returned.
func Detect() (SystemResources, error) {
	return SystemResources{
		CPUCores:     runtime.NumCPU(),
		TotalRAM:     defaultTotalRAM,
		AvailableRAM: defaultTotalRAM / 2,
	}, nil
}
