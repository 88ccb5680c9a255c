package tuner

// Worker configuration limits.
const (
	// maxWorkers is the maximum number of workers for any pool.
	maxWorkers = 32

	// minHashWorkers is the minimum number of hashing workers.
	minHashWorkers = 2

	// minWalkWorkers is the minimum number of directory walkers.
	minWalkWorkers = 4

	// DiffWorkers is the fixed fan-out of the change detector.
	DiffWorkers = 8
)

// Hash buffer sizes.
const (
	smallHashBuffer = 256 * 1024
	largeHashBuffer = 1024 * 1024

	// largeBufferRAM is the available memory above which large buffers are used.
	largeBufferRAM = 4 * 1024 * 1024 * 1024
)

// OptimalConfig contains tuned worker configuration for the detected
// system resources.
type OptimalConfig struct {
	// WalkWorkers is the number of directory walking workers.
	WalkWorkers int

	// HashWorkers is the number of concurrent file hashers.
	HashWorkers int

	// DiffWorkers is the change detector fan-out.
	DiffWorkers int

	// HashBufferSize is the read buffer used per hashing worker.
	HashBufferSize int
}

// Calculate returns the configuration for the given resources.
//
//   - WalkWorkers: max(NumCPU, 4), capped at 32
//   - HashWorkers: NumCPU clamped to [2, 32]; hashing is bounded by disk
//     throughput long before it saturates more cores
//   - DiffWorkers: fixed at 8
//   - HashBufferSize: 1 MiB with at least 4 GiB available, else 256 KiB
func Calculate(resources SystemResources) OptimalConfig {
	walkWorkers := max(resources.CPUCores, minWalkWorkers)
	walkWorkers = min(walkWorkers, maxWorkers)

	hashWorkers := max(resources.CPUCores, minHashWorkers)
	hashWorkers = min(hashWorkers, maxWorkers)

	buffer := smallHashBuffer
	if resources.AvailableRAM >= largeBufferRAM {
		buffer = largeHashBuffer
	}

	return OptimalConfig{
		WalkWorkers:    walkWorkers,
		HashWorkers:    hashWorkers,
		DiffWorkers:    DiffWorkers,
		HashBufferSize: buffer,
	}
}

// CalculateWithOverrides applies user overrides to the calculated config.
// Overrides of 0 or less keep the calculated value; positive overrides are
// still capped at the maximum.
func CalculateWithOverrides(resources SystemResources, hashOverride, diffOverride int) OptimalConfig {
	config := Calculate(resources)

	if hashOverride > 0 {
		config.HashWorkers = min(hashOverride, maxWorkers)
	}
	if diffOverride > 0 {
		config.DiffWorkers = min(diffOverride, maxWorkers)
	}

	return config
}

// Auto detects resources and returns the calculated config. Detection errors
// fall back to the partial resources returned by Detect.
func Auto() OptimalConfig {
	resources, _ := Detect()
	return Calculate(resources)
}
