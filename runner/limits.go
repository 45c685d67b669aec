package runner

// Limits are per-process resource ceilings applied by the runner to itself.
// They complement the container limits and are the only limits the local
// backend has.
type Limits struct {
	MemoryMB   int
	CPUSeconds int
	MaxFileMB  int
}
