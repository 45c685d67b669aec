//go:build linux

package runner

import (
	"fmt"
	"syscall"
)

// Apply sets the non-zero limits with setrlimit.
func (l Limits) Apply() error {
	set := func(resource int, name string, value uint64) error {
		lim := &syscall.Rlimit{Cur: value, Max: value}
		if err := syscall.Setrlimit(resource, lim); err != nil {
			return fmt.Errorf("setrlimit %s: %w", name, err)
		}
		return nil
	}
	if l.MemoryMB > 0 {
		if err := set(syscall.RLIMIT_AS, "AS", uint64(l.MemoryMB)<<20); err != nil {
			return err
		}
	}
	if l.CPUSeconds > 0 {
		if err := set(syscall.RLIMIT_CPU, "CPU", uint64(l.CPUSeconds)); err != nil {
			return err
		}
	}
	if l.MaxFileMB > 0 {
		if err := set(syscall.RLIMIT_FSIZE, "FSIZE", uint64(l.MaxFileMB)<<20); err != nil {
			return err
		}
	}
	return nil
}
