//go:build !linux

package runner

// Apply is a no-op outside Linux.
func (Limits) Apply() error {
	return nil
}
