package runner

import (
	"os"
	"time"
)

var exitProcess = os.Exit

// StartWatchdog calls onExpire and then exit(ExitDeadline) once d elapses.
// It is the backstop that ends the sandbox even if its supervisor has died.
// The returned function disarms it.
func StartWatchdog(d time.Duration, onExpire func(), exit func(int)) (stop func()) {
	t := time.AfterFunc(d, func() {
		if onExpire != nil {
			onExpire()
		}
		exit(ExitDeadline)
	})
	return func() { t.Stop() }
}
