// Package job holds the data model shared by every stage of the demo pipeline.
//
// A Job moves through a fixed state machine:
//
//	pending -> running -> completed | failed | timeout
//	pending -> failed   (rejected before any sandbox was launched)
//
// Terminal states are write-once. Result is the ExecutionResult document that
// crosses the sandbox boundary.
//
// Usage:
//
//	j := job.New("tcp-handshake", params, time.Now())
//	if err := job.CheckTransition(j.Status, job.StatusRunning); err != nil {
//		return err
//	}
package job
