// Package sandbox provides isolated execution of the demo runner.
//
// The sandbox package launches exactly one runner instance per request under
// a resource Policy: CPU share, memory ceiling, process-count ceiling,
// read-only root filesystem with a small noexec scratch area, network off
// unless required, all capabilities dropped except an explicit allow-list,
// and a non-root identity without privilege escalation. It supports Docker
// and Podman backends, plus a local process-group backend for development.
//
// Executors enforce the request timeout themselves: on expiry the instance
// and all of its descendants are killed and the result is marked TimedOut.
//
// Usage:
//
//	executor, err := sandbox.NewExecutor(logger, cfg)
//	result, err := executor.Execute(ctx, sandbox.ExecuteRequest{
//	    Name:    "netdemo-" + jobID,
//	    Stdin:   requestJSON,
//	    Args:    []string{"--deadline=31s"},
//	    Timeout: 30 * time.Second,
//	    Policy:  policy,
//	})
package sandbox
