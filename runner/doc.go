// Package runner implements the protocol spoken across the sandbox boundary.
//
// The orchestrator writes one Request document to the runner's standard
// input. The runner resolves the demo in its own static catalog, runs the
// computation, and writes exactly one ExecutionResult document to standard
// output. Diagnostics go to standard error only.
//
// Exit codes:
//
//	0    a result was written for a registered demo (success or not)
//	2    the request violated the contract (malformed, unknown demo, bad parameters)
//	124  the runner's own deadline expired
//
// Usage (inside the sandbox):
//
//	cat, _ := demos.NewCatalog()
//	os.Exit(runner.Run(os.Args[1:], cat, os.Stdin, os.Stdout, os.Stderr))
//
// Usage (orchestrator side):
//
//	stdin, _ := runner.EncodeRequest(j.DemoID, j.Parameters)
//	res, err := runner.ParseOutput(out.Stdout, out.OutputTruncated, maxBytes)
package runner
