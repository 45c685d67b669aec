// Package main is the demo runner, the process launched inside each sandbox.
//
// It reads one {demo_id, parameters} request from stdin, runs the demo from
// its built-in catalog and writes exactly one ExecutionResult JSON document
// to stdout. Diagnostics go to stderr.
//
// Flags:
//
//	--deadline      exit with code 124 once this much time has passed
//	--memory-mb     address space limit (Linux)
//	--cpu-seconds   CPU time limit (Linux)
//	--max-file-mb   largest file the runner may write (Linux)
//
// Exit codes: 0 when a result was written for a known demo, 2 for a rejected
// request, 124 when the deadline fired.
package main
