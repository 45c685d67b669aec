// Package jobs is the submission service shared by the REST and MCP
// surfaces. Submit validates against the catalog before anything is queued,
// so validation failures are the only errors a caller sees synchronously.
package jobs
