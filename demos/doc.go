// Package demos registers the networking demos that can run inside a sandbox.
//
// Each demo is a pure computation over validated parameters. NewCatalog builds
// the immutable catalog shared by the server (for validation and policy) and
// the in-sandbox runner (for execution).
//
// Usage:
//
//	cat := demos.NewCatalog()
//	entry, err := cat.Lookup(demos.TCPHandshakeID)
package demos
