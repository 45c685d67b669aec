// Package main is democtl, a small client for the demo service REST API.
//
// Usage:
//
//	democtl demos
//	democtl demo tcp-handshake -o yaml
//	democtl submit dns-query --params '{"domain":"example.com"}' --wait
//	democtl status <job-id>
//
// The server URL comes from --server or the NETDEMO_SERVER environment
// variable.
package main
