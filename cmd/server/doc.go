// Package main is the entry point for the networking demo service.
//
// The server accepts demo job submissions over REST and MCP, queues them, and
// runs a pool of workers that execute each job in a resource-bounded sandbox
// through the demo runner. Job status is polled over the same surfaces.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging and viper for configuration.
package main
