// Package config provides application configuration management.
//
// The config package loads configuration from a YAML file, NETDEMO_*
// environment variables and built-in defaults, then validates it. It covers
// the HTTP and MCP surfaces, logging, the job queue, the worker pool and the
// sandbox resource policy.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Queue backend: %s\n", cfg.Queue.Backend)
package config
