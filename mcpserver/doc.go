// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package exposes the demo job service to MCP clients as three
// tools: list_demos, submit_demo_job and get_job_status. It uses the
// mark3labs/mcp-go library for the protocol and can serve over stdio or be
// mounted on the REST server as a streamable HTTP endpoint.
//
// Usage:
//
//	srv, err := mcpserver.New(cfg, logger, svc, version)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	router.Handle("/mcp", srv.HTTPHandler())
package mcpserver
