package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/catalog"
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/config"
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/job"
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/jobs"
)

const serverName = "networking-demos"

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	service   *jobs.Service
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, svc *jobs.Service, version string) (*MCPServer, error) {
	if svc == nil {
		return nil, errors.New("job service is required")
	}
	s := &MCPServer{
		config:  cfg,
		logger:  logger,
		service: svc,
	}

	logger.Info("configuration loaded",
		zap.String("server.http_addr", cfg.Server.HTTPAddr),
		zap.String("server.mcp_transport", cfg.Server.MCPTransport),
		zap.String("queue.backend", cfg.Queue.Backend),
		zap.Int("worker.concurrency", cfg.Worker.Concurrency),
		zap.String("sandbox.backend", cfg.Sandbox.Backend),
		zap.String("sandbox.image", cfg.Sandbox.Image),
		zap.Int("sandbox.memory_mb", cfg.Sandbox.MemoryMB),
		zap.Int("sandbox.pids_limit", cfg.Sandbox.PidsLimit),
		zap.Bool("sandbox.enable_local_backend", cfg.Sandbox.EnableLocalBackend),
	)

	s.mcpServer = server.NewMCPServer(serverName, version, server.WithToolCapabilities(false))
	s.registerTools()
	return s, nil
}

func (s *MCPServer) registerTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_demos",
		Description: "List the available networking demos with their runtime limits",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, s.handleListDemos)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "submit_demo_job",
		Description: "Queue a networking demo for sandboxed execution and return the pending job",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"demo_id": map[string]any{
					"type":        "string",
					"description": "Demo identifier from list_demos",
				},
				"parameters": map[string]any{
					"type":        "object",
					"description": "Demo parameters matching the demo's parameters_schema",
				},
			},
			Required: []string{"demo_id"},
		},
	}, s.handleSubmitDemoJob)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "get_job_status",
		Description: "Get the status and, once finished, the result of a demo job",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"job_id": map[string]any{
					"type":        "string",
					"description": "Job identifier returned by submit_demo_job",
				},
			},
			Required: []string{"job_id"},
		},
	}, s.handleGetJobStatus)
}

func (s *MCPServer) handleListDemos(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.service.Demos())
}

func (s *MCPServer) handleSubmitDemoJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	demoID, err := request.RequireString("demo_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	params := json.RawMessage("{}")
	if raw, ok := request.GetArguments()["parameters"]; ok && raw != nil {
		obj, isObject := raw.(map[string]any)
		if !isObject {
			return mcp.NewToolResultError("parameters must be an object"), nil
		}
		if params, err = json.Marshal(obj); err != nil {
			return mcp.NewToolResultError("parameters cannot be encoded"), nil
		}
	}

	s.logger.Info("demo job requested over MCP", zap.String("demo_id", demoID))

	snap, err := s.service.Submit(ctx, demoID, params)
	var verr *catalog.ValidationError
	switch {
	case err == nil:
		return jsonResult(snap)
	case errors.Is(err, job.ErrUnknownDemo), errors.As(err, &verr):
		return mcp.NewToolResultError(err.Error()), nil
	default:
		s.logger.Error("submit job", zap.String("demo_id", demoID), zap.Error(err))
		return mcp.NewToolResultError("failed to submit job"), nil
	}
}

func (s *MCPServer) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("job_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	snap, err := s.service.Status(ctx, id)
	switch {
	case err == nil:
		return jsonResult(snap)
	case errors.Is(err, job.ErrNotFound):
		return mcp.NewToolResultError("job not found: " + id), nil
	default:
		s.logger.Error("get job", zap.String("job_id", id), zap.Error(err))
		return mcp.NewToolResultError("failed to get job"), nil
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ServeStdio serves MCP on the given streams until ctx is done
func (s *MCPServer) ServeStdio(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	s.logger.Info("starting MCP server on stdio")
	return server.NewStdioServer(s.mcpServer).Listen(ctx, stdin, stdout)
}

// HTTPHandler returns the streamable HTTP transport for mounting at /mcp
func (s *MCPServer) HTTPHandler() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s.mcpServer)
}

// GetMCPServer returns the underlying MCP server
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
