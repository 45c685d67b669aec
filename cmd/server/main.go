package main

import (
	"context"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/catalog"
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/config"
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/demos"
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/httpapi"
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/jobs"
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/logger"
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/mcpserver"
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/orchestrator"
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/queue"
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/sandbox"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// stopTimeout bounds the whole shutdown; in-flight jobs get
// server.shutdown_timeout_sec of it.
const stopTimeout = 60 * time.Second

func main() {
	app := fx.New(
		fx.Provide(
			config.New,
			logger.NewFromConfig,
			demos.NewCatalog,
			newQueue,
			sandbox.NewExecutor,
			newOrchestrator,
			newPool,
			jobs.NewService,
			newMCPServer,
			newHTTPServer,
		),

		fx.Invoke(func(*orchestrator.Pool, *httpapi.Server) {}),
		fx.Invoke(serveStdio),

		fx.StopTimeout(stopTimeout),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	app.Run()
}

func newQueue(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (queue.Manager, error) {
	q, err := queue.NewFromConfig(cfg, log)
	if err != nil {
		return nil, err
	}

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if mq, ok := q.(*queue.MemoryQueue); ok {
				go mq.RunJanitor(janitorCtx, cfg.GetSweepInterval())
			}
			log.Info("job queue ready",
				zap.String("backend", cfg.Queue.Backend),
				zap.Duration("ttl", cfg.GetQueueTTL()),
			)
			return nil
		},
		OnStop: func(context.Context) error {
			stopJanitor()
			return q.Close()
		},
	})
	return q, nil
}

func newOrchestrator(cfg *config.Config, q queue.Manager, cat *catalog.Catalog, executor sandbox.SandboxExecutor, log *zap.Logger) *orchestrator.Orchestrator {
	return orchestrator.New(q, cat, executor, log, orchestrator.OptionsFromConfig(cfg))
}

func newPool(lc fx.Lifecycle, cfg *config.Config, q queue.Manager, orch *orchestrator.Orchestrator, log *zap.Logger) *orchestrator.Pool {
	pool := orchestrator.NewPool(q, orch, log, cfg.Worker.Concurrency)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			pool.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, cfg.GetShutdownTimeout())
			defer cancel()
			return pool.Stop(stopCtx)
		},
	})
	return pool
}

func newMCPServer(cfg *config.Config, log *zap.Logger, svc *jobs.Service) (*mcpserver.MCPServer, error) {
	return mcpserver.New(cfg, log, svc, version)
}

func newHTTPServer(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, svc *jobs.Service, mcp *mcpserver.MCPServer) *httpapi.Server {
	srv := httpapi.NewServer(httpapi.Options{
		Addr:        cfg.Server.HTTPAddr,
		CORSOrigins: cfg.Server.CORSOrigins,
		Version:     version,
	}, svc, log)

	if cfg.Server.MCPTransport == "http" {
		srv.Mount("/mcp", mcp.HTTPHandler())
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return srv.Start()
		},
		OnStop: srv.Shutdown,
	})
	return srv
}

// serveStdio runs MCP on stdin/stdout when configured and stops the app when
// the client closes the stream.
func serveStdio(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *config.Config, mcp *mcpserver.MCPServer, log *zap.Logger) {
	if cfg.Server.MCPTransport != "stdio" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := mcp.ServeStdio(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
					log.Error("MCP stdio server stopped", zap.Error(err))
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
