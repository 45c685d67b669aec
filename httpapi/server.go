package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/jobs"
)

const (
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second
)

// Options configures the HTTP server
type Options struct {
	Addr        string
	CORSOrigins []string
	Version     string
}

// Server wraps the chi router and the job service.
type Server struct {
	router     *chi.Mux
	service    *jobs.Service
	logger     *zap.Logger
	opts       Options
	httpServer *http.Server
}

// NewServer creates and configures a new HTTP server
func NewServer(opts Options, svc *jobs.Service, logger *zap.Logger) *Server {
	srv := &Server{
		router:  chi.NewRouter(),
		service: svc,
		logger:  logger,
		opts:    opts,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.RealIP)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.loggingMiddleware)
	srv.router.Use(metricsMiddleware)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id", "Mcp-Session-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "Mcp-Session-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	srv.routes()
	return srv
}

func (s *Server) routes() {
	s.router.Handle("/metrics", metricsHandler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/demos", s.handleListDemos)
		r.Get("/demos/{id}", s.handleGetDemo)
		r.Post("/jobs", s.handleSubmitJob)
		r.Get("/jobs/{id}", s.handleGetJob)
	})
}

// Mount attaches an additional handler, such as the MCP transport
func (s *Server) Mount(pattern string, h http.Handler) {
	s.router.Handle(pattern, h)
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("remote_addr", r.RemoteAddr),
		)
	})
}
