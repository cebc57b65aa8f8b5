package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/junctionlabs/junction-core/internal/broker"
	"github.com/junctionlabs/junction-core/internal/gateway"
	"github.com/junctionlabs/junction-core/internal/infrastructure/config"
	"github.com/junctionlabs/junction-core/internal/infrastructure/logging"
	"github.com/junctionlabs/junction-core/internal/session"
	"github.com/junctionlabs/junction-core/internal/stream"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Stream   config.StreamConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Registry *gateway.Registry
	Audit    *gateway.AuditLog // optional: audit read-back disabled when nil
	Broker   *broker.Broker
	Sessions *session.Store
	Binder   *stream.Binder
	Version  string
}

// Server is the HTTP API server for Junction Cloud Core.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	streamCfg config.StreamConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	registry  *gateway.Registry
	audit     *gateway.AuditLog
	broker    *broker.Broker
	sessions  *session.Store
	binder    *stream.Binder
	version   string
	server    *http.Server
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("gateway registry is required")
	}
	if deps.Broker == nil {
		return nil, fmt.Errorf("access broker is required")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if deps.Binder == nil {
		return nil, fmt.Errorf("stream binder is required")
	}

	return &Server{
		cfg:       deps.Config,
		streamCfg: deps.Stream,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		registry:  deps.Registry,
		audit:     deps.Audit,
		broker:    deps.Broker,
		sessions:  deps.Sessions,
		binder:    deps.Binder,
		version:   deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	_, s.cancel = context.WithCancel(ctx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		// WriteTimeout stays off the server: SSE and WebSocket responses
		// outlive any fixed deadline. Per-write deadlines are set on the
		// WebSocket connection instead.
		IdleTimeout: time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
