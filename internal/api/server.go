package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/ledger-core/internal/audit"
	"github.com/nerrad567/ledger-core/internal/auth"
	"github.com/nerrad567/ledger-core/internal/directory"
	"github.com/nerrad567/ledger-core/internal/infrastructure/config"
	"github.com/nerrad567/ledger-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is a dependency whose health is reported by /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	Auth      *auth.Service
	Guard     *auth.Guard
	Directory *directory.Service
	AuditRepo audit.Repository // optional: enables GET /audit
	Recorder  *audit.Recorder  // optional: records auth events
	Database  HealthChecker    // optional
	MQTT      HealthChecker    // optional
	Version   string
}

// Server is the HTTP API server for Ledger Core.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	authSvc   *auth.Service
	guard     *auth.Guard
	users     *directory.Service
	auditRepo audit.Repository
	recorder  *audit.Recorder
	db        HealthChecker
	mqtt      HealthChecker
	version   string
	startTime time.Time

	server    *http.Server
	cancel    context.CancelFunc // stops the audit recorder on Close()
	auditDone chan struct{}
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("auth service is required")
	}
	if deps.Guard == nil {
		return nil, fmt.Errorf("authorization guard is required")
	}
	if deps.Directory == nil {
		return nil, fmt.Errorf("directory service is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		authSvc:   deps.Auth,
		guard:     deps.Guard,
		users:     deps.Directory,
		auditRepo: deps.AuditRepo,
		recorder:  deps.Recorder,
		db:        deps.Database,
		mqtt:      deps.MQTT,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start launches the audit recorder and the HTTP listener in the background.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.recorder != nil {
		s.auditDone = make(chan struct{})
		go func() {
			defer close(s.auditDone)
			s.recorder.Run(srvCtx)
		}()
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
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
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close stops accepting requests, waits up to gracefulShutdownTimeout for
// in-flight ones, then flushes queued audit entries.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	shutdownErr := s.server.Shutdown(ctx)

	if s.cancel != nil {
		s.cancel()
	}
	if s.auditDone != nil {
		<-s.auditDone
	}

	if shutdownErr != nil {
		return fmt.Errorf("shutting down API server: %w", shutdownErr)
	}
	return nil
}
