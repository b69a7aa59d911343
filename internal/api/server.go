package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mwrenholt/gatherly-core/internal/access"
	"github.com/mwrenholt/gatherly-core/internal/audit"
	"github.com/mwrenholt/gatherly-core/internal/clock"
	"github.com/mwrenholt/gatherly-core/internal/event"
	"github.com/mwrenholt/gatherly-core/internal/identity"
	"github.com/mwrenholt/gatherly-core/internal/infrastructure/config"
	"github.com/mwrenholt/gatherly-core/internal/infrastructure/influxdb"
	"github.com/mwrenholt/gatherly-core/internal/infrastructure/logging"
	"github.com/mwrenholt/gatherly-core/internal/media"
	"github.com/mwrenholt/gatherly-core/internal/notify"
	"github.com/mwrenholt/gatherly-core/internal/participant"
	"github.com/mwrenholt/gatherly-core/internal/sharetoken"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Sharing config.SharingConfig
	Logger  *logging.Logger

	Identity *identity.Resolver
	Access   *access.Service

	Events       event.Repository
	Participants participant.Repository
	Tokens       sharetoken.Repository
	Media        media.Repository
	Audit        audit.Repository

	Notifier *notify.Notifier // nil when MQTT is disabled
	Metrics  *influxdb.Client // nil when InfluxDB is disabled

	Clock   clock.Clock
	Version string
}

// Server is the HTTP API server for Gatherly Core.
//
// It is created with New() and started with Start(); all handler state
// is read-only after Start, so the server is safe for concurrent use.
type Server struct {
	cfg     config.APIConfig
	sharing config.SharingConfig
	logger  *logging.Logger

	identity *identity.Resolver
	access   *access.Service

	events       event.Repository
	participants participant.Repository
	tokens       sharetoken.Repository
	media        media.Repository
	auditRepo    audit.Repository

	notifier *notify.Notifier
	metrics  *influxdb.Client

	clock   clock.Clock
	version string

	server  *http.Server
	auditCh chan *audit.AuditLog
	cancel  context.CancelFunc
}

// New creates a new API server with the given dependencies.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Identity == nil {
		return nil, fmt.Errorf("identity resolver is required")
	}
	if deps.Access == nil {
		return nil, fmt.Errorf("access service is required")
	}
	if deps.Events == nil || deps.Participants == nil || deps.Tokens == nil {
		return nil, fmt.Errorf("event, participant, and token repositories are required")
	}

	clk := deps.Clock
	if clk == nil {
		clk = clock.System()
	}

	return &Server{
		cfg:          deps.Config,
		sharing:      deps.Sharing,
		logger:       deps.Logger,
		identity:     deps.Identity,
		access:       deps.Access,
		events:       deps.Events,
		participants: deps.Participants,
		tokens:       deps.Tokens,
		media:        deps.Media,
		auditRepo:    deps.Audit,
		notifier:     deps.Notifier,
		metrics:      deps.Metrics,
		clock:        clk,
		version:      deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router, starts the async audit writer, and launches the
// listener in a background goroutine. Stop with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.auditRepo != nil {
		s.auditCh = make(chan *audit.AuditLog, auditChanSize)
		go s.drainAuditLog(srvCtx)
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
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to ten seconds
// for in-flight requests.
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

// HealthCheck verifies the API server is running.
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
