package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/fhz2mqtt/internal/bridge"
	"github.com/nerrad567/fhz2mqtt/internal/device"
	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/config"
	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/database"
	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/logging"
)

// shutdownGrace bounds how long Close waits for in-flight requests.
const shutdownGrace = 10 * time.Second

var (
	// ErrMissingDependency is returned by New when a required dependency is nil.
	ErrMissingDependency = errors.New("api: missing dependency")

	// ErrNotStarted is returned by HealthCheck before Start.
	ErrNotStarted = errors.New("api: server not started")
)

// Controller is the part of the bridge the API drives. *bridge.Bridge
// implements it.
type Controller interface {
	Set(ctx context.Context, houseCode, command, value string) (bridge.SetResult, error)
	Health() bridge.HealthMessage
	Stats() bridge.Statistics
	IsConnected() bool
	MQTTConnected() bool
}

// Inventory is the read side of the thermostat inventory. *device.Registry
// implements it.
type Inventory interface {
	GetThermostat(ctx context.Context, houseCode string) (*device.Thermostat, error)
	ListThermostats(ctx context.Context) []device.Thermostat
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Bridge  Controller
	Devices Inventory    // Optional; nil when the database is disabled
	DB      *database.DB // Optional; pool statistics in /stats
	Hub     *Hub         // Shared with the bridge; Start creates one when nil
	Version string
}

// Server serves the REST endpoints and the websocket stream.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	bridge    Controller
	devices   Inventory
	db        *database.DB
	version   string
	startTime time.Time

	hub      *Hub
	http     *http.Server
	listener net.Listener
	stopHub  context.CancelFunc
}

// New validates deps and returns an unstarted server.
//
// Parameters:
//   - deps: Logger and Bridge are required; everything else is optional
//
// Returns:
//   - *Server: Server ready for Start
//   - error: ErrMissingDependency when Logger or Bridge is nil
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, fmt.Errorf("%w: logger", ErrMissingDependency)
	case deps.Bridge == nil:
		return nil, fmt.Errorf("%w: bridge", ErrMissingDependency)
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		bridge:    deps.Bridge,
		devices:   deps.Devices,
		db:        deps.DB,
		hub:       deps.Hub,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Start binds the listen address and serves in the background.
//
// A hub is created and run for the lifetime of ctx unless one was passed
// in Deps.
//
// Parameters:
//   - ctx: Bounds the lifetime of a server-owned hub
//
// Returns:
//   - error: If the address cannot be bound
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	if s.hub == nil {
		var hubCtx context.Context
		hubCtx, s.stopHub = context.WithCancel(ctx)
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(hubCtx)
	}

	t := s.cfg.Timeouts
	s.http = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       t.ReadTimeout(),
		ReadHeaderTimeout: t.ReadTimeout(),
		WriteTimeout:      t.WriteTimeout(),
		IdleTimeout:       t.IdleTimeout(),
	}

	go func() {
		s.logger.Info("API listening", "address", ln.Addr().String())
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server stopped", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close stops accepting requests and waits up to shutdownGrace for the
// ones in flight. A hub created by Start is stopped too.
func (s *Server) Close() error {
	if s.http == nil {
		return nil
	}
	if s.stopHub != nil {
		s.stopHub()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	s.logger.Info("API shutting down")
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports ErrNotStarted until Start has bound the listener.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.listener == nil {
		return ErrNotStarted
	}
	return nil
}

// Hub returns the websocket hub, nil before Start unless one was injected.
func (s *Server) Hub() *Hub {
	return s.hub
}
