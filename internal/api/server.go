package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/openbuilders/wine-minter/internal/health"
	"github.com/openbuilders/wine-minter/internal/history"
	"github.com/openbuilders/wine-minter/internal/minting"
	"github.com/openbuilders/wine-minter/internal/types"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// APIHandler is a custom handler type that returns data or an error
type APIHandler func(w http.ResponseWriter, r *http.Request) (interface{}, error)

type Coordinator interface {
	Start(ctx context.Context, req minting.StartRequest) (*minting.Run, error)
	Stop() error
	Status() (*minting.Run, bool)
	Progress() types.BatchMintingProgress
	Summary() types.MintSummary
	ClearHistory() error
	Results(ctx context.Context) []types.MintResult
	Wineries(ctx context.Context) []types.Winery
}

type History interface {
	Snapshot() []types.MintingStatus
	Counts() history.ResumeData
}

// AssetSource looks up minted assets on the tokenization API. A nil asset
// means the unit is unknown.
type AssetSource interface {
	RetrieveAsset(ctx context.Context, unit string) (map[string]any, error)
}

type HealthChecker interface {
	GetHealthStatus() health.HealthStatus
}

type Server struct {
	config      *Config
	coordinator Coordinator
	history     History
	assets      AssetSource
	health      HealthChecker
	log         *slog.Logger
}

type Config struct {
	ListenAddr      string
	ListenPort      int
	MetricsPort     int
	ProbesPort      int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	ID              string
}

// NewServer builds the API server. assets may be nil when main network
// minting is not configured.
func NewServer(config *Config, coordinator Coordinator, history History,
	assets AssetSource, checker HealthChecker) *Server {
	return &Server{
		config:      config,
		coordinator: coordinator,
		history:     history,
		assets:      assets,
		health:      checker,
		log:         slog.With("pod", config.ID, "component", "web-server"),
	}
}

// Handler returns the minting control API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// The order of middleware calls is up to bottom, first WithMethod is
	// called, then WithJSONResponse.
	mux.HandleFunc("/mint/start", WithMethod(
		WithJSONResponse(s.StartHandler),
		http.MethodPost,
	))

	mux.HandleFunc("/mint/stop", WithMethod(
		WithJSONResponse(s.StopHandler),
		http.MethodPost,
	))

	mux.HandleFunc("/mint/progress", WithMethod(
		WithJSONResponse(s.ProgressHandler),
		http.MethodGet,
	))

	mux.HandleFunc("/mint/history", WithMethods(map[string]http.HandlerFunc{
		http.MethodGet:    WithJSONResponse(s.HistoryHandler),
		http.MethodDelete: WithJSONResponse(s.ClearHistoryHandler),
	}))

	mux.HandleFunc("/mint/results", WithMethod(
		WithJSONResponse(s.ResultsHandler),
		http.MethodGet,
	))

	mux.HandleFunc("/assets", WithMethod(
		WithJSONResponse(s.AssetHandler),
		http.MethodGet,
	))

	mux.HandleFunc("/wineries", WithMethod(
		WithJSONResponse(s.WineriesHandler),
		http.MethodGet,
	))

	return http.TimeoutHandler(mux, s.config.WriteTimeout, "Timeout")
}

// ProbesHandler serves the liveness and readiness probes.
func (s *Server) ProbesHandler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/health", WithMethod(
		WithJSONResponse(s.HealthHandler),
		http.MethodGet,
	))

	mux.Handle("/ready", WithMethod(
		WithJSONResponse(s.ReadinessHandler),
		http.MethodGet,
	))

	return mux
}

// Start serves the API, the probes and the metrics until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	metrics := http.NewServeMux()
	metrics.Handle("/metrics", promhttp.Handler())

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.serve(ctx, "api", s.config.ListenAddr, s.config.ListenPort, s.Handler())
	})

	g.Go(func() error {
		return s.serve(ctx, "probes", "", s.config.ProbesPort, s.ProbesHandler())
	})

	g.Go(func() error {
		return s.serve(ctx, "metrics", "", s.config.MetricsPort, metrics)
	})

	return g.Wait()
}

func (s *Server) serve(ctx context.Context, name, addr string, port int,
	handler http.Handler) error {
	httpServer := &http.Server{
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	// Use ListenConfig to create a listener with context support
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", addr, port))
	if err != nil {
		return fmt.Errorf("%s listener: %w", name, err)
	}

	go func() {
		<-ctx.Done()

		s.log.Info("Shutting down server...", "server", name)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error("Server forced to shutdown", "server", name, "error", err)
		}
	}()

	s.log.Info("Starting server", "server", name, "port", port)

	if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server: %w", name, err)
	}

	return nil
}
