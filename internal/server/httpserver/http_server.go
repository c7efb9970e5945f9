// Package httpserver wires the updraft HTTP API onto a single listener.
package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"git.home.luguber.info/inful/updraft/internal/blob"
	"git.home.luguber.info/inful/updraft/internal/config"
	"git.home.luguber.info/inful/updraft/internal/coordinator"
	derrors "git.home.luguber.info/inful/updraft/internal/foundation/errors"
	"git.home.luguber.info/inful/updraft/internal/metrics"
	handlers "git.home.luguber.info/inful/updraft/internal/server/handlers"
	smw "git.home.luguber.info/inful/updraft/internal/server/middleware"
)

// Server manages the HTTP API endpoints.
type Server struct {
	httpServer     *http.Server
	cfg            *config.Config
	errorAdapter   *derrors.HTTPErrorAdapter
	metricsHandler http.Handler

	// Handler modules
	buildHandlers      *handlers.BuildHandlers
	webhookHandlers    *handlers.WebhookHandlers
	manifestHandlers   *handlers.ManifestHandlers
	assetHandlers      *handlers.AssetHandlers
	monitoringHandlers *handlers.MonitoringHandlers

	// middleware chain
	mchain func(http.Handler) http.Handler
}

// New constructs a new HTTP server wiring instance. metricsHandler serves
// GET /metrics; pass nil to expose the default Prometheus gatherer.
func New(cfg *config.Config, coord *coordinator.Coordinator, blobs blob.Store, recorder metrics.Recorder, metricsHandler http.Handler) *Server {
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	s := &Server{
		cfg:            cfg,
		errorAdapter:   derrors.NewHTTPErrorAdapter(slog.Default()),
		metricsHandler: metricsHandler,
	}

	s.buildHandlers = handlers.NewBuildHandlers(coord)
	s.webhookHandlers = handlers.NewWebhookHandlers(coord, blobs)
	s.manifestHandlers = handlers.NewManifestHandlers(coord, recorder)
	s.assetHandlers = handlers.NewAssetHandlers(blobs, recorder)
	s.monitoringHandlers = handlers.NewMonitoringHandlers()

	s.mchain = smw.Chain(slog.Default(), s.errorAdapter)

	return s
}

// routes assembles the API surface.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/builds", s.buildHandlers.HandleSubmit)
	mux.HandleFunc("GET /api/builds", s.buildHandlers.HandleListBuilds)
	mux.HandleFunc("GET /api/builds/{id}", s.buildHandlers.HandleGetBuild)
	mux.HandleFunc("POST /api/webhook/builds/{id}", s.webhookHandlers.HandleWebhook)
	mux.HandleFunc("PUT /api/builds/{id}/assets/{key...}", s.webhookHandlers.HandleAssetUpload)
	mux.HandleFunc("GET /api/manifest/{id}", s.manifestHandlers.HandleManifest)
	mux.HandleFunc("GET /api/assets/{id}/{key...}", s.assetHandlers.HandleAsset)
	mux.HandleFunc("GET /api/archives/{id}", s.assetHandlers.HandleArchive)
	mux.HandleFunc("GET /healthz", s.monitoringHandlers.HandleHealth)
	mux.Handle("GET /metrics", s.metricsHandler)

	return s.mchain(mux)
}

// Start binds the listener and begins serving. The port is pre-bound so a
// bind failure surfaces synchronously instead of as a goroutine log line.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("http startup failed: %w", err)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if serr := s.httpServer.Serve(ln); serr != nil && serr != http.ErrServerClosed {
			slog.Error("http server error", "error", serr)
		}
	}()

	slog.Info("HTTP server started",
		slog.String("addr", addr),
		slog.String("public_url", s.cfg.Server.PublicURL))
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	slog.Info("HTTP server stopped")
	return nil
}
