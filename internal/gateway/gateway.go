// Package gateway provides the HTTP API server for connection detection,
// notification dispatch, and monitoring. It binds to loopback by default.
package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/graphrag/connectd/internal/detect"
	"github.com/graphrag/connectd/internal/ledger"
	"github.com/graphrag/connectd/internal/notify"
)

const defaultShutdownTimeout = 10 * time.Second

// Gateway is the HTTP API server. It exposes detection, stats, history,
// and channel management endpoints over a chi router.
type Gateway struct {
	listen    string
	logger    *slog.Logger
	detector  *detect.Detector
	manager   *notify.Manager
	ledger    *ledger.Ledger
	metrics   *Metrics
	server    *http.Server
	startedAt time.Time
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithLogger sets the gateway logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithLedger attaches a delivery ledger. Without one the /api/deliveries
// endpoint reports the ledger as unavailable.
func WithLedger(l *ledger.Ledger) Option {
	return func(g *Gateway) { g.ledger = l }
}

// New creates a Gateway serving the given detector and notification manager.
func New(listen string, detector *detect.Detector, manager *notify.Manager, opts ...Option) (*Gateway, error) {
	if detector == nil {
		return nil, errors.New("gateway: detector is required")
	}
	if manager == nil {
		return nil, errors.New("gateway: notification manager is required")
	}
	if _, err := net.ResolveTCPAddr("tcp", listen); err != nil {
		return nil, errors.New("gateway: invalid listen address: " + listen)
	}

	g := &Gateway{
		listen:   listen,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		detector: detector,
		manager:  manager,
		metrics:  &Metrics{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Start binds the listen address and serves requests in the background.
func (g *Gateway) Start(ctx context.Context) error {
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.listen,
		Handler:      g.buildRouter(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", g.listen)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.listen)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the server down gracefully.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
