package gateway

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/neuragate/gateway/internal/config"
	"github.com/neuragate/gateway/internal/logging"
)

// Server wraps a Gateway with the HTTP listener and the
// signal-driven graceful shutdown that makes it a runnable process,
// draining in-flight requests before exit.
type Server struct {
	gateway *Gateway
	http    *http.Server
	cfg     *config.Config
}

// NewServer builds a Server around an already-wired Gateway.
func NewServer(cfg *config.Config, gw *Gateway) *Server {
	return &Server{
		gateway: gw,
		cfg:     cfg,
		http: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      gw.Handler(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
	}
}

// Run starts the gateway's route pipeline and the HTTP listener, then
// blocks until ctx is cancelled or a SIGINT/SIGTERM arrives, at which
// point it drains in-flight requests for up to the configured
// shutdown timeout before forcing close.
func (s *Server) Run(ctx context.Context) error {
	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		if err := s.gateway.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
	go func() {
		logging.Info("gateway listening", zap.String("addr", s.cfg.Server.Addr))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-runCtx.Done():
	}

	return s.Shutdown(context.Background())
}

// Shutdown drains in-flight requests for up to the configured drain
// timeout, then closes the gateway's own resources (telemetry
// publisher, etcd notifier, upstream connection pools).
func (s *Server) Shutdown(ctx context.Context) error {
	drainCtx, cancel := context.WithTimeout(ctx, s.cfg.Shutdown.DrainTimeout)
	defer cancel()

	logging.Info("shutting down, draining in-flight requests", zap.Duration("timeout", s.cfg.Shutdown.DrainTimeout))
	if err := s.http.Shutdown(drainCtx); err != nil {
		logging.Warn("forced listener close after drain timeout", zap.Error(err))
		_ = s.http.Close()
	}

	return s.gateway.Close(ctx)
}
