// Package fixture is a disposable HTTPS endpoint used to check which trust
// anchors an HTTP client accepts. It serves one route for the common verbs,
// a websocket echo and the gRPC health service, all on the same TLS port.
package fixture

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/net/http2"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/arun0009/systemcerts/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// Server is the fixture HTTPS server.
type Server struct {
	cfg      Config
	metrics  *metrics
	gatherer prometheus.Gatherer
	limiter  *rate.Limiter
	grpc     *grpc.Server
	health   *health.Server
}

// New builds a server with a private metrics registry.
func New(cfg Config) *Server {
	reg := prometheus.NewRegistry()
	s := &Server{
		cfg:      cfg,
		metrics:  newMetrics(reg),
		gatherer: reg,
		grpc:     grpc.NewServer(),
		health:   health.NewServer(),
	}
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	return s
}

// Run serves until ctx is done, then shuts down gracefully. The ready
// message is logged once the listener is bound.
func (s *Server) Run(ctx context.Context) error {
	if err := ensureCert(s.cfg.CertFile, s.cfg.KeyFile); err != nil {
		return err
	}
	cert, err := tls.LoadX509KeyPair(s.cfg.CertFile, s.cfg.KeyFile)
	if err != nil {
		return fmt.Errorf("loading key pair: %w", err)
	}

	server := &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		TLSConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		},
	}
	if err := http2.ConfigureServer(server, &http2.Server{}); err != nil {
		return fmt.Errorf("configuring http2: %w", err)
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", server.Addr, err)
	}
	logger.Info("Serving HTTPS", "addr", ln.Addr().String(), "cert", s.cfg.CertFile)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(tls.NewListener(ln, server.TLSConfig))
	}()
	logger.Info(ReadyMessage)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	s.health.Shutdown()
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.grpc.Stop()
	return nil
}
