package client

import (
	"context"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCCredentials wraps the trust context for v as gRPC transport credentials.
func GRPCCredentials(v Verify) (credentials.TransportCredentials, error) {
	cfg, err := NewTLSConfig(v)
	if err != nil {
		return nil, fmt.Errorf("building tls config: %w", err)
	}
	return credentials.NewTLS(cfg), nil
}

// handshakeSink keeps the last TLS handshake failure; gRPC flattens it into
// a status message otherwise.
type handshakeSink struct {
	mu  sync.Mutex
	err error
}

func (s *handshakeSink) set(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *handshakeSink) get() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

type recordingCreds struct {
	credentials.TransportCredentials
	sink *handshakeSink
}

func (c *recordingCreds) ClientHandshake(ctx context.Context, authority string, raw net.Conn) (net.Conn, credentials.AuthInfo, error) {
	conn, info, err := c.TransportCredentials.ClientHandshake(ctx, authority, raw)
	if err != nil {
		c.sink.set(err)
	}
	return conn, info, err
}

func (c *recordingCreds) Clone() credentials.TransportCredentials {
	return &recordingCreds{TransportCredentials: c.TransportCredentials.Clone(), sink: c.sink}
}

// CheckHealth calls the standard gRPC health service at target (host:port)
// for service ("" is the whole server).
func CheckHealth(ctx context.Context, target, service string, opts ...Option) (healthpb.HealthCheckResponse_ServingStatus, error) {
	s := newSettings(opts)
	creds, err := GRPCCredentials(s.verify)
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	rec := &recordingCreds{TransportCredentials: creds, sink: &handshakeSink{}}

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(rec))
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, &ConnectError{Op: "grpc", URL: target, Err: err}
	}
	defer conn.Close()

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(cctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		if herr := rec.sink.get(); herr != nil {
			err = herr
		}
		return healthpb.HealthCheckResponse_UNKNOWN, &ConnectError{Op: "grpc", URL: target, Err: err}
	}
	return resp.GetStatus(), nil
}
