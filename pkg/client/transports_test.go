package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestDialWebsocket(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.WriteMessage(mt, msg)
	}))
	defer srv.Close()
	wsURL := "wss" + strings.TrimPrefix(srv.URL, "https")
	ctx := context.Background()

	_, err := DialWebsocket(ctx, wsURL, WithVerify(VerifyBundled()))
	require.Error(t, err)
	assert.True(t, IsTrustError(err), "got %v", err)

	trustServer(t, srv)
	conn, err := DialWebsocket(ctx, wsURL)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "ping", string(msg))
}

func TestCheckHealth(t *testing.T) {
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	defer gs.Stop()

	srv := httptest.NewUnstartedServer(gs)
	srv.EnableHTTP2 = true
	srv.StartTLS()
	defer srv.Close()
	target := strings.TrimPrefix(srv.URL, "https://")
	ctx := context.Background()

	_, err := CheckHealth(ctx, target, "", WithVerify(VerifyBundled()))
	require.Error(t, err)
	assert.True(t, IsTrustError(err), "got %v", err)

	trustServer(t, srv)
	status, err := CheckHealth(ctx, target, "")
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status)
}

func TestGRPCCredentials(t *testing.T) {
	creds, err := GRPCCredentials(VerifyBundled())
	require.NoError(t, err)
	assert.Equal(t, "tls", creds.Info().SecurityProtocol)

	_, err = GRPCCredentials(VerifyTLSConfig(nil))
	assert.Error(t, err)

	rec := &recordingCreds{TransportCredentials: creds, sink: &handshakeSink{}}
	clone, ok := rec.Clone().(*recordingCreds)
	require.True(t, ok)
	assert.Same(t, rec.sink, clone.sink)
}
