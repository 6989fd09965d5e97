package fixture

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestGenerateSelfSignedCert(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")

	if err := GenerateSelfSignedCert(certFile, keyFile, "fixture.internal", "10.0.0.1"); err != nil {
		t.Fatalf("GenerateSelfSignedCert: %v", err)
	}
	cf, err := os.ReadFile(certFile)
	if err != nil {
		t.Fatalf("cert not created: %v", err)
	}
	p, _ := pem.Decode(cf)
	if p == nil || p.Type != "CERTIFICATE" {
		t.Fatalf("invalid cert PEM")
	}
	cert, err := x509.ParseCertificate(p.Bytes)
	if err != nil {
		t.Fatalf("parse cert: %v", err)
	}
	for _, host := range []string{"localhost", "127.0.0.1", "::1", "fixture.internal", "10.0.0.1"} {
		if err := cert.VerifyHostname(host); err != nil {
			t.Errorf("cert does not cover %s: %v", host, err)
		}
	}
	kf, err := os.ReadFile(keyFile)
	if err != nil {
		t.Fatalf("key not created: %v", err)
	}
	if p, _ := pem.Decode(kf); p == nil || p.Type != "RSA PRIVATE KEY" {
		t.Errorf("invalid key PEM")
	}
	if info, err := os.Stat(keyFile); err == nil && info.Mode().Perm() != 0600 {
		t.Errorf("key file mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("FIXTURE_PORT", "9443")
	t.Setenv("FIXTURE_LOG_REQUESTS", "false")
	t.Setenv("FIXTURE_RATE_LIMIT_RPS", "2.5")
	cfg := LoadConfigFromEnv()
	if cfg.Port != 9443 || cfg.LogRequests || cfg.RateLimitRPS != 2.5 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Host != "0.0.0.0" || cfg.CertFile != "cert.pem" || cfg.KeyFile != "key.pem" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Addr() != "0.0.0.0:9443" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
}

func TestParseHelpers(t *testing.T) {
	if parseInt64("not-a-number") != 0 {
		t.Errorf("parseInt64 invalid should return 0")
	}
	if parseFloat64("not-a-number") != 0 {
		t.Errorf("parseFloat64 invalid should return 0")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// TestRun starts the real TLS listener and exercises every protocol it serves.
func TestRun(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Host:     "127.0.0.1",
		Port:     freePort(t),
		CertFile: filepath.Join(dir, "cert.pem"),
		KeyFile:  filepath.Join(dir, "key.pem"),
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(cfg).Run(ctx) }()
	defer func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run returned %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Errorf("Run did not return after cancel")
		}
	}()

	certPEM := waitForFile(t, cfg.CertFile)
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(certPEM) {
		t.Fatal("generated cert is not PEM")
	}
	tlsCfg := &tls.Config{RootCAs: pool}
	httpClient := &http.Client{Transport: &http.Transport{TLSClientConfig: tlsCfg, ForceAttemptHTTP2: true}}
	base := fmt.Sprintf("https://localhost:%d", cfg.Port)

	var resp *http.Response
	var err error
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err = httpClient.Get(base + "/")
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	var msg Message
	json.NewDecoder(resp.Body).Decode(&msg)
	resp.Body.Close()
	if msg.Message != "Hello World" {
		t.Errorf("unexpected body %+v", msg)
	}
	if resp.ProtoMajor != 2 {
		t.Errorf("expected HTTP/2 over TLS, got %s", resp.Proto)
	}

	dialer := websocket.Dialer{TLSClientConfig: &tls.Config{RootCAs: pool}}
	conn, _, err := dialer.Dial(fmt.Sprintf("wss://localhost:%d/ws", cfg.Port), nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	conn.WriteMessage(websocket.TextMessage, []byte("hi"))
	if _, m, err := conn.ReadMessage(); err != nil || string(m) != "hi" {
		t.Errorf("websocket echo = %q, %v", m, err)
	}
	conn.Close()

	gconn, err := grpc.NewClient(fmt.Sprintf("localhost:%d", cfg.Port), grpc.WithTransportCredentials(credentials.NewTLS(tlsCfg)))
	if err != nil {
		t.Fatalf("grpc client: %v", err)
	}
	defer gconn.Close()
	hctx, hcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer hcancel()
	hresp, err := healthpb.NewHealthClient(gconn).Check(hctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("grpc health: %v", err)
	}
	if hresp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("health status = %v", hresp.GetStatus())
	}
}

func TestRunFailsOnBadKeyPair(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	os.WriteFile(certFile, []byte("junk"), 0644)
	err := New(Config{Host: "127.0.0.1", Port: freePort(t), CertFile: certFile, KeyFile: filepath.Join(dir, "key.pem")}).Run(context.Background())
	if err == nil {
		t.Fatal("expected key pair error")
	}
}

func waitForFile(t *testing.T, path string) []byte {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
			if p, _ := pem.Decode(data); p != nil {
				return data
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("%s was not written", path)
	return nil
}
