package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// DialWebsocket opens a websocket to rawURL (ws:// or wss://) with the same
// trust resolution as every other call.
func DialWebsocket(ctx context.Context, rawURL string, opts ...Option) (*websocket.Conn, error) {
	s := newSettings(opts)
	cfg, err := NewTLSConfig(s.verify)
	if err != nil {
		return nil, fmt.Errorf("building tls config: %w", err)
	}
	// The upgrade needs HTTP/1.1; a reused config may advertise h2.
	cfg.NextProtos = nil
	d := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		TLSClientConfig:  cfg,
		HandshakeTimeout: 10 * time.Second,
	}
	if s.proxy != nil {
		d.Proxy = http.ProxyURL(s.proxy.URL())
	}
	conn, resp, err := d.DialContext(ctx, rawURL, s.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, &ConnectError{Op: "websocket", URL: rawURL, Err: err}
	}
	return conn, nil
}
