package client

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// Transport is an explicit transport object. Its trust context is resolved
// once, when it is built.
type Transport struct {
	rt        *http.Transport
	tlsConfig *tls.Config
}

// NewTransport builds a transport honouring WithVerify and WithProxy. With no
// explicit verify and a proxy carrying its own trust context, that context is
// used; otherwise the package default applies.
func NewTransport(opts ...Option) (*Transport, error) {
	return newTransport(newSettings(opts))
}

func newTransport(s *settings) (*Transport, error) {
	var (
		cfg *tls.Config
		err error
	)
	if !s.verify.IsSet() && s.proxy != nil {
		cfg, err = s.proxy.TLSConfig()
	} else {
		cfg, err = NewTLSConfig(s.verify)
	}
	if err != nil {
		return nil, fmt.Errorf("building tls config: %w", err)
	}

	rt := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       cfg,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if s.proxy != nil {
		rt.Proxy = http.ProxyURL(s.proxy.URL())
	}
	if _, err := http2.ConfigureTransports(rt); err != nil {
		return nil, fmt.Errorf("enabling http2: %w", err)
	}
	return &Transport{rt: rt, tlsConfig: cfg}, nil
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.rt.RoundTrip(req)
}

// TLSConfig returns a copy of the resolved trust context.
func (t *Transport) TLSConfig() *tls.Config { return t.tlsConfig.Clone() }

// Close drops idle connections.
func (t *Transport) Close() { t.rt.CloseIdleConnections() }
