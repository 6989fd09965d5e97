package client

import (
	"crypto/tls"
	"fmt"
	"net/url"
)

// Proxy describes a forward proxy. Its trust context governs the TLS hop to
// an https:// proxy and, with no explicit WithVerify, the transport built
// around it.
type Proxy struct {
	url       *url.URL
	tlsConfig *tls.Config
}

// ProxyOption configures a Proxy.
type ProxyOption func(*Proxy)

// WithProxyTLSConfig pins the proxy trust context.
func WithProxyTLSConfig(cfg *tls.Config) ProxyOption {
	return func(p *Proxy) { p.tlsConfig = cfg }
}

// NewProxy parses rawURL; http, https and socks5 schemes are accepted.
func NewProxy(rawURL string, opts ...ProxyOption) (*Proxy, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing proxy url: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "socks5":
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("proxy url %q has no host", rawURL)
	}
	p := &Proxy{url: u}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// URL returns a copy of the proxy address.
func (p *Proxy) URL() *url.URL {
	u := *p.url
	return &u
}

// TLSConfig returns the pinned trust context, or the package default when
// none was given.
func (p *Proxy) TLSConfig() (*tls.Config, error) {
	if p.tlsConfig != nil {
		return p.tlsConfig.Clone(), nil
	}
	return DefaultTLSConfig()
}
