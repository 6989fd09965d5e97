package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultConcurrency = 8
)

type settings struct {
	verify      Verify
	transport   *Transport
	proxy       *Proxy
	header      http.Header
	body        []byte
	bodyErr     error
	timeout     time.Duration
	timeoutSet  bool
	concurrency int64
}

// Option configures a call, a Client or a Transport. Options that do not
// apply to the receiver are ignored.
type Option func(*settings)

func newSettings(opts []Option) *settings {
	s := &settings{
		header:      make(http.Header),
		timeout:     defaultTimeout,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithVerify sets an explicit verification choice.
func WithVerify(v Verify) Option {
	return func(s *settings) { s.verify = v }
}

// WithTransport routes requests through t. Verification is then t's concern.
func WithTransport(t *Transport) Option {
	return func(s *settings) { s.transport = t }
}

// WithProxy sends requests through p.
func WithProxy(p *Proxy) Option {
	return func(s *settings) { s.proxy = p }
}

// WithHeader adds a request header.
func WithHeader(key, value string) Option {
	return func(s *settings) { s.header.Add(key, value) }
}

// WithBody sets a raw request body. r is read once, when the option is built.
func WithBody(r io.Reader) Option {
	b, err := io.ReadAll(r)
	if err != nil {
		err = fmt.Errorf("reading body: %w", err)
	}
	return func(s *settings) { s.body, s.bodyErr = b, err }
}

// WithJSON encodes v as the request body.
func WithJSON(v any) Option {
	b, err := json.Marshal(v)
	return func(s *settings) {
		if err != nil {
			s.bodyErr = fmt.Errorf("encoding json body: %w", err)
			return
		}
		s.body = b
		s.header.Set("Content-Type", "application/json")
	}
}

// WithTimeout bounds a whole call, body read included.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.timeout = d
		s.timeoutSet = true
	}
}

// WithConcurrency caps in-flight requests of an AsyncClient.
func WithConcurrency(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.concurrency = int64(n)
		}
	}
}

func (s *settings) bodyReader() io.Reader {
	if s.body == nil {
		return nil
	}
	return bytes.NewReader(s.body)
}
