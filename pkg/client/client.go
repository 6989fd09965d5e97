// Package client is a small request API over net/http. Every entry point
// resolves certificate verification through NewTLSConfig, so replacing the
// default factory (SetDefaultTLSConfig) changes the trust anchors of all calls
// that do not pass WithVerify.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client holds a transport across calls.
type Client struct {
	hc        *http.Client
	transport *Transport
	owned     bool
	header    http.Header
	timeout   time.Duration
}

// NewClient builds a client. WithTransport supplies the transport as-is;
// otherwise one is built from WithVerify and WithProxy.
func NewClient(opts ...Option) (*Client, error) {
	s := newSettings(opts)
	t := s.transport
	owned := false
	if t == nil {
		var err error
		if t, err = newTransport(s); err != nil {
			return nil, err
		}
		owned = true
	}
	return &Client{
		hc:        &http.Client{Transport: t},
		transport: t,
		owned:     owned,
		header:    s.header,
		timeout:   s.timeout,
	}, nil
}

// Transport returns the transport the client sends through.
func (c *Client) Transport() *Transport { return c.transport }

// Close releases idle connections of a transport the client built itself.
func (c *Client) Close() {
	if c.owned {
		c.transport.Close()
	}
}

func (c *Client) newRequest(ctx context.Context, method, url string, opts []Option) (*http.Request, time.Duration, error) {
	s := newSettings(opts)
	if s.bodyErr != nil {
		return nil, 0, s.bodyErr
	}
	req, err := http.NewRequestWithContext(ctx, method, url, s.bodyReader())
	if err != nil {
		return nil, 0, fmt.Errorf("building request: %w", err)
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, vs := range s.header {
		req.Header[k] = vs
	}
	timeout := c.timeout
	if s.timeoutSet {
		timeout = s.timeout
	}
	return req, timeout, nil
}

// Do sends method to url and buffers the response body.
func (c *Client) Do(ctx context.Context, method, url string, opts ...Option) (*Response, error) {
	var out *Response
	err := c.Stream(ctx, method, url, func(r *Response) error {
		body, err := io.ReadAll(r.stream)
		if err != nil {
			return &ConnectError{Op: method, URL: url, Err: err}
		}
		r.body, r.stream = body, nil
		out = r
		return nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Stream sends method to url and hands the unread response to fn. The body
// is closed when fn returns.
func (c *Client) Stream(ctx context.Context, method, url string, fn func(*Response) error, opts ...Option) error {
	req, timeout, err := c.newRequest(ctx, method, url, opts)
	if err != nil {
		return err
	}
	if timeout > 0 {
		tctx, cancel := context.WithTimeout(req.Context(), timeout)
		defer cancel()
		req = req.WithContext(tctx)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return &ConnectError{Op: method, URL: url, Err: err}
	}
	defer resp.Body.Close()
	r := newResponse(resp)
	r.stream = resp.Body
	return fn(r)
}

// Get sends a GET request.
func (c *Client) Get(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return c.Do(ctx, http.MethodGet, url, opts...)
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, url, opts...)
}

// Head sends a HEAD request.
func (c *Client) Head(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return c.Do(ctx, http.MethodHead, url, opts...)
}

// Options sends a OPTIONS request.
func (c *Client) Options(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return c.Do(ctx, http.MethodOptions, url, opts...)
}

// Patch sends a PATCH request.
func (c *Client) Patch(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, url, opts...)
}

// Post sends a POST request.
func (c *Client) Post(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return c.Do(ctx, http.MethodPost, url, opts...)
}

// Put sends a PUT request.
func (c *Client) Put(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return c.Do(ctx, http.MethodPut, url, opts...)
}

// Request sends a single request through a throwaway client.
func Request(ctx context.Context, method, url string, opts ...Option) (*Response, error) {
	c, err := NewClient(opts...)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.Do(ctx, method, url, opts...)
}

// Stream is Client.Stream on a throwaway client.
func Stream(ctx context.Context, method, url string, fn func(*Response) error, opts ...Option) error {
	c, err := NewClient(opts...)
	if err != nil {
		return err
	}
	defer c.Close()
	return c.Stream(ctx, method, url, fn, opts...)
}

// Get sends a GET request through a throwaway client.
func Get(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return Request(ctx, http.MethodGet, url, opts...)
}

// Delete sends a DELETE request through a throwaway client.
func Delete(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return Request(ctx, http.MethodDelete, url, opts...)
}

// Head sends a HEAD request through a throwaway client.
func Head(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return Request(ctx, http.MethodHead, url, opts...)
}

// Options sends a OPTIONS request through a throwaway client.
func Options(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return Request(ctx, http.MethodOptions, url, opts...)
}

// Patch sends a PATCH request through a throwaway client.
func Patch(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return Request(ctx, http.MethodPatch, url, opts...)
}

// Post sends a POST request through a throwaway client.
func Post(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return Request(ctx, http.MethodPost, url, opts...)
}

// Put sends a PUT request through a throwaway client.
func Put(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return Request(ctx, http.MethodPut, url, opts...)
}
