package client

import (
	"context"
	"net/http"

	"golang.org/x/sync/semaphore"
)

// AsyncClient sends requests on background goroutines, at most
// WithConcurrency of them in flight.
type AsyncClient struct {
	c   *Client
	sem *semaphore.Weighted
}

// Future is the pending result of an AsyncClient call.
type Future struct {
	done chan struct{}
	resp *Response
	err  error
}

// Await blocks until the call completes or ctx is done.
func (f *Future) Await(ctx context.Context) (*Response, error) {
	select {
	case <-f.done:
		return f.resp, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// NewAsyncClient accepts the same options as NewClient plus WithConcurrency.
func NewAsyncClient(opts ...Option) (*AsyncClient, error) {
	c, err := NewClient(opts...)
	if err != nil {
		return nil, err
	}
	s := newSettings(opts)
	return &AsyncClient{c: c, sem: semaphore.NewWeighted(s.concurrency)}, nil
}

// Send starts method to url and returns immediately.
func (a *AsyncClient) Send(ctx context.Context, method, url string, opts ...Option) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		if err := a.sem.Acquire(ctx, 1); err != nil {
			f.err = &ConnectError{Op: method, URL: url, Err: err}
			return
		}
		defer a.sem.Release(1)
		f.resp, f.err = a.c.Do(ctx, method, url, opts...)
	}()
	return f
}

func (a *AsyncClient) Get(ctx context.Context, url string, opts ...Option) *Future {
	return a.Send(ctx, http.MethodGet, url, opts...)
}

func (a *AsyncClient) Post(ctx context.Context, url string, opts ...Option) *Future {
	return a.Send(ctx, http.MethodPost, url, opts...)
}

// Transport returns the underlying transport.
func (a *AsyncClient) Transport() *Transport { return a.c.Transport() }

func (a *AsyncClient) Close() { a.c.Close() }
