package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arun0009/systemcerts/pkg/client"
	"github.com/arun0009/systemcerts/pkg/logger"
)

// Phase names one half of a surface check.
type Phase string

const (
	// PhaseExplicit pins the bundled CA list and must be refused.
	PhaseExplicit Phase = "explicit"
	// PhaseDefault relies on the library default and must succeed.
	PhaseDefault Phase = "default"
)

// Greeting is the body every JSON route of the fixture returns.
const Greeting = "Hello World"

// callTimeout bounds a single surface call.
const callTimeout = 10 * time.Second

// Result is the outcome of one half of one surface.
type Result struct {
	Surface    string
	Phase      Phase
	StatusCode int
	Elapsed    time.Duration
	// CallErr is what the call returned, expected or not.
	CallErr error
	failure string
}

// Passed reports whether the half behaved as required.
func (r Result) Passed() bool { return r.failure == "" }

// Err describes the misbehaving surface, or nil.
func (r Result) Err() error {
	if r.Passed() {
		return nil
	}
	return errors.New(r.failure)
}

func check(s Surface, phase Phase, reply Reply, err error) string {
	if phase == PhaseExplicit {
		switch {
		case err == nil:
			return fmt.Sprintf("%s worked without system certs", s.Name)
		case !client.IsTrustError(err):
			return fmt.Sprintf("%s failed without a trust error: %v", s.Name, err)
		}
		return ""
	}
	if err != nil {
		return fmt.Sprintf("%s patch failed: %v", s.Name, err)
	}
	if !reply.OK {
		return fmt.Sprintf("%s patch failed: status %d", s.Name, reply.StatusCode)
	}
	if s.CheckBody {
		var msg struct {
			Message string `json:"message"`
		}
		if jerr := json.Unmarshal(reply.Body, &msg); jerr != nil || msg.Message != Greeting {
			return fmt.Sprintf("%s returned unexpected body %q", s.Name, bytes.TrimSpace(reply.Body))
		}
	}
	return ""
}

func runOne(ctx context.Context, baseURL string, s Surface, phase Phase) Result {
	v := client.Verify{}
	if phase == PhaseExplicit {
		v = client.VerifyBundled()
	}
	cctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	start := time.Now()
	reply, err := s.Call(cctx, baseURL, v)
	r := Result{
		Surface:    s.Name,
		Phase:      phase,
		StatusCode: reply.StatusCode,
		Elapsed:    time.Since(start),
		CallErr:    err,
		failure:    check(s, phase, reply, err),
	}
	logger.Debug("surface checked", "surface", r.Surface, "phase", r.Phase, "status", r.StatusCode, "elapsed", r.Elapsed, "passed", r.Passed())
	return r
}

// Run checks every surface twice against baseURL, explicit half first. At
// most concurrency surfaces are in flight; results keep surface order.
func Run(ctx context.Context, baseURL string, surfaces []Surface, concurrency int) []Result {
	if concurrency <= 0 {
		concurrency = 1
	}
	results := make([]Result, 2*len(surfaces))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, s := range surfaces {
		g.Go(func() error {
			results[2*i] = runOne(ctx, baseURL, s, PhaseExplicit)
			results[2*i+1] = runOne(ctx, baseURL, s, PhaseDefault)
			return nil
		})
	}
	g.Wait()
	return results
}

// Failures joins the errors of every failed result, or returns nil.
func Failures(results []Result) error {
	var errs []error
	for _, r := range results {
		if err := r.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
