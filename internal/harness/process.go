package harness

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/arun0009/systemcerts/pkg/logger"
)

var (
	// ErrExitedEarly means the process ended before printing the ready pattern.
	ErrExitedEarly = errors.New("process exited before becoming ready")
	// ErrReadyNotFound means the line budget ran out without the ready pattern.
	ErrReadyNotFound = errors.New("ready pattern not found")
	// ErrStartupTimeout means the ready pattern did not show up in time.
	ErrStartupTimeout = errors.New("timed out waiting for ready pattern")
)

// StartupError carries what was observed during a failed start.
type StartupError struct {
	Err      error
	Pid      int
	ExitCode int
	// Lines is the output read before giving up.
	Lines []string
}

func (e *StartupError) Error() string {
	msg := "startup failed: " + e.Err.Error()
	if errors.Is(e.Err, ErrExitedEarly) {
		msg += fmt.Sprintf(" (exit code %d)", e.ExitCode)
	}
	return msg
}

func (e *StartupError) Unwrap() error { return e.Err }

// Options controls Start.
type Options struct {
	Command      string
	Args         []string
	Env          []string
	Dir          string
	ReadyPattern string
	// MaxLines is how many output lines may pass before the ready pattern.
	MaxLines    int
	Timeout     time.Duration
	StopTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxLines <= 0 {
		o.MaxLines = 5
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = 5 * time.Second
	}
	return o
}

// Process is a started subprocess. Its stdout and stderr share one pipe.
type Process struct {
	cmd         *exec.Cmd
	done        chan struct{}
	drain       chan struct{}
	drainOnce   sync.Once
	stopOnce    sync.Once
	stopTimeout time.Duration
}

// Start launches the command and blocks until the ready pattern is seen, the
// line budget is spent, the timeout elapses, the process exits or ctx is
// done. On every failure the process is stopped before Start returns.
func Start(ctx context.Context, opts Options) (*Process, error) {
	opts = opts.withDefaults()
	if opts.ReadyPattern == "" {
		return nil, errors.New("ready pattern is required")
	}

	cmd := exec.Command(opts.Command, opts.Args...)
	cmd.Env = append(os.Environ(), opts.Env...)
	cmd.Dir = opts.Dir
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("starting %s: %w", opts.Command, err)
	}
	// The child holds its own copy; ours must go so EOF follows exit.
	pw.Close()

	p := &Process{
		cmd:         cmd,
		done:        make(chan struct{}),
		drain:       make(chan struct{}),
		stopTimeout: opts.StopTimeout,
	}
	go func() {
		cmd.Wait()
		close(p.done)
	}()

	lines := make(chan string)
	go p.readLines(pr, lines)

	timer := time.NewTimer(opts.Timeout)
	defer timer.Stop()

	var seen []string
	remaining := opts.MaxLines
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				// Output closed; the process may still be running.
				lines = nil
				continue
			}
			seen = append(seen, line)
			if strings.Contains(line, opts.ReadyPattern) {
				p.stopSending()
				logger.Debug("subprocess ready", "pid", cmd.Process.Pid, "lines", len(seen))
				return p, nil
			}
			remaining--
			if remaining == 0 {
				return nil, p.fail(&StartupError{Err: ErrReadyNotFound, Lines: seen})
			}
		case <-p.done:
			return nil, p.fail(&StartupError{Err: ErrExitedEarly, Lines: seen})
		case <-timer.C:
			return nil, p.fail(&StartupError{Err: ErrStartupTimeout, Lines: seen})
		case <-ctx.Done():
			return nil, p.fail(&StartupError{Err: ctx.Err(), Lines: seen})
		}
	}
}

const maxLineSize = 1 << 20

// readLines feeds lines to out until stopSending, then logs the rest so the
// child never blocks on a full pipe. A line longer than maxLineSize ends the
// line stream and the remaining output is discarded.
func (p *Process) readLines(r io.ReadCloser, out chan<- string) {
	defer r.Close()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		select {
		case out <- line:
		case <-p.drain:
			logger.Debug("subprocess output", "line", line)
		}
	}
	close(out)
	if err := scanner.Err(); err != nil {
		logger.Debug("subprocess output unreadable, discarding the rest", "error", err)
		io.Copy(io.Discard, r)
	}
}

func (p *Process) stopSending() {
	p.drainOnce.Do(func() { close(p.drain) })
}

func (p *Process) fail(err *StartupError) error {
	p.stopSending()
	p.Stop()
	err.Pid = p.Pid()
	err.ExitCode = p.ExitCode()
	return err
}

// Stop asks the process to terminate, waits up to the stop timeout, then
// kills it and waits unconditionally. It is safe to call more than once.
func (p *Process) Stop() {
	p.stopOnce.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}
		if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			// No SIGTERM on this platform, or the process is already gone.
			p.cmd.Process.Kill()
		}
		select {
		case <-p.done:
		case <-time.After(p.stopTimeout):
			logger.Warn("subprocess ignored SIGTERM, killing", "pid", p.cmd.Process.Pid)
			p.cmd.Process.Kill()
			<-p.done
		}
	})
	<-p.done
}

// Pid returns the process id.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

// Done is closed once the process has been reaped.
func (p *Process) Done() <-chan struct{} { return p.done }

// Exited reports whether the process has been reaped.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// ExitCode is -1 while running or when killed by a signal.
func (p *Process) ExitCode() int {
	if !p.Exited() {
		return -1
	}
	return p.cmd.ProcessState.ExitCode()
}
