package livedoc

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// ProcessState is the lifecycle state of a Background process.
type ProcessState int

const (
	NotStarted ProcessState = iota
	Running
	Terminated
)

func (s ProcessState) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("ProcessState(%d)", int(s))
	}
}

const (
	defaultReadyTimeout  = 10 * time.Second
	defaultReadyInterval = 100 * time.Millisecond
)

// stopWaitDelay bounds how long Stop waits for the output pipe to close once
// the process has exited. A descendant that left the process group can hold
// the pipe open indefinitely.
var stopWaitDelay = 2 * time.Second

// Readiness describes how to decide that a background process can serve
// dependent commands. Checks run in order: Warmup, Line, Addr.
type Readiness struct {
	// Line waits until the process output contains this text.
	Line string

	// Addr polls a TCP dial to host:port until it succeeds.
	Addr string

	// Warmup is a fixed delay observed before any other check.
	Warmup time.Duration

	// Timeout bounds Line and Addr waiting. Zero means 10s.
	Timeout time.Duration

	// Interval is the delay between Addr dial attempts. Zero means 100ms.
	Interval time.Duration
}

// Background is a single-use handle to a long running child process whose
// combined output is buffered in memory until Stop.
type Background struct {
	Name    string
	Command string

	shell *Shell

	mu    sync.Mutex
	state ProcessState
	cmd   *exec.Cmd
	out   *streamBuffer
	done  chan struct{}
}

// NewBackground creates a handle for command. Options configure the shell the
// same way they do for NewShell.
func NewBackground(name, command string, opts ...Option) *Background {
	return &Background{
		Name:    name,
		Command: command,
		shell:   NewShell(opts...),
	}
}

// State returns the current lifecycle state.
func (b *Background) State() ProcessState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Start spawns the process without waiting for it. The process is killed if
// ctx is canceled.
func (b *Background) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != NotStarted {
		return &InvalidStateTransitionError{Name: b.Name, Op: "start", State: b.state}
	}
	if strings.TrimSpace(b.Command) == "" {
		return ErrEmptyCommand
	}

	cmd := b.shell.command(ctx, b.Command)
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		return killProcessGroup(cmd)
	}
	cmd.WaitDelay = stopWaitDelay

	out := newStreamBuffer()
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %q: %w", b.Command, err)
	}

	done := make(chan struct{})
	go func() {
		// Exit status is irrelevant: the process is expected to be killed.
		_ = cmd.Wait()
		close(done)
	}()

	b.cmd = cmd
	b.out = out
	b.done = done
	b.state = Running
	return nil
}

// WaitReady blocks until the readiness checks pass, the process exits, the
// timeout elapses or ctx is canceled.
func (b *Background) WaitReady(ctx context.Context, r Readiness) error {
	b.mu.Lock()
	state, out, done := b.state, b.out, b.done
	b.mu.Unlock()
	if state != Running {
		return &InvalidStateTransitionError{Name: b.Name, Op: "wait for readiness", State: state}
	}

	notReady := func(reason string) error {
		return &ReadinessError{Name: b.Name, Reason: reason, Output: out.Bytes()}
	}

	if r.Warmup > 0 {
		select {
		case <-time.After(r.Warmup):
		case <-done:
			return notReady("process exited during warm-up")
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultReadyTimeout
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	if r.Line != "" {
		for !out.Contains(r.Line) {
			select {
			case <-out.Changed():
			case <-done:
				if !out.Contains(r.Line) {
					return notReady(fmt.Sprintf("process exited before printing %q", r.Line))
				}
			case <-deadline.C:
				return notReady(fmt.Sprintf("%q not printed within %s", r.Line, timeout))
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if r.Addr != "" {
		interval := r.Interval
		if interval <= 0 {
			interval = defaultReadyInterval
		}
		dialer := net.Dialer{Timeout: interval}
		for {
			conn, err := dialer.DialContext(ctx, "tcp", r.Addr)
			if err == nil {
				_ = conn.Close()
				break
			}
			select {
			case <-time.After(interval):
			case <-done:
				return notReady(fmt.Sprintf("process exited before accepting connections on %s", r.Addr))
			case <-deadline.C:
				return notReady(fmt.Sprintf("%s not accepting connections within %s: %v", r.Addr, timeout, err))
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// Stop kills the process, waits for its output stream to close and returns
// everything it wrote since Start.
func (b *Background) Stop() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Running {
		return nil, &InvalidStateTransitionError{Name: b.Name, Op: "stop", State: b.state}
	}

	var killErr error
	select {
	case <-b.done:
	default:
		killErr = killProcessGroup(b.cmd)
	}
	<-b.done
	b.state = Terminated

	if killErr != nil {
		return b.out.Bytes(), fmt.Errorf("kill %q: %w", b.Command, killErr)
	}
	return b.out.Bytes(), nil
}

// streamBuffer collects process output and signals every write.
type streamBuffer struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	changed chan struct{}
}

func newStreamBuffer() *streamBuffer {
	return &streamBuffer{changed: make(chan struct{}, 1)}
}

func (s *streamBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	n, err := s.buf.Write(p)
	s.mu.Unlock()
	select {
	case s.changed <- struct{}{}:
	default:
	}
	return n, err
}

// Changed fires at least once after any write that follows the last receive.
func (s *streamBuffer) Changed() <-chan struct{} {
	return s.changed
}

func (s *streamBuffer) Contains(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Contains(s.buf.Bytes(), []byte(text))
}

func (s *streamBuffer) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.buf.Bytes())
}
