package livedoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// DefaultShell is the interpreter used to run command strings.
const DefaultShell = "/bin/sh"

// Executor runs a single shell command to completion.
type Executor interface {
	// Execute runs command through the host shell and blocks until it exits
	// and its output stream is closed. A non-zero exit status is reported in
	// Result.ExitCode, not as an error. The error is reserved for commands
	// that could not be run at all.
	Execute(ctx context.Context, command string) (*Result, error)
}

// Result is the captured outcome of one command execution.
type Result struct {
	// Command is the shell command that was executed
	Command string

	// ExitCode is the exit status of the command
	ExitCode int

	// Output is stdout and stderr interleaved in write order, untrimmed
	Output []byte

	// Duration is the wall time the command took
	Duration time.Duration
}

// Option configures a Shell.
type Option func(*Shell)

// WithShell sets the interpreter used for `-c`.
func WithShell(path string) Option {
	return func(s *Shell) {
		s.shell = path
	}
}

// WithDir sets the working directory for every command.
func WithDir(dir string) Option {
	return func(s *Shell) {
		s.dir = dir
	}
}

// WithEnv adds environment variables on top of the inherited environment.
func WithEnv(env map[string]string) Option {
	return func(s *Shell) {
		for k, v := range env {
			s.env[k] = v
		}
	}
}

// Shell is the Executor backed by the host shell.
type Shell struct {
	shell string
	dir   string
	env   map[string]string
}

// NewShell creates a Shell with the given options.
func NewShell(opts ...Option) *Shell {
	s := &Shell{
		shell: DefaultShell,
		env:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the configured working directory.
func (s *Shell) Dir() string {
	return s.dir
}

// Execute implements Executor.
func (s *Shell) Execute(ctx context.Context, command string) (*Result, error) {
	if strings.TrimSpace(command) == "" {
		return nil, ErrEmptyCommand
	}

	cmd := s.command(ctx, command)

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	start := time.Now()
	err := cmd.Run()
	result := &Result{
		Command:  command,
		Output:   combined.Bytes(),
		Duration: time.Since(start),
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("run %q: %w", command, ctxErr)
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("run %q: %w", command, err)
		}
		result.ExitCode = exitErr.ExitCode()
	}
	return result, nil
}

func (s *Shell) command(ctx context.Context, command string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, s.shell, "-c", command)
	if s.dir != "" {
		cmd.Dir = s.dir
	}
	if len(s.env) > 0 {
		keys := make([]string, 0, len(s.env))
		for k := range s.env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		cmd.Env = os.Environ()
		for _, k := range keys {
			cmd.Env = append(cmd.Env, k+"="+s.env[k])
		}
	}
	return cmd
}
