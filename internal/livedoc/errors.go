package livedoc

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyCommand is returned when a command string is empty or only whitespace.
var ErrEmptyCommand = errors.New("command cannot be empty")

// CommandFailedError reports a command that was expected to succeed but
// exited with a non-zero status.
type CommandFailedError struct {
	// Command is the shell command that was executed
	Command string

	// ExitCode is the exit status returned by the command
	ExitCode int

	// Output is the combined stdout and stderr captured from the command
	Output []byte
}

// Error implements the error interface.
func (e *CommandFailedError) Error() string {
	out := strings.TrimSpace(string(e.Output))
	if out == "" {
		return fmt.Sprintf("command %q failed with exit code %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("command %q failed with exit code %d:\n%s", e.Command, e.ExitCode, out)
}

// InvalidStateTransitionError is returned when a Background method is called
// out of order.
type InvalidStateTransitionError struct {
	Name  string
	Op    string
	State ProcessState
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("background process %q: cannot %s while %s", e.Name, e.Op, e.State)
}

// ProvisioningError wraps any failure while producing a temporary artifact:
// the generating command failed, or the directory or file could not be written.
type ProvisioningError struct {
	Command  string
	Filename string
	Err      error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provision %s from %q: %v", e.Filename, e.Command, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// ReadinessError is returned when a background process does not become ready.
type ReadinessError struct {
	Name   string
	Reason string
	Output []byte
}

func (e *ReadinessError) Error() string {
	return fmt.Sprintf("background process %q not ready: %s", e.Name, e.Reason)
}

// ScriptError reports an invalid script step.
type ScriptError struct {
	Step int
	Msg  string
}

func (e *ScriptError) Error() string {
	if e.Step < 0 {
		return "script: " + e.Msg
	}
	return fmt.Sprintf("script step %d: %s", e.Step+1, e.Msg)
}
