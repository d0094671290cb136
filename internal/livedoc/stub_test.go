package livedoc

import (
	"context"
	"fmt"
)

// stubExecutor answers commands from a table and counts invocations.
type stubExecutor struct {
	results map[string]*Result
	calls   map[string]int
}

func newStubExecutor() *stubExecutor {
	return &stubExecutor{
		results: make(map[string]*Result),
		calls:   make(map[string]int),
	}
}

func (s *stubExecutor) on(command string, exitCode int, output string) *stubExecutor {
	s.results[command] = &Result{Command: command, ExitCode: exitCode, Output: []byte(output)}
	return s
}

func (s *stubExecutor) Execute(_ context.Context, command string) (*Result, error) {
	s.calls[command]++
	res, ok := s.results[command]
	if !ok {
		return nil, fmt.Errorf("unexpected command %q", command)
	}
	return res, nil
}
