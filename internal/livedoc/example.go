package livedoc

import (
	"context"
	"strings"
)

// Fence delimits a rendered transcript.
const Fence = "```"

// Example is one documented command and its captured output.
//
// An Example is executed at most once. Rendering it again returns the same
// text, or the same error, without running the command a second time.
type Example struct {
	Command      string
	AllowFailure bool

	result   *Result
	rendered string
	err      error
}

// NewExample creates an Example for command.
func NewExample(command string, allowFailure bool) *Example {
	return &Example{Command: command, AllowFailure: allowFailure}
}

// Result returns the captured result, or nil before the first Render.
func (e *Example) Result() *Result {
	return e.result
}

// Executed reports whether Render has already run the command.
func (e *Example) Executed() bool {
	return e.result != nil || e.err != nil
}

// Render executes the command on first use and returns the fenced transcript.
func (e *Example) Render(ctx context.Context, executor Executor) (string, error) {
	if e.Executed() {
		return e.rendered, e.err
	}

	res, err := executor.Execute(ctx, e.Command)
	if err != nil {
		e.err = err
		return "", err
	}
	e.result = res

	if res.ExitCode != 0 && !e.AllowFailure {
		e.err = &CommandFailedError{
			Command:  e.Command,
			ExitCode: res.ExitCode,
			Output:   res.Output,
		}
		return "", e.err
	}

	e.rendered = FenceTranscript(Transcript(e.Command, res.Output))
	return e.rendered, nil
}

// Transcript returns "$ command" followed by the trimmed output. The output
// line is omitted when there is nothing left after trimming.
func Transcript(command string, output []byte) string {
	var b strings.Builder
	b.WriteString("$ ")
	b.WriteString(command)
	if body := strings.TrimSpace(string(output)); body != "" {
		b.WriteByte('\n')
		b.WriteString(body)
	}
	return b.String()
}

// FenceTranscript wraps body in a fenced code block.
func FenceTranscript(body string) string {
	return Fence + "\n" + body + "\n" + Fence
}
