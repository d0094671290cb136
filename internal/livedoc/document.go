package livedoc

import (
	"context"
	"strings"
)

// Assemble joins segments with newlines and guarantees the text ends with
// exactly one trailing newline.
func Assemble(segments []string) string {
	text := strings.Join(segments, "\n")
	return strings.TrimRight(text, "\n") + "\n"
}

// Document is an append-only sequence of text segments.
type Document struct {
	segments []string
}

// Add appends prose segments verbatim.
func (d *Document) Add(segments ...string) {
	d.segments = append(d.segments, segments...)
}

// AddExample renders ex and appends it followed by a blank line. On failure
// nothing is appended and the error is returned unchanged.
func (d *Document) AddExample(ctx context.Context, executor Executor, ex *Example) error {
	text, err := ex.Render(ctx, executor)
	if err != nil {
		return err
	}
	d.segments = append(d.segments, text, "")
	return nil
}

// Len returns the number of segments.
func (d *Document) Len() int {
	return len(d.segments)
}

// Text assembles the document.
func (d *Document) Text() string {
	return Assemble(d.segments)
}
