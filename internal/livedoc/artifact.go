package livedoc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// DefaultArtifactPattern is the os.MkdirTemp pattern used for artifact directories.
const DefaultArtifactPattern = "livedoc-*"

// Artifact is a file written from a command's captured output.
type Artifact struct {
	// Dir is the freshly created directory holding the file
	Dir string

	// Path is the absolute path of the file
	Path string

	// Content is exactly what the generating command printed
	Content []byte
}

// Remove deletes the artifact's directory and everything in it.
func (a *Artifact) Remove() error {
	return os.RemoveAll(a.Dir)
}

// Provisioner turns command output into files under unique temporary directories.
// It never removes what it creates; callers own the returned Artifact.
type Provisioner struct {
	Executor Executor

	// TempRoot is the parent directory. Empty means os.TempDir().
	TempRoot string

	// Pattern is passed to os.MkdirTemp. Empty means DefaultArtifactPattern.
	Pattern string
}

// Provision runs command, which must succeed, and writes its output verbatim
// to <new temp dir>/<filename>.
func (p *Provisioner) Provision(ctx context.Context, command, filename string) (*Artifact, error) {
	fail := func(err error) (*Artifact, error) {
		return nil, &ProvisioningError{Command: command, Filename: filename, Err: err}
	}

	if !plainFilename(filename) {
		return fail(errors.New("filename must be a plain file name"))
	}

	res, err := p.Executor.Execute(ctx, command)
	if err != nil {
		return fail(err)
	}
	if res.ExitCode != 0 {
		return fail(&CommandFailedError{Command: command, ExitCode: res.ExitCode, Output: res.Output})
	}

	pattern := p.Pattern
	if pattern == "" {
		pattern = DefaultArtifactPattern
	}
	dir, err := os.MkdirTemp(p.TempRoot, pattern)
	if err != nil {
		return fail(err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return fail(err)
	}
	dir = abs

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, res.Output, 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return fail(err)
	}

	return &Artifact{Dir: dir, Path: path, Content: res.Output}, nil
}

// plainFilename reports whether name is a single path element that names a
// file inside its directory.
func plainFilename(name string) bool {
	switch name {
	case "", ".", "..":
		return false
	}
	return name == filepath.Base(name) && !strings.ContainsAny(name, `/\`)
}
