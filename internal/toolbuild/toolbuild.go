// Package toolbuild compiles the Go command a document describes so its
// examples run against the current source.
package toolbuild

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/agentflare-ai/livedoc/internal/livedoc"
)

// Target is a resolved main package.
type Target struct {
	PkgPath string
	Name    string
	Dir     string
}

// Resolve loads pattern from dir and checks it is a single main package.
func Resolve(ctx context.Context, dir, pattern string) (*Target, error) {
	cfg := &packages.Config{
		Context: ctx,
		Dir:     dir,
		Mode:    packages.NeedName | packages.NeedFiles | packages.NeedModule,
	}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, err
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no Go packages matched %q", pattern)
	}
	if len(pkgs) > 1 {
		return nil, fmt.Errorf("pattern %q matched %d packages, want one", pattern, len(pkgs))
	}
	pkg := pkgs[0]
	if len(pkg.Errors) > 0 {
		return nil, fmt.Errorf("%s", pkg.Errors[0])
	}
	if pkg.Name != "main" {
		return nil, fmt.Errorf("package %s is %q, not a command", pkg.PkgPath, pkg.Name)
	}
	return &Target{PkgPath: pkg.PkgPath, Name: pkg.Name, Dir: packageDir(pkg)}, nil
}

func packageDir(pkg *packages.Package) string {
	if len(pkg.GoFiles) > 0 {
		return filepath.Dir(pkg.GoFiles[0])
	}
	if len(pkg.CompiledGoFiles) > 0 {
		return filepath.Dir(pkg.CompiledGoFiles[0])
	}
	return ""
}

// Builder runs `go build` through a livedoc executor.
type Builder struct {
	Executor livedoc.Executor

	// GoCommand is the go binary. Empty means "go" from PATH.
	GoCommand string
}

// Build implements livedoc.Builder. The binary is written to spec.Output,
// relative to workDir, and its absolute path is returned. The go command runs
// from the package directory, so the executor's own directory does not matter.
func (b *Builder) Build(ctx context.Context, spec livedoc.BuildSpec, workDir string) (string, error) {
	target, err := Resolve(ctx, workDir, spec.Package)
	if err != nil {
		return "", err
	}

	output := spec.Output
	if !filepath.IsAbs(output) {
		output = filepath.Join(workDir, output)
	}
	output, err = filepath.Abs(output)
	if err != nil {
		return "", err
	}
	goCmd := b.GoCommand
	if goCmd == "" {
		goCmd = "go"
	}

	command := strings.Join([]string{"cd", shellQuote(target.Dir), "&&", goCmd, "build", "-o", shellQuote(output), "."}, " ")
	res, err := b.Executor.Execute(ctx, command)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", &livedoc.CommandFailedError{Command: command, ExitCode: res.ExitCode, Output: res.Output}
	}
	return output, nil
}

func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}
