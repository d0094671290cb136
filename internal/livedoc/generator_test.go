package livedoc

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stubTool = `#!/bin/sh
case "$1" in
  -version) echo "Version: 1.2.3" ;;
  -help) echo "usage: tool [flags] command" >&2; exit 2 ;;
  -example-config) printf '[[behaviours]]\ntype = "web"\n' ;;
  -config) echo "loaded $2"; cat "$2"; shift 2; echo "running $*" ;;
  *) echo "unknown flag $1" >&2; exit 1 ;;
esac
`

const generatorScript = `
title = "tool"

[[steps]]
prose = "Print the version:"

[[steps]]
example = "./tool -version"

[[steps]]
example = "./tool -help"
allow_failure = true

[[steps]]
start = { name = "receiver", command = "echo Starting example server; exec sleep 30", display = "./receiver -port 8080", ready_line = "Starting", timeout = "5s" }

[[steps]]
provision = { name = "config", command = "./tool -example-config", filename = "tool.toml" }

[[steps]]
example = "./tool -config {{ .Artifacts.config }} date"

[[steps]]
stop = "receiver"

[[steps]]
prose = "Done."
`

func writeStubTool(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tool"), []byte(stubTool), 0o755))
	return dir
}

func parseTestScript(t *testing.T, src, baseDir string) *Script {
	t.Helper()
	s, err := ParseScript([]byte(src), FormatTOML, baseDir)
	require.NoError(t, err)
	return s
}

func TestGeneratorEndToEnd(t *testing.T) {
	dir := writeStubTool(t)
	tempRoot := t.TempDir()
	var logs bytes.Buffer

	g := NewGenerator(parseTestScript(t, generatorScript, dir),
		WithTempRoot(tempRoot),
		WithLogger(zerolog.New(&logs)),
	)
	text, err := g.Generate(context.Background())
	require.NoError(t, err)

	configPath := regexp.MustCompile(`\$ \./tool -config (\S+) date`).FindStringSubmatch(text)
	require.Len(t, configPath, 2, text)
	assert.True(t, strings.HasPrefix(configPath[1], tempRoot), configPath[1])

	want := strings.Join([]string{
		"# tool",
		"",
		"Print the version:",
		"```",
		"$ ./tool -version",
		"Version: 1.2.3",
		"```",
		"",
		"```",
		"$ ./tool -help",
		"usage: tool [flags] command",
		"```",
		"",
		"```",
		"$ ./tool -config " + configPath[1] + " date",
		"loaded " + configPath[1],
		"[[behaviours]]",
		`type = "web"`,
		"running date",
		"```",
		"",
		"```",
		"$ ./receiver -port 8080",
		"Starting example server",
		"```",
		"",
		"Done.",
	}, "\n") + "\n"
	assert.Equal(t, want, text)

	assert.NoFileExists(t, configPath[1], "artifacts are removed once the run ends")
	assert.Contains(t, logs.String(), `"message":"document generated"`)
	assert.Contains(t, logs.String(), `"run":"`)
}

func TestGeneratorProvisionWriteFailureLeavesNoDirectory(t *testing.T) {
	dir := writeStubTool(t)
	tempRoot := t.TempDir()
	src := "[[steps]]\nprovision = { name = \"config\", command = \"./tool -example-config\", filename = \"" +
		strings.Repeat("c", 300) + "\" }\n"

	text, err := NewGenerator(parseTestScript(t, src, dir), WithTempRoot(tempRoot)).Generate(context.Background())
	assert.Empty(t, text)
	var perr *ProvisioningError
	require.True(t, errors.As(err, &perr), "got %v", err)

	entries, err := os.ReadDir(tempRoot)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGeneratorKeepArtifacts(t *testing.T) {
	dir := writeStubTool(t)
	src := `
[[steps]]
provision = { name = "config", command = "./tool -example-config", filename = "tool.toml" }

[[steps]]
example = "cat {{ .Artifacts.config }}"
`
	g := NewGenerator(parseTestScript(t, src, dir), WithTempRoot(t.TempDir()), WithKeepArtifacts(true))
	text, err := g.Generate(context.Background())
	require.NoError(t, err)

	path := regexp.MustCompile(`\$ cat (\S+)`).FindStringSubmatch(text)
	require.Len(t, path, 2, text)
	content, err := os.ReadFile(path[1])
	require.NoError(t, err)
	assert.Equal(t, "[[behaviours]]\ntype = \"web\"\n", string(content))
}

func TestGeneratorAbortsOnFailure(t *testing.T) {
	dir := writeStubTool(t)
	tempRoot := t.TempDir()
	src := `
[[steps]]
start = { name = "receiver", command = "echo up; exec sleep 30", ready_line = "up" }

[[steps]]
provision = { name = "config", command = "./tool -example-config", filename = "tool.toml" }

[[steps]]
example = "./tool -help"

[[steps]]
prose = "never reached"
`
	var logs bytes.Buffer
	g := NewGenerator(parseTestScript(t, src, dir), WithTempRoot(tempRoot), WithLogger(zerolog.New(&logs)))
	text, err := g.Generate(context.Background())
	assert.Empty(t, text)

	var failed *CommandFailedError
	require.True(t, errors.As(err, &failed), "got %v", err)
	assert.Equal(t, 2, failed.ExitCode)
	assert.Equal(t, "./tool -help", failed.Command)

	assert.Contains(t, logs.String(), `"exit_code":2`)
	assert.Contains(t, logs.String(), "document generation aborted")

	entries, err := os.ReadDir(tempRoot)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGeneratorReadinessFailure(t *testing.T) {
	src := `
[[steps]]
start = { name = "receiver", command = "echo address in use; exit 1", ready_line = "Starting", timeout = "5s" }
`
	g := NewGenerator(parseTestScript(t, src, t.TempDir()))
	_, err := g.Generate(context.Background())
	var notReady *ReadinessError
	require.True(t, errors.As(err, &notReady), "got %v", err)
	assert.Contains(t, string(notReady.Output), "address in use")
}

func TestGeneratorUsesExecutor(t *testing.T) {
	exec := newStubExecutor().on("tool -version", 0, "v1.2.3\n")
	src := "[[steps]]\nexample = \"tool -version\"\n"

	g := NewGenerator(parseTestScript(t, src, ""), WithExecutor(exec))
	text, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "```\n$ tool -version\nv1.2.3\n```\n", text)
	assert.Equal(t, 1, exec.calls["tool -version"])
}

type recordingBuilder struct {
	specs []BuildSpec
	err   error
}

func (b *recordingBuilder) Build(_ context.Context, spec BuildSpec, workDir string) (string, error) {
	b.specs = append(b.specs, spec)
	return filepath.Join(workDir, spec.Output), b.err
}

func TestGeneratorBuildsFirst(t *testing.T) {
	exec := newStubExecutor().on("./tool -version", 0, "v1\n")
	src := "[[build]]\npackage = \"./cmd/tool\"\noutput = \"tool\"\n[[steps]]\nexample = \"./tool -version\"\n"

	b := &recordingBuilder{}
	_, err := NewGenerator(parseTestScript(t, src, "/work"), WithExecutor(exec), WithBuilder(b)).Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []BuildSpec{{Package: "./cmd/tool", Output: "tool"}}, b.specs)

	b = &recordingBuilder{err: errors.New("compile error")}
	exec = newStubExecutor()
	_, err = NewGenerator(parseTestScript(t, src, "/work"), WithExecutor(exec), WithBuilder(b)).Generate(context.Background())
	require.ErrorContains(t, err, "compile error")
	assert.Empty(t, exec.calls)

	_, err = NewGenerator(parseTestScript(t, src, "/work"), WithExecutor(exec)).Generate(context.Background())
	var serr *ScriptError
	require.True(t, errors.As(err, &serr), "got %v", err)
}
