package livedoc

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tomlScript = `
title = "tool"
destination = "README.md"
dir = "bin"

[env]
NO_COLOR = "1"

[[build]]
package = "./cmd/tool"
output = "tool"

[[steps]]
prose = "Intro."

[[steps]]
example = "./tool -help"
allow_failure = true

[[steps]]
provision = { name = "config", command = "./tool -example-config", filename = "tool.toml" }

[[steps]]
start = { name = "receiver", command = "{{ .Self }} receiver --port 8080", display = "./receiver", ready_line = "Starting", ready_addr = "127.0.0.1:8080", timeout = "5s" }

[[steps]]
example = "./tool -config {{ .Artifacts.config }} date"

[[steps]]
stop = "receiver"
`

const yamlScript = `
title: tool
steps:
  - prose: Intro.
  - example: ./tool -help
    allow_failure: true
  - start:
      name: receiver
      command: ./receiver
      ready_line: Starting
      warmup: 250ms
  - stop: receiver
`

func TestParseScriptTOML(t *testing.T) {
	s, err := ParseScript([]byte(tomlScript), FormatTOML, "/work")
	require.NoError(t, err)

	assert.Equal(t, "tool", s.Title)
	assert.Equal(t, "/work/bin", s.WorkDir())
	assert.Equal(t, "/work/README.md", s.DestinationPath())
	assert.Equal(t, map[string]string{"NO_COLOR": "1"}, s.Env)
	assert.Equal(t, []BuildSpec{{Package: "./cmd/tool", Output: "tool"}}, s.Build)
	require.Len(t, s.Steps, 6)

	kinds := make([]string, 0, len(s.Steps))
	for i := range s.Steps {
		kinds = append(kinds, s.Steps[i].Kind())
	}
	assert.Equal(t, []string{"prose", "example", "provision", "start", "example", "stop"}, kinds)
	assert.True(t, s.Steps[1].AllowFailure)

	start := s.Steps[3].Start
	assert.Equal(t, 5*time.Second, start.Timeout)
	assert.Equal(t, "./receiver", start.Shown("/bin/livedoc receiver --port 8080"))
	assert.Equal(t, Readiness{Line: "Starting", Addr: "127.0.0.1:8080", Timeout: 5 * time.Second}, start.Readiness())
}

func TestParseScriptYAML(t *testing.T) {
	s, err := ParseScript([]byte(yamlScript), FormatYAML, "/work")
	require.NoError(t, err)

	assert.Equal(t, "/work", s.WorkDir())
	assert.Empty(t, s.DestinationPath())
	require.Len(t, s.Steps, 4)
	assert.Equal(t, 250*time.Millisecond, s.Steps[2].Start.Warmup)
	assert.Equal(t, "./receiver", s.Steps[2].Start.Shown("./receiver"))
}

func TestParseScriptRejectsUnknownKeys(t *testing.T) {
	_, err := ParseScript([]byte("titel = \"x\"\n"), FormatTOML, "")
	require.Error(t, err)

	_, err = ParseScript([]byte("titel: x\n"), FormatYAML, "")
	require.Error(t, err)
}

func TestScriptValidation(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"no kind", "[[steps]]\nallow_failure = true\n"},
		{"two kinds", "[[steps]]\nprose = \"a\"\nexample = \"b\"\n"},
		{"allow_failure on prose", "[[steps]]\nprose = \"a\"\nallow_failure = true\n"},
		{"stop without start", "[[steps]]\nstop = \"receiver\"\n"},
		{"stop twice", "[[steps]]\nstart = { name = \"r\", command = \"c\" }\n[[steps]]\nstop = \"r\"\n[[steps]]\nstop = \"r\"\n"},
		{"start twice", "[[steps]]\nstart = { name = \"r\", command = \"c\" }\n[[steps]]\nstart = { name = \"r\", command = \"c\" }\n"},
		{"provision missing filename", "[[steps]]\nprovision = { name = \"c\", command = \"x\" }\n"},
		{"provision nested filename", "[[steps]]\nprovision = { name = \"c\", command = \"x\", filename = \"a/b\" }\n"},
		{"provision twice", "[[steps]]\nprovision = { name = \"c\", command = \"x\", filename = \"a\" }\n[[steps]]\nprovision = { name = \"c\", command = \"x\", filename = \"a\" }\n"},
		{"bad template", "[[steps]]\nexample = \"echo {{ .Self\"\n"},
		{"build without output", "[[build]]\npackage = \".\"\n"},
		{"provision dot filename", "[[steps]]\nprovision = { name = \"c\", command = \"x\", filename = \".\" }\n"},
		{"provision dotdot filename", "[[steps]]\nprovision = { name = \"c\", command = \"x\", filename = \"..\" }\n"},
		{"undefined template function", "[[steps]]\nexample = \"echo '{{x}}'\"\n"},
		{"unknown template field", "[[steps]]\nexample = \"docker ps --format '{{.Names}}'\"\n"},
		{"artifact used before provision", "[[steps]]\nexample = \"cat {{ .Artifacts.c }}\"\n[[steps]]\nprovision = { name = \"c\", command = \"x\", filename = \"a\" }\n"},
		{"provision reads its own artifact", "[[steps]]\nprovision = { name = \"c\", command = \"cat {{ .Artifacts.c }}\", filename = \"a\" }\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScript([]byte(tt.toml), FormatTOML, "")
			var serr *ScriptError
			require.True(t, errors.As(err, &serr), "got %v", err)
		})
	}
}

func TestScriptTemplateEscapes(t *testing.T) {
	src := "[[steps]]\nexample = \"docker ps --format '{{\\\"{{\\\"}}.Names}}'\"\n"
	s, err := ParseScript([]byte(src), FormatTOML, "")
	require.NoError(t, err)

	got, err := ExpandCommand(s.Steps[0].Example, CommandVars{})
	require.NoError(t, err)
	assert.Equal(t, "docker ps --format '{{.Names}}'", got)
}

func TestScriptArtifactAfterProvision(t *testing.T) {
	src := "[[steps]]\nprovision = { name = \"c\", command = \"x\", filename = \"a.toml\" }\n[[steps]]\nexample = \"cat {{ .Artifacts.c }}\"\n"
	_, err := ParseScript([]byte(src), FormatTOML, "")
	require.NoError(t, err)
}

func TestLoadScript(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.yml")
	require.NoError(t, os.WriteFile(path, []byte(yamlScript), 0o644))

	s, err := LoadScript(path)
	require.NoError(t, err)
	assert.Equal(t, dir, s.BaseDir)

	bad := filepath.Join(dir, "doc.json")
	require.NoError(t, os.WriteFile(bad, []byte("{}"), 0o644))
	_, err = LoadScript(bad)
	require.Error(t, err)
}

func TestExpandCommand(t *testing.T) {
	vars := CommandVars{
		Self:      "/usr/bin/livedoc",
		Dir:       "/work",
		Artifacts: map[string]string{"config": "/tmp/livedoc-1/tool.toml"},
	}

	got, err := ExpandCommand("./tool -config {{ .Artifacts.config }} -debug date", vars)
	require.NoError(t, err)
	assert.Equal(t, "./tool -config /tmp/livedoc-1/tool.toml -debug date", got)

	got, err = ExpandCommand("{{ .Self }} receiver", vars)
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/livedoc receiver", got)

	_, err = ExpandCommand("cat {{ .Artifacts.missing }}", vars)
	require.Error(t, err)
}
