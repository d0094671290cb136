package livedoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Script formats accepted by ParseScript.
const (
	FormatTOML = "toml"
	FormatYAML = "yaml"
)

// Script is the ordered description of a generated document.
type Script struct {
	// Title, when set, becomes the first line as a level one heading.
	Title string `toml:"title" yaml:"title"`

	// Destination is where --overwrite writes the document, relative to BaseDir.
	Destination string `toml:"destination" yaml:"destination"`

	// Dir is the working directory of every command, relative to BaseDir.
	Dir string `toml:"dir" yaml:"dir"`

	// KeepArtifacts leaves provisioned directories on disk after the run.
	KeepArtifacts bool `toml:"keep_artifacts" yaml:"keep_artifacts"`

	// Env is added to the inherited environment of every command.
	Env map[string]string `toml:"env" yaml:"env"`

	Build []BuildSpec `toml:"build" yaml:"build"`
	Steps []Step      `toml:"steps" yaml:"steps"`

	// BaseDir is the directory the script was loaded from.
	BaseDir string `toml:"-" yaml:"-"`
}

// BuildSpec names a Go main package to compile before any step runs.
type BuildSpec struct {
	Package string `toml:"package" yaml:"package"`
	Output  string `toml:"output" yaml:"output"`
}

// Step is one entry of a script. Exactly one of its kinds must be set.
type Step struct {
	Prose        string         `toml:"prose" yaml:"prose"`
	Example      string         `toml:"example" yaml:"example"`
	AllowFailure bool           `toml:"allow_failure" yaml:"allow_failure"`
	Provision    *ProvisionSpec `toml:"provision" yaml:"provision"`
	Start        *StartSpec     `toml:"start" yaml:"start"`
	Stop         string         `toml:"stop" yaml:"stop"`
}

// ProvisionSpec writes a command's output to a temporary file.
type ProvisionSpec struct {
	Name     string `toml:"name" yaml:"name"`
	Command  string `toml:"command" yaml:"command"`
	Filename string `toml:"filename" yaml:"filename"`
}

// StartSpec launches a background process.
type StartSpec struct {
	Name      string        `toml:"name" yaml:"name"`
	Command   string        `toml:"command" yaml:"command"`
	Display   string        `toml:"display" yaml:"display"`
	ReadyLine string        `toml:"ready_line" yaml:"ready_line"`
	ReadyAddr string        `toml:"ready_addr" yaml:"ready_addr"`
	Warmup    time.Duration `toml:"warmup" yaml:"warmup"`
	Timeout   time.Duration `toml:"timeout" yaml:"timeout"`
}

// Shown returns the command line to print when the process output is
// embedded: Display when set, otherwise the expanded command.
func (s *StartSpec) Shown(expanded string) string {
	if s.Display != "" {
		return s.Display
	}
	return expanded
}

// Readiness returns the checks WaitReady runs after Start.
func (s *StartSpec) Readiness() Readiness {
	return Readiness{
		Line:    s.ReadyLine,
		Addr:    s.ReadyAddr,
		Warmup:  s.Warmup,
		Timeout: s.Timeout,
	}
}

// Kind returns the name of the step kind, or "" when none is set.
func (s *Step) Kind() string {
	switch {
	case s.Prose != "":
		return "prose"
	case s.Example != "":
		return "example"
	case s.Provision != nil:
		return "provision"
	case s.Start != nil:
		return "start"
	case s.Stop != "":
		return "stop"
	}
	return ""
}

func (s *Step) kindCount() int {
	n := 0
	for _, set := range []bool{s.Prose != "", s.Example != "", s.Provision != nil, s.Start != nil, s.Stop != ""} {
		if set {
			n++
		}
	}
	return n
}

// LoadScript reads a TOML or YAML script, chosen by file extension.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var format string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		format = FormatTOML
	case ".yaml", ".yml":
		format = FormatYAML
	default:
		return nil, fmt.Errorf("unsupported script extension %q (want .toml, .yaml or .yml)", filepath.Ext(path))
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	script, err := ParseScript(data, format, abs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return script, nil
}

// ParseScript decodes and validates a script. Unknown keys are rejected.
func ParseScript(data []byte, format, baseDir string) (*Script, error) {
	var script Script
	switch format {
	case FormatTOML:
		md, err := toml.Decode(string(data), &script)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, &ScriptError{Step: -1, Msg: fmt.Sprintf("unknown key %q", undecoded[0].String())}
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&script); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported script format %q", format)
	}
	script.BaseDir = baseDir
	if err := script.Validate(); err != nil {
		return nil, err
	}
	return &script, nil
}

// Validate checks step shapes, name references and command templates. Every
// template is executed against placeholder values, so a reference to an
// unknown field or to an artifact not provisioned by an earlier step fails
// here rather than halfway through a run.
func (s *Script) Validate() error {
	for i, b := range s.Build {
		if b.Package == "" || b.Output == "" {
			return &ScriptError{Step: -1, Msg: fmt.Sprintf("build entry %d needs package and output", i+1)}
		}
	}

	// Placeholder paths for artifacts provisioned by earlier steps, so each
	// command template can be executed once before anything runs.
	artifacts := make(map[string]string)
	started := make(map[string]bool)
	stopped := make(map[string]bool)
	for i := range s.Steps {
		step := &s.Steps[i]
		bad := func(format string, args ...any) error {
			return &ScriptError{Step: i, Msg: fmt.Sprintf(format, args...)}
		}
		if n := step.kindCount(); n != 1 {
			return bad("expected exactly one of prose, example, provision, start or stop, got %d", n)
		}
		if step.AllowFailure && step.Example == "" {
			return bad("allow_failure only applies to example steps")
		}

		var command string
		switch step.Kind() {
		case "example":
			command = step.Example
		case "provision":
			p := step.Provision
			if p.Name == "" || p.Command == "" || p.Filename == "" {
				return bad("provision needs name, command and filename")
			}
			if _, ok := artifacts[p.Name]; ok {
				return bad("artifact %q provisioned twice", p.Name)
			}
			if !plainFilename(p.Filename) {
				return bad("provision filename %q must be a plain file name", p.Filename)
			}
			command = p.Command
		case "start":
			st := step.Start
			if st.Name == "" || st.Command == "" {
				return bad("start needs name and command")
			}
			if started[st.Name] {
				return bad("background process %q started twice", st.Name)
			}
			started[st.Name] = true
			command = st.Command
		case "stop":
			if !started[step.Stop] {
				return bad("stop of %q which was not started earlier", step.Stop)
			}
			if stopped[step.Stop] {
				return bad("background process %q stopped twice", step.Stop)
			}
			stopped[step.Stop] = true
		}
		if command != "" {
			vars := CommandVars{Self: "livedoc", Dir: s.WorkDir(), Artifacts: artifacts}
			if _, err := ExpandCommand(command, vars); err != nil {
				return bad("%v", err)
			}
		}
		if p := step.Provision; p != nil {
			artifacts[p.Name] = filepath.Join(os.TempDir(), DefaultArtifactPattern, p.Filename)
		}
	}
	return nil
}

// WorkDir returns the absolute working directory for commands.
func (s *Script) WorkDir() string {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if filepath.IsAbs(dir) || s.BaseDir == "" {
		return filepath.Clean(dir)
	}
	return filepath.Join(s.BaseDir, dir)
}

// ShellOptions configures a Shell to run the script's commands.
func (s *Script) ShellOptions() []Option {
	return []Option{WithDir(s.WorkDir()), WithEnv(s.Env)}
}

// DestinationPath returns the absolute destination, or "" when unset.
func (s *Script) DestinationPath() string {
	if s.Destination == "" {
		return ""
	}
	if filepath.IsAbs(s.Destination) || s.BaseDir == "" {
		return filepath.Clean(s.Destination)
	}
	return filepath.Join(s.BaseDir, s.Destination)
}

// CommandVars are the values available to command templates.
type CommandVars struct {
	// Self is the path of the running livedoc executable.
	Self string

	// Dir is the working directory of commands.
	Dir string

	// Artifacts maps provisioned artifact names to file paths.
	Artifacts map[string]string
}

func parseCommandTemplate(command string) (*template.Template, error) {
	return template.New("command").Option("missingkey=error").Parse(command)
}

// ExpandCommand renders command with vars. Referencing an artifact that has
// not been provisioned is an error.
func ExpandCommand(command string, vars CommandVars) (string, error) {
	tmpl, err := parseCommandTemplate(command)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", err
	}
	return buf.String(), nil
}
