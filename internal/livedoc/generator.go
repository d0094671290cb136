package livedoc

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Builder compiles the binaries a script documents before any step runs.
type Builder interface {
	Build(ctx context.Context, spec BuildSpec, workDir string) (string, error)
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithExecutor replaces the shell used for examples and provisioning.
func WithExecutor(executor Executor) GeneratorOption {
	return func(g *Generator) {
		g.executor = executor
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) GeneratorOption {
	return func(g *Generator) {
		g.logger = logger
	}
}

// WithSelf sets the value of {{.Self}} in command templates.
func WithSelf(path string) GeneratorOption {
	return func(g *Generator) {
		g.self = path
	}
}

// WithTempRoot sets the parent directory for provisioned artifacts.
func WithTempRoot(dir string) GeneratorOption {
	return func(g *Generator) {
		g.tempRoot = dir
	}
}

// WithBuilder enables the script's build entries.
func WithBuilder(builder Builder) GeneratorOption {
	return func(g *Generator) {
		g.builder = builder
	}
}

// WithKeepArtifacts overrides the script's keep_artifacts setting.
func WithKeepArtifacts(keep bool) GeneratorOption {
	return func(g *Generator) {
		g.keepArtifacts = &keep
	}
}

// Generator runs a Script and produces the document text.
type Generator struct {
	script        *Script
	executor      Executor
	logger        zerolog.Logger
	self          string
	tempRoot      string
	builder       Builder
	keepArtifacts *bool
}

// NewGenerator creates a Generator for script.
func NewGenerator(script *Script, opts ...GeneratorOption) *Generator {
	g := &Generator{
		script: script,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.executor == nil {
		g.executor = NewShell(g.script.ShellOptions()...)
	}
	return g
}

func (g *Generator) keep() bool {
	if g.keepArtifacts != nil {
		return *g.keepArtifacts
	}
	return g.script.KeepArtifacts
}

// run holds everything acquired during one Generate call.
type run struct {
	log         zerolog.Logger
	artifacts   []*Artifact
	paths       map[string]string
	backgrounds map[string]*Background
	shown       map[string]string
	order       []string
}

// Generate executes every step in order. Any failure aborts the run and no
// document text is returned. Background processes are stopped and artifact
// directories removed on every exit path.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	r := &run{
		log:         g.logger.With().Str("run", uuid.NewString()).Logger(),
		paths:       make(map[string]string),
		backgrounds: make(map[string]*Background),
		shown:       make(map[string]string),
	}
	defer g.release(r)

	r.log.Info().Str("dir", g.script.WorkDir()).Int("steps", len(g.script.Steps)).Msg("generating document")

	if err := g.build(ctx, r); err != nil {
		return "", err
	}

	doc := &Document{}
	if g.script.Title != "" {
		doc.Add("# "+g.script.Title, "")
	}
	for i := range g.script.Steps {
		step := &g.script.Steps[i]
		if err := g.runStep(ctx, r, doc, step); err != nil {
			g.logFailure(r.log, i, step, err)
			return "", err
		}
	}

	r.log.Info().Int("segments", doc.Len()).Msg("document generated")
	return doc.Text(), nil
}

func (g *Generator) build(ctx context.Context, r *run) error {
	if len(g.script.Build) == 0 {
		return nil
	}
	if g.builder == nil {
		return &ScriptError{Step: -1, Msg: "script has build entries but no builder is configured"}
	}
	for _, spec := range g.script.Build {
		out, err := g.builder.Build(ctx, spec, g.script.WorkDir())
		if err != nil {
			r.log.Error().Err(err).Str("package", spec.Package).Msg("build failed")
			return fmt.Errorf("build %s: %w", spec.Package, err)
		}
		r.log.Info().Str("package", spec.Package).Str("binary", out).Msg("built")
	}
	return nil
}

func (g *Generator) runStep(ctx context.Context, r *run, doc *Document, step *Step) error {
	switch step.Kind() {
	case "prose":
		doc.Add(step.Prose)
		return nil

	case "example":
		command, err := g.expand(step.Example, r)
		if err != nil {
			return err
		}
		ex := NewExample(command, step.AllowFailure)
		if err := doc.AddExample(ctx, g.executor, ex); err != nil {
			return err
		}
		res := ex.Result()
		ev := r.log.Info()
		if res.ExitCode != 0 {
			ev = r.log.Warn()
		}
		ev.Str("command", command).Int("exit_code", res.ExitCode).Dur("duration", res.Duration).Msg("example captured")
		return nil

	case "provision":
		spec := step.Provision
		command, err := g.expand(spec.Command, r)
		if err != nil {
			return err
		}
		p := &Provisioner{Executor: g.executor, TempRoot: g.tempRoot}
		art, err := p.Provision(ctx, command, spec.Filename)
		if err != nil {
			return err
		}
		r.artifacts = append(r.artifacts, art)
		r.paths[spec.Name] = art.Path
		r.log.Info().Str("artifact", spec.Name).Str("path", art.Path).Int("bytes", len(art.Content)).Msg("artifact provisioned")
		return nil

	case "start":
		spec := step.Start
		command, err := g.expand(spec.Command, r)
		if err != nil {
			return err
		}
		bg := NewBackground(spec.Name, command, g.script.ShellOptions()...)
		if err := bg.Start(ctx); err != nil {
			return err
		}
		r.backgrounds[spec.Name] = bg
		r.shown[spec.Name] = spec.Shown(command)
		r.order = append(r.order, spec.Name)
		r.log.Info().Str("process", spec.Name).Str("command", command).Msg("background process started")
		if err := bg.WaitReady(ctx, spec.Readiness()); err != nil {
			return err
		}
		r.log.Info().Str("process", spec.Name).Msg("background process ready")
		return nil

	case "stop":
		bg, ok := r.backgrounds[step.Stop]
		if !ok {
			return &InvalidStateTransitionError{Name: step.Stop, Op: "stop", State: NotStarted}
		}
		out, err := bg.Stop()
		if err != nil {
			return err
		}
		r.log.Info().Str("process", bg.Name).Int("bytes", len(out)).Msg("background process stopped")
		doc.Add(FenceTranscript(Transcript(r.shown[bg.Name], out)), "")
		return nil
	}
	return &ScriptError{Step: -1, Msg: "step has no kind"}
}

func (g *Generator) expand(command string, r *run) (string, error) {
	return ExpandCommand(command, CommandVars{
		Self:      g.self,
		Dir:       g.script.WorkDir(),
		Artifacts: r.paths,
	})
}

func (g *Generator) logFailure(log zerolog.Logger, index int, step *Step, err error) {
	ev := log.Error().Err(err).Int("step", index+1).Str("kind", step.Kind())
	var failed *CommandFailedError
	if errors.As(err, &failed) {
		ev = ev.Str("command", failed.Command).Int("exit_code", failed.ExitCode).Bytes("output", failed.Output)
	}
	var notReady *ReadinessError
	if errors.As(err, &notReady) {
		ev = ev.Bytes("output", notReady.Output)
	}
	ev.Msg("document generation aborted")
}

func (g *Generator) release(r *run) {
	for _, name := range r.order {
		bg := r.backgrounds[name]
		if bg.State() != Running {
			continue
		}
		if _, err := bg.Stop(); err != nil {
			r.log.Warn().Err(err).Str("process", name).Msg("stopping background process")
			continue
		}
		r.log.Debug().Str("process", name).Msg("background process released")
	}
	if g.keep() {
		for _, art := range r.artifacts {
			r.log.Info().Str("path", art.Path).Msg("keeping artifact")
		}
		return
	}
	for _, art := range r.artifacts {
		if err := art.Remove(); err != nil {
			r.log.Warn().Err(err).Str("dir", art.Dir).Msg("removing artifact")
		}
	}
}
