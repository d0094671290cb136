package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentflare-ai/livedoc/internal/livedoc"
	"github.com/agentflare-ai/livedoc/internal/metrics"
	"github.com/agentflare-ai/livedoc/internal/toolbuild"
)

// Version is set at build time with -ldflags="-X main.Version=X.Y.Z".
var Version = "dev"

//go:embed default_script.toml
var defaultScript []byte

type options struct {
	scriptPath    string
	outputPath    string
	overwrite     bool
	keepArtifacts bool
	metricsFile   string
	logLevel      string
	logFormat     string
}

type cliApp struct {
	stdout io.Writer
	stderr io.Writer
	opts   options
}

func run(ctx context.Context, argv []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(normalizeLegacyArgs(argv))
	return cmd.ExecuteContext(ctx)
}

func (app *cliApp) execute(ctx context.Context) error {
	opts := app.opts
	if opts.overwrite && opts.outputPath != "" {
		return errors.New("-o cannot be combined with -overwrite")
	}
	logger, err := newLogger(app.stderr, opts.logLevel, opts.logFormat)
	if err != nil {
		return err
	}

	script, err := loadScript(opts.scriptPath)
	if err != nil {
		return err
	}
	destination := opts.outputPath
	if opts.overwrite {
		destination = script.DestinationPath()
		if destination == "" {
			return errors.New("-overwrite needs a destination in the script")
		}
	}

	recorder := metrics.NewRecorder()
	executor := recorder.Instrument(livedoc.NewShell(script.ShellOptions()...))
	genOpts := []livedoc.GeneratorOption{
		livedoc.WithExecutor(executor),
		livedoc.WithLogger(logger),
		livedoc.WithSelf(selfPath()),
		livedoc.WithBuilder(&toolbuild.Builder{Executor: executor}),
	}
	if opts.keepArtifacts {
		genOpts = append(genOpts, livedoc.WithKeepArtifacts(true))
	}

	text, genErr := livedoc.NewGenerator(script, genOpts...).Generate(ctx)
	if opts.metricsFile != "" {
		if err := recorder.WriteTextfile(opts.metricsFile); err != nil {
			logger.Warn().Err(err).Str("path", opts.metricsFile).Msg("writing metrics")
		}
	}
	if genErr != nil {
		return genErr
	}
	if destination != "" && destination != "-" {
		logger.Info().Str("path", destination).Msg("writing document")
	}
	return writeOutput(destination, app.stdout, []byte(text))
}

func loadScript(path string) (*livedoc.Script, error) {
	if path != "" {
		return livedoc.LoadScript(path)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return livedoc.ParseScript(defaultScript, livedoc.FormatTOML, cwd)
}

func selfPath() string {
	self, err := os.Executable()
	if err != nil {
		return "livedoc"
	}
	return self
}

func newLogger(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q", level)
	}
	var out io.Writer
	switch format {
	case "", "console":
		out = zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: time.RFC3339}
	case "json":
		out = w
	default:
		return zerolog.Logger{}, fmt.Errorf("invalid log format %q (want console or json)", format)
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

func newReceiverLogger(w io.Writer) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: "2006-01-02 15:04:05.000"}
	return zerolog.New(out).With().Timestamp().Logger()
}

func writeOutput(path string, stdout io.Writer, data []byte) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

var legacyLongFlagSet = map[string]struct{}{
	"script":         {},
	"output":         {},
	"overwrite":      {},
	"keep-artifacts": {},
	"metrics-file":   {},
	"log-level":      {},
	"log-format":     {},
	"host":           {},
	"port":           {},
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}
	modified := false
	converted := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			converted = append(converted, arg)
			converted = append(converted, args[i+1:]...)
			if i != len(args)-1 {
				modified = true
			}
			break
		}
		if !strings.HasPrefix(arg, "-") || strings.HasPrefix(arg, "--") || arg == "-" {
			converted = append(converted, arg)
			continue
		}
		if len(arg) == 2 {
			converted = append(converted, arg)
			continue
		}
		if idx := strings.Index(arg, "="); idx > 0 {
			name := arg[1:idx]
			if _, ok := legacyLongFlagSet[name]; ok {
				converted = append(converted, "--"+name+arg[idx:])
				modified = true
				continue
			}
		}
		name := arg[1:]
		if _, ok := legacyLongFlagSet[name]; ok {
			converted = append(converted, "--"+name)
			modified = true
			continue
		}
		converted = append(converted, arg)
	}
	if !modified && len(converted) == len(args) {
		return args
	}
	return converted
}
