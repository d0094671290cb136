package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	cobradoc "github.com/spf13/cobra/doc"

	"github.com/agentflare-ai/livedoc/internal/receiver"
)

const rootLongDesc = `
livedoc generates documentation whose examples cannot drift from behaviour.
Every example command in a script is executed at generation time and its real
output is embedded verbatim in the resulting Markdown.

  • Examples run through /bin/sh with stdout and stderr captured together
  • A failing example aborts the run unless it is marked allow_failure
  • Temporary config files can be produced from command output and referenced
    by later examples as {{ .Artifacts.<name> }}
  • A background service can be started, waited on and drained into the document

Without --script the built-in script documenting gaze is used
(see ` + "`livedoc print-script`" + `).
`

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	app := &cliApp{stdout: stdout, stderr: stderr}
	cmd := &cobra.Command{
		Use:           "livedoc [flags]",
		Short:         "Generate documentation from live command output",
		Long:          strings.TrimSpace(rootLongDesc),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.DisableAutoGenTag = true
	cmd.Version = Version
	cmd.SetOut(stdout)
	cmd.SetErr(io.Discard)
	cmd.CompletionOptions.DisableDefaultCmd = true

	flags := cmd.Flags()
	flags.StringVarP(&app.opts.scriptPath, "script", "s", "", "script file (.toml, .yaml or .yml); default is the built-in gaze script")
	flags.StringVarP(&app.opts.outputPath, "output", "o", "", "write the document to file instead of stdout")
	flags.BoolVar(&app.opts.overwrite, "overwrite", false, "write the document to the script's destination")
	flags.BoolVar(&app.opts.keepArtifacts, "keep-artifacts", false, "leave provisioned temporary files on disk")
	flags.StringVar(&app.opts.metricsFile, "metrics-file", "", "write command metrics in Prometheus text format to file")
	flags.StringVar(&app.opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&app.opts.logFormat, "log-format", "console", "log format (console, json)")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return app.execute(ctx)
	}

	cmd.AddCommand(newReceiverCmd(stderr))
	cmd.AddCommand(newPrintScriptCmd())
	cmd.AddCommand(newCompletionCmd(cmd))
	cmd.AddCommand(newDocsCmd(cmd))
	return cmd
}

func newReceiverCmd(stderr io.Writer) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "receiver",
		Short: "Run the example HTTP receiver for web behaviours",
		Long: strings.TrimSpace(`
Start an HTTP server that logs every POST or PUT it receives (method, path,
headers and JSON body) and answers 204. Use http://127.0.0.1:8080 as the url of
a web behaviour to see what would be delivered.

Example:

  livedoc receiver --port 8080
`),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().StringVar(&host, "host", "", "interface to bind (default all)")
	cmd.Flags().IntVarP(&port, "port", "p", receiver.DefaultPort, "port to listen on")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		return receiver.Serve(ctx, addr, newReceiverLogger(stderr))
	}
	return cmd
}

func newPrintScriptCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "print-script",
		Short:         "Print the built-in gaze script",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write(defaultScript)
			return err
		},
	}
}

func newCompletionCmd(root *cobra.Command) *cobra.Command {
	const (
		longDesc = `Generate shell completion scripts for livedoc.

The output should be evaluated by your shell. For example:

  # bash
  livedoc completion bash > /usr/local/etc/bash_completion.d/livedoc

  # zsh
  livedoc completion zsh > "${fpath[1]}/_livedoc"

  # fish
  livedoc completion fish | source

  # PowerShell
  livedoc completion powershell | Out-String | Invoke-Expression
`
	)
	cmd := &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 "Generate shell completion scripts",
		Long:                  longDesc,
		Args:                  cobra.ExactValidArgs(1),
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		SilenceUsage:          true,
		SilenceErrors:         true,
		DisableFlagsInUseLine: true,
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return root.GenBashCompletion(cmd.OutOrStdout())
		case "zsh":
			return root.GenZshCompletion(cmd.OutOrStdout())
		case "fish":
			return root.GenFishCompletion(cmd.OutOrStdout(), true)
		case "powershell":
			return root.GenPowerShellCompletion(cmd.OutOrStdout())
		default:
			return fmt.Errorf("unsupported shell %q", args[0])
		}
	}
	return cmd
}

func newDocsCmd(root *cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gen-docs [directory]",
		Short: "Generate Markdown reference docs for the CLI",
		Long: strings.TrimSpace(`
Write a Markdown file per command (suitable for publishing CLI docs).

Example:

  livedoc gen-docs ./docs/cli
`),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		target := args[0]
		if target == "" {
			return fmt.Errorf("target directory is required")
		}
		if err := os.MkdirAll(target, 0o755); err != nil {
			return err
		}
		return cobradoc.GenMarkdownTree(root, target)
	}
	return cmd
}
