// # livedoc
//
// `livedoc` generates Markdown documentation whose command examples are
// executed at generation time, so the output shown in a README is always the
// output the tool really produces. It is the README generator for `gaze` and
// works for any command line tool that can be driven from `/bin/sh`.
//
// Key capabilities:
//
//   - run each example through `/bin/sh -c` and embed `$ command` followed by
//     the trimmed, interleaved stdout and stderr in a fenced block.
//   - abort the whole run on a failing example unless the step is marked
//     `allow_failure`; nothing is written when a run aborts.
//   - provision temporary files from command output and reference them from
//     later examples as `{{ .Artifacts.<name> }}`.
//   - start a background service, wait until it prints a ready line or accepts
//     connections, and embed everything it logged once it is stopped.
//   - compile the documented Go binaries before the first step with a `build`
//     table.
//   - write Prometheus text format metrics for every command with
//     `--metrics-file`.
//
// ## Usage
//
//	livedoc [flags]
//
// Examples:
//
//   - Print the built-in gaze README to stdout:
//
//     livedoc
//
//   - Generate from a custom script into a file:
//
//     livedoc -s docs/readme.toml -o README.md
//
//   - Rewrite the script's destination in place:
//
//     livedoc -s docs/readme.yaml --overwrite
//
// ## Scripts
//
// A script is a TOML or YAML file holding an ordered list of steps. Each step
// sets exactly one of `prose`, `example`, `provision`, `start` or `stop`:
//
//	title = "mytool"
//	destination = "README.md"
//
//	[[build]]
//	package = "./cmd/mytool"
//	output = "mytool"
//
//	[[steps]]
//	example = "./mytool -version"
//
//	[[steps]]
//	[steps.provision]
//	name = "config"
//	command = "./mytool -example-config"
//	filename = "mytool.toml"
//
//	[[steps]]
//	example = "./mytool -config {{ .Artifacts.config }} run"
//
// Commands are Go templates. `{{ .Self }}` is the livedoc executable, which
// lets scripts start `livedoc receiver` as a local webhook endpoint.
// Templates are checked before the first step runs. A command that needs a
// literal `{{` writes it as `{{"{{"}}`:
//
//	example = "docker ps --format '{{\"{{\"}}.Names}}'"
//
// ## Supported Flags
//
//   - `-s`, `--script FILE`: script to run (default: the built-in gaze script,
//     see `livedoc print-script`).
//   - `-o`, `--output FILE`: write the document to `FILE` (stdout when omitted).
//   - `--overwrite`: write the document to the script's `destination`.
//   - `--keep-artifacts`: leave provisioned temporary files on disk.
//   - `--metrics-file FILE`: write command metrics after the run.
//   - `--log-level`, `--log-format`: control the zerolog output on stderr.
//
// Single dash long flags such as `-overwrite` are accepted too.
//
// ## Shell Completion
//
//	livedoc completion bash        # bash
//	livedoc completion zsh         # zsh
//	livedoc completion fish | source
//	livedoc completion powershell | Out-String | Invoke-Expression
//
// ## CLI Docs
//
// `livedoc gen-docs ./docs/cli` writes one Markdown file per command.
package main
