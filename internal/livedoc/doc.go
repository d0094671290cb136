// Package livedoc runs example commands and embeds their real output into
// generated documents.
//
// A document is built from an ordered script of steps. Prose is copied as is,
// examples are executed through the host shell and rendered as fenced
// transcripts, temporary artifacts are produced from command output, and a
// long running background process can be started, waited on and drained.
//
// # Executing commands
//
// Executor runs one shell command to completion and returns its combined
// output and exit status:
//
//	sh := livedoc.NewShell(livedoc.WithDir("/repo"))
//	res, err := sh.Execute(ctx, "./gaze -version")
//
// A non-zero exit status is not an error of Execute. Example applies the
// allow-failure policy on top of it:
//
//	ex := livedoc.NewExample("./gaze -help", true)
//	text, err := ex.Render(ctx, sh)
//
// # Failure policy
//
// Nothing is retried. Any failure aborts generation and no partial document
// is returned. Failures are typed: CommandFailedError,
// InvalidStateTransitionError, ProvisioningError, ReadinessError and
// ScriptError can all be matched with errors.As.
package livedoc
