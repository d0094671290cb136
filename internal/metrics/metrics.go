// Package metrics records command execution metrics for a livedoc run.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentflare-ai/livedoc/internal/livedoc"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeNonZero = "nonzero"
	OutcomeError   = "error"
)

// Recorder holds the run's metrics on a private registry.
type Recorder struct {
	registry *prometheus.Registry
	commands *prometheus.CounterVec
	duration *prometheus.HistogramVec
	exitCode *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livedoc_commands_total",
				Help: "Total number of shell commands run for the document (examples, provisioning and builds) by outcome",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "livedoc_command_duration_seconds",
				Help:    "Duration of shell commands run for the document in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		exitCode: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "livedoc_command_last_exit_code",
				Help: "Exit code of the most recent execution of each command",
			},
			[]string{"command"},
		),
	}
	r.registry.MustRegister(r.commands, r.duration, r.exitCode)
	return r
}

// Registry exposes the underlying registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Observe records one command execution. res is nil when err is set.
func (r *Recorder) Observe(command string, res *livedoc.Result, err error) {
	outcome := OutcomeSuccess
	switch {
	case err != nil:
		outcome = OutcomeError
	case res.ExitCode != 0:
		outcome = OutcomeNonZero
	}
	r.commands.WithLabelValues(outcome).Inc()
	if res != nil {
		r.duration.WithLabelValues(outcome).Observe(res.Duration.Seconds())
		r.exitCode.WithLabelValues(command).Set(float64(res.ExitCode))
	}
}

// WriteTextfile writes all metrics in the text exposition format, suitable
// for the node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// Instrument wraps an executor so every execution is observed.
func (r *Recorder) Instrument(next livedoc.Executor) livedoc.Executor {
	return &instrumented{next: next, recorder: r}
}

type instrumented struct {
	next     livedoc.Executor
	recorder *Recorder
}

func (i *instrumented) Execute(ctx context.Context, command string) (*livedoc.Result, error) {
	res, err := i.next.Execute(ctx, command)
	i.recorder.Observe(command, res, err)
	return res, err
}
