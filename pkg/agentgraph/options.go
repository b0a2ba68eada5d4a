package agentgraph

import (
	"log/slog"

	"github.com/amiddlebrook/agentgraph/pkg/agentgraph/observability"
)

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger enables structured run/node logging. A nil logger disables it.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithMetrics records run and node metrics through the given recorder.
// Default: no-op.
func WithMetrics(m observability.MetricsRecorder) RunnerOption {
	return func(r *Runner) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithTracing enables span creation through the given manager.
// Default: disabled.
func WithTracing(s observability.SpanManager) RunnerOption {
	return func(r *Runner) {
		if s != nil {
			r.spans = s
			r.tracing = true
		}
	}
}
