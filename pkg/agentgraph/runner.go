package agentgraph

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/amiddlebrook/agentgraph/pkg/agentgraph/observability"
)

// Runner drives the sequencer and executor over a framework and aggregates
// per-node timing, token, and cost data into an ExecutionResult.
type Runner struct {
	executor *Executor
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
	tracing  bool
}

// fanInSeparator joins upstream outputs when a node has multiple incoming
// edges, in edge-declaration order.
const fanInSeparator = "\n---\n"

// NewRunner creates a runner around the given executor.
func NewRunner(executor *Executor, opts ...RunnerOption) *Runner {
	r := &Runner{
		executor: executor,
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the framework against testInput and returns the aggregated
// result. Run never returns an error: run-level failures (cycles,
// cancellation) are reported as Status "failed" with the message as Output,
// while node-level failures are recorded in the node's log entry and fold
// into Success without stopping the run.
func (r *Runner) Run(ctx context.Context, fw *Framework, testInput string) *ExecutionResult {
	res := &ExecutionResult{
		ID:          uuid.NewString(),
		FrameworkID: fw.ID,
		Timestamp:   time.Now().UTC(),
		TestInput:   testInput,
		NodeTimings: make(map[string]int64, len(fw.Nodes)),
		NodeOutputs: make(map[string]string, len(fw.Nodes)),
	}
	start := time.Now()

	observability.LogRunStart(r.logger, res.ID, fw.ID)

	execCtx := ctx
	var runSpan trace.Span
	if r.tracing {
		execCtx, runSpan = r.spans.StartRunSpan(ctx, fw.Name, res.ID)
	}

	runErr := r.runNodes(execCtx, fw, testInput, res)

	res.Latency = time.Since(start).Milliseconds()
	duration := time.Since(start)

	if runErr != nil {
		res.Status = StatusFailed
		res.Success = false
		res.Output = runErr.Error()
		observability.LogRunError(r.logger, res.ID, runErr, float64(res.Latency))
	} else {
		res.Status = StatusCompleted
		observability.LogRunComplete(r.logger, res.ID, float64(res.Latency), len(res.Logs))
	}

	r.metrics.RecordRun(ctx, res.Success, duration)
	if r.tracing {
		r.spans.EndSpanWithError(runSpan, runErr)
	}

	return res
}

// runNodes walks the topological order, executing each node and recording
// its outcome. Returns an error only for run-level failures.
func (r *Runner) runNodes(ctx context.Context, fw *Framework, testInput string, res *ExecutionResult) error {
	order, err := ExecutionOrder(fw.Nodes, fw.Edges)
	if err != nil {
		return err
	}

	nodesByID := make(map[string]Node, len(fw.Nodes))
	for _, n := range fw.Nodes {
		nodesByID[n.ID] = n
	}

	// Reverse adjacency in edge-declaration order drives fan-in merging.
	incoming := make(map[string][]string, len(fw.Nodes))
	for _, e := range fw.Edges {
		incoming[e.Target] = append(incoming[e.Target], e.Source)
	}

	success := true
	for _, id := range order {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		node := nodesByID[id]
		input := nodeInput(id, testInput, incoming, res.NodeOutputs)

		observability.LogNodeStart(r.logger, id)

		nodeCtx := ctx
		var nodeSpan trace.Span
		if r.tracing {
			nodeCtx, nodeSpan = r.spans.StartNodeSpan(ctx, id)
		}

		nodeStart := time.Now()
		nr, execErr := r.executor.Execute(nodeCtx, node, input)
		nodeDuration := time.Since(nodeStart)
		latencyMs := nodeDuration.Milliseconds()

		r.metrics.RecordNodeExecution(nodeCtx, id, nodeDuration, execErr)
		if r.tracing {
			r.spans.EndSpanWithError(nodeSpan, execErr)
		}

		entry := ExecutionLog{NodeID: id, Input: input, LatencyMs: latencyMs}
		if execErr != nil {
			// Node failure is node-local: encode it as the node's output and
			// keep walking. Downstream nodes see the error text as input.
			success = false
			entry.Output = "Error: " + execErr.Error()
			entry.Error = execErr.Error()
			observability.LogNodeError(r.logger, id, &NodeError{NodeID: id, Op: "execute", Err: execErr})
		} else {
			entry.Output = nr.Output
			entry.Model = nr.Model
			entry.Tokens = nr.Tokens
			res.TotalTokens += nr.Tokens
			res.TotalCost += nr.Cost
			if nr.Tokens > 0 {
				r.metrics.RecordTokens(nodeCtx, nr.Model, int64(nr.Tokens))
			}
			observability.LogNodeComplete(r.logger, id, float64(latencyMs))
		}

		res.NodeOutputs[id] = entry.Output
		res.NodeTimings[id] = latencyMs
		res.Logs = append(res.Logs, entry)
	}

	res.Success = success
	res.Output = terminalOutput(fw, order, res.NodeOutputs)
	return nil
}

// nodeInput resolves a node's input: the raw test input for source nodes,
// the single upstream output otherwise, or the fan-in concatenation when
// several edges point at the node.
func nodeInput(id, testInput string, incoming map[string][]string, outputs map[string]string) string {
	sources := incoming[id]
	switch len(sources) {
	case 0:
		return testInput
	case 1:
		return outputs[sources[0]]
	default:
		parts := make([]string, len(sources))
		for i, src := range sources {
			parts[i] = outputs[src]
		}
		return strings.Join(parts, fanInSeparator)
	}
}

// terminalOutput selects the run's final output: the first node typed
// "output", else the first node whose label mentions "output", else the last
// node in execution order.
func terminalOutput(fw *Framework, order []string, outputs map[string]string) string {
	for _, n := range fw.Nodes {
		if n.Type == NodeOutput {
			return outputs[n.ID]
		}
	}
	for _, n := range fw.Nodes {
		if strings.Contains(strings.ToLower(n.Data.Label), "output") {
			return outputs[n.ID]
		}
	}
	if len(order) > 0 {
		return outputs[order[len(order)-1]]
	}
	return ""
}
