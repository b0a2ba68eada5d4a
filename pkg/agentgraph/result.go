package agentgraph

import "time"

// Run statuses. Status reports whether the run itself finished; Success
// additionally requires that every node succeeded.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ExecutionLog is the per-node record of one run. Children of one
// ExecutionResult, in execution order.
type ExecutionLog struct {
	NodeID    string `json:"nodeId"`
	Input     string `json:"input"`
	Output    string `json:"output"`
	Model     string `json:"model,omitempty"`
	Tokens    int    `json:"tokens,omitempty"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

// ExecutionResult is the immutable outcome of one framework run.
type ExecutionResult struct {
	ID          string            `json:"id"`
	FrameworkID string            `json:"frameworkId"`
	Timestamp   time.Time         `json:"timestamp"`
	TestInput   string            `json:"testInput"`
	Status      string            `json:"status"`
	Success     bool              `json:"success"`
	Latency     int64             `json:"latency"`
	TotalTokens int               `json:"totalTokens"`
	TotalCost   float64           `json:"totalCost"`
	Output      string            `json:"output"`
	NodeTimings map[string]int64  `json:"nodeTimings"`
	NodeOutputs map[string]string `json:"nodeOutputs"`
	Logs        []ExecutionLog    `json:"logs"`
}
