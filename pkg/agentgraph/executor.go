package agentgraph

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/amiddlebrook/agentgraph/pkg/agentgraph/llm"
	"github.com/amiddlebrook/agentgraph/pkg/agentgraph/script"
)

// Gateway is the external LLM dependency of agent nodes. *llm.Client
// implements it; tests substitute deterministic stubs.
type Gateway interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error)
}

// maxToolBody caps how much of a fetched page a tool node will read.
const maxToolBody = 2 << 20

// NodeResult is the outcome of executing a single node.
type NodeResult struct {
	Output string
	Tokens int
	Cost   float64
	Model  string
}

// Executor dispatches a single node to its behavior based on node type.
type Executor struct {
	gateway    Gateway
	httpClient *http.Client
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithToolHTTPClient replaces the HTTP client used by tool nodes.
func WithToolHTTPClient(hc *http.Client) ExecutorOption {
	return func(e *Executor) {
		e.httpClient = hc
	}
}

// NewExecutor creates an executor backed by the given gateway.
func NewExecutor(gateway Gateway, opts ...ExecutorOption) *Executor {
	e := &Executor{
		gateway:    gateway,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one node against its input.
//
// Dispatch by type: input/output and the structural types (router, memory,
// parallel, merge) pass their input through at zero cost, as does any
// unrecognized type. Processor nodes (or any node carrying custom code) run
// their script in the restricted script language. Agent nodes call the
// gateway with a [system, user] prompt. Tool nodes fetch their configured
// URL and convert the HTML body to Markdown.
//
// Failures are returned as errors; the runner records them node-locally and
// keeps going.
func (e *Executor) Execute(ctx context.Context, node Node, input string) (NodeResult, error) {
	cfg, err := ParseNodeConfig(node)
	if err != nil {
		return NodeResult{}, err
	}

	switch c := cfg.(type) {
	case ProcessorConfig:
		return e.runScript(c, input)
	case AgentConfig:
		return e.callAgent(ctx, c, input)
	case ToolConfig:
		return e.fetchTool(ctx, c)
	default:
		return NodeResult{Output: input}, nil
	}
}

// runScript applies a processor node's compiled program.
func (e *Executor) runScript(cfg ProcessorConfig, input string) (NodeResult, error) {
	output, err := script.Run(cfg.Script, input)
	if err != nil {
		return NodeResult{}, fmt.Errorf("script: %w", err)
	}
	return NodeResult{Output: output}, nil
}

// callAgent dispatches an agent node to the gateway.
func (e *Executor) callAgent(ctx context.Context, cfg AgentConfig, input string) (NodeResult, error) {
	if e.gateway == nil {
		return NodeResult{}, fmt.Errorf("completion: no gateway configured")
	}
	completion, err := e.gateway.Complete(ctx, llm.CompletionRequest{
		Model: cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: cfg.SystemPrompt},
			{Role: llm.RoleUser, Content: input},
		},
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		TopP:        cfg.TopP,
	})
	if err != nil {
		return NodeResult{}, fmt.Errorf("completion: %w", err)
	}
	return NodeResult{
		Output: completion.Content,
		Tokens: completion.Usage.TotalTokens,
		Cost:   completion.Usage.Cost,
		Model:  completion.Model,
	}, nil
}

// fetchTool retrieves a tool node's URL and converts the page to Markdown.
func (e *Executor) fetchTool(ctx context.Context, cfg ToolConfig) (NodeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		return NodeResult{}, fmt.Errorf("fetch: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return NodeResult{}, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return NodeResult{}, fmt.Errorf("fetch: %s returned %d", cfg.URL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxToolBody))
	if err != nil {
		return NodeResult{}, fmt.Errorf("fetch: read body: %w", err)
	}

	markdown, err := htmltomarkdown.ConvertString(string(body))
	if err != nil {
		return NodeResult{}, fmt.Errorf("fetch: convert html: %w", err)
	}

	return NodeResult{Output: markdown}, nil
}
