package agentgraph

import (
	"errors"
	"net/url"

	"github.com/amiddlebrook/agentgraph/pkg/agentgraph/config"
	"github.com/amiddlebrook/agentgraph/pkg/agentgraph/script"
)

// Defaults applied when an agent node omits a configuration key.
const (
	DefaultModel        = "openai/gpt-4o-mini"
	DefaultTemperature  = 0.7
	DefaultMaxTokens    = 1024
	DefaultTopP         = 1.0
	DefaultSystemPrompt = "You are a helpful assistant."
)

// NodeConfig is the typed configuration for a node: a tagged union keyed by
// node type. Configurations are parsed and validated when a framework is
// saved, not trusted at execution time.
type NodeConfig interface {
	// Validate reports whether the configuration is usable.
	Validate() error
}

// AgentConfig configures an agent (LLM-call) node.
type AgentConfig struct {
	Model        string
	Temperature  float64
	SystemPrompt string
	MaxTokens    int
	TopP         float64
}

// Validate implements NodeConfig.
func (c AgentConfig) Validate() error {
	if c.Model == "" {
		return errors.New("model must not be empty")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("temperature must be in [0, 2]")
	}
	if c.MaxTokens <= 0 {
		return errors.New("maxTokens must be positive")
	}
	if c.TopP <= 0 || c.TopP > 1 {
		return errors.New("topP must be in (0, 1]")
	}
	return nil
}

// ProcessorConfig configures a scripted transform node. The script runs in
// the restricted language of the script package; arbitrary code is never
// evaluated.
type ProcessorConfig struct {
	Script string
}

// Validate implements NodeConfig. The script is compiled so malformed
// programs are rejected at save time.
func (c ProcessorConfig) Validate() error {
	if c.Script == "" {
		return errors.New("script must not be empty")
	}
	_, err := script.Compile(c.Script)
	return err
}

// ToolConfig configures a web-fetch tool node.
type ToolConfig struct {
	URL string
}

// Validate implements NodeConfig.
func (c ToolConfig) Validate() error {
	if c.URL == "" {
		return errors.New("url must not be empty")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("url must be http or https")
	}
	return nil
}

// PassthroughConfig is the configuration for nodes the executor forwards
// unchanged: input, output, router, memory, parallel, merge, and any
// unrecognized type.
type PassthroughConfig struct{}

// Validate implements NodeConfig.
func (PassthroughConfig) Validate() error { return nil }

// ParseNodeConfig resolves a node's free-form config map into its typed
// configuration, applying defaults for missing keys. A node of any type that
// carries custom code parses as a ProcessorConfig, matching the executor's
// dispatch.
func ParseNodeConfig(n Node) (NodeConfig, error) {
	cfg := config.New(n.Data.Config)

	if n.Type == NodeProcessor || n.Data.CustomCode != "" {
		src := n.Data.CustomCode
		if src == "" {
			src = cfg.String("script", "")
		}
		c := ProcessorConfig{Script: src}
		return c, c.Validate()
	}

	switch n.Type {
	case NodeAgent:
		c := AgentConfig{
			Model:        cfg.String("model", DefaultModel),
			Temperature:  cfg.Float("temperature", DefaultTemperature),
			SystemPrompt: cfg.String("systemPrompt", DefaultSystemPrompt),
			MaxTokens:    cfg.Int("maxTokens", DefaultMaxTokens),
			TopP:         cfg.Float("topP", DefaultTopP),
		}
		return c, c.Validate()
	case NodeTool:
		c := ToolConfig{URL: cfg.String("url", "")}
		return c, c.Validate()
	default:
		return PassthroughConfig{}, nil
	}
}
