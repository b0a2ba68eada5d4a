package agentgraph

// NodeType classifies a node's executable behavior.
// Unknown types are tolerated and executed as passthrough so that graphs
// built against newer catalogs still run.
type NodeType string

// Built-in node types.
const (
	NodeInput     NodeType = "input"
	NodeOutput    NodeType = "output"
	NodeAgent     NodeType = "agent"
	NodeProcessor NodeType = "processor"
	NodeRouter    NodeType = "router"
	NodeTool      NodeType = "tool"
	NodeMemory    NodeType = "memory"
	NodeParallel  NodeType = "parallel"
	NodeMerge     NodeType = "merge"
)

// Position is the node's canvas coordinate. Presentation-only; the engine
// never reads it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData carries the node's label and free-form configuration as stored.
// Config is opaque to the engine except for the keys recognized by the
// node's typed config (see ParseNodeConfig).
type NodeData struct {
	Label      string         `json:"label"`
	Config     map[string]any `json:"config,omitempty"`
	CustomCode string         `json:"customCode,omitempty"`
}

// Node is a unit of work in a framework graph.
type Node struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Edge is a directed data-flow link from Source's output to Target's input.
// Type is cosmetic.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type,omitempty"`
}

// Metrics aggregates run statistics for a framework.
type Metrics struct {
	AvgLatency  float64 `json:"avgLatency"`
	SuccessRate float64 `json:"successRate"`
	TotalRuns   int     `json:"totalRuns"`
}

// Framework is a complete pipeline definition: the node/edge graph plus
// descriptive metadata and aggregate run metrics.
type Framework struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Nodes       []Node  `json:"nodes"`
	Edges       []Edge  `json:"edges"`
	Metrics     Metrics `json:"metrics"`
}

// NodeByID returns the node with the given id, or false if absent.
func (f *Framework) NodeByID(id string) (Node, bool) {
	for _, n := range f.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}
