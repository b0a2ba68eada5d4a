// Package agentgraph provides a DAG-based execution engine for multi-agent
// LLM pipelines: a topological sequencer, a per-node executor, and a graph
// runner that aggregates timings, token usage, and cost into an immutable
// execution result.
package agentgraph

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for graph validation.
var (
	// ErrCycle indicates the node/edge set is not acyclic.
	ErrCycle = errors.New("graph contains a cycle")

	// ErrEmptyGraph indicates the framework has no nodes.
	ErrEmptyGraph = errors.New("framework has no nodes")

	// ErrDuplicateNodeID indicates two nodes share an id.
	ErrDuplicateNodeID = errors.New("duplicate node id")

	// ErrEdgeEndpointNotFound indicates an edge references a missing node.
	ErrEdgeEndpointNotFound = errors.New("edge endpoint not found")
)

// CycleError reports the nodes that never reached zero in-degree during
// sequencing. The ids are sorted for stable messages.
type CycleError struct {
	// Nodes are the ids trapped in the cycle.
	Nodes []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected involving nodes: %s", strings.Join(e.Nodes, ", "))
}

// Unwrap returns ErrCycle for errors.Is support.
func (e *CycleError) Unwrap() error {
	return ErrCycle
}

// ValidationError reports a framework that failed save-time validation.
type ValidationError struct {
	// NodeID is the offending node, if the failure is node-scoped.
	NodeID string
	// Field is the configuration field at fault, if any.
	Field string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	switch {
	case e.NodeID != "" && e.Field != "":
		return fmt.Sprintf("node %s: invalid %s: %v", e.NodeID, e.Field, e.Err)
	case e.NodeID != "":
		return fmt.Sprintf("node %s: %v", e.NodeID, e.Err)
	default:
		return fmt.Sprintf("invalid framework: %v", e.Err)
	}
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NodeError wraps an execution error with node context.
type NodeError struct {
	// NodeID is the identifier of the node that failed.
	NodeID string
	// Op is the operation that failed (e.g. "script", "completion", "fetch").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}
