package agentgraph

import "fmt"

// ValidateFramework checks a framework at save time:
//
//  1. at least one node, ids unique
//  2. every edge references existing nodes
//  3. every node's config parses into its typed form
//  4. the graph is acyclic
//
// The first failure is returned; cycle failures surface the *CycleError so
// callers can map them to a distinct status.
func ValidateFramework(f *Framework) error {
	if len(f.Nodes) == 0 {
		return &ValidationError{Err: ErrEmptyGraph}
	}

	seen := make(map[string]bool, len(f.Nodes))
	for _, n := range f.Nodes {
		if n.ID == "" {
			return &ValidationError{Err: fmt.Errorf("node with empty id")}
		}
		if seen[n.ID] {
			return &ValidationError{NodeID: n.ID, Err: ErrDuplicateNodeID}
		}
		seen[n.ID] = true
	}

	for _, e := range f.Edges {
		if !seen[e.Source] {
			return &ValidationError{Err: fmt.Errorf("%w: edge %s source %q", ErrEdgeEndpointNotFound, e.ID, e.Source)}
		}
		if !seen[e.Target] {
			return &ValidationError{Err: fmt.Errorf("%w: edge %s target %q", ErrEdgeEndpointNotFound, e.ID, e.Target)}
		}
	}

	for _, n := range f.Nodes {
		if _, err := ParseNodeConfig(n); err != nil {
			return &ValidationError{NodeID: n.ID, Field: "config", Err: err}
		}
	}

	if _, err := ExecutionOrder(f.Nodes, f.Edges); err != nil {
		return err
	}

	return nil
}
