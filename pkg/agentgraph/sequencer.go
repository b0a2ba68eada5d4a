package agentgraph

import "sort"

// ExecutionOrder returns a topological order of the node ids using Kahn's
// algorithm: for every edge (s,t), s precedes t in the result.
//
// The queue is seeded with zero-in-degree nodes in node-array order and
// processed FIFO, so ordering among independent nodes is stable across runs
// with the same input. Successors are visited in edge-declaration order.
// Edges referencing unknown nodes are ignored here; ValidateFramework
// rejects them before a graph reaches the sequencer.
//
// A cyclic graph returns a *CycleError naming every node that never reached
// zero in-degree, rather than a silent partial order.
func ExecutionOrder(nodes []Node, edges []Edge) ([]string, error) {
	known := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		known[n.ID] = true
	}

	inDegree := make(map[string]int, len(nodes))
	successors := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		inDegree[n.ID] = 0
	}
	for _, e := range edges {
		if !known[e.Source] || !known[e.Target] {
			continue
		}
		successors[e.Source] = append(successors[e.Source], e.Target)
		inDegree[e.Target]++
	}

	queue := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	order := make([]string, 0, len(nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		for _, next := range successors[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(nodes) {
		ordered := make(map[string]bool, len(order))
		for _, id := range order {
			ordered[id] = true
		}
		var trapped []string
		for _, n := range nodes {
			if !ordered[n.ID] {
				trapped = append(trapped, n.ID)
			}
		}
		sort.Strings(trapped)
		return nil, &CycleError{Nodes: trapped}
	}

	return order, nil
}
