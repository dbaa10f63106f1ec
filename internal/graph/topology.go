// Package graph implements the L2 representations from spec.md §3/§4.2:
// Graph (the user-facing DAG of operators) and ExecutionGraph (the
// JIT-annotated derived form schedulers actually run). Both share one set
// of topology algorithms -- Kahn's algorithm for cycle detection and
// level computation, directly grounded on the teacher's
// application.Graph.TopologicalSort / hasCycleUnsafe -- generalized here
// to emit full levels (topological layers) instead of one flat order, and
// to operate on field-routed edges rather than a plain adjacency list.
package graph

// Edge is a directed, optionally field-routed dependency: the value at
// FromNode's FromField output (or its entire Record, when FromField is
// empty) feeds ToNode's ToField input.
type Edge struct {
	FromNode  string
	FromField string
	ToNode    string
	ToField   string
}

// inboundKey uniquely identifies a (ToNode, ToField) pair so the "at most
// one inbound edge per field" invariant (spec.md §3) can be checked in
// O(1).
func inboundKey(toNode, toField string) string { return toNode + "\x00" + toField }

// adjacency builds a node -> outgoing edges map and in-degree counts over
// nodeIDs and edges, used by both HasCycle and Levels.
func adjacency(nodeIDs []string, edges []Edge) (adj map[string][]Edge, inDegree map[string]int) {
	adj = make(map[string][]Edge, len(nodeIDs))
	inDegree = make(map[string]int, len(nodeIDs))
	for _, id := range nodeIDs {
		inDegree[id] = 0
	}
	for _, e := range edges {
		adj[e.FromNode] = append(adj[e.FromNode], e)
		inDegree[e.ToNode]++
	}
	return adj, inDegree
}

// HasCycle reports whether the graph described by nodeIDs and edges
// contains a circular dependency, using three-color depth-first search.
func HasCycle(nodeIDs []string, edges []Edge) bool {
	adj, _ := adjacency(nodeIDs, edges)
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodeIDs))
	for _, id := range nodeIDs {
		color[id] = white
	}

	var dfs func(string) bool
	dfs = func(id string) bool {
		color[id] = gray
		for _, e := range adj[id] {
			switch color[e.ToNode] {
			case gray:
				return true
			case white:
				if dfs(e.ToNode) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for _, id := range nodeIDs {
		if color[id] == white && dfs(id) {
			return true
		}
	}
	return false
}

// Levels computes the topological layering of the graph using Kahn's
// algorithm: level 0 contains every node with no incoming edges; level k
// contains every node whose predecessors all lie in levels < k. Nodes
// within a level have no dependency relationship and may run
// concurrently (spec.md §4.3's "wave"/"level" definition). Returns an
// error if the graph contains a cycle, since Kahn's algorithm then
// cannot drain every node.
func Levels(nodeIDs []string, edges []Edge) ([][]string, error) {
	adj, inDegree := adjacency(nodeIDs, edges)

	remaining := make(map[string]int, len(inDegree))
	for k, v := range inDegree {
		remaining[k] = v
	}

	var levels [][]string
	processed := 0
	frontier := make([]string, 0)
	for _, id := range nodeIDs {
		if remaining[id] == 0 {
			frontier = append(frontier, id)
		}
	}

	for len(frontier) > 0 {
		levels = append(levels, frontier)
		processed += len(frontier)

		next := make([]string, 0)
		for _, id := range frontier {
			for _, e := range adj[id] {
				remaining[e.ToNode]--
				if remaining[e.ToNode] == 0 {
					next = append(next, e.ToNode)
				}
			}
		}
		frontier = next
	}

	if processed != len(nodeIDs) {
		return nil, &CycleError{NodeCount: len(nodeIDs), Processed: processed}
	}
	return levels, nil
}

// TopoOrder flattens Levels into a single order respecting every edge.
func TopoOrder(nodeIDs []string, edges []Edge) ([]string, error) {
	levels, err := Levels(nodeIDs, edges)
	if err != nil {
		return nil, err
	}
	order := make([]string, 0, len(nodeIDs))
	for _, level := range levels {
		order = append(order, level...)
	}
	return order, nil
}

// Incoming returns the edges whose ToNode is node.
func Incoming(node string, edges []Edge) []Edge {
	var out []Edge
	for _, e := range edges {
		if e.ToNode == node {
			out = append(out, e)
		}
	}
	return out
}

// Outgoing returns the edges whose FromNode is node.
func Outgoing(node string, edges []Edge) []Edge {
	var out []Edge
	for _, e := range edges {
		if e.FromNode == node {
			out = append(out, e)
		}
	}
	return out
}

// CycleError reports that Levels/TopoOrder could not drain every node,
// meaning the graph contains a cycle. Callers at the domain boundary wrap
// this into a *domain.GraphCycleError.
type CycleError struct {
	NodeCount int
	Processed int
}

func (e *CycleError) Error() string {
	return "graph cycle detected: topological drain stalled"
}
