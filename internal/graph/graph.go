package graph

import (
	"sync"

	"github.com/ahrav/opgraph/internal/domain"
	"github.com/ahrav/opgraph/internal/ports"
)

// Sentinel node IDs always present in a Graph, per spec.md §3.
const (
	InputNode  = ":input"
	OutputNode = ":output"
)

// Graph is the user-facing DAG of operators described in spec.md §3/§4.2.
// It is grounded on the teacher's application.Graph: an adjacency
// structure guarded by sync.RWMutex with O(1) duplicate-edge detection,
// generalized from plain node-to-node adjacency to field-routed edges and
// extended with the always-present :input/:output sentinels.
//
// Unlike the teacher's AddEdge, which rejects an edge that would create a
// cycle at insertion time, this Graph defers cycle detection entirely to
// scheduler Prepare (spec.md §4.3 step 1) -- the Open Question in
// spec.md §9 pins this behavior explicitly.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]ports.Operator // sentinels map to nil
	order []string                  // insertion order, for deterministic iteration
	edges []Edge
	// inbound tracks which (ToNode, ToField) pairs already have an edge,
	// enforcing the "at most one inbound edge per field" invariant.
	inbound map[string]struct{}
}

// New creates an empty Graph containing only the :input and :output
// sentinels.
func New() *Graph {
	g := &Graph{
		nodes:   make(map[string]ports.Operator),
		inbound: make(map[string]struct{}),
	}
	g.nodes[InputNode] = nil
	g.nodes[OutputNode] = nil
	g.order = append(g.order, InputNode, OutputNode)
	return g
}

// AddNode registers op under id. Duplicate IDs and nil operators are
// rejected with an *InvalidNodeError rather than a domain error, since
// they indicate a caller bug, not a graph-topology condition.
func (g *Graph) AddNode(id string, op ports.Operator) error {
	if op == nil {
		return &InvalidNodeError{ID: id, Reason: "operator must not be nil"}
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[id]; exists {
		return &InvalidNodeError{ID: id, Reason: "node already exists"}
	}
	g.nodes[id] = op
	g.order = append(g.order, id)
	return nil
}

// AddEdge connects fromNode's fromField output (or its whole Record, if
// fromField is "") to toNode's toField input. Both endpoints must already
// exist; (toNode, toField) must not already have an inbound edge.
func (g *Graph) AddEdge(fromNode, toNode, fromField, toField string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[fromNode]; !ok {
		return &domain.UnknownNodeError{NodeID: fromNode}
	}
	if _, ok := g.nodes[toNode]; !ok {
		return &domain.UnknownNodeError{NodeID: toNode}
	}

	key := inboundKey(toNode, toField)
	if _, exists := g.inbound[key]; exists {
		return &InvalidEdgeError{
			FromNode: fromNode, ToNode: toNode, ToField: toField,
			Reason: "to_node/to_field pair already has an inbound edge",
		}
	}

	g.edges = append(g.edges, Edge{FromNode: fromNode, FromField: fromField, ToNode: toNode, ToField: toField})
	g.inbound[key] = struct{}{}
	return nil
}

// FromSequence is a convenience that wires opsʲ → opsʲ₊₁ with to_field =
// "input" for every consecutive pair, per spec.md §4.2. The caller must
// still AddNode each operator (and :input/:output edges) beforehand;
// FromSequence only adds the chain edges.
func (g *Graph) FromSequence(nodeIDs []string) error {
	for i := 0; i+1 < len(nodeIDs); i++ {
		if err := g.AddEdge(nodeIDs[i], nodeIDs[i+1], "", "input"); err != nil {
			return err
		}
	}
	return nil
}

// GetNode retrieves a registered operator by ID. Sentinels return (nil, true).
func (g *Graph) GetNode(id string) (ports.Operator, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	op, ok := g.nodes[id]
	return op, ok
}

// NodeIDs returns every node ID, including sentinels, in insertion order.
func (g *Graph) NodeIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Edges returns a copy of every edge in the graph.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// InputNodes returns node IDs with no incoming edges (other than the
// :input sentinel itself).
func (g *Graph) InputNodes() []string {
	ids := g.NodeIDs()
	edges := g.Edges()
	_, inDeg := adjacency(ids, edges)
	var out []string
	for _, id := range ids {
		if id != InputNode && inDeg[id] == 0 {
			out = append(out, id)
		}
	}
	return out
}

// OutputNodes returns node IDs with no outgoing edges (other than the
// :output sentinel itself).
func (g *Graph) OutputNodes() []string {
	ids := g.NodeIDs()
	edges := g.Edges()
	hasOut := make(map[string]bool, len(ids))
	for _, e := range edges {
		hasOut[e.FromNode] = true
	}
	var out []string
	for _, id := range ids {
		if id != OutputNode && !hasOut[id] {
			out = append(out, id)
		}
	}
	return out
}

// GetInputDependencies returns the edges feeding into node.
func (g *Graph) GetInputDependencies(node string) []Edge {
	return Incoming(node, g.Edges())
}

// GetDependencies returns, for every node, the list of node IDs it
// directly depends on (its predecessors).
func (g *Graph) GetDependencies() map[string][]string {
	edges := g.Edges()
	deps := make(map[string][]string)
	for _, e := range edges {
		deps[e.ToNode] = append(deps[e.ToNode], e.FromNode)
	}
	return deps
}

// HasCycle reports whether the graph contains a circular dependency.
func (g *Graph) HasCycle() bool {
	return HasCycle(g.NodeIDs(), g.Edges())
}

// TopologicalSort returns node IDs (including sentinels) in an order that
// respects every edge, or a *domain.GraphCycleError if the graph is
// cyclic.
func (g *Graph) TopologicalSort() ([]string, error) {
	order, err := TopoOrder(g.NodeIDs(), g.Edges())
	if err != nil {
		return nil, &domain.GraphCycleError{Nodes: g.NodeIDs()}
	}
	return order, nil
}

// ToExecutionGraph lowers g into the ExecutionGraph schedulers run
// directly: every non-sentinel node becomes an ExecOperator (or ExecLLM,
// detected the same way the JIT strategies do -- a ports.StructuredOperator
// whose Structure().Kind is domain.KindLLM -- so schedulers never let the
// JIT memoize across calls to it) wrapping the same ports.Operator
// instance, with edges carried over unchanged. This is the "no JIT" path;
// jit(op, opts) instead produces an ExecutionGraph via its own analysis
// and compilation, bypassing this direct lowering.
func (g *Graph) ToExecutionGraph() *ExecutionGraph {
	eg := NewExecutionGraph()
	for _, id := range g.NodeIDs() {
		if id == InputNode || id == OutputNode {
			continue
		}
		op, _ := g.GetNode(id)
		kind := ExecOperator
		if s, ok := op.(ports.StructuredOperator); ok && s.Structure().Kind == domain.KindLLM {
			kind = ExecLLM
		}
		eg.AddNode(ExecNode{ID: id, Kind: kind, Op: op})
	}
	for _, e := range g.Edges() {
		eg.AddEdge(e)
	}
	return eg
}

// InvalidNodeError reports a caller error in AddNode (nil operator or
// duplicate ID) -- a programming error rather than a topology condition.
type InvalidNodeError struct {
	ID     string
	Reason string
}

func (e *InvalidNodeError) Error() string { return "invalid node " + e.ID + ": " + e.Reason }

// InvalidEdgeError reports a caller error in AddEdge other than an
// unknown endpoint (namely, a duplicate inbound edge on the same field).
type InvalidEdgeError struct {
	FromNode, ToNode, ToField string
	Reason                    string
}

func (e *InvalidEdgeError) Error() string {
	return "invalid edge " + e.FromNode + "->" + e.ToNode + "." + e.ToField + ": " + e.Reason
}
