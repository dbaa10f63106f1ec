package graph

import (
	"github.com/ahrav/opgraph/internal/operator"
	"github.com/ahrav/opgraph/internal/ports"
)

// ExecKind tags what an ExecutionGraph node actually runs.
type ExecKind int

const (
	// ExecFunction runs a bare Func against a single field.
	ExecFunction ExecKind = iota
	// ExecOperator runs an arbitrary ports.Operator (opaque or composite).
	ExecOperator
	// ExecPassthrough forwards its input unchanged -- used by the JIT when
	// a subtree's analysis score is too low to justify compiling it, and
	// for the :input/:output sentinels.
	ExecPassthrough
	// ExecLLM runs a stochastic language-model leaf; the JIT never
	// memoizes across calls to a node of this kind.
	ExecLLM
)

// ExecNode is one node of an ExecutionGraph: the derived, JIT-annotated
// form schedulers actually run (spec.md §3, "ExecutionGraph").
type ExecNode struct {
	ID      string
	Kind    ExecKind
	Op      ports.Operator // set for ExecOperator and ExecLLM
	Fn      operator.Func  // set for ExecFunction
	InField string         // field ExecFunction reads, "" for whole record
	OutKey  string         // field ExecFunction/ExecOperator writes, "" to merge
}

// ExecutionGraph is the compiled form cached by the JIT and consumed by
// every scheduler. Its topology (Levels/Incoming/Outgoing) is shared with
// Graph via the same Edge type and topology.go algorithms.
type ExecutionGraph struct {
	Nodes map[string]ExecNode
	Edges []Edge
	order []string
}

// NewExecutionGraph creates an empty ExecutionGraph with the :input and
// :output sentinels present as passthrough nodes.
func NewExecutionGraph() *ExecutionGraph {
	eg := &ExecutionGraph{Nodes: make(map[string]ExecNode)}
	eg.AddNode(ExecNode{ID: InputNode, Kind: ExecPassthrough})
	eg.AddNode(ExecNode{ID: OutputNode, Kind: ExecPassthrough})
	return eg
}

// AddNode registers a node, overwriting any existing node with the same
// ID (used by JIT rewrites that replace a node in place).
func (eg *ExecutionGraph) AddNode(n ExecNode) {
	if _, exists := eg.Nodes[n.ID]; !exists {
		eg.order = append(eg.order, n.ID)
	}
	eg.Nodes[n.ID] = n
}

// AddEdge appends an edge without the single-inbound-field invariant
// check Graph enforces -- the JIT constructs ExecutionGraphs internally
// and is trusted to maintain that invariant itself.
func (eg *ExecutionGraph) AddEdge(e Edge) { eg.Edges = append(eg.Edges, e) }

// NodeIDs returns every node ID in insertion order.
func (eg *ExecutionGraph) NodeIDs() []string {
	out := make([]string, len(eg.order))
	copy(out, eg.order)
	return out
}

// Levels returns the topological layering of the ExecutionGraph.
func (eg *ExecutionGraph) Levels() ([][]string, error) { return Levels(eg.NodeIDs(), eg.Edges) }

// Incoming returns edges feeding into node.
func (eg *ExecutionGraph) Incoming(node string) []Edge { return Incoming(node, eg.Edges) }

// Outgoing returns edges leaving node.
func (eg *ExecutionGraph) Outgoing(node string) []Edge { return Outgoing(node, eg.Edges) }

// HasStochasticNode reports whether any node is an ExecLLM leaf or wraps
// a stochastic operator, marking the whole ExecutionGraph ineligible for
// cross-call memoization under preserve_stochasticity (spec.md §4.4).
func (eg *ExecutionGraph) HasStochasticNode() bool {
	for _, n := range eg.Nodes {
		if n.Kind == ExecLLM {
			return true
		}
		if n.Op != nil && n.Op.Stochastic() {
			return true
		}
	}
	return false
}

// Clone returns a deep-enough copy of eg for JIT rewrites to mutate
// in-place during strategy composition without affecting the cached
// original or concurrently executing copies.
func (eg *ExecutionGraph) Clone() *ExecutionGraph {
	clone := &ExecutionGraph{
		Nodes: make(map[string]ExecNode, len(eg.Nodes)),
		Edges: make([]Edge, len(eg.Edges)),
		order: make([]string, len(eg.order)),
	}
	for k, v := range eg.Nodes {
		clone.Nodes[k] = v
	}
	copy(clone.Edges, eg.Edges)
	copy(clone.order, eg.order)
	return clone
}
