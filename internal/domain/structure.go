package domain

// Kind tags the composition shape of an Operator, implementing the
// "tagged sum Operator = Map | Sequence | Parallel | LLM | Opaque" redesign
// called for in spec.md §9 in place of the source's behaviour/protocol
// polymorphism.
type Kind int

const (
	// KindOpaque is a user-defined operator whose internals the JIT cannot
	// see; it is always treated as a single black-box leaf.
	KindOpaque Kind = iota
	// KindMap applies a function to a record or one of its fields.
	KindMap
	// KindSequence folds children left to right, threading state through.
	KindSequence
	// KindParallel fans children out over the same input and merges results.
	KindParallel
	// KindLLM is a language-model invocation leaf.
	KindLLM
)

// String renders the Kind for logs, rationale strings, and test output.
func (k Kind) String() string {
	switch k {
	case KindMap:
		return "map"
	case KindSequence:
		return "sequence"
	case KindParallel:
		return "parallel"
	case KindLLM:
		return "llm"
	default:
		return "opaque"
	}
}

// Structure describes the composition of an Operator for the JIT's
// structural analyzer. Leaves (Map, LLM, Opaque) have no Children; the
// combinators nest a Structure per child. It is optional: operators that
// don't expose one are analyzed as an opaque leaf.
type Structure struct {
	// Kind tags which combinator (or opaque leaf) produced this node.
	Kind Kind
	// ID is a stable, human-readable label for this node, used in
	// rationale strings and ExecutionGraph node naming.
	ID string
	// Children holds the nested structure of composed operators, in
	// execution order for Sequence and declaration order for Parallel.
	Children []Structure
	// Stochastic marks this node (or, for combinators, the subtree rooted
	// here) as containing at least one non-deterministic leaf. The JIT
	// treats stochastic=true as a memoization barrier (spec.md §3).
	Stochastic bool
	// InKey/OutKey record the field routing for Map and LLM leaves, used
	// by the LLM-specialized strategy's role detection.
	InKey, OutKey string
}

// IsLeaf reports whether this Structure node has no children.
func (s Structure) IsLeaf() bool { return len(s.Children) == 0 }

// HasStochasticDescendant reports whether s or any of its children is
// marked Stochastic.
func (s Structure) HasStochasticDescendant() bool {
	if s.Stochastic {
		return true
	}
	for _, c := range s.Children {
		if c.HasStochasticDescendant() {
			return true
		}
	}
	return false
}

// Depth returns the height of the structure tree; a leaf has depth 1.
func (s Structure) Depth() int {
	if s.IsLeaf() {
		return 1
	}
	maxChild := 0
	for _, c := range s.Children {
		if d := c.Depth(); d > maxChild {
			maxChild = d
		}
	}
	return maxChild + 1
}

// Count returns the total number of nodes in the structure tree,
// including s itself.
func (s Structure) Count() int {
	n := 1
	for _, c := range s.Children {
		n += c.Count()
	}
	return n
}
