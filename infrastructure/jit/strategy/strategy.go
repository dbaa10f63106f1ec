// Package strategy implements the JIT optimization strategies from
// spec.md §4.5: Structural, Trace, LLMSpecialized, and Enhanced. Each
// walks or executes a ports.Operator tree and produces a
// graph.ExecutionGraph the scheduler family can run directly, generalized
// from the teacher's AnswererUnit -> ScoreJudgeUnit -> aggregation
// pipeline shape (prompt build -> LLM call -> structured parse) into the
// spec's generic templating/invocation/parsing role triple.
package strategy

import (
	"github.com/ahrav/opgraph/internal/domain"
	"github.com/ahrav/opgraph/internal/graph"
	"github.com/ahrav/opgraph/internal/ports"
)

// OptTarget names one optimization opportunity a strategy identified,
// kept around for ExplainSelection output even when Compile later decides
// not to (or cannot) apply it.
type OptTarget struct {
	Kind   string // e.g. "fuse_functions", "vectorize", "inline_function", "memoize_pure", "stage_llm"
	NodeID string
	Detail string
}

// Analysis is the result of a strategy's Analyze call.
type Analysis struct {
	Score     int // 0..100; below Core's compile threshold, the identity graph is cached instead
	Rationale string
	Targets   []OptTarget

	// Origin records which strategy produced this Analysis ("structural",
	// "trace", "llm_specialized", or "enhanced"); Enhanced uses it to tag
	// the targets it aggregates.
	Origin string
}

// Strategy is implemented by every JIT optimization pass.
type Strategy interface {
	Name() string
	Analyze(op ports.Operator, inputs domain.Record) (Analysis, error)
	Compile(op ports.Operator, inputs domain.Record, analysis Analysis) (*graph.ExecutionGraph, error)
}

// structureOf returns op's Structure, synthesizing an opaque leaf when op
// doesn't implement ports.StructuredOperator.
func structureOf(op ports.Operator) domain.Structure {
	if s, ok := op.(ports.StructuredOperator); ok {
		return s.Structure()
	}
	return domain.Structure{Kind: domain.KindOpaque, ID: op.ID(), Stochastic: op.Stochastic()}
}

// compileLeaf wires a single non-composite operator into eg, connected
// from predecessor by a full-record merge edge, and returns its node ID.
func compileLeaf(op ports.Operator, eg *graph.ExecutionGraph, predecessor string) string {
	kind := graph.ExecOperator
	if op.Stochastic() {
		if _, structured := op.(ports.StructuredOperator); structured {
			if structureOf(op).Kind == domain.KindLLM {
				kind = graph.ExecLLM
			}
		}
	}
	eg.AddNode(graph.ExecNode{ID: op.ID(), Kind: kind, Op: op})
	eg.AddEdge(graph.Edge{FromNode: predecessor, ToNode: op.ID()})
	return op.ID()
}

// compileTree recursively lowers op into eg, wiring it from predecessor,
// and returns the ID of the node that carries op's output. Sequence
// becomes a chain; Parallel becomes a fan-out from predecessor into every
// child plus a synthetic join node merging their outputs (spec.md §4.5.1).
func compileTree(op ports.Operator, eg *graph.ExecutionGraph, predecessor string) string {
	composite, ok := op.(ports.Composite)
	if !ok {
		return compileLeaf(op, eg, predecessor)
	}

	switch structureOf(op).Kind {
	case domain.KindSequence:
		cur := predecessor
		for _, child := range composite.Children() {
			cur = compileTree(child, eg, cur)
		}
		return cur

	case domain.KindParallel:
		children := composite.Children()
		ends := make([]string, len(children))
		for i, child := range children {
			ends[i] = compileTree(child, eg, predecessor)
		}
		joinID := op.ID() + ":join"
		eg.AddNode(graph.ExecNode{ID: joinID, Kind: graph.ExecPassthrough})
		for _, end := range ends {
			eg.AddEdge(graph.Edge{FromNode: end, ToNode: joinID})
		}
		return joinID

	default:
		return compileLeaf(op, eg, predecessor)
	}
}

// compileRoot builds a full ExecutionGraph for op, wiring :input through
// the compiled tree into :output. It is shared by every strategy's
// Compile when no finer-grained rewrite applies.
func compileRoot(op ports.Operator) *graph.ExecutionGraph {
	eg := graph.NewExecutionGraph()
	out := compileTree(op, eg, graph.InputNode)
	eg.AddEdge(graph.Edge{FromNode: out, ToNode: graph.OutputNode})
	return eg
}

// adjacentMapPairs counts consecutive Map-kind children in s (recursing
// into Sequence/Parallel children), the "fusible adjacency" opportunity
// spec.md §4.5.1 names.
func adjacentMapPairs(s domain.Structure) int {
	count := 0
	for i := 0; i+1 < len(s.Children); i++ {
		if s.Children[i].Kind == domain.KindMap && s.Children[i+1].Kind == domain.KindMap {
			count++
		}
	}
	for _, c := range s.Children {
		count += adjacentMapPairs(c)
	}
	return count
}

// maxParallelBreadth returns the widest Parallel block anywhere in s.
func maxParallelBreadth(s domain.Structure) int {
	best := 0
	if s.Kind == domain.KindParallel {
		best = len(s.Children)
	}
	for _, c := range s.Children {
		if b := maxParallelBreadth(c); b > best {
			best = b
		}
	}
	return best
}

// pureParallelOfMaps reports whether s is a Parallel block whose children
// are all non-stochastic Map leaves -- the "vectorization" opportunity.
func pureParallelOfMaps(s domain.Structure) bool {
	if s.Kind != domain.KindParallel || len(s.Children) == 0 {
		return false
	}
	for _, c := range s.Children {
		if c.Kind != domain.KindMap || c.Stochastic {
			return false
		}
	}
	return true
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
