package strategy

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ahrav/opgraph/internal/domain"
	"github.com/ahrav/opgraph/internal/graph"
	"github.com/ahrav/opgraph/internal/ports"
)

// role is one of the three LLM-pipeline roles spec.md §4.5.3 detects.
type role string

const (
	roleTemplating role = "templating"
	roleInvocation role = "invocation"
	roleParsing    role = "parsing"
	roleOther      role = "other"
)

// classify assigns a role to a structure node by kind and name heuristics,
// generalized from the teacher's AnswererUnit (templating) ->
// LLMClient.Complete (invocation) -> ScoreJudgeUnit (parsing) pipeline
// shape into name-pattern matching since this engine's Map/LLM nodes
// carry no fixed role tag of their own.
func classify(s domain.Structure) role {
	if s.Kind == domain.KindLLM {
		return roleInvocation
	}
	if s.Kind != domain.KindMap {
		return roleOther
	}
	name := strings.ToLower(s.ID)
	switch {
	case strings.Contains(name, "template") || strings.Contains(name, "prompt"):
		return roleTemplating
	case strings.Contains(name, "pars") || strings.Contains(name, "score") || strings.Contains(name, "result") || strings.Contains(name, "extract"):
		return roleParsing
	default:
		return roleOther
	}
}

// memoizedOp wraps a deterministic operator with an in-process cache keyed
// by the Record's content (not the content-free JIT fingerprint -- this is
// the node-local "cache templating/parser outputs" behavior spec.md §4.5.3
// calls for, distinct from Core's cross-call ExecutionGraph cache).
type memoizedOp struct {
	ports.Operator
	mu    sync.Mutex
	cache map[string]domain.Record
}

func memoize(op ports.Operator) *memoizedOp {
	return &memoizedOp{Operator: op, cache: make(map[string]domain.Record)}
}

func (m *memoizedOp) Call(ctx context.Context, inputs domain.Record) (domain.Record, error) {
	key := inputs.String()

	m.mu.Lock()
	if cached, ok := m.cache[key]; ok {
		m.mu.Unlock()
		return cached, nil
	}
	m.mu.Unlock()

	out, err := m.Operator.Call(ctx, inputs)
	if err != nil {
		return out, err
	}

	m.mu.Lock()
	m.cache[key] = out
	m.mu.Unlock()
	return out, nil
}

// BatchSizer implements the adaptive batch-size rule from spec.md §4.5.3:
// start at 1, double on sustained throughput gains, halve on a tail
// latency spike beyond 1.5x the running median. It is grounded on
// infrastructure/llm/middleware_rate_limiter.go's adaptive-limiting style.
type BatchSizer struct {
	mu      sync.Mutex
	size    int
	history []float64 // recent per-item latencies, seconds
}

// NewBatchSizer returns a BatchSizer starting at batch size 1.
func NewBatchSizer() *BatchSizer { return &BatchSizer{size: 1} }

// Size returns the current batch size.
func (b *BatchSizer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Observe records one batch's mean per-item latency and adjusts size.
func (b *BatchSizer) Observe(meanLatencySeconds float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	median := b.median()
	b.history = append(b.history, meanLatencySeconds)
	if len(b.history) > 20 {
		b.history = b.history[len(b.history)-20:]
	}

	if median > 0 && meanLatencySeconds > median*1.5 {
		if b.size > 1 {
			b.size /= 2
		}
		return
	}

	if median > 0 && meanLatencySeconds <= median {
		b.size *= 2
	}
}

func (b *BatchSizer) median() float64 {
	if len(b.history) == 0 {
		return 0
	}
	sorted := append([]float64(nil), b.history...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	return sorted[len(sorted)/2]
}

// LLMSpecialized detects the templating/invocation/parsing role triple in
// an operator tree and stages caching around the LLM barrier (spec.md
// §4.5.3).
type LLMSpecialized struct {
	Batching *BatchSizer
}

var _ Strategy = (*LLMSpecialized)(nil)

func (s *LLMSpecialized) Name() string { return "llm_specialized" }

func (s *LLMSpecialized) Analyze(op ports.Operator, _ domain.Record) (Analysis, error) {
	str := structureOf(op)
	roles := make(map[role]int)
	var walk func(domain.Structure)
	walk = func(n domain.Structure) {
		roles[classify(n)]++
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(str)

	if roles[roleInvocation] == 0 {
		return Analysis{Score: 0, Rationale: "no LLM invocation node found", Origin: "llm_specialized"}, nil
	}

	var targets []OptTarget
	if roles[roleTemplating] > 0 {
		targets = append(targets, OptTarget{Kind: "cache_templating", Detail: "cache prompt-templating output keyed by substituted inputs"})
	}
	targets = append(targets, OptTarget{Kind: "stage_llm", Detail: "leave LLM invocation un-memoized (memoization barrier)"})
	if roles[roleParsing] > 0 {
		targets = append(targets, OptTarget{Kind: "cache_parsing", Detail: "cache result-parsing output keyed by LLM's textual output"})
	}

	score := clampScore(40 + roles[roleTemplating]*15 + roles[roleParsing]*15)
	rationale := fmt.Sprintf("roles found: templating=%d invocation=%d parsing=%d -> score=%d",
		roles[roleTemplating], roles[roleInvocation], roles[roleParsing], score)

	return Analysis{Score: score, Rationale: rationale, Targets: targets, Origin: "llm_specialized"}, nil
}

func (s *LLMSpecialized) Compile(op ports.Operator, _ domain.Record, analysis Analysis) (*graph.ExecutionGraph, error) {
	wrap := func(leaf ports.Operator) ports.Operator {
		if leaf.Stochastic() {
			return leaf // the LLM invocation barrier: never memoized.
		}
		r := classify(structureOf(leaf))
		if r == roleTemplating || r == roleParsing {
			return memoize(leaf)
		}
		return leaf
	}

	eg := graph.NewExecutionGraph()
	out := compileTreeWithWrap(op, eg, graph.InputNode, wrap)
	eg.AddEdge(graph.Edge{FromNode: out, ToNode: graph.OutputNode})
	return eg, nil
}

// compileTreeWithWrap mirrors compileTree but applies wrap to every leaf
// before adding it to the graph, letting LLMSpecialized install memoizing
// decorators around templating/parsing nodes without duplicating the
// Sequence/Parallel lowering logic.
func compileTreeWithWrap(op ports.Operator, eg *graph.ExecutionGraph, predecessor string, wrap func(ports.Operator) ports.Operator) string {
	composite, ok := op.(ports.Composite)
	if !ok {
		return compileLeaf(wrap(op), eg, predecessor)
	}

	switch structureOf(op).Kind {
	case domain.KindSequence:
		cur := predecessor
		for _, child := range composite.Children() {
			cur = compileTreeWithWrap(child, eg, cur, wrap)
		}
		return cur

	case domain.KindParallel:
		children := composite.Children()
		ends := make([]string, len(children))
		for i, child := range children {
			ends[i] = compileTreeWithWrap(child, eg, predecessor, wrap)
		}
		joinID := op.ID() + ":join"
		eg.AddNode(graph.ExecNode{ID: joinID, Kind: graph.ExecPassthrough})
		for _, end := range ends {
			eg.AddEdge(graph.Edge{FromNode: end, ToNode: joinID})
		}
		return joinID

	default:
		return compileLeaf(wrap(op), eg, predecessor)
	}
}
