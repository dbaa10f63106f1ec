package jit

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/opgraph/internal/domain"
	"github.com/ahrav/opgraph/internal/graph"
	"github.com/ahrav/opgraph/internal/ports"
	"github.com/ahrav/opgraph/internal/scheduler"

	"github.com/ahrav/opgraph/infrastructure/jit/strategy"
)

// Mode selects which strategy compiledOperator uses, per spec.md §4.4.
type Mode string

const (
	ModeAuto       Mode = "auto"
	ModeTrace      Mode = "trace"
	ModeStructural Mode = "structural"
	ModeEnhanced   Mode = "enhanced"
	ModeLLM        Mode = "llm"
)

// Default thresholds from spec.md §4.4.
const (
	structuralEscalationThreshold = 40
	compileThreshold              = 25
)

// Options configures a Core.JIT call.
type Options struct {
	Mode       Mode
	ForceTrace bool
	Recursive  bool
	// AllowStochasticMemoization opts out of spec.md §4.4's
	// preserve_stochasticity default (true): set it to allow a subgraph
	// containing a stochastic leaf to be memoized across calls anyway.
	AllowStochasticMemoization bool
	SchedulerKind              string // scheduler used to run the compiled graph; "" defaults to topological
}

// Selection is returned by ExplainSelection.
type Selection struct {
	Strategy  string
	Rationale string
	Score     int
}

// Core is the JIT entry point: Core.JIT wraps a ports.Operator in a
// compiled, cached Operator' with the same call contract. It is grounded
// on infrastructure/llm.Registry's lazy-create-under-lock client cache,
// generalized from provider/model keys to structural fingerprints, and on
// infrastructure/middleware's OTel span and Prometheus metric patterns for
// observability.
type Core struct {
	cache   *Cache
	metrics ports.MetricsCollector

	mu          sync.Mutex
	selections  map[string]Selection // last selection per operator ID, for ExplainSelection
	structural  strategy.Structural
	traceStrat  strategy.Trace
	llmStrat    *strategy.LLMSpecialized
	enhanced    *strategy.Enhanced
	schedulerFn func(kind string) (scheduler.Scheduler, error)
}

// NewCore builds a Core with a cache of the given capacity. metrics may be
// nil to disable metric emission.
func NewCore(cacheCapacity int, metrics ports.MetricsCollector) *Core {
	return &Core{
		cache:      NewCache(cacheCapacity),
		metrics:    metrics,
		selections: make(map[string]Selection),
		llmStrat:   &strategy.LLMSpecialized{Batching: strategy.NewBatchSizer()},
		enhanced:   strategy.NewEnhanced(),
		schedulerFn: func(kind string) (scheduler.Scheduler, error) {
			return scheduler.Create(kind, scheduler.Options{})
		},
	}
}

// Stats reports cumulative cache hit/miss/eviction counters.
func (c *Core) Stats() Stats { return c.cache.Stats() }

// ExplainSelection returns the strategy selection recorded the last time
// op was analyzed, or false if op has never been called through a
// compiled wrapper.
func (c *Core) ExplainSelection(op ports.Operator) (Selection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.selections[op.ID()]
	return s, ok
}

// JIT wraps op in a compiled, cached stand-in Operator' with the same
// call contract (spec.md §4.4). No analysis happens yet: the selection,
// fingerprinting, and compile-or-reuse decision all happen lazily on
// Operator'.Call, against the actual inputs of that call, per spec.md
// §4.4's "on first call of Operator' with inputs r" wording.
func (c *Core) JIT(op ports.Operator, opts Options) ports.Operator {
	return &compiledOperator{id: op.ID(), core: c, op: op, opts: opts, stochastic: op.Stochastic()}
}

// compiledOperator is the Operator' spec.md §4.4 describes: calling it
// computes a fingerprint from the wrapped operator's structure and the
// call's actual inputs, reuses a cached ExecutionGraph on a fingerprint
// hit, and otherwise analyzes, optionally compiles, executes, and (unless
// stochasticity preservation forbids it) caches the result.
type compiledOperator struct {
	id         string
	core       *Core
	op         ports.Operator
	opts       Options
	stochastic bool
}

func (c *compiledOperator) ID() string       { return c.id }
func (c *compiledOperator) Stochastic() bool { return c.stochastic }

var _ ports.Operator = (*compiledOperator)(nil)

func (c *compiledOperator) Call(ctx context.Context, inputs domain.Record) (domain.Record, error) {
	eg, schedKind, err := c.core.resolve(ctx, c.op, inputs, c.opts)
	if err != nil {
		return inputs, err
	}

	s, err := c.core.schedulerFn(schedKind)
	if err != nil {
		return inputs, err
	}
	if err := s.Prepare(eg); err != nil {
		return inputs, err
	}
	results, err := s.Execute(ctx, eg, inputs)
	if err != nil {
		return inputs, err
	}
	return results[graph.OutputNode], nil
}

// resolve implements spec.md §4.4 steps 1-7: fingerprint, cache lookup,
// strategy selection, analyze, compile-or-identity, and cache population.
func (c *Core) resolve(ctx context.Context, op ports.Operator, inputs domain.Record, opts Options) (*graph.ExecutionGraph, string, error) {
	tracer := otel.Tracer("opgraph/jit")
	_, span := tracer.Start(ctx, "jit.resolve", trace.WithAttributes(attribute.String("operator.id", op.ID())))
	defer span.End()

	preserve := !opts.AllowStochasticMemoization
	mode := opts.Mode
	if mode == "" {
		mode = ModeAuto
	}

	strategyName, selected := c.selectStrategy(op, opts, mode, inputs)

	fp := domain.ComputeFingerprint(structureSignature(op), inputs.ShapeSignature(), strategyName, map[string]string{
		"mode":      string(mode),
		"recursive": fmt.Sprintf("%v", opts.Recursive),
	})

	hasStochastic := hasStochasticDescendant(op)
	skipCache := hasStochastic && preserve

	if !skipCache {
		if cached, ok := c.cache.Get(fp); ok {
			c.recordCounter("jit_cache_hit", 1, strategyName)
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return cached, opts.SchedulerKind, nil
		}
	}
	c.recordCounter("jit_cache_miss", 1, strategyName)

	analysis, err := selected.Analyze(op, inputs)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, "", fmt.Errorf("jit analyze %s: %w", op.ID(), err)
	}

	c.mu.Lock()
	c.selections[op.ID()] = Selection{Strategy: strategyName, Rationale: analysis.Rationale, Score: analysis.Score}
	c.mu.Unlock()

	span.SetAttributes(attribute.String("jit.strategy", strategyName), attribute.Int("jit.score", analysis.Score))

	if analysis.Score < compileThreshold {
		identity := identityGraph(op)
		if !skipCache {
			c.cache.Put(fp, identity, strategyName, "score below compile threshold; cached identity passthrough")
		}
		return identity, opts.SchedulerKind, nil
	}

	compiled, err := selected.Compile(op, inputs, analysis)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, "", fmt.Errorf("jit compile %s: %w", op.ID(), err)
	}

	if !skipCache {
		c.cache.Put(fp, compiled, strategyName, analysis.Rationale)
	}

	span.SetStatus(codes.Ok, "compiled")
	return compiled, opts.SchedulerKind, nil
}

func (c *Core) recordCounter(metric string, value float64, strategyName string) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordCounter(metric, value, map[string]string{"strategy": strategyName})
}

// selectStrategy implements spec.md §4.4 step 3's auto-mode escalation:
// cheap structural analysis first, escalating to trace when its score is
// below threshold, to llm_specialized when any descendant is LLM-kind,
// or running enhanced (all three, weighted max) when requested outright.
func (c *Core) selectStrategy(op ports.Operator, opts Options, mode Mode, inputs domain.Record) (string, strategy.Strategy) {
	switch mode {
	case ModeTrace:
		return c.traceStrat.Name(), c.traceStrat
	case ModeStructural:
		return c.structural.Name(), c.structural
	case ModeLLM:
		return c.llmStrat.Name(), c.llmStrat
	case ModeEnhanced:
		return c.enhanced.Name(), c.enhanced
	default: // ModeAuto
		if opts.ForceTrace {
			return c.traceStrat.Name(), c.traceStrat
		}
		if hasLLMDescendant(op) {
			return c.llmStrat.Name(), c.llmStrat
		}
		structAnalysis, err := c.structural.Analyze(op, inputs)
		if err == nil && structAnalysis.Score >= structuralEscalationThreshold {
			return c.structural.Name(), c.structural
		}
		return c.traceStrat.Name(), c.traceStrat
	}
}

func structureSignature(op ports.Operator) string {
	if s, ok := op.(ports.StructuredOperator); ok {
		return domain.StructureSignature(s.Structure())
	}
	return domain.StructureSignature(domain.Structure{Kind: domain.KindOpaque, ID: op.ID(), Stochastic: op.Stochastic()})
}

func hasStochasticDescendant(op ports.Operator) bool {
	if s, ok := op.(ports.StructuredOperator); ok {
		return s.Structure().HasStochasticDescendant()
	}
	return op.Stochastic()
}

func hasLLMDescendant(op ports.Operator) bool {
	s, ok := op.(ports.StructuredOperator)
	if !ok {
		return false
	}
	var walk func(domain.Structure) bool
	walk = func(n domain.Structure) bool {
		if n.Kind == domain.KindLLM {
			return true
		}
		for _, c := range n.Children {
			if walk(c) {
				return true
			}
		}
		return false
	}
	return walk(s.Structure())
}

// identityGraph compiles op into a single opaque-operator ExecutionGraph
// node, used when analysis score is too low to justify a real rewrite
// (spec.md §4.4 step 5).
func identityGraph(op ports.Operator) *graph.ExecutionGraph {
	eg := graph.NewExecutionGraph()
	kind := graph.ExecOperator
	if s, ok := op.(ports.StructuredOperator); ok && s.Structure().Kind == domain.KindLLM {
		kind = graph.ExecLLM
	}
	eg.AddNode(graph.ExecNode{ID: op.ID(), Kind: kind, Op: op})
	eg.AddEdge(graph.Edge{FromNode: graph.InputNode, ToNode: op.ID()})
	eg.AddEdge(graph.Edge{FromNode: op.ID(), ToNode: graph.OutputNode})
	return eg
}
