// Package opgraph is the public entry point for the operator-graph
// execution engine: thin wrappers over internal/operator, internal/graph,
// infrastructure/jit, and internal/scheduler, following the teacher's
// pattern of a slim public surface over an internal/-heavy implementation.
package opgraph

import (
	"context"

	"github.com/ahrav/opgraph/internal/domain"
	"github.com/ahrav/opgraph/internal/graph"
	"github.com/ahrav/opgraph/internal/operator"
	"github.com/ahrav/opgraph/internal/ports"
	"github.com/ahrav/opgraph/internal/scheduler"

	"github.com/ahrav/opgraph/infrastructure/jit"
	"github.com/ahrav/opgraph/infrastructure/middleware"
)

// Operator is the uniform callable abstraction every composition
// primitive and leaf satisfies (spec.md §3). It is a re-export of
// ports.Operator so callers never need to import internal packages.
type Operator = ports.Operator

// Record is the copy-on-write, typed-accessor data carried between
// operators (spec.md §3).
type Record = domain.Record

// Func is the plain Go function a Map leaf wraps.
type Func = operator.Func

// Sequence folds its children left to right, merging each child's output
// into the running Record before passing it to the next.
func Sequence(id string, children ...Operator) *operator.Sequence {
	return operator.NewSequence(id, children...)
}

// Parallel fans out to every child concurrently against the same input
// Record and merges their outputs; an output key written by two branches
// is a *domain.ConflictError unless a merge strategy is registered.
func Parallel(id string, children ...Operator) *operator.Parallel {
	return operator.NewParallel(id, children...)
}

// Map builds a leaf operator around a plain Go function reading inKey
// and writing outKey.
func Map(id string, fn Func, inKey, outKey string) *operator.Map {
	return operator.NewMap(id, fn, inKey, outKey)
}

// ClientResolver looks up an LLM client for a "provider:model_name"
// model_id. infrastructure/llm.Registry implements this.
type ClientResolver = operator.ClientResolver

// LLM builds a stochastic leaf that renders promptTemplate against
// inputs[inKey] and invokes the client resolver resolves for modelID,
// storing the response at outKey.
func LLM(id, modelID, promptTemplate, inKey, outKey string, resolver ClientResolver) (*operator.LLM, error) {
	return operator.NewLLM(id, modelID, promptTemplate, inKey, outKey, resolver)
}

// Call runs op against record and returns its output.
func Call(ctx context.Context, op Operator, record Record) (Record, error) {
	return op.Call(ctx, record)
}

// Mode selects which JIT strategy a compiled operator uses.
type Mode = jit.Mode

const (
	ModeAuto       = jit.ModeAuto
	ModeTrace      = jit.ModeTrace
	ModeStructural = jit.ModeStructural
	ModeEnhanced   = jit.ModeEnhanced
	ModeLLM        = jit.ModeLLM
)

// JITOptions configures a JIT call.
type JITOptions = jit.Options

// defaultCore is the process-wide JIT core jit() compiles against, backed
// by a Prometheus-based MetricsCollector so cache-hit/miss counters and
// strategy-selection latency are exported by default. Callers needing an
// isolated cache or a different metrics backend (tests, multi-tenant
// hosts) should construct their own jit.Core directly.
var defaultCore = jit.NewCore(256, middleware.NewPrometheusMetrics())

// JIT wraps op in a compiled, cached stand-in with the same call
// contract (spec.md §4.4); all analysis happens lazily on the returned
// operator's first Call, against that call's actual inputs.
func JIT(op Operator, opts JITOptions) Operator {
	return defaultCore.JIT(op, opts)
}

// Graph is the user-facing DAG of operators (spec.md §3/§4.2).
type Graph = graph.Graph

// NewGraph returns an empty Graph containing only the :input/:output
// sentinels. meta is accepted for API symmetry with spec.md §6's
// new_graph(meta?) but is not yet attached to the Graph; see DESIGN.md.
func NewGraph(meta ...string) *Graph {
	return graph.New()
}

// AddNode registers op under id in g.
func AddNode(g *Graph, id string, op Operator) error {
	return g.AddNode(id, op)
}

// AddEdge connects fromNode's fromField output to toNode's toField
// input. toField defaults to "input" when empty.
func AddEdge(g *Graph, fromNode, toNode, fromField, toField string) error {
	if toField == "" {
		toField = "input"
	}
	return g.AddEdge(fromNode, toNode, fromField, toField)
}

// Execute runs g against record using the named scheduler kind
// ("sequential", "topological", "wave", "parallel", "auto", or "" which
// defaults to topological), returning every node's output Record.
func Execute(ctx context.Context, g *Graph, record Record, schedulerKind string, opts scheduler.Options) (scheduler.Results, error) {
	eg := g.ToExecutionGraph()

	s, err := scheduler.Create(schedulerKind, opts)
	if err != nil {
		return nil, err
	}
	if err := s.Prepare(eg); err != nil {
		return nil, err
	}
	return s.Execute(ctx, eg, record)
}
