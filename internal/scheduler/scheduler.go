// Package scheduler implements the L3 scheduler family from spec.md
// §4.3: Sequential, Topological, and Wave, all satisfying one Scheduler
// interface. Their per-node input assembly and level/wave computation are
// grounded on the teacher's application.Layer (bounded-concurrency
// goroutine fan-out) and application.Graph.TopologicalSort (Kahn's
// algorithm), generalized to field-routed edges and exposed through a
// shared interface instead of being baked into Pipeline/Layer types.
package scheduler

import (
	"context"
	"runtime"
	"sync"

	"github.com/ahrav/opgraph/internal/domain"
	"github.com/ahrav/opgraph/internal/graph"
)

// Results maps node ID to the Record produced by that node.
type Results map[string]domain.Record

// Scheduler plans and executes an ExecutionGraph. Every implementation
// must, for any DAG without stochastic leaves, produce identical Results
// to every other implementation given the same graph and inputs
// (spec.md §8's determinism law).
type Scheduler interface {
	// Prepare computes the scheduler's internal execution plan (level
	// computation, cycle check) ahead of Execute. Execute calls Prepare
	// itself when no plan has been prepared yet.
	Prepare(g *graph.ExecutionGraph) error

	// Execute runs the prepared graph against inputs (supplied as the
	// :input sentinel's Record) and returns every node's output.
	Execute(ctx context.Context, g *graph.ExecutionGraph, inputs domain.Record) (Results, error)

	// GetPartialResults returns the Results recorded by the most recent
	// Execute call: the subset that completed before a failure, or every
	// node's output after a success. It returns nil before the first
	// Execute.
	GetPartialResults() Results
}

// Options configures a Scheduler constructed via Create.
type Options struct {
	// MaxWorkers bounds per-level concurrency for Topological and Wave.
	// Zero defaults to runtime.NumCPU().
	MaxWorkers int
}

// Create builds a Scheduler of the given kind: "sequential",
// "topological", "wave", "parallel" (alias for topological with
// parallelism), or "auto" (defaults to topological).
func Create(kind string, opts Options) (Scheduler, error) {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = runtime.NumCPU()
	}
	switch kind {
	case "sequential":
		return &sequential{}, nil
	case "topological", "parallel", "auto", "":
		return &topological{maxWorkers: opts.MaxWorkers}, nil
	case "wave":
		return &wave{maxWorkers: opts.MaxWorkers}, nil
	default:
		return nil, &domain.ValidationError{Operator: "scheduler.Create", Field: "kind", Reason: "unknown scheduler kind: " + kind}
	}
}

// assembleInputs gathers node's incoming edges from results into a single
// Record, per spec.md §4.3 step 3. The :input sentinel supplies the
// caller's initial Record directly.
func assembleInputs(node string, g *graph.ExecutionGraph, results Results, callerInput domain.Record) domain.Record {
	if node == graph.InputNode {
		return callerInput
	}

	incoming := g.Incoming(node)
	if len(incoming) == 0 {
		// An entry node with no predecessors receives the caller's
		// initial Record directly.
		return callerInput
	}

	in := domain.NewRecord()
	for _, e := range incoming {
		src, ok := results[e.FromNode]
		if !ok {
			continue
		}
		if e.FromField == "" {
			in = in.Merge(src)
			continue
		}
		if val, ok := src.GetRaw(e.FromField); ok {
			key := e.ToField
			if key == "" {
				key = e.FromField
			}
			in = in.WithRaw(key, val)
		}
	}
	return in
}

// callNode executes the operator at node against assembled inputs.
// Sentinels and ExecPassthrough nodes forward their input unchanged.
func callNode(ctx context.Context, n graph.ExecNode, inputs domain.Record) (domain.Record, error) {
	switch n.Kind {
	case graph.ExecPassthrough:
		return inputs, nil
	case graph.ExecFunction:
		if n.InField == "" {
			return inputs, &domain.ValidationError{Operator: n.ID, Reason: "exec-function node requires an InField"}
		}
		raw, ok := inputs.GetRaw(n.InField)
		if !ok {
			return inputs, &domain.ValidationError{Operator: n.ID, Field: n.InField, Reason: "input field not found"}
		}
		out, err := n.Fn(ctx, raw)
		if err != nil {
			return inputs, domain.NewChildError(n.ID, err)
		}
		key := n.OutKey
		if key == "" {
			key = n.InField
		}
		return inputs.WithRaw(key, out), nil
	default: // ExecOperator, ExecLLM
		out, err := n.Op.Call(ctx, inputs)
		if err != nil {
			return inputs, domain.NewChildError(n.ID, err)
		}
		return out, nil
	}
}
