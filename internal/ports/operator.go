// Package ports defines the interfaces that connect the operator/graph
// core to its collaborators (LLM providers, caches, metrics, config
// loaders) and that the JIT/scheduler layers program against, enabling
// dependency inversion and keeping the core testable without real
// infrastructure.
package ports

import (
	"context"

	"github.com/ahrav/opgraph/internal/domain"
)

// Specification optionally describes the input/output contract an
// Operator expects, enabling pre-call validation (spec.md §3,
// "Specification").
type Specification interface {
	// Validate checks r against the specification, returning a
	// *domain.ValidationError (or a wrapping error) on failure.
	Validate(r domain.Record) error
}

// Operator is the uniform callable abstraction at the center of the
// engine: every composition primitive (Map, Sequence, Parallel, LLM) and
// every user-defined leaf satisfies this interface.
type Operator interface {
	// ID returns a stable identifier used for addressing, logging, and as
	// part of the JIT fingerprint's structural signature.
	ID() string

	// Call executes the operator against inputs and returns the resulting
	// Record. Implementations must not mutate inputs.
	Call(ctx context.Context, inputs domain.Record) (domain.Record, error)

	// Stochastic reports whether this operator's output may differ across
	// calls with identical inputs. The JIT treats stochastic=true as a
	// memoization barrier (spec.md §3 invariant).
	Stochastic() bool
}

// StructuredOperator is satisfied by operators that can describe their own
// composition to the JIT's structural analyzer. Operators that don't
// implement it are analyzed as an opaque leaf.
type StructuredOperator interface {
	Operator
	// Structure returns a description of this operator's composition.
	Structure() domain.Structure
}

// SpecifiedOperator is satisfied by operators carrying an optional
// input/output Specification.
type SpecifiedOperator interface {
	Operator
	// InputSpec returns the operator's input specification, or nil if
	// unconstrained.
	InputSpec() Specification
	// OutputSpec returns the operator's output specification, or nil if
	// unconstrained.
	OutputSpec() Specification
}

// Composite is satisfied by combinators that hold child operators the JIT
// needs direct references to (for structural compilation into an
// ExecutionGraph), rather than only the value description Structure
// returns.
type Composite interface {
	Operator
	// Children returns this operator's child operators in call order.
	Children() []Operator
}

// MergeStrategy defines how a Parallel combinator combines the Records
// produced by its concurrently executed children. The zero behavior
// (no strategy registered) is to raise a *domain.ConflictError on any
// overlapping output key, per spec.md §4.1.
type MergeStrategy interface {
	// Merge combines base (the Parallel node's input) with the per-branch
	// outputs. Implementations must be deterministic given the same
	// branch order and must return a new Record rather than mutating
	// arguments.
	Merge(base domain.Record, branchIDs []string, branches []domain.Record) (domain.Record, error)
}
