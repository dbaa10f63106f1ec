package operator

import (
	"context"
	"strconv"

	"github.com/ahrav/opgraph/internal/domain"
	"github.com/ahrav/opgraph/internal/ports"
)

// Sequence folds its children left to right: the Record produced by childᵢ
// is merged into the running Record and passed to childᵢ₊₁. It is
// grounded on the teacher's application.Pipeline, which has the same
// fold-and-merge execution shape.
type Sequence struct {
	id       string
	children []ports.Operator
}

var (
	_ ports.Operator           = (*Sequence)(nil)
	_ ports.StructuredOperator = (*Sequence)(nil)
	_ ports.Composite          = (*Sequence)(nil)
)

// NewSequence builds a Sequence from an ordered list of children.
func NewSequence(id string, children ...ports.Operator) *Sequence {
	return &Sequence{id: id, children: children}
}

// ID returns the operator's stable identifier.
func (s *Sequence) ID() string { return s.id }

// Stochastic reports true if any child is stochastic, since the
// combinator's overall output then varies across calls.
func (s *Sequence) Stochastic() bool {
	for _, c := range s.children {
		if c.Stochastic() {
			return true
		}
	}
	return false
}

// Call runs each child in order, merging its output into the running
// Record (right-biased: later keys win on conflict, per spec.md §4.1).
// The first child to fail aborts the Sequence with a ChildError.
func (s *Sequence) Call(ctx context.Context, inputs domain.Record) (domain.Record, error) {
	current := inputs
	for i, child := range s.children {
		select {
		case <-ctx.Done():
			return current, ctx.Err()
		default:
		}

		out, err := child.Call(ctx, current)
		if err != nil {
			return current, domain.NewChildError(pathSegment(s.id, i, child.ID()), err)
		}
		current = current.Merge(out)
	}
	return current, nil
}

// Children implements ports.Composite, giving the JIT direct access to
// the child operators for structural compilation.
func (s *Sequence) Children() []ports.Operator { return s.children }

// Structure implements ports.StructuredOperator, recursing into children
// that expose their own structure and treating the rest as opaque leaves.
func (s *Sequence) Structure() domain.Structure {
	children := make([]domain.Structure, len(s.children))
	stochastic := false
	for i, c := range s.children {
		children[i] = describe(c)
		stochastic = stochastic || children[i].HasStochasticDescendant()
	}
	return domain.Structure{
		Kind:       domain.KindSequence,
		ID:         s.id,
		Children:   children,
		Stochastic: stochastic,
	}
}

// describe returns op's Structure if it exposes one, or a synthetic
// opaque-leaf Structure otherwise.
func describe(op ports.Operator) domain.Structure {
	if s, ok := op.(ports.StructuredOperator); ok {
		return s.Structure()
	}
	return domain.Structure{Kind: domain.KindOpaque, ID: op.ID(), Stochastic: op.Stochastic()}
}

func pathSegment(parentID string, idx int, childID string) string {
	return parentID + "[" + strconv.Itoa(idx) + ":" + childID + "]"
}
