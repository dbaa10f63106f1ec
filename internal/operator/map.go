// Package operator implements the L1 combinators from spec.md §4.1: Map,
// Sequence, Parallel, and LLM. Each combinator is an internal/ports.Operator
// and, where it composes children, a ports.StructuredOperator so the JIT's
// structural analyzer can walk it without executing anything.
package operator

import (
	"context"
	"fmt"

	"github.com/ahrav/opgraph/internal/domain"
	"github.com/ahrav/opgraph/internal/ports"
)

// Func is a pure (or, if wrapped by WithStochastic, impure) transformation
// from one value to another, the payload of a Map operator.
type Func func(ctx context.Context, value any) (any, error)

// Map applies fn either to the whole input Record (when InKey is empty) or
// to a single field (when InKey is set). With InKey empty, fn must return
// a Record, which is merged into the input. With InKey set, the result is
// written to OutKey, or back to InKey when OutKey is empty.
type Map struct {
	id         string
	fn         Func
	inKey      string
	outKey     string
	stochastic bool
}

var (
	_ ports.Operator           = (*Map)(nil)
	_ ports.StructuredOperator = (*Map)(nil)
)

// NewMap builds a Map operator. inKey and outKey may both be empty, in
// which case fn receives the full Record (boxed as any) and its return
// value -- which must be a domain.Record -- is merged into the input
// Record (its keys win).
func NewMap(id string, fn Func, inKey, outKey string) *Map {
	return &Map{id: id, fn: fn, inKey: inKey, outKey: outKey}
}

// WithStochastic marks the Map as non-deterministic, making it a JIT
// memoization barrier per spec.md §3.
func (m *Map) WithStochastic(stochastic bool) *Map {
	m.stochastic = stochastic
	return m
}

// ID returns the operator's stable identifier.
func (m *Map) ID() string { return m.id }

// Stochastic reports whether this Map's function may vary its output for
// identical input.
func (m *Map) Stochastic() bool { return m.stochastic }

// Call implements ports.Operator.
func (m *Map) Call(ctx context.Context, inputs domain.Record) (domain.Record, error) {
	if m.inKey == "" {
		result, err := m.fn(ctx, inputs)
		if err != nil {
			return inputs, domain.NewChildError(m.id, err)
		}
		out, ok := result.(domain.Record)
		if !ok {
			return inputs, &domain.ValidationError{
				Operator: m.id,
				Reason:   fmt.Sprintf("map with no in_key must return a domain.Record, got %T", result),
			}
		}
		if m.outKey != "" {
			return inputs, &domain.ValidationError{
				Operator: m.id,
				Reason:   "map with no in_key must not set out_key",
			}
		}
		return inputs.Merge(out), nil
	}

	raw, ok := inputs.GetRaw(m.inKey)
	if !ok {
		return inputs, &domain.ValidationError{
			Operator: m.id,
			Field:    m.inKey,
			Reason:   "input key not found",
		}
	}

	result, err := m.fn(ctx, raw)
	if err != nil {
		return inputs, domain.NewChildError(m.id, err)
	}

	outKey := m.outKey
	if outKey == "" {
		outKey = m.inKey
	}
	return inputs.WithRaw(outKey, result), nil
}

// Structure implements ports.StructuredOperator.
func (m *Map) Structure() domain.Structure {
	return domain.Structure{
		Kind:       domain.KindMap,
		ID:         m.id,
		Stochastic: m.stochastic,
		InKey:      m.inKey,
		OutKey:     m.outKey,
	}
}
