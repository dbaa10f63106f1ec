package strategy

import (
	"fmt"

	"github.com/ahrav/opgraph/internal/domain"
	"github.com/ahrav/opgraph/internal/graph"
	"github.com/ahrav/opgraph/internal/ports"
)

// Enhanced runs Structural, Trace, and LLMSpecialized, tags each target
// with its origin, and takes the max score (spec.md §4.5.4). A failed
// sub-strategy analysis is recorded in the rationale rather than aborting
// the whole analysis. Compile returns one independently built graph (see
// Compile); it does not combine rewrites on a shared graph.
type Enhanced struct {
	structural Structural
	trace      Trace
	llm        *LLMSpecialized
}

// NewEnhanced builds an Enhanced strategy sharing one BatchSizer across
// calls so adaptive batch sizing persists between compiles.
func NewEnhanced() *Enhanced {
	return &Enhanced{llm: &LLMSpecialized{Batching: NewBatchSizer()}}
}

var _ Strategy = (*Enhanced)(nil)

func (e *Enhanced) Name() string { return "enhanced" }

func (e *Enhanced) Analyze(op ports.Operator, inputs domain.Record) (Analysis, error) {
	var best Analysis
	var all []Analysis
	var failures []string

	run := func(name string, fn func() (Analysis, error)) {
		a, err := fn()
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			return
		}
		all = append(all, a)
		if a.Score > best.Score {
			best = a
		}
	}

	run("structural", func() (Analysis, error) { return e.structural.Analyze(op, inputs) })
	run("trace", func() (Analysis, error) { return e.trace.Analyze(op, inputs) })
	run("llm_specialized", func() (Analysis, error) { return e.llm.Analyze(op, inputs) })

	var merged []OptTarget
	for _, a := range all {
		for _, t := range a.Targets {
			t.Detail = fmt.Sprintf("[%s] %s", a.Origin, t.Detail)
			merged = append(merged, t)
		}
	}

	rationale := fmt.Sprintf("max(structural, trace, llm_specialized)=%d via %s", best.Score, best.Origin)
	if len(failures) > 0 {
		rationale += fmt.Sprintf("; failed sub-strategies: %v", failures)
	}

	return Analysis{Score: best.Score, Rationale: rationale, Targets: merged, Origin: "enhanced"}, nil
}

// Compile builds the LLM-staged graph when the analysis carries a
// "stage_llm" target, and the structural graph, each independently. It
// returns the LLM-staged graph when that compile succeeded, and the
// structural graph otherwise; a failed LLM compile does not prevent the
// structural one. Trace memoization is not applied, and the two graphs
// are never merged into one.
func (e *Enhanced) Compile(op ports.Operator, inputs domain.Record, analysis Analysis) (*graph.ExecutionGraph, error) {
	var llmGraph *graph.ExecutionGraph
	hasLLM := false
	for _, t := range analysis.Targets {
		if t.Kind == "stage_llm" {
			hasLLM = true
		}
	}

	if hasLLM {
		g, err := e.llm.Compile(op, inputs, analysis)
		if err == nil {
			llmGraph = g
		}
	}

	structuralGraph, err := e.structural.Compile(op, inputs, analysis)
	if err != nil && llmGraph == nil {
		return nil, err
	}

	if llmGraph != nil {
		return llmGraph, nil
	}
	return structuralGraph, nil
}
