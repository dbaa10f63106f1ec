// Package builtins provides ready-made Map operators for common
// evaluation and LLM-pipeline steps, adapted from the teacher's
// deterministic evaluation units into the generic operator/Record model.
package builtins

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/ahrav/opgraph/internal/operator"
)

// foldCaser is a package-level Unicode case folder, reused across calls for
// performance rather than allocated per comparison.
var foldCaser = cases.Fold()

// FuzzyMatchConfig controls FuzzyMatch's normalized Levenshtein comparison.
type FuzzyMatchConfig struct {
	// Threshold is the minimum similarity (0..1) treated as a match; raw
	// similarity below it is reported as 0.
	Threshold float64
	// CaseSensitive disables Unicode case folding before comparison.
	CaseSensitive bool
}

// pair is the expected shape of FuzzyMatch's input field: a candidate
// string compared against a reference string.
type pair struct {
	Candidate string
	Reference string
}

// FuzzyMatch builds a Map operator that scores pair.Candidate against
// pair.Reference with normalized Levenshtein similarity, adapted from
// fuzzy_match_unit.go's FuzzyMatchUnit.calculateSimilarity.
func FuzzyMatch(id string, cfg FuzzyMatchConfig, inKey, outKey string) *operator.Map {
	return operator.NewMap(id, func(_ context.Context, v any) (any, error) {
		p, ok := v.(pair)
		if !ok {
			return nil, fmt.Errorf("builtins.FuzzyMatch: expected builtins.pair input, got %T", v)
		}

		candidate, reference := p.Candidate, p.Reference
		if !cfg.CaseSensitive {
			candidate = foldCaser.String(candidate)
			reference = foldCaser.String(reference)
		}

		raw := similarity(candidate, reference)
		score := raw
		if raw < cfg.Threshold {
			score = 0
		}
		return score, nil
	}, inKey, outKey)
}

// NewFuzzyMatchInput builds the pair value FuzzyMatch expects at its in_key.
func NewFuzzyMatchInput(candidate, reference string) any {
	return pair{Candidate: candidate, Reference: reference}
}

// similarity computes 1 - normalized Levenshtein edit distance between two
// strings, on runes for correct Unicode handling.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	distance := levenshtein.ComputeDistance(a, b)

	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1.0
	}

	sim := 1.0 - float64(distance)/float64(maxLen)
	if sim < 0 {
		sim = 0
	}
	return sim
}
