package builtins

import (
	"context"
	"fmt"
	"strings"

	"github.com/ahrav/opgraph/internal/operator"
)

// ExactMatchConfig controls ExactMatch's string normalization, adapted
// from exact_match_unit.go's ExactMatchConfig.
type ExactMatchConfig struct {
	CaseSensitive  bool
	TrimWhitespace bool
}

// ExactMatch builds a Map operator returning 1.0 when pair.Candidate
// equals pair.Reference under the configured normalization, 0.0
// otherwise, adapted from exact_match_unit.go's binary scoring.
func ExactMatch(id string, cfg ExactMatchConfig, inKey, outKey string) *operator.Map {
	return operator.NewMap(id, func(_ context.Context, v any) (any, error) {
		p, ok := v.(pair)
		if !ok {
			return nil, fmt.Errorf("builtins.ExactMatch: expected builtins.pair input, got %T", v)
		}

		candidate, reference := p.Candidate, p.Reference
		if cfg.TrimWhitespace {
			candidate = strings.TrimSpace(candidate)
			reference = strings.TrimSpace(reference)
		}
		if !cfg.CaseSensitive {
			candidate = foldCaser.String(candidate)
			reference = foldCaser.String(reference)
		}

		if candidate == reference {
			return 1.0, nil
		}
		return 0.0, nil
	}, inKey, outKey)
}
