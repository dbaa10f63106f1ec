package builtins

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ahrav/opgraph/internal/operator"
)

// numberPattern finds the first signed decimal number in free text, used
// as a fallback when the text isn't a bare number.
var numberPattern = regexp.MustCompile(`-?\d+(\.\d+)?`)

// ResultParser builds a Map operator that extracts a numeric score from an
// LLM's free-text response, adapted from score_judge_unit.go's
// parseLLMResponse/extractJSON fallback chain: try the whole trimmed
// string as a float, then fall back to the first embedded number. This is
// the canonical "parsing" role the llm_specialized JIT strategy detects by
// name.
func ResultParser(id, inKey, outKey string) *operator.Map {
	return operator.NewMap(id, func(_ context.Context, v any) (any, error) {
		text, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("builtins.ResultParser %s: expected string input, got %T", id, v)
		}

		trimmed := strings.TrimSpace(text)
		if score, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return score, nil
		}

		match := numberPattern.FindString(trimmed)
		if match == "" {
			return nil, fmt.Errorf("builtins.ResultParser %s: no numeric score found in %q", id, trimmed)
		}

		score, err := strconv.ParseFloat(match, 64)
		if err != nil {
			return nil, fmt.Errorf("builtins.ResultParser %s: parse %q: %w", id, match, err)
		}
		return score, nil
	}, inKey, outKey)
}
