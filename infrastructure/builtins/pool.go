package builtins

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"sort"

	"github.com/ahrav/opgraph/internal/operator"
)

// TieBreaker selects among equally-ranked candidates, adapted from
// max_pool_unit.go / median_pool_unit.go's TieBreaker.
type TieBreaker string

const (
	TieFirst  TieBreaker = "first"
	TieRandom TieBreaker = "random"
	TieError  TieBreaker = "error"
)

// PoolConfig configures the numeric pooling reducers.
type PoolConfig struct {
	TieBreaker TieBreaker
	MinScore   float64
}

// PoolResult is the output of a pooling reducer: the winning score and the
// index into the input slice that produced it.
type PoolResult struct {
	Score       float64
	WinnerIndex int
}

// ArithmeticMean builds a Map operator reducing a []float64 field to the
// mean of its values, adapted from arithmetic_mean_unit.go.
func ArithmeticMean(id, inKey, outKey string) *operator.Map {
	return operator.NewMap(id, func(_ context.Context, v any) (any, error) {
		scores, ok := v.([]float64)
		if !ok {
			return nil, fmt.Errorf("builtins.ArithmeticMean: expected []float64, got %T", v)
		}
		if len(scores) == 0 {
			return nil, fmt.Errorf("builtins.ArithmeticMean: no scores to aggregate")
		}

		total := 0.0
		for _, s := range scores {
			if math.IsNaN(s) || math.IsInf(s, 0) {
				return nil, fmt.Errorf("builtins.ArithmeticMean: invalid score %f", s)
			}
			total += s
		}
		return total / float64(len(scores)), nil
	}, inKey, outKey)
}

// MaxPool builds a Map operator selecting the highest value in a []float64
// field, tie-breaking per cfg.TieBreaker, adapted from max_pool_unit.go's
// MaxPoolUnit.Aggregate.
func MaxPool(id string, cfg PoolConfig, inKey, outKey string) *operator.Map {
	return operator.NewMap(id, func(_ context.Context, v any) (any, error) {
		scores, ok := v.([]float64)
		if !ok {
			return nil, fmt.Errorf("builtins.MaxPool: expected []float64, got %T", v)
		}
		if len(scores) == 0 {
			return nil, fmt.Errorf("builtins.MaxPool: no scores to aggregate")
		}

		winnerIdx := 0
		maxScore := math.Inf(-1)
		tied := make([]int, 0, 1)
		for i, s := range scores {
			if math.IsNaN(s) || math.IsInf(s, 0) {
				return nil, fmt.Errorf("builtins.MaxPool: invalid score at index %d: %f", i, s)
			}
			switch {
			case s > maxScore:
				maxScore = s
				winnerIdx = i
				tied = tied[:0]
				tied = append(tied, i)
			case s == maxScore:
				tied = append(tied, i)
			}
		}

		if maxScore < cfg.MinScore {
			return nil, fmt.Errorf("builtins.MaxPool: highest score %.3f below minimum %.3f", maxScore, cfg.MinScore)
		}

		if len(tied) > 1 {
			idx, err := breakTie(cfg.TieBreaker, tied)
			if err != nil {
				return nil, fmt.Errorf("builtins.MaxPool: %w", err)
			}
			winnerIdx = idx
		}

		return PoolResult{Score: maxScore, WinnerIndex: winnerIdx}, nil
	}, inKey, outKey)
}

// MedianPool builds a Map operator selecting the candidate whose score is
// closest to the median of a []float64 field, adapted from
// median_pool_unit.go's MedianPoolUnit.Execute.
func MedianPool(id string, cfg PoolConfig, inKey, outKey string) *operator.Map {
	return operator.NewMap(id, func(_ context.Context, v any) (any, error) {
		scores, ok := v.([]float64)
		if !ok {
			return nil, fmt.Errorf("builtins.MedianPool: expected []float64, got %T", v)
		}
		if len(scores) == 0 {
			return nil, fmt.Errorf("builtins.MedianPool: no scores to aggregate")
		}

		sorted := append([]float64(nil), scores...)
		sort.Float64s(sorted)
		n := len(sorted)
		var median float64
		if n%2 == 1 {
			median = sorted[n/2]
		} else {
			median = (sorted[n/2-1] + sorted[n/2]) / 2
		}

		if median < cfg.MinScore {
			return nil, fmt.Errorf("builtins.MedianPool: median score %.3f below minimum %.3f", median, cfg.MinScore)
		}

		bestDist := math.Inf(1)
		winnerIdx := 0
		tied := make([]int, 0, 1)
		for i, s := range scores {
			d := math.Abs(s - median)
			switch {
			case d < bestDist:
				bestDist = d
				winnerIdx = i
				tied = tied[:0]
				tied = append(tied, i)
			case d == bestDist:
				tied = append(tied, i)
			}
		}

		if len(tied) > 1 {
			idx, err := breakTie(cfg.TieBreaker, tied)
			if err != nil {
				return nil, fmt.Errorf("builtins.MedianPool: %w", err)
			}
			winnerIdx = idx
		}

		return PoolResult{Score: median, WinnerIndex: winnerIdx}, nil
	}, inKey, outKey)
}

// breakTie resolves a set of equally-ranked candidate indices per strategy.
func breakTie(strategy TieBreaker, tied []int) (int, error) {
	switch strategy {
	case TieError:
		return 0, fmt.Errorf("%d candidates tied", len(tied))
	case TieRandom:
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(tied))))
		if err != nil {
			return 0, fmt.Errorf("failed to generate random tie-break: %w", err)
		}
		return tied[n.Int64()], nil
	default: // TieFirst
		return tied[0], nil
	}
}
