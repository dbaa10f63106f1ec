package strategy

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ahrav/opgraph/internal/domain"
	"github.com/ahrav/opgraph/internal/graph"
	"github.com/ahrav/opgraph/internal/ports"
)

// tracer collects per-descendant wall-clock latency for a single sandbox
// run of runTraced.
type tracer struct {
	mu  sync.Mutex
	obs map[string]time.Duration
}

func newTracer() *tracer { return &tracer{obs: make(map[string]time.Duration)} }

func (t *tracer) record(id string, d time.Duration) {
	t.mu.Lock()
	t.obs[id] += d
	t.mu.Unlock()
}

// runTraced re-executes op's composition shape itself (rather than
// delegating to Sequence.Call/Parallel.Call) so every descendant's latency
// can be attributed individually. It runs branches of a Parallel
// sequentially, since the sandbox only needs representative per-node
// timings, not production concurrency.
func runTraced(ctx context.Context, op ports.Operator, inputs domain.Record, tr *tracer) (domain.Record, error) {
	start := time.Now()

	if composite, ok := op.(ports.Composite); ok {
		switch structureOf(op).Kind {
		case domain.KindSequence:
			cur := inputs
			for _, child := range composite.Children() {
				out, err := runTraced(ctx, child, cur, tr)
				if err != nil {
					return cur, err
				}
				cur = cur.Merge(out)
			}
			tr.record(op.ID(), time.Since(start))
			return cur, nil

		case domain.KindParallel:
			result := inputs
			for _, child := range composite.Children() {
				out, err := runTraced(ctx, child, inputs, tr)
				if err != nil {
					return inputs, err
				}
				result = result.Merge(out)
			}
			tr.record(op.ID(), time.Since(start))
			return result, nil
		}
	}

	out, err := op.Call(ctx, inputs)
	tr.record(op.ID(), time.Since(start))
	return out, err
}

// Trace runs op once in a sandbox, recording per-descendant latency, and
// uses the resulting hot-path profile to target inlining and memoization
// (spec.md §4.5.2).
type Trace struct{}

var _ Strategy = Trace{}

func (Trace) Name() string { return "trace" }

func (Trace) Analyze(op ports.Operator, inputs domain.Record) (Analysis, error) {
	tr := newTracer()
	_, err := runTraced(context.Background(), op, inputs, tr)
	if err != nil {
		return Analysis{}, fmt.Errorf("trace sandbox run: %w", err)
	}

	var total time.Duration
	for _, d := range tr.obs {
		total += d
	}

	type sample struct {
		id string
		d  time.Duration
	}
	samples := make([]sample, 0, len(tr.obs))
	for id, d := range tr.obs {
		samples = append(samples, sample{id, d})
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].d > samples[j].d })

	var targets []OptTarget
	var hotCount int
	for _, s := range samples {
		if total == 0 {
			break
		}
		share := float64(s.d) / float64(total)
		if share < 0.20 {
			continue
		}
		hotCount++
		if s.d < time.Millisecond {
			targets = append(targets, OptTarget{Kind: "inline_function", NodeID: s.id, Detail: fmt.Sprintf("hot leaf, %.1f%% of wall time, sub-millisecond", share*100)})
		} else {
			targets = append(targets, OptTarget{Kind: "memoize_pure", NodeID: s.id, Detail: fmt.Sprintf("hot leaf, %.1f%% of wall time", share*100)})
		}
	}

	score := clampScore(hotCount * 25)
	rationale := fmt.Sprintf("traced %d descendants, total=%s, %d hot paths (>=20%% share)", len(tr.obs), total, hotCount)

	return Analysis{Score: score, Rationale: rationale, Targets: targets, Origin: "trace"}, nil
}

// Compile lowers op structurally. Trace doesn't change graph shape: the
// memoize/inline hints exist only as Analysis.Targets, and nothing in
// Compile or Core applies them to the graph.
func (Trace) Compile(op ports.Operator, _ domain.Record, _ Analysis) (*graph.ExecutionGraph, error) {
	return compileRoot(op), nil
}
