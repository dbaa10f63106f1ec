package scheduler

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/opgraph/internal/domain"
	"github.com/ahrav/opgraph/internal/graph"
)

// wave computes waves by repeatedly extracting every node whose
// predecessors have all completed, then runs each wave in parallel,
// bounded by maxWorkers like topological. spec.md §4.3 requires wave's
// layering to be identical to topological's for any DAG; topological
// calls graph.Levels, while wave derives its waves via iterated
// predecessor-closure over GetDependencies-style maps rather than Kahn's
// in-degree countdown, to keep the two implementations genuinely
// independent as a cross-check rather than one calling the other.
type wave struct {
	maxWorkers int

	waves   [][]string
	hasPlan bool

	mu      sync.Mutex
	partial Results
}

func (w *wave) Prepare(g *graph.ExecutionGraph) error {
	nodeIDs := g.NodeIDs()
	edges := g.Edges

	deps := make(map[string]map[string]struct{}, len(nodeIDs))
	for _, id := range nodeIDs {
		deps[id] = make(map[string]struct{})
	}
	for _, e := range edges {
		deps[e.ToNode][e.FromNode] = struct{}{}
	}

	done := make(map[string]struct{}, len(nodeIDs))
	var waves [][]string

	for len(done) < len(nodeIDs) {
		var ready []string
		for _, id := range nodeIDs {
			if _, isDone := done[id]; isDone {
				continue
			}
			allSatisfied := true
			for pred := range deps[id] {
				if _, ok := done[pred]; !ok {
					allSatisfied = false
					break
				}
			}
			if allSatisfied {
				ready = append(ready, id)
			}
		}
		if len(ready) == 0 {
			return &domain.GraphCycleError{Nodes: nodeIDs}
		}
		waves = append(waves, ready)
		for _, id := range ready {
			done[id] = struct{}{}
		}
	}

	w.waves = waves
	w.hasPlan = true
	return nil
}

func (w *wave) Execute(ctx context.Context, g *graph.ExecutionGraph, inputs domain.Record) (Results, error) {
	if !w.hasPlan {
		if err := w.Prepare(g); err != nil {
			return nil, err
		}
	}

	results := make(Results)
	var resultsMu sync.Mutex
	w.mu.Lock()
	w.partial = results
	w.mu.Unlock()

	limit := w.maxWorkers
	for _, wv := range w.waves {
		g2, gctx := errgroup.WithContext(ctx)
		if limit > 0 {
			g2.SetLimit(limit)
		}

		for _, id := range wv {
			id := id
			g2.Go(func() error {
				resultsMu.Lock()
				nodeInputs := assembleInputs(id, g, results, inputs)
				resultsMu.Unlock()

				out, err := callNode(gctx, g.Nodes[id], nodeInputs)
				if err != nil {
					return err
				}

				resultsMu.Lock()
				results[id] = out
				resultsMu.Unlock()
				return nil
			})
		}

		if err := g2.Wait(); err != nil {
			return results, err
		}
	}

	return results, nil
}

func (w *wave) GetPartialResults() Results {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.partial
}
