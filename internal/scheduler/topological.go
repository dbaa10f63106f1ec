package scheduler

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/opgraph/internal/domain"
	"github.com/ahrav/opgraph/internal/graph"
)

// topological runs nodes in topological order, but executes every node
// within a level concurrently, bounded by maxWorkers. It is grounded on
// the teacher's application.Layer: goroutine-per-task, a semaphore
// channel for the concurrency bound, and aggregated error collection via
// golang.org/x/sync/errgroup instead of the teacher's hand-rolled
// WaitGroup/channel pair.
type topological struct {
	maxWorkers int

	levels  [][]string
	hasPlan bool

	mu      sync.Mutex
	partial Results
}

func (t *topological) Prepare(g *graph.ExecutionGraph) error {
	levels, err := graph.Levels(g.NodeIDs(), g.Edges)
	if err != nil {
		return &domain.GraphCycleError{Nodes: g.NodeIDs()}
	}
	t.levels = levels
	t.hasPlan = true
	return nil
}

func (t *topological) Execute(ctx context.Context, g *graph.ExecutionGraph, inputs domain.Record) (Results, error) {
	if !t.hasPlan {
		if err := t.Prepare(g); err != nil {
			return nil, err
		}
	}

	results := make(Results)
	var resultsMu sync.Mutex
	t.mu.Lock()
	t.partial = results
	t.mu.Unlock()

	for _, level := range t.levels {
		g2, gctx := errgroup.WithContext(ctx)
		g2.SetLimit(t.maxWorkers)

		for _, id := range level {
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

func (t *topological) GetPartialResults() Results {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.partial
}
