package scheduler

import (
	"context"

	"github.com/ahrav/opgraph/internal/domain"
	"github.com/ahrav/opgraph/internal/graph"
)

// sequential runs the topological order one node at a time.
type sequential struct {
	order   []string
	partial Results
	hasPlan bool
}

func (s *sequential) Prepare(g *graph.ExecutionGraph) error {
	order, err := graph.TopoOrder(g.NodeIDs(), g.Edges)
	if err != nil {
		return &domain.GraphCycleError{Nodes: g.NodeIDs()}
	}
	s.order = order
	s.hasPlan = true
	return nil
}

func (s *sequential) Execute(ctx context.Context, g *graph.ExecutionGraph, inputs domain.Record) (Results, error) {
	if !s.hasPlan {
		if err := s.Prepare(g); err != nil {
			return nil, err
		}
	}

	results := make(Results, len(s.order))
	s.partial = results

	for _, id := range s.order {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		nodeInputs := assembleInputs(id, g, results, inputs)
		out, err := callNode(ctx, g.Nodes[id], nodeInputs)
		if err != nil {
			return results, err
		}
		results[id] = out
	}

	return results, nil
}

func (s *sequential) GetPartialResults() Results { return s.partial }
