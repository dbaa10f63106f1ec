package strategy

import (
	"fmt"

	"github.com/ahrav/opgraph/internal/domain"
	"github.com/ahrav/opgraph/internal/graph"
	"github.com/ahrav/opgraph/internal/ports"
)

// Structural walks structure(op) recursively without executing it,
// mirroring the composition tree into an ExecutionGraph (spec.md §4.5.1).
type Structural struct{}

var _ Strategy = Structural{}

func (Structural) Name() string { return "structural" }

// Analyze scores op by tree depth, parallel breadth, and fusible Map
// adjacencies, none of which require running op.
func (Structural) Analyze(op ports.Operator, _ domain.Record) (Analysis, error) {
	s := structureOf(op)

	depth := s.Depth()
	breadth := maxParallelBreadth(s)
	fusible := adjacentMapPairs(s)

	score := clampScore(depth*5 + breadth*3 + fusible*10)

	var targets []OptTarget
	collectFuseTargets(s, &targets)
	collectVectorizeTargets(s, &targets)

	rationale := fmt.Sprintf(
		"depth=%d parallel_breadth=%d fusible_map_adjacencies=%d -> score=%d",
		depth, breadth, fusible, score,
	)

	return Analysis{Score: score, Rationale: rationale, Targets: targets, Origin: "structural"}, nil
}

// Compile lowers op's composition tree directly into an ExecutionGraph.
// Structural does not physically fuse adjacent Map nodes into one
// function; the targets it records only describe the opportunity.
func (Structural) Compile(op ports.Operator, _ domain.Record, _ Analysis) (*graph.ExecutionGraph, error) {
	return compileRoot(op), nil
}

func collectFuseTargets(s domain.Structure, out *[]OptTarget) {
	for i := 0; i+1 < len(s.Children); i++ {
		if s.Children[i].Kind == domain.KindMap && s.Children[i+1].Kind == domain.KindMap {
			*out = append(*out, OptTarget{
				Kind:   "fuse_functions",
				NodeID: s.Children[i].ID + "+" + s.Children[i+1].ID,
				Detail: "adjacent pure Map nodes can run as one function node",
			})
		}
	}
	for _, c := range s.Children {
		collectFuseTargets(c, out)
	}
}

func collectVectorizeTargets(s domain.Structure, out *[]OptTarget) {
	if pureParallelOfMaps(s) {
		*out = append(*out, OptTarget{
			Kind:   "vectorize",
			NodeID: s.ID,
			Detail: "parallel block of pure Map leaves can run as a single batched pass",
		})
	}
	for _, c := range s.Children {
		collectVectorizeTargets(c, out)
	}
}
