package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/opgraph/internal/domain"
	"github.com/ahrav/opgraph/internal/graph"
	"github.com/ahrav/opgraph/internal/operator"
)

func addFn(n int) operator.Func {
	return func(_ context.Context, v any) (any, error) {
		i, _ := v.(int)
		return i + n, nil
	}
}

// buildDiamond builds a -> {b, c} -> d, exercising field routing and a
// genuine fan-in.
func buildDiamond(t *testing.T) *graph.ExecutionGraph {
	t.Helper()
	eg := graph.NewExecutionGraph()
	eg.AddNode(graph.ExecNode{ID: "a", Kind: graph.ExecFunction, Fn: addFn(1), InField: "v", OutKey: "v"})
	eg.AddNode(graph.ExecNode{ID: "b", Kind: graph.ExecFunction, Fn: addFn(10), InField: "v", OutKey: "b"})
	eg.AddNode(graph.ExecNode{ID: "c", Kind: graph.ExecFunction, Fn: addFn(100), InField: "v", OutKey: "c"})
	eg.AddNode(graph.ExecNode{ID: "d", Kind: graph.ExecFunction, Fn: addFn(0), InField: "b", OutKey: "d"})

	eg.AddEdge(graph.Edge{FromNode: "a", ToNode: "b", FromField: "v", ToField: "v"})
	eg.AddEdge(graph.Edge{FromNode: "a", ToNode: "c", FromField: "v", ToField: "v"})
	eg.AddEdge(graph.Edge{FromNode: "b", ToNode: "d", FromField: "b", ToField: "b"})
	eg.AddEdge(graph.Edge{FromNode: "c", ToNode: "d", FromField: "c", ToField: "c"})
	return eg
}

func TestSchedulers_AgreeOnDeterministicGraph(t *testing.T) {
	inputs := domain.RecordOf(map[string]any{"v": 1})

	var results []Results
	for _, kind := range []string{"sequential", "topological", "wave"} {
		s, err := Create(kind, Options{MaxWorkers: 4})
		require.NoError(t, err)

		eg := buildDiamond(t)
		require.NoError(t, s.Prepare(eg))
		out, err := s.Execute(context.Background(), eg, inputs)
		require.NoError(t, err, kind)
		results = append(results, out)
	}

	for _, r := range results[1:] {
		for node, rec := range results[0] {
			other, ok := r[node]
			require.True(t, ok, node)
			assert.Equal(t, rec.Keys(), other.Keys(), node)
			for _, k := range rec.Keys() {
				want, _ := rec.GetRaw(k)
				got, _ := other.GetRaw(k)
				assert.Equal(t, want, got, "node=%s key=%s", node, k)
			}
		}
	}

	a, _ := domain.Get(results[0]["a"], domain.NewKey[int]("v"))
	d, _ := domain.Get(results[0]["d"], domain.NewKey[int]("d"))
	assert.Equal(t, 2, a)
	assert.Equal(t, 12, d) // d reads "b" (=12) and writes "d"=addFn(0)(12)
}

func TestCreate_UnknownKind(t *testing.T) {
	_, err := Create("bogus", Options{})
	require.Error(t, err)
}

func TestCreate_CycleDetectedAtPrepare(t *testing.T) {
	eg := graph.NewExecutionGraph()
	eg.AddNode(graph.ExecNode{ID: "a", Kind: graph.ExecPassthrough})
	eg.AddNode(graph.ExecNode{ID: "b", Kind: graph.ExecPassthrough})
	eg.AddEdge(graph.Edge{FromNode: "a", ToNode: "b", ToField: "input"})
	eg.AddEdge(graph.Edge{FromNode: "b", ToNode: "a", ToField: "input"})

	for _, kind := range []string{"sequential", "topological", "wave"} {
		s, err := Create(kind, Options{})
		require.NoError(t, err)
		err = s.Prepare(eg)
		var cycleErr *domain.GraphCycleError
		require.ErrorAsf(t, err, &cycleErr, "kind=%s", kind)
	}
}

func TestTopological_PartialResultsAfterFailure(t *testing.T) {
	eg := graph.NewExecutionGraph()
	eg.AddNode(graph.ExecNode{ID: "ok", Kind: graph.ExecFunction, Fn: addFn(1), InField: "v", OutKey: "ok"})
	eg.AddNode(graph.ExecNode{ID: "bad", Kind: graph.ExecFunction, Fn: func(context.Context, any) (any, error) {
		return nil, errors.New("boom")
	}, InField: "v", OutKey: "bad"})
	eg.AddNode(graph.ExecNode{ID: "after", Kind: graph.ExecFunction, Fn: addFn(1), InField: "ok", OutKey: "after"})
	eg.AddEdge(graph.Edge{FromNode: "ok", ToNode: "after", FromField: "ok", ToField: "ok"})

	s, err := Create("topological", Options{MaxWorkers: 4})
	require.NoError(t, err)
	require.NoError(t, s.Prepare(eg))

	_, err = s.Execute(context.Background(), eg, domain.RecordOf(map[string]any{"v": 1}))
	require.Error(t, err)

	partial := s.GetPartialResults()
	_, hasOK := partial["ok"]
	assert.True(t, hasOK, "first level's successful node should be visible in partial results")
}
