package graph

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/opgraph/internal/domain"
	"github.com/ahrav/opgraph/internal/ports"
)

type stubOp struct {
	id string
	fn func(domain.Record) (domain.Record, error)
}

func (s *stubOp) ID() string       { return s.id }
func (s *stubOp) Stochastic() bool { return false }
func (s *stubOp) Call(_ context.Context, in domain.Record) (domain.Record, error) {
	return s.fn(in)
}

func translate(in domain.Record) (domain.Record, error) {
	text, _ := domain.Get(in, domain.NewKey[string]("text"))
	return in.WithRaw("french_text", frenchOf(text)), nil
}

func frenchOf(text string) string {
	if text == "Hello, world!" {
		return "Bonjour, monde!"
	}
	return text
}

func uppercaseOp(in domain.Record) (domain.Record, error) {
	input, _ := domain.Get(in, domain.NewKey[string]("input"))
	return in.WithRaw("input", strings.ToUpper(input)), nil
}

// TestGraph_TranslateThenUppercase implements spec.md §8 scenario 4: a
// graph with nodes T (translate) and U (uppercase) and edge
// T.french_text -> U.input on {text: "Hello, world!"} should let U
// observe "Bonjour, monde!" via the field-routed edge.
func TestGraph_TranslateThenUppercase(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode("T", &stubOp{id: "T", fn: translate}))
	require.NoError(t, g.AddNode("U", &stubOp{id: "U", fn: uppercaseOp}))
	require.NoError(t, g.AddEdge("T", "U", "french_text", "input"))

	assert.ElementsMatch(t, []string{"T"}, g.InputNodes())
	assert.ElementsMatch(t, []string{"U"}, g.OutputNodes())

	tOp, _ := g.GetNode("T")
	tOut, err := tOp.Call(context.Background(), domain.RecordOf(map[string]any{"text": "Hello, world!"}))
	require.NoError(t, err)
	frenchText, _ := domain.Get(tOut, domain.NewKey[string]("french_text"))

	uOp, _ := g.GetNode("U")
	uIn := domain.NewRecord().WithRaw("input", frenchText)
	uOut, err := uOp.Call(context.Background(), uIn)
	require.NoError(t, err)

	result, _ := domain.Get(uOut, domain.NewKey[string]("input"))
	assert.Equal(t, "BONJOUR, MONDE!", result)
}

func TestGraph_AddEdgeUnknownNode(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode("a", &stubOp{id: "a"}))

	err := g.AddEdge("a", "missing", "", "input")
	var unk *domain.UnknownNodeError
	require.ErrorAs(t, err, &unk)
	assert.Equal(t, "missing", unk.NodeID)
}

func TestGraph_DuplicateInboundFieldRejected(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode("a", &stubOp{id: "a"}))
	require.NoError(t, g.AddNode("b", &stubOp{id: "b"}))
	require.NoError(t, g.AddNode("c", &stubOp{id: "c"}))
	require.NoError(t, g.AddEdge("a", "c", "", "input"))

	err := g.AddEdge("b", "c", "", "input")
	require.Error(t, err)
}

func TestGraph_AddEdgeDoesNotRejectCyclesAtInsertion(t *testing.T) {
	// spec.md §9 Open Question: add_edge defers cycle detection to the
	// scheduler; only HasCycle/TopologicalSort at prepare time must catch it.
	g := New()
	require.NoError(t, g.AddNode("a", &stubOp{id: "a"}))
	require.NoError(t, g.AddNode("b", &stubOp{id: "b"}))
	require.NoError(t, g.AddEdge("a", "b", "", "input"))
	require.NoError(t, g.AddEdge("b", "a", "", "input"))

	assert.True(t, g.HasCycle())
	_, err := g.TopologicalSort()
	var cycleErr *domain.GraphCycleError
	require.ErrorAs(t, err, &cycleErr)
}

func TestGraph_FromSequence(t *testing.T) {
	g := New()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, g.AddNode(id, &stubOp{id: id}))
	}
	require.NoError(t, g.FromSequence([]string{"a", "b", "c"}))

	order, err := g.TopologicalSort()
	require.NoError(t, err)

	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	assert.Less(t, pos["a"], pos["b"])
	assert.Less(t, pos["b"], pos["c"])
}

func TestLevels_IndependentNodesShareALevel(t *testing.T) {
	nodeIDs := []string{"a", "b", "c", "d"}
	edges := []Edge{
		{FromNode: "a", ToNode: "c", ToField: "input"},
		{FromNode: "b", ToNode: "c", ToField: "other"},
		{FromNode: "c", ToNode: "d", ToField: "input"},
	}

	levels, err := Levels(nodeIDs, edges)
	require.NoError(t, err)
	require.Len(t, levels, 3)
	assert.ElementsMatch(t, []string{"a", "b"}, levels[0])
	assert.ElementsMatch(t, []string{"c"}, levels[1])
	assert.ElementsMatch(t, []string{"d"}, levels[2])
}

func TestHasCycle_SelfLoop(t *testing.T) {
	edges := []Edge{{FromNode: "a", ToNode: "a", ToField: "input"}}
	assert.True(t, HasCycle([]string{"a"}, edges))
}

func TestGraph_ToExecutionGraph(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode("T", &stubOp{id: "T", fn: translate}))
	require.NoError(t, g.AddNode("U", &stubOp{id: "U", fn: uppercaseOp}))
	require.NoError(t, g.AddEdge(InputNode, "T", "", "input"))
	require.NoError(t, g.AddEdge("T", "U", "french_text", "input"))
	require.NoError(t, g.AddEdge("U", OutputNode, "", "input"))

	eg := g.ToExecutionGraph()

	tNode, ok := eg.Nodes["T"]
	require.True(t, ok)
	assert.Equal(t, ExecOperator, tNode.Kind)
	assert.Same(t, g.nodes["T"], tNode.Op)

	assert.Len(t, eg.Edges, 3)
}

var _ ports.Operator = (*stubOp)(nil)
