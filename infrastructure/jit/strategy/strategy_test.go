package strategy

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/opgraph/internal/domain"
	"github.com/ahrav/opgraph/internal/operator"
	"github.com/ahrav/opgraph/internal/ports"
)

type fakeLLMClient struct{ response string }

func (f *fakeLLMClient) Complete(_ context.Context, _ string, _ map[string]any) (string, error) {
	return f.response, nil
}
func (f *fakeLLMClient) CompleteWithUsage(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	out, err := f.Complete(ctx, prompt, opts)
	return out, 0, 0, err
}
func (f *fakeLLMClient) EstimateTokens(text string) (int, error) { return len(text), nil }
func (f *fakeLLMClient) GetModel() string                        { return "fake-model" }

type staticResolver struct{ client ports.LLMClient }

func (r staticResolver) Resolve(string) (ports.LLMClient, error) { return r.client, nil }

func upperMap(id string) *operator.Map {
	return operator.NewMap(id, func(_ context.Context, v any) (any, error) {
		s, _ := v.(string)
		return strings.ToUpper(s), nil
	}, "text", "text")
}

func TestStructural_Analyze_ScoresDeeperTreesHigher(t *testing.T) {
	shallow := operator.NewMap("m1", func(_ context.Context, v any) (any, error) { return v, nil }, "x", "x")

	deep := operator.NewSequence("seq",
		upperMap("a"),
		upperMap("b"),
		operator.NewParallel("par", upperMap("c"), upperMap("d"), upperMap("e")),
	)

	s := Structural{}
	shallowA, err := s.Analyze(shallow, domain.NewRecord())
	require.NoError(t, err)
	deepA, err := s.Analyze(deep, domain.NewRecord())
	require.NoError(t, err)

	assert.Greater(t, deepA.Score, shallowA.Score)

	var fuseFound bool
	for _, target := range deepA.Targets {
		if target.Kind == "fuse_functions" {
			fuseFound = true
		}
	}
	assert.True(t, fuseFound, "adjacent Map siblings a,b should be flagged fusible")
}

func TestStructural_Compile_ProducesRunnableGraph(t *testing.T) {
	op := operator.NewSequence("seq", upperMap("a"), upperMap("b"))
	s := Structural{}

	analysis, err := s.Analyze(op, domain.NewRecord())
	require.NoError(t, err)

	eg, err := s.Compile(op, domain.NewRecord(), analysis)
	require.NoError(t, err)

	_, hasA := eg.Nodes["a"]
	_, hasB := eg.Nodes["b"]
	assert.True(t, hasA)
	assert.True(t, hasB)

	levels, err := eg.Levels()
	require.NoError(t, err)
	assert.True(t, len(levels) >= 3) // :input -> a -> b -> :output
}

func TestTrace_Analyze_FindsHotPath(t *testing.T) {
	slow := operator.NewMap("slow", func(ctx context.Context, v any) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		return v, nil
	}, "x", "x")

	tr := Trace{}
	a, err := tr.Analyze(slow, domain.RecordOf(map[string]any{"x": 1}))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, a.Score, 0)
}

func TestLLMSpecialized_DetectsRoles(t *testing.T) {
	client := &fakeLLMClient{response: "42"}
	resolver := staticResolver{client: client}

	templating := operator.NewMap("prompt_template", func(_ context.Context, v any) (any, error) {
		return v, nil
	}, "topic", "text")

	llmOp, err := operator.NewLLM("invoke_llm", "openai:gpt-4.1", "Summarize: {{.Input}}", "text", "answer", resolver)
	require.NoError(t, err)

	parsing := operator.NewMap("result_parser", func(_ context.Context, v any) (any, error) {
		return v, nil
	}, "answer", "score")

	pipeline := operator.NewSequence("pipeline", templating, llmOp, parsing)

	strat := &LLMSpecialized{Batching: NewBatchSizer()}
	a, err := strat.Analyze(pipeline, domain.NewRecord())
	require.NoError(t, err)
	assert.Greater(t, a.Score, 0)

	var kinds []string
	for _, target := range a.Targets {
		kinds = append(kinds, target.Kind)
	}
	assert.Contains(t, kinds, "cache_templating")
	assert.Contains(t, kinds, "stage_llm")
	assert.Contains(t, kinds, "cache_parsing")

	eg, err := strat.Compile(pipeline, domain.NewRecord(), a)
	require.NoError(t, err)
	_, hasInvoke := eg.Nodes["invoke_llm"]
	assert.True(t, hasInvoke)
}

func TestLLMSpecialized_NoInvocationScoresZero(t *testing.T) {
	op := operator.NewSequence("seq", upperMap("a"))
	strat := &LLMSpecialized{Batching: NewBatchSizer()}
	a, err := strat.Analyze(op, domain.NewRecord())
	require.NoError(t, err)
	assert.Equal(t, 0, a.Score)
}

func TestBatchSizer_DoublesOnGainsHalvesOnSpikes(t *testing.T) {
	b := NewBatchSizer()
	assert.Equal(t, 1, b.Size())

	b.Observe(0.10)
	b.Observe(0.09)
	b.Observe(0.08)
	assert.Greater(t, b.Size(), 1)

	grown := b.Size()
	b.Observe(1.0) // spike well beyond 1.5x median
	assert.Less(t, b.Size(), grown)
}

func TestEnhanced_TakesMaxScoreAcrossSubStrategies(t *testing.T) {
	client := &fakeLLMClient{response: "ok"}
	resolver := staticResolver{client: client}
	llmOp, err := operator.NewLLM("invoke", "openai:gpt-4.1", "{{.Input}}", "text", "out", resolver)
	require.NoError(t, err)

	pipeline := operator.NewSequence("pipeline", upperMap("prompt_template"), llmOp, upperMap("result_parser"))

	e := NewEnhanced()
	a, err := e.Analyze(pipeline, domain.RecordOf(map[string]any{"text": "hi"}))
	require.NoError(t, err)
	assert.Greater(t, a.Score, 0)

	eg, err := e.Compile(pipeline, domain.NewRecord(), a)
	require.NoError(t, err)
	assert.NotNil(t, eg)
}
