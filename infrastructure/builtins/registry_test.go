package builtins

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/opgraph/internal/domain"
	"github.com/ahrav/opgraph/internal/ports"
)

type fakeRegisterer struct {
	factories map[string]ports.OperatorFactory
}

func newFakeRegisterer() *fakeRegisterer {
	return &fakeRegisterer{factories: make(map[string]ports.OperatorFactory)}
}

func (f *fakeRegisterer) RegisterOperatorFactory(kind string, factory ports.OperatorFactory) error {
	if _, exists := f.factories[kind]; exists {
		return errors.New("already registered")
	}
	f.factories[kind] = factory
	return nil
}

type fakeClient struct{}

func (fakeClient) Complete(_ context.Context, prompt string, _ map[string]any) (string, error) {
	return "echo: " + prompt, nil
}
func (fakeClient) CompleteWithUsage(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	out, err := fakeClient{}.Complete(ctx, prompt, opts)
	return out, 1, 1, err
}
func (fakeClient) EstimateTokens(s string) (int, error) { return len(s), nil }
func (fakeClient) GetModel() string                     { return "fake-model" }

type fakeResolver struct{}

func (fakeResolver) Resolve(string) (ports.LLMClient, error) { return fakeClient{}, nil }

func TestRegister_WiresAllBuiltinKinds(t *testing.T) {
	reg := newFakeRegisterer()
	require.NoError(t, Register(reg, fakeResolver{}))

	for _, kind := range []string{
		"fuzzy_match", "exact_match", "arithmetic_mean",
		"max_pool", "median_pool", "prompt_template", "result_parser", "llm",
	} {
		assert.Contains(t, reg.factories, kind)
	}
}

func TestRegister_FuzzyMatchFactoryBuildsWorkingOperator(t *testing.T) {
	reg := newFakeRegisterer()
	require.NoError(t, Register(reg, fakeResolver{}))

	op, err := reg.factories["fuzzy_match"]("fm", map[string]any{
		"in_key": "pair", "out_key": "score", "threshold": 0.5,
	})
	require.NoError(t, err)

	in := domain.NewRecord().WithRaw("pair", NewFuzzyMatchInput("hello", "hello"))
	out, err := op.Call(context.Background(), in)
	require.NoError(t, err)
	score, _ := domain.Get(out, domain.NewKey[float64]("score"))
	assert.Equal(t, 1.0, score)
}

func TestRegister_LLMFactoryBuildsWorkingOperator(t *testing.T) {
	reg := newFakeRegisterer()
	require.NoError(t, Register(reg, fakeResolver{}))

	op, err := reg.factories["llm"]("ask", map[string]any{
		"model_id": "openai:gpt-4o",
		"template": "Q: {{.Input}}",
		"in_key":   "question",
		"out_key":  "answer",
	})
	require.NoError(t, err)

	in := domain.NewRecord().WithRaw("question", "why?")
	out, err := op.Call(context.Background(), in)
	require.NoError(t, err)
	answer, _ := domain.Get(out, domain.NewKey[string]("answer"))
	assert.Equal(t, "echo: Q: why?", answer)
}
