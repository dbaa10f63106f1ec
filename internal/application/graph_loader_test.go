package application

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

func newTestRegistry(t *testing.T) *OperatorRegistry {
	t.Helper()
	reg := NewOperatorRegistry()
	err := reg.RegisterOperatorFactory("upper", func(id string, config map[string]any) (ports.Operator, error) {
		inKey, _ := config["in_key"].(string)
		outKey, _ := config["out_key"].(string)
		return operator.NewMap(id, func(_ context.Context, v any) (any, error) {
			s, _ := v.(string)
			return strings.ToUpper(s), nil
		}, inKey, outKey), nil
	})
	require.NoError(t, err)
	return reg
}

func TestGraphLoader_BuildsSimpleChain(t *testing.T) {
	yaml := `
metadata:
  name: chain
nodes:
  - id: step1
    kind: upper
    params:
      in_key: input
      out_key: output
edges:
  - from_node: :input
    to_node: step1
    to_field: input
  - from_node: step1
    to_node: :output
`
	loader := NewGraphLoader(newTestRegistry(t))
	g, err := loader.Load([]byte(yaml))
	require.NoError(t, err)

	op, ok := g.GetNode("step1")
	require.True(t, ok)
	require.NotNil(t, op)

	in := domain.NewRecord().WithRaw("input", "hello")
	out, err := op.Call(context.Background(), in)
	require.NoError(t, err)
	val, _ := domain.Get(out, domain.NewKey[string]("output"))
	assert.Equal(t, "HELLO", val)
}

func TestGraphLoader_CachesByContentHash(t *testing.T) {
	yaml := []byte(`
metadata:
  name: chain
nodes:
  - id: step1
    kind: upper
    params:
      in_key: input
      out_key: output
`)
	loader := NewGraphLoader(newTestRegistry(t))
	g1, err := loader.Load(yaml)
	require.NoError(t, err)
	g2, err := loader.Load(yaml)
	require.NoError(t, err)
	assert.Same(t, g1, g2, "identical bytes should hit the content-hash cache")
}

func TestGraphLoader_BuildsSequenceFromChildren(t *testing.T) {
	yaml := `
metadata:
  name: seq
nodes:
  - id: step1
    kind: upper
    params:
      in_key: input
      out_key: mid
  - id: step2
    kind: upper
    params:
      in_key: mid
      out_key: output
  - id: pipeline
    kind: sequence
    children: [step1, step2]
`
	loader := NewGraphLoader(newTestRegistry(t))
	g, err := loader.Load([]byte(yaml))
	require.NoError(t, err)

	op, ok := g.GetNode("pipeline")
	require.True(t, ok)

	in := domain.NewRecord().WithRaw("input", "hi")
	_, err = op.Call(context.Background(), in)
	require.NoError(t, err)
}

func TestGraphLoader_UnknownKindErrors(t *testing.T) {
	yaml := `
metadata:
  name: bad
nodes:
  - id: n1
    kind: nonexistent_kind
`
	loader := NewGraphLoader(newTestRegistry(t))
	_, err := loader.Load([]byte(yaml))
	assert.Error(t, err)
}
