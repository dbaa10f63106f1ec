package builtins

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateFuncMap_ContainsExpectedFunctions(t *testing.T) {
	funcMap := TemplateFuncMap()
	require.NotNil(t, funcMap)

	expected := []string{
		"add", "sub", "mul", "div", "mod",
		"contains", "truncate", "hasPrefix", "hasSuffix",
		"lower", "upper", "trim", "replace", "join", "split",
	}
	assert.Len(t, funcMap, len(expected))
	for _, name := range expected {
		assert.Contains(t, funcMap, name)
	}
}

func TestTemplateFuncMap_Arithmetic(t *testing.T) {
	funcMap := TemplateFuncMap()

	add := funcMap["add"].(func(int, int) int)
	assert.Equal(t, 8, add(5, 3))
	assert.Equal(t, math.MaxInt32+1, add(math.MaxInt32, 1))

	div := funcMap["div"].(func(int, int) int)
	assert.Equal(t, 5, div(10, 2))
	assert.Equal(t, 0, div(10, 0), "division by zero returns 0 instead of panicking")

	mod := funcMap["mod"].(func(int, int) int)
	assert.Equal(t, 1, mod(7, 2))
	assert.Equal(t, 0, mod(7, 0))
}

func TestTemplateFuncMap_Truncate(t *testing.T) {
	funcMap := TemplateFuncMap()
	truncate := funcMap["truncate"].(func(string, int) string)

	assert.Equal(t, "hello", truncate("hello", 10))
	assert.Equal(t, "he...", truncate("hello world", 5))
	assert.Equal(t, "", truncate("hello", 0))
	assert.Equal(t, "he", truncate("hello", 2))
}

func TestTemplateFuncMap_StringHelpers(t *testing.T) {
	funcMap := TemplateFuncMap()

	contains := funcMap["contains"].(func(string, string) bool)
	assert.True(t, contains("hello world", "world"))

	join := funcMap["join"].(func([]string, string) string)
	assert.Equal(t, "a, b, c", join([]string{"a", "b", "c"}, ", "))
}
