package builtins

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/ahrav/opgraph/internal/operator"
)

// PromptTemplate builds a Map operator that compiles tmplSrc once and
// substitutes the input value as {{.Input}} on every call, producing the
// rendered prompt string. Adapted from answerer_unit.go's compile-once,
// render-per-call template handling; this is the canonical "templating"
// role the llm_specialized JIT strategy detects by name.
func PromptTemplate(id, tmplSrc, inKey, outKey string) (*operator.Map, error) {
	tmpl, err := template.New(id).Funcs(TemplateFuncMap()).Parse(tmplSrc)
	if err != nil {
		return nil, fmt.Errorf("builtins.PromptTemplate %s: parse template: %w", id, err)
	}

	return operator.NewMap(id, func(_ context.Context, v any) (any, error) {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, struct{ Input any }{Input: v}); err != nil {
			return nil, fmt.Errorf("builtins.PromptTemplate %s: render: %w", id, err)
		}
		return buf.String(), nil
	}, inKey, outKey), nil
}
