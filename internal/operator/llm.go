package operator

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/ahrav/opgraph/internal/domain"
	"github.com/ahrav/opgraph/internal/ports"
)

// ClientResolver looks up an ports.LLMClient for a model_id of the form
// "provider:model_name" (spec.md §6 grammar; bare names default to
// "openai:"). infrastructure/llm.Registry implements this.
type ClientResolver interface {
	Resolve(modelID string) (ports.LLMClient, error)
}

// LLM is a stochastic leaf operator that renders a text/template prompt
// with inputs[InKey] bound to {{.Input}}, invokes the
// resolved provider client, and stores the response text at OutKey. It
// is grounded on the teacher's AnswererUnit (text/template prompt
// compilation, context.WithTimeout, ports.LLMClient.Complete).
type LLM struct {
	id          string
	modelID     string
	template    *template.Template
	inKey       string
	outKey      string
	resolver    ClientResolver
	temperature float64
	seed        *int64
	maxTokens   int
}

var (
	_ ports.Operator           = (*LLM)(nil)
	_ ports.StructuredOperator = (*LLM)(nil)
)

// NewLLM compiles promptTemplate (which must contain "{{.Input}}" where
// the input field should be substituted) and builds an LLM operator
// bound to modelID. temperature and seed determine stochasticity: per
// spec.md §4.1, an LLM leaf is stochastic by default, and only ceases to
// be a barrier when the caller supplies temperature=0 and a seed.
func NewLLM(id, modelID, promptTemplate, inKey, outKey string, resolver ClientResolver) (*LLM, error) {
	tmpl, err := template.New(id).Parse(promptTemplate)
	if err != nil {
		return nil, fmt.Errorf("llm operator %s: parse prompt template: %w", id, err)
	}
	return &LLM{
		id:        id,
		modelID:   modelID,
		template:  tmpl,
		inKey:     inKey,
		outKey:    outKey,
		resolver:  resolver,
		maxTokens: 0,
	}, nil
}

// WithDeterminism pins temperature and seed, making the LLM leaf
// deterministic (and therefore eligible for JIT memoization) rather than
// the default stochastic leaf.
func (l *LLM) WithDeterminism(temperature float64, seed int64) *LLM {
	l.temperature = temperature
	l.seed = &seed
	return l
}

// WithMaxTokens caps the generated response length.
func (l *LLM) WithMaxTokens(maxTokens int) *LLM {
	l.maxTokens = maxTokens
	return l
}

// ID returns the operator's stable identifier.
func (l *LLM) ID() string { return l.id }

// Stochastic is false only when temperature=0 and a seed were pinned via
// WithDeterminism; otherwise LLM leaves are stochastic by default.
func (l *LLM) Stochastic() bool {
	return !(l.temperature == 0 && l.seed != nil)
}

// Call substitutes the prompt template, resolves a client for modelID,
// and invokes it, storing the response at OutKey.
func (l *LLM) Call(ctx context.Context, inputs domain.Record) (domain.Record, error) {
	raw, ok := inputs.GetRaw(l.inKey)
	if !ok {
		return inputs, &domain.ValidationError{Operator: l.id, Field: l.inKey, Reason: "input key not found"}
	}

	var buf bytes.Buffer
	if err := l.template.Execute(&buf, struct{ Input any }{Input: raw}); err != nil {
		return inputs, domain.NewChildError(l.id, fmt.Errorf("execute prompt template: %w", err))
	}

	client, err := l.resolver.Resolve(l.modelID)
	if err != nil {
		return inputs, domain.NewChildError(l.id, fmt.Errorf("resolve model %s: %w", l.modelID, err))
	}

	options := map[string]any{"temperature": l.temperature}
	if l.maxTokens > 0 {
		options["max_tokens"] = l.maxTokens
	}
	if l.seed != nil {
		options["seed"] = *l.seed
	}

	text, err := client.Complete(ctx, buf.String(), options)
	if err != nil {
		return inputs, domain.NewChildError(l.id, err)
	}

	return inputs.WithRaw(l.outKey, text), nil
}

// Structure implements ports.StructuredOperator. The JIT's structural
// strategy treats LLM as an opaque passthrough (spec.md §4.5.1) unless
// the LLM-specialized strategy recognizes it by Kind.
func (l *LLM) Structure() domain.Structure {
	return domain.Structure{
		Kind:       domain.KindLLM,
		ID:         l.id,
		Stochastic: l.Stochastic(),
		InKey:      l.inKey,
		OutKey:     l.outKey,
	}
}
