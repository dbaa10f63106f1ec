package builtins

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/opgraph/internal/operator"
	"github.com/ahrav/opgraph/internal/ports"
)

// decodeParams round-trips a generic config map through YAML into a
// typed struct, the same shape graph_loader.go's YAML-sourced params
// already arrive in. This avoids a reflection/mapstructure dependency
// while reusing the yaml.v3 tags the rest of the config layer relies on.
func decodeParams(raw map[string]any, out any) error {
	bs, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	if err := yaml.Unmarshal(bs, out); err != nil {
		return fmt.Errorf("unmarshal params: %w", err)
	}
	return nil
}

// Registerer is the subset of application.OperatorRegistry builtins
// registers themselves against; internal/application depends on
// infrastructure/builtins to avoid a second registry implementation.
type Registerer interface {
	RegisterOperatorFactory(kind string, factory ports.OperatorFactory) error
}

// Register wires every built-in leaf kind into reg: fuzzy_match,
// exact_match, arithmetic_mean, max_pool, median_pool, prompt_template,
// result_parser, and llm (backed by resolver, typically an
// infrastructure/llm.Registry). Grounded on the teacher's
// RegisterBuiltinUnits, generalized from fixed unit constructors to the
// kind-keyed operator factories this engine's OperatorRegistry expects.
func Register(reg Registerer, resolver operator.ClientResolver) error {
	factories := map[string]ports.OperatorFactory{
		"fuzzy_match": func(id string, config map[string]any) (ports.Operator, error) {
			var p struct {
				InKey         string  `yaml:"in_key"`
				OutKey        string  `yaml:"out_key"`
				Threshold     float64 `yaml:"threshold"`
				CaseSensitive bool    `yaml:"case_sensitive"`
			}
			if err := decodeParams(config, &p); err != nil {
				return nil, err
			}
			return FuzzyMatch(id, FuzzyMatchConfig{Threshold: p.Threshold, CaseSensitive: p.CaseSensitive}, p.InKey, p.OutKey), nil
		},
		"exact_match": func(id string, config map[string]any) (ports.Operator, error) {
			var p struct {
				InKey          string `yaml:"in_key"`
				OutKey         string `yaml:"out_key"`
				CaseSensitive  bool   `yaml:"case_sensitive"`
				TrimWhitespace bool   `yaml:"trim_whitespace"`
			}
			if err := decodeParams(config, &p); err != nil {
				return nil, err
			}
			return ExactMatch(id, ExactMatchConfig{CaseSensitive: p.CaseSensitive, TrimWhitespace: p.TrimWhitespace}, p.InKey, p.OutKey), nil
		},
		"arithmetic_mean": func(id string, config map[string]any) (ports.Operator, error) {
			var p struct {
				InKey  string `yaml:"in_key"`
				OutKey string `yaml:"out_key"`
			}
			if err := decodeParams(config, &p); err != nil {
				return nil, err
			}
			return ArithmeticMean(id, p.InKey, p.OutKey), nil
		},
		"max_pool": func(id string, config map[string]any) (ports.Operator, error) {
			var p struct {
				InKey      string  `yaml:"in_key"`
				OutKey     string  `yaml:"out_key"`
				TieBreaker string  `yaml:"tie_breaker"`
				MinScore   float64 `yaml:"min_score"`
			}
			if err := decodeParams(config, &p); err != nil {
				return nil, err
			}
			return MaxPool(id, PoolConfig{TieBreaker: TieBreaker(p.TieBreaker), MinScore: p.MinScore}, p.InKey, p.OutKey), nil
		},
		"median_pool": func(id string, config map[string]any) (ports.Operator, error) {
			var p struct {
				InKey      string  `yaml:"in_key"`
				OutKey     string  `yaml:"out_key"`
				TieBreaker string  `yaml:"tie_breaker"`
				MinScore   float64 `yaml:"min_score"`
			}
			if err := decodeParams(config, &p); err != nil {
				return nil, err
			}
			return MedianPool(id, PoolConfig{TieBreaker: TieBreaker(p.TieBreaker), MinScore: p.MinScore}, p.InKey, p.OutKey), nil
		},
		"prompt_template": func(id string, config map[string]any) (ports.Operator, error) {
			var p struct {
				InKey    string `yaml:"in_key"`
				OutKey   string `yaml:"out_key"`
				Template string `yaml:"template"`
			}
			if err := decodeParams(config, &p); err != nil {
				return nil, err
			}
			return PromptTemplate(id, p.Template, p.InKey, p.OutKey)
		},
		"result_parser": func(id string, config map[string]any) (ports.Operator, error) {
			var p struct {
				InKey  string `yaml:"in_key"`
				OutKey string `yaml:"out_key"`
			}
			if err := decodeParams(config, &p); err != nil {
				return nil, err
			}
			return ResultParser(id, p.InKey, p.OutKey), nil
		},
		"llm": func(id string, config map[string]any) (ports.Operator, error) {
			var p struct {
				ModelID     string   `yaml:"model_id"`
				Template    string   `yaml:"template"`
				InKey       string   `yaml:"in_key"`
				OutKey      string   `yaml:"out_key"`
				Temperature *float64 `yaml:"temperature"`
				Seed        *int64   `yaml:"seed"`
				MaxTokens   int      `yaml:"max_tokens"`
			}
			if err := decodeParams(config, &p); err != nil {
				return nil, err
			}
			llm, err := operator.NewLLM(id, p.ModelID, p.Template, p.InKey, p.OutKey, resolver)
			if err != nil {
				return nil, err
			}
			if p.Temperature != nil && p.Seed != nil {
				llm = llm.WithDeterminism(*p.Temperature, *p.Seed)
			}
			if p.MaxTokens > 0 {
				llm = llm.WithMaxTokens(p.MaxTokens)
			}
			return llm, nil
		},
	}

	for kind, factory := range factories {
		if err := reg.RegisterOperatorFactory(kind, factory); err != nil {
			return fmt.Errorf("register builtin kind %q: %w", kind, err)
		}
	}
	return nil
}
