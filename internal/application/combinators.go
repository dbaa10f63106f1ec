package application

import (
	"errors"
	"fmt"

	"github.com/ahrav/opgraph/internal/operator"
	"github.com/ahrav/opgraph/internal/ports"
)

// RegisterCombinators wires the "sequence" and "parallel" structural
// kinds into reg. graph_loader.go calls this automatically so a
// caller-supplied registry doesn't need to know about these two
// built-in kinds; registering a custom kind under the same name first
// takes precedence and this call becomes a no-op for it.
func RegisterCombinators(reg ports.OperatorRegistry) error {
	factories := map[string]ports.OperatorFactory{
		"sequence": func(id string, config map[string]any) (ports.Operator, error) {
			children, err := childrenFrom(config)
			if err != nil {
				return nil, err
			}
			return operator.NewSequence(id, children...), nil
		},
		"parallel": func(id string, config map[string]any) (ports.Operator, error) {
			children, err := childrenFrom(config)
			if err != nil {
				return nil, err
			}
			return operator.NewParallel(id, children...), nil
		},
	}

	var errs []error
	for kind, factory := range factories {
		if err := reg.RegisterOperatorFactory(kind, factory); err != nil {
			errs = append(errs, fmt.Errorf("register combinator kind %q: %w", kind, err))
		}
	}
	return errors.Join(errs...)
}

func childrenFrom(config map[string]any) ([]ports.Operator, error) {
	raw, ok := config["children"]
	if !ok {
		return nil, fmt.Errorf("missing children")
	}
	children, ok := raw.([]ports.Operator)
	if !ok {
		return nil, fmt.Errorf("children must be []ports.Operator, got %T", raw)
	}
	return children, nil
}
