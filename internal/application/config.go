// Package application provides configuration loading and graph assembly
// for the operator-graph engine: turning a validated GraphConfig into an
// executable graph.Graph built from registered operator kinds.
package application

import (
	"bytes"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/opgraph/internal/graph"
)

// GraphConfig is the YAML-serializable description of an operator graph,
// grounded on the teacher's GraphConfig/UnitConfig/PipelineConfig shape
// but generalized from fixed evaluation units to open operator kinds:
// Nodes replaces Units, and each node's Params are kind-specific rather
// than validated against one fixed evaluation-unit schema.
type GraphConfig struct {
	Metadata Metadata     `yaml:"metadata" validate:"required"`
	Nodes    []NodeConfig `yaml:"nodes" validate:"required,min=1,dive"`
	Edges    []EdgeConfig `yaml:"edges" validate:"dive"`
}

// Metadata carries identifying information about a graph definition, not
// consumed by graph construction itself. Grounded on config.go's Metadata.
type Metadata struct {
	Name        string `yaml:"name" validate:"required"`
	Version     string `yaml:"version,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// NodeConfig describes one node in the graph: either a structural
// combinator ("sequence" or "parallel", whose Children name other nodes
// already defined earlier in the file) or a leaf kind registered with an
// OperatorRegistry ("llm" or a infrastructure/builtins kind), whose Params
// are decoded by that kind's factory.
type NodeConfig struct {
	ID       string         `yaml:"id" validate:"required"`
	Kind     string         `yaml:"kind" validate:"required"`
	Children []string       `yaml:"children,omitempty"`
	Params   map[string]any `yaml:"params,omitempty"`
}

// EdgeConfig wires one node's output field to another node's input
// field, mirroring graph.Edge. FromField/ToField default to "" / "input"
// respectively when omitted, matching graph.Graph.FromSequence's
// convention for the common single-field case.
type EdgeConfig struct {
	FromNode  string `yaml:"from_node" validate:"required"`
	ToNode    string `yaml:"to_node" validate:"required"`
	FromField string `yaml:"from_field,omitempty"`
	ToField   string `yaml:"to_field,omitempty"`
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// LoadGraphConfig decodes and validates YAML graph configuration.
// Decoding uses a strict yaml.Decoder (KnownFields(true)) so a typo'd
// field name fails loudly rather than being silently ignored, the same
// idiom the teacher's graph_loader.go used for parseYAML.
func LoadGraphConfig(data []byte) (*GraphConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg GraphConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode graph config: %w", err)
	}
	if err := structValidator.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate graph config: %w", err)
	}
	if err := validateSemantics(&cfg); err != nil {
		return nil, fmt.Errorf("validate graph config: %w", err)
	}
	return &cfg, nil
}

// validateSemantics checks cross-field invariants structTag validation
// can't express: unique node IDs, and every edge/child reference naming
// a node defined somewhere in the file. Grounded on graph_loader.go's
// validateSemantics pass over units/pipelines/layers/edges.
func validateSemantics(cfg *GraphConfig) error {
	seen := map[string]struct{}{graph.InputNode: {}, graph.OutputNode: {}}
	for _, n := range cfg.Nodes {
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}
		seen[n.ID] = struct{}{}
	}

	for _, n := range cfg.Nodes {
		for _, child := range n.Children {
			if _, ok := seen[child]; !ok {
				return fmt.Errorf("node %q references unknown child %q", n.ID, child)
			}
		}
	}
	for _, e := range cfg.Edges {
		if _, ok := seen[e.FromNode]; !ok {
			return fmt.Errorf("edge references unknown from_node %q", e.FromNode)
		}
		if _, ok := seen[e.ToNode]; !ok {
			return fmt.Errorf("edge references unknown to_node %q", e.ToNode)
		}
	}
	return nil
}
