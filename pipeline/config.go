// Package pipeline parses a pipeline configuration document into a
// Pipeline ready to run, and implements the step/action executor
// (spec.md §4.3, §6).
package pipeline

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Document is the decoded shape of one pipeline configuration document
// (spec.md §6): an optional "inputs" block (a mapping or a sequence of
// mappings, concatenated) and a "steps" sequence, each step itself a
// mapping of action-name to parameters whose *key order* is
// significant. yaml.v3's Node walk is used instead of a plain
// map[string]any precisely to keep that order, the same problem the
// original's custom `OrderedDictYAMLLoader` solves in Python
// (DESIGN.md).
type Document struct {
	Inputs []InputConfig
	Steps  []StepConfig
}

// InputConfig is one name→params entry from the "inputs" block.
type InputConfig struct {
	Name   string
	Params any
}

// StepConfig is one step: an ordered list of action-name→params
// entries, in declaration order.
type StepConfig struct {
	Actions []ActionConfig
}

// ActionConfig is one action-name→params entry within a step.
type ActionConfig struct {
	Name   string
	Params any
}

// ParseDocument decodes raw YAML bytes into a Document, preserving the
// declaration order of steps' action keys (spec.md §6: "Key order
// within a step mapping is significant and MUST be preserved by the
// loader").
func ParseDocument(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("pipeline: parse yaml: %w", err)
	}
	if len(root.Content) == 0 {
		return &Document{}, nil
	}

	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("pipeline: document root must be a mapping")
	}

	doc := &Document{}
	for i := 0; i < len(top.Content); i += 2 {
		key := top.Content[i].Value
		val := top.Content[i+1]

		switch key {
		case "inputs":
			inputs, err := parseInputs(val)
			if err != nil {
				return nil, fmt.Errorf("pipeline: inputs: %w", err)
			}
			doc.Inputs = inputs
		case "steps":
			steps, err := parseSteps(val)
			if err != nil {
				return nil, fmt.Errorf("pipeline: steps: %w", err)
			}
			doc.Steps = steps
		default:
			return nil, fmt.Errorf("pipeline: unknown top-level key %q", key)
		}
	}
	return doc, nil
}

// parseInputs accepts either a mapping name→params or a sequence of
// such mappings, concatenated preserving order (spec.md §6).
func parseInputs(node *yaml.Node) ([]InputConfig, error) {
	switch node.Kind {
	case yaml.MappingNode:
		return parseInputMapping(node)
	case yaml.SequenceNode:
		var out []InputConfig
		for _, item := range node.Content {
			if item.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("each inputs sequence element must be a mapping")
			}
			entries, err := parseInputMapping(item)
			if err != nil {
				return nil, err
			}
			out = append(out, entries...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("inputs must be a mapping or a sequence of mappings")
	}
}

func parseInputMapping(node *yaml.Node) ([]InputConfig, error) {
	out := make([]InputConfig, 0, len(node.Content)/2)
	for i := 0; i < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var params any
		if err := node.Content[i+1].Decode(&params); err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		out = append(out, InputConfig{Name: name, Params: params})
	}
	return out, nil
}

// parseSteps decodes the "steps" sequence, preserving each step
// mapping's key order.
func parseSteps(node *yaml.Node) ([]StepConfig, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("steps must be a sequence")
	}

	steps := make([]StepConfig, 0, len(node.Content))
	for _, stepNode := range node.Content {
		if stepNode.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("each step must be a mapping")
		}

		actions := make([]ActionConfig, 0, len(stepNode.Content)/2)
		for i := 0; i < len(stepNode.Content); i += 2 {
			name := stepNode.Content[i].Value
			var params any
			if err := stepNode.Content[i+1].Decode(&params); err != nil {
				return nil, fmt.Errorf("action %q: %w", name, err)
			}
			actions = append(actions, ActionConfig{Name: name, Params: params})
		}
		steps = append(steps, StepConfig{Actions: actions})
	}
	return steps, nil
}
