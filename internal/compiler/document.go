package compiler

import (
	"path/filepath"
	"strings"
)

// Format identifies a graph document encoding.
type Format string

const (
	FormatXML  Format = "xml"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks a format from a file extension.
// JSON documents are read with the YAML decoder, which accepts them unchanged.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return FormatYAML
	default:
		return FormatXML
	}
}

// StateNode is the format-neutral syntax tree of one state element.
// A node either defines a state (Name set) or references one defined
// elsewhere in the document (Ref set).
type StateNode struct {
	Name         string           `yaml:"name,omitempty"`
	Ref          string           `yaml:"ref,omitempty"`
	Triggers     []TriggerNode    `yaml:"triggers,omitempty"`
	Transitions  []TransitionNode `yaml:"transitions,omitempty"`
	Operations   []OperationNode  `yaml:"operations,omitempty"`
	Capabilities []CapabilityNode `yaml:"capabilities,omitempty"`
	States       []StateNode      `yaml:"states,omitempty"`
}

// TriggerNode holds exactly one action: a transition or an operation.
type TriggerNode struct {
	Event      string          `yaml:"event"`
	Transition *TransitionNode `yaml:"transition,omitempty"`
	Operation  *OperationNode  `yaml:"operation,omitempty"`

	actions int // XML only: number of action elements seen
}

type TransitionNode struct {
	Name      string         `yaml:"name"`
	Target    string         `yaml:"target"`
	Operation *OperationNode `yaml:"operation,omitempty"`
}

type OperationNode struct {
	Name string `yaml:"name"`
}

type CapabilityNode struct {
	Name string `yaml:"name"`
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}
