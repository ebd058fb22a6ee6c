package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProcessConfig binds an operation name to an external command.
type ProcessConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
}

// ConfigFile represents the structure of operations.yaml
type ConfigFile struct {
	Operations []ProcessConfig `yaml:"operations" json:"operations"`
}

// LoadOperations reads a configuration file (YAML or JSON) and returns the
// commands by operation name.
func LoadOperations(path string) (map[string]ProcessConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read operations config: %w", err)
	}

	var cfg ConfigFile
	ext := strings.ToLower(filepath.Ext(path))

	if ext == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		// Default to YAML
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	ops := make(map[string]ProcessConfig)
	for i, op := range cfg.Operations {
		if op.Name == "" || op.Command == "" {
			return nil, fmt.Errorf("%s: operation #%d needs a name and a command", path, i+1)
		}
		if _, dup := ops[op.Name]; dup {
			return nil, fmt.Errorf("%s: operation %q is declared twice", path, op.Name)
		}
		ops[op.Name] = op
	}

	return ops, nil
}
