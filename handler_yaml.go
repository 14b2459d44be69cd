package shelf

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// YAMLHandler returns the built-in YAML handler.
func YAMLHandler() FileHandler { return yamlHandler{} }

// yamlHandler stores one record per file as a single YAML document.
// Struct records keep their declared field order; map records are
// emitted with sorted keys, so encoding stays deterministic either way.
type yamlHandler struct{}

func (yamlHandler) Name() string { return "yaml" }

func (yamlHandler) Extensions() []string { return []string{".yml", ".yaml"} }

func (yamlHandler) Decode(data []byte, v any, _ HandlerOptions) error {
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal yaml: %w", err)
	}
	return nil
}

func (yamlHandler) Encode(v any, _ HandlerOptions) ([]byte, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	return data, nil
}
