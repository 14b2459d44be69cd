package shelf

import (
	"encoding/json"
	"fmt"

	"github.com/tailscale/hujson"
)

// JSONHandler returns the built-in JSON handler.
func JSONHandler() FileHandler { return jsonHandler{} }

// jsonHandler stores one record per file as indented JSON. Decoding is
// lenient about comments and trailing commas, so hand-edited files keep
// parsing; encoding always emits standard JSON.
type jsonHandler struct{}

func (jsonHandler) Name() string { return "json" }

func (jsonHandler) Extensions() []string { return []string{".json"} }

func (jsonHandler) Decode(data []byte, v any, _ HandlerOptions) error {
	std, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("standardize json: %w", err)
	}
	if err := json.Unmarshal(std, v); err != nil {
		return fmt.Errorf("unmarshal json: %w", err)
	}
	return nil
}

func (jsonHandler) Encode(v any, _ HandlerOptions) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return append(data, '\n'), nil
}
