package toolkit

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateSchema derives a JSON Schema parameter map for a tool's argument
// struct T using struct tags (`json:"name"`, `jsonschema:"required,..."`).
// Tool implementations use this instead of hand-writing schema maps.
func GenerateSchema[T any]() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}

	schema := reflector.Reflect(new(T))

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("toolkit: marshal schema: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("toolkit: unmarshal schema: %w", err)
	}
	delete(raw, "$schema")
	delete(raw, "$id")

	if raw["type"] != "object" {
		return raw, nil
	}

	out := map[string]any{
		"type":       "object",
		"properties": raw["properties"],
	}
	if required, ok := raw["required"]; ok {
		out["required"] = required
	}
	if additional, ok := raw["additionalProperties"]; ok {
		out["additionalProperties"] = additional
	}
	return out, nil
}
