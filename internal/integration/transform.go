package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flowmesh/flowmesh/internal/models"
)

func transformData() *Descriptor {
	return &Descriptor{
		ID:          "transform_data",
		Name:        "Transform Data",
		Description: "Applies a simple transformation to the hydrated input value",
		Category:    models.NodeTypeAction,
		Version:     "1.0.0",
		Schema: []SchemaField{
			{Key: "input", Label: "Input", Type: FieldTypeTextarea, SupportsExpressions: true},
			{Key: "operation", Label: "Operation", Type: FieldTypeSelect, Options: []string{
				"uppercase", "lowercase", "trim", "length", "json_parse", "json_stringify",
			}},
		},
		Required: []string{"operation"},
		Execute: func(_ context.Context, config map[string]interface{}, _ *models.ExecutionContext) (*models.Result, error) {
			operation := stringConfig(config, "operation")
			input := config["input"]

			output, err := applyTransform(operation, input)
			if err != nil {
				return nil, err
			}

			return &models.Result{
				Success: true,
				Data: map[string]interface{}{
					"operation": operation,
					"output":    output,
					"timestamp": nowTimestamp(),
				},
			}, nil
		},
	}
}

func applyTransform(operation string, input interface{}) (interface{}, error) {
	switch operation {
	case "uppercase":
		return strings.ToUpper(asString(input)), nil
	case "lowercase":
		return strings.ToLower(asString(input)), nil
	case "trim":
		return strings.TrimSpace(asString(input)), nil
	case "length":
		switch v := input.(type) {
		case string:
			return len(v), nil
		case []interface{}:
			return len(v), nil
		case map[string]interface{}:
			return len(v), nil
		default:
			return len(asString(input)), nil
		}
	case "json_parse":
		var parsed interface{}
		if err := json.Unmarshal([]byte(asString(input)), &parsed); err != nil {
			return nil, fmt.Errorf("input is not valid JSON: %w", err)
		}
		return parsed, nil
	case "json_stringify":
		encoded, err := json.Marshal(input)
		if err != nil {
			return nil, fmt.Errorf("input cannot be encoded as JSON: %w", err)
		}
		return string(encoded), nil
	default:
		return nil, fmt.Errorf("unknown operation %q", operation)
	}
}

func asString(value interface{}) string {
	if s, ok := value.(string); ok {
		return s
	}
	if value == nil {
		return ""
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(encoded)
}
