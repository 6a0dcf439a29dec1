package expression

import "github.com/flowmesh/flowmesh/internal/models"

// HydrateConfig recursively resolves expressions inside an arbitrary
// configuration value. Map keys are untouched; strings are evaluated
// to a fixed point so that substituted values containing further
// expressions resolve too. A seen-set guards against cyclic text.
func HydrateConfig(value interface{}, ctx *models.ExecutionContext, quote bool) interface{} {
	switch typed := value.(type) {
	case string:
		return hydrateString(typed, ctx, quote)
	case []interface{}:
		out := make([]interface{}, len(typed))
		for i, element := range typed {
			out[i] = HydrateConfig(element, ctx, quote)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for key, element := range typed {
			out[key] = HydrateConfig(element, ctx, quote)
		}
		return out
	case models.JSONMap:
		out := make(map[string]interface{}, len(typed))
		for key, element := range typed {
			out[key] = HydrateConfig(element, ctx, quote)
		}
		return out
	default:
		return value
	}
}

// HydrateConfigMap hydrates a node configuration map
func HydrateConfigMap(config map[string]interface{}, ctx *models.ExecutionContext, quote bool) map[string]interface{} {
	hydrated := HydrateConfig(config, ctx, quote)
	if m, ok := hydrated.(map[string]interface{}); ok {
		return m
	}
	return config
}

func hydrateString(text string, ctx *models.ExecutionContext, quote bool) string {
	seen := map[string]struct{}{text: {}}
	current := text
	for {
		next := Evaluate(current, ctx, quote)
		if next == current {
			return next
		}
		if _, looped := seen[next]; looped {
			return next
		}
		seen[next] = struct{}{}
		current = next
	}
}
