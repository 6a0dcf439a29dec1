// Package expression implements the {{ ... }} substitution layer that
// binds node configuration to runtime state. Recognized forms are
// $node.<node_id>.<dotted.path> and $vars.<name>[.<path>]; anything
// else is preserved verbatim.
package expression

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/flowmesh/flowmesh/internal/models"
)

var placeholderPattern = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// Evaluate substitutes every {{ EXPR }} occurrence in text against the
// context. Missing lookups resolve to the empty string; unrecognized
// expressions are left unchanged. When quote is true, substituted
// string values are wrapped in double quotes so the output can be a
// valid comparison expression.
func Evaluate(text string, ctx *models.ExecutionContext, quote bool) string {
	if ctx == nil || !strings.Contains(text, "{{") {
		return text
	}

	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])

		switch {
		case strings.HasPrefix(expr, "$node."):
			value, ok := resolveNode(expr[len("$node."):], ctx)
			if !ok {
				return ""
			}
			return stringify(value, quote)
		case strings.HasPrefix(expr, "$vars."):
			value, ok := resolveVars(expr[len("$vars."):], ctx)
			if !ok {
				return ""
			}
			return stringify(value, quote)
		default:
			return match
		}
	})
}

// resolveNode looks up $node.<node_id>.<path>
func resolveNode(rest string, ctx *models.ExecutionContext) (interface{}, bool) {
	segments := strings.Split(rest, ".")
	if len(segments) == 0 || segments[0] == "" {
		return nil, false
	}

	output, ok := ctx.NodeOutputs[segments[0]]
	if !ok {
		return nil, false
	}
	return walkPath(output, segments[1:])
}

// resolveVars looks up $vars.<name>, walking any trailing path into
// structured variable values
func resolveVars(rest string, ctx *models.ExecutionContext) (interface{}, bool) {
	segments := strings.Split(rest, ".")
	if len(segments) == 0 || segments[0] == "" {
		return nil, false
	}

	value, ok := ctx.Variables[segments[0]]
	if !ok {
		return nil, false
	}
	return walkPath(value, segments[1:])
}

// walkPath descends a nested key/value tree segment by segment. Maps
// are indexed by key; slices by numeric segment; anything else ends
// the walk.
func walkPath(current interface{}, segments []string) (interface{}, bool) {
	for _, segment := range segments {
		switch typed := current.(type) {
		case map[string]interface{}:
			next, ok := typed[segment]
			if !ok {
				return nil, false
			}
			current = next
		case models.JSONMap:
			next, ok := typed[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []interface{}:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(typed) {
				return nil, false
			}
			current = typed[index]
		default:
			return nil, false
		}
	}
	return current, true
}

// stringify renders a resolved value for substitution. Strings pass
// through (double-quoted in quote mode); everything else takes its
// JSON form.
func stringify(value interface{}, quote bool) string {
	if value == nil {
		return ""
	}

	if s, ok := value.(string); ok {
		if quote {
			quoted, err := json.Marshal(s)
			if err != nil {
				return s
			}
			return string(quoted)
		}
		return s
	}

	rendered, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return string(rendered)
}
