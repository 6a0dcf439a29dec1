package integration

import (
	"context"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/flowmesh/flowmesh/internal/models"
)

// normalizeCondition rewrites JS-style strict comparisons into the
// forms the expression compiler accepts. Hydration has already
// substituted {{ ... }} references, quoting string values.
func normalizeCondition(condition string) string {
	condition = strings.ReplaceAll(condition, "===", "==")
	condition = strings.ReplaceAll(condition, "!==", "!=")
	return strings.TrimSpace(condition)
}

// evaluateCondition compiles and runs a boolean condition
func evaluateCondition(condition string) (bool, error) {
	normalized := normalizeCondition(condition)
	if normalized == "" {
		return false, fmt.Errorf("condition is empty")
	}

	program, err := expr.Compile(normalized)
	if err != nil {
		return false, fmt.Errorf("invalid condition %q: %w", condition, err)
	}

	output, err := expr.Run(program, nil)
	if err != nil {
		return false, fmt.Errorf("condition %q failed: %w", condition, err)
	}

	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not evaluate to a boolean", condition)
	}
	return result, nil
}

func branchCondition() *Descriptor {
	return &Descriptor{
		ID:          BranchConditionID,
		Name:        "Branch Condition",
		Description: "Evaluates a boolean condition; downstream nodes on the losing true/false edge are skipped",
		Category:    models.NodeTypeLogic,
		Version:     "1.0.0",
		Schema: []SchemaField{
			{Key: "condition", Label: "Condition", Type: FieldTypeTextarea, SupportsExpressions: true},
		},
		Required: []string{"condition"},
		Execute: func(_ context.Context, config map[string]interface{}, _ *models.ExecutionContext) (*models.Result, error) {
			condition := stringConfig(config, "condition")
			result, err := evaluateCondition(condition)
			if err != nil {
				return nil, err
			}
			return &models.Result{
				Success: true,
				Data: map[string]interface{}{
					"result":    result,
					"condition": condition,
					"timestamp": nowTimestamp(),
				},
			}, nil
		},
	}
}

func filterCondition() *Descriptor {
	return &Descriptor{
		ID:          "filter_condition",
		Name:        "Filter Condition",
		Description: "Evaluates a boolean predicate and records whether the execution data passed it",
		Category:    models.NodeTypeLogic,
		Version:     "1.0.0",
		Schema: []SchemaField{
			{Key: "condition", Label: "Condition", Type: FieldTypeTextarea, SupportsExpressions: true},
		},
		Required: []string{"condition"},
		Execute: func(_ context.Context, config map[string]interface{}, _ *models.ExecutionContext) (*models.Result, error) {
			condition := stringConfig(config, "condition")
			passed, err := evaluateCondition(condition)
			if err != nil {
				return nil, err
			}
			return &models.Result{
				Success: true,
				Data: map[string]interface{}{
					"passed":    passed,
					"condition": condition,
					"timestamp": nowTimestamp(),
				},
			}, nil
		},
	}
}
