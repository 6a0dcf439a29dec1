package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flowmesh/flowmesh/internal/models"
)

// RegisterBuiltins installs the core integration portfolio into a
// registry: the three trigger types, variable and flow-control logic,
// and the data/HTTP actions.
func RegisterBuiltins(r *Registry) error {
	descriptors := []*Descriptor{
		manualTrigger(),
		webhookTrigger(),
		scheduleTrigger(),
		setVariable(),
		delay(),
		branchCondition(),
		filterCondition(),
		transformData(),
		apiRequest(),
	}
	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

func nowTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func stringConfig(config map[string]interface{}, key string) string {
	if v, ok := config[key].(string); ok {
		return v
	}
	return ""
}

func numberConfig(config map[string]interface{}, key string) (float64, bool) {
	switch v := config[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

func manualTrigger() *Descriptor {
	return &Descriptor{
		ID:          "manual_trigger",
		Name:        "Manual Trigger",
		Description: "Starts the workflow when an execution is requested explicitly",
		Category:    models.NodeTypeTrigger,
		Version:     "1.0.0",
		Execute: func(_ context.Context, _ map[string]interface{}, _ *models.ExecutionContext) (*models.Result, error) {
			return &models.Result{
				Success: true,
				Data: map[string]interface{}{
					"triggered":   true,
					"triggeredBy": "manual",
					"timestamp":   nowTimestamp(),
				},
			}, nil
		},
	}
}

func webhookTrigger() *Descriptor {
	return &Descriptor{
		ID:          "webhook_trigger",
		Name:        "Webhook Trigger",
		Description: "Launch point for webhook-driven runs; on-demand executions record the configured endpoint",
		Category:    models.NodeTypeTrigger,
		Version:     "1.0.0",
		Schema: []SchemaField{
			{Key: "path", Label: "Path", Type: FieldTypeText},
			{Key: "method", Label: "Method", Type: FieldTypeSelect, Options: []string{"GET", "POST", "PUT"}},
		},
		Execute: func(_ context.Context, config map[string]interface{}, _ *models.ExecutionContext) (*models.Result, error) {
			method := stringConfig(config, "method")
			if method == "" {
				method = "POST"
			}
			return &models.Result{
				Success: true,
				Data: map[string]interface{}{
					"triggered": true,
					"method":    method,
					"path":      stringConfig(config, "path"),
					"timestamp": nowTimestamp(),
				},
			}, nil
		},
	}
}

func scheduleTrigger() *Descriptor {
	return &Descriptor{
		ID:          "schedule_trigger",
		Name:        "Schedule Trigger",
		Description: "Launch point for scheduled runs; on-demand executions record the configured schedule",
		Category:    models.NodeTypeTrigger,
		Version:     "1.0.0",
		Schema: []SchemaField{
			{Key: "cron", Label: "Cron expression", Type: FieldTypeText},
		},
		Required: []string{"cron"},
		Execute: func(_ context.Context, config map[string]interface{}, _ *models.ExecutionContext) (*models.Result, error) {
			return &models.Result{
				Success: true,
				Data: map[string]interface{}{
					"triggered": true,
					"schedule":  stringConfig(config, "cron"),
					"timestamp": nowTimestamp(),
				},
			}, nil
		},
	}
}

func setVariable() *Descriptor {
	return &Descriptor{
		ID:          "set_variable",
		Name:        "Set Variable",
		Description: "Stores a named value for later {{$vars.name}} lookups; JSON-looking values are parsed into structures",
		Category:    models.NodeTypeLogic,
		Version:     "1.0.0",
		Schema: []SchemaField{
			{Key: "variableName", Label: "Variable name", Type: FieldTypeText},
			{Key: "value", Label: "Value", Type: FieldTypeTextarea, SupportsExpressions: true},
		},
		Required: []string{"variableName"},
		Execute: func(_ context.Context, config map[string]interface{}, _ *models.ExecutionContext) (*models.Result, error) {
			name := stringConfig(config, "variableName")
			if name == "" {
				return nil, fmt.Errorf("variableName is required")
			}
			return &models.Result{
				Success: true,
				Data: map[string]interface{}{
					"variableName": name,
					"value":        config["value"],
					"timestamp":    nowTimestamp(),
				},
			}, nil
		},
	}
}

// maxDelay bounds the sleep a single delay node can impose
const maxDelay = 5 * time.Minute

func delay() *Descriptor {
	return &Descriptor{
		ID:          "delay",
		Name:        "Delay",
		Description: "Pauses the execution for a fixed interval",
		Category:    models.NodeTypeLogic,
		Version:     "1.0.0",
		Schema: []SchemaField{
			{Key: "amount", Label: "Amount", Type: FieldTypeNumber, Validate: func(v interface{}) error {
				if n, ok := numberConfig(map[string]interface{}{"amount": v}, "amount"); !ok || n <= 0 {
					return fmt.Errorf("amount must be a positive number")
				}
				return nil
			}},
			{Key: "unit", Label: "Unit", Type: FieldTypeSelect, Options: []string{"seconds", "minutes", "hours"}},
		},
		Required: []string{"amount"},
		Execute: func(ctx context.Context, config map[string]interface{}, _ *models.ExecutionContext) (*models.Result, error) {
			amount, ok := numberConfig(config, "amount")
			if !ok || amount < 0 {
				return nil, fmt.Errorf("amount must be a non-negative number")
			}
			unit := stringConfig(config, "unit")
			if unit == "" {
				unit = "seconds"
			}

			var d time.Duration
			switch unit {
			case "seconds":
				d = time.Duration(amount * float64(time.Second))
			case "minutes":
				d = time.Duration(amount * float64(time.Minute))
			case "hours":
				d = time.Duration(amount * float64(time.Hour))
			default:
				return nil, fmt.Errorf("unknown unit %q", unit)
			}
			if d > maxDelay {
				d = maxDelay
			}

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(d):
			}

			return &models.Result{
				Success: true,
				Data: map[string]interface{}{
					"delayed":   true,
					"amount":    amount,
					"unit":      unit,
					"timestamp": nowTimestamp(),
				},
			}, nil
		},
	}
}

// ParseValue decodes a JSON-looking string into its structured form
// and returns anything else unchanged. Used for set_variable values so
// nested {{$vars.x.y}} lookups work on structured data.
func ParseValue(value interface{}) interface{} {
	s, ok := value.(string)
	if !ok {
		return value
	}
	var parsed interface{}
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return s
	}
	return parsed
}
