// Package integration hosts the descriptor registry that adapts
// heterogeneous side-effecting operations behind a uniform contract:
// a typed config schema, an optional validator and an executor.
package integration

import (
	"context"

	"github.com/flowmesh/flowmesh/internal/models"
)

// FieldType enumerates the editor-facing types a schema field can take
type FieldType string

// Field types
const (
	FieldTypeText     FieldType = "text"
	FieldTypeTextarea FieldType = "textarea"
	FieldTypeSelect   FieldType = "select"
	FieldTypeNumber   FieldType = "number"
	FieldTypeBoolean  FieldType = "boolean"
	FieldTypeEmail    FieldType = "email"
	FieldTypeURL      FieldType = "url"
)

// SchemaField describes one configuration field of an integration.
// Validate, when set, runs against present values during config
// validation. SupportsExpressions is informational for the editor.
type SchemaField struct {
	Key                 string                  `json:"key"`
	Label               string                  `json:"label"`
	Type                FieldType               `json:"type"`
	Options             []string                `json:"options,omitempty"`
	SupportsExpressions bool                    `json:"supportsExpressions,omitempty"`
	Validate            func(interface{}) error `json:"-"`
}

// AuthDescriptor is informational metadata about an integration's
// authentication needs
type AuthDescriptor struct {
	Type   string   `json:"type"` // api_key | oauth2 | basic
	Fields []string `json:"fields,omitempty"`
}

// ExecuteFunc runs an integration against an already-hydrated config
type ExecuteFunc func(ctx context.Context, config map[string]interface{}, ec *models.ExecutionContext) (*models.Result, error)

// ValidateFunc is an integration-supplied config validator that
// overrides the default required-field check
type ValidateFunc func(config map[string]interface{}) *ValidationResult

// Descriptor binds an integration id to its schema, validator and
// executor
type Descriptor struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Category    models.NodeType `json:"category"`
	Version     string          `json:"version"`
	Schema      []SchemaField   `json:"schema,omitempty"`
	Required    []string        `json:"required,omitempty"`
	Auth        *AuthDescriptor `json:"auth,omitempty"`
	Execute     ExecuteFunc     `json:"-"`
	Validate    ValidateFunc    `json:"-"`
}

// ValidationResult is the outcome of config validation
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors,omitempty"`
}

// RegistryStats summarizes the registered catalog
type RegistryStats struct {
	Total        int            `json:"total"`
	ByCategory   map[string]int `json:"byCategory"`
	AuthRequired int            `json:"authRequired"`
}
