package integration

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/flowmesh/flowmesh/internal/expression"
	"github.com/flowmesh/flowmesh/internal/models"
	"github.com/flowmesh/flowmesh/internal/observability"
)

// BranchConditionID is the integration whose config is hydrated in
// quote mode so substituted values form valid comparison expressions.
const BranchConditionID = "branch_condition"

// Registry is the keyed catalog of integration descriptors. It is an
// explicit dependency of the engine; there is no process-wide
// singleton.
type Registry struct {
	mu           sync.RWMutex
	integrations map[string]*Descriptor
	logger       observability.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger observability.Logger) *Registry {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Registry{
		integrations: make(map[string]*Descriptor),
		logger:       logger,
	}
}

// Register adds a descriptor to the catalog
func (r *Registry) Register(d *Descriptor) error {
	if d == nil {
		return fmt.Errorf("descriptor cannot be nil")
	}
	if d.ID == "" {
		return fmt.Errorf("descriptor id cannot be empty")
	}
	if d.Execute == nil {
		return fmt.Errorf("descriptor %q has no executor", d.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.integrations[d.ID]; exists {
		return fmt.Errorf("integration %q already registered", d.ID)
	}
	r.integrations[d.ID] = d
	return nil
}

// Unregister removes a descriptor from the catalog
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.integrations[id]; !exists {
		return false
	}
	delete(r.integrations, id)
	return true
}

// Get returns the descriptor for an id
func (r *Registry) Get(id string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.integrations[id]
	return d, ok
}

// All returns every descriptor, ordered by id
func (r *Registry) All() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Descriptor, 0, len(r.integrations))
	for _, d := range r.integrations {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ByCategory returns descriptors in the given category, ordered by id
func (r *Registry) ByCategory(category models.NodeType) []*Descriptor {
	var out []*Descriptor
	for _, d := range r.All() {
		if d.Category == category {
			out = append(out, d)
		}
	}
	return out
}

// ByVersion returns descriptors at the given version, ordered by id
func (r *Registry) ByVersion(version string) []*Descriptor {
	var out []*Descriptor
	for _, d := range r.All() {
		if d.Version == version {
			out = append(out, d)
		}
	}
	return out
}

// AuthRequired returns descriptors declaring an auth descriptor
func (r *Registry) AuthRequired() []*Descriptor {
	var out []*Descriptor
	for _, d := range r.All() {
		if d.Auth != nil {
			out = append(out, d)
		}
	}
	return out
}

// Search matches id, name and description case-insensitively
func (r *Registry) Search(query string) []*Descriptor {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return r.All()
	}

	var out []*Descriptor
	for _, d := range r.All() {
		if strings.Contains(strings.ToLower(d.ID), query) ||
			strings.Contains(strings.ToLower(d.Name), query) ||
			strings.Contains(strings.ToLower(d.Description), query) {
			out = append(out, d)
		}
	}
	return out
}

// Stats summarizes the catalog
func (r *Registry) Stats() RegistryStats {
	all := r.All()
	stats := RegistryStats{
		Total:      len(all),
		ByCategory: make(map[string]int),
	}
	for _, d := range all {
		stats.ByCategory[string(d.Category)]++
		if d.Auth != nil {
			stats.AuthRequired++
		}
	}
	return stats
}

// ValidateConfig validates a raw config against the integration's
// schema. The integration's own validator wins when present;
// otherwise every required key must be present and truthy, and each
// field validator runs against present values.
func (r *Registry) ValidateConfig(id string, config map[string]interface{}) *ValidationResult {
	d, ok := r.Get(id)
	if !ok {
		return &ValidationResult{
			Valid:  false,
			Errors: map[string]string{"integration": fmt.Sprintf("Integration '%s' not found", id)},
		}
	}

	if d.Validate != nil {
		return d.Validate(config)
	}

	errs := make(map[string]string)
	for _, key := range d.Required {
		if !truthy(config[key]) {
			errs[key] = fmt.Sprintf("%s is required", key)
		}
	}
	for _, field := range d.Schema {
		if field.Validate == nil {
			continue
		}
		value, present := config[field.Key]
		if !present {
			continue
		}
		if err := field.Validate(value); err != nil {
			errs[field.Key] = err.Error()
		}
	}

	if len(errs) > 0 {
		return &ValidationResult{Valid: false, Errors: errs}
	}
	return &ValidationResult{Valid: true}
}

// ExecuteIntegration hydrates the config, dispatches to the executor
// and enriches the result with timing metadata. Executor errors and
// panics never escape: they come back as unsuccessful results.
func (r *Registry) ExecuteIntegration(ctx context.Context, id string, config map[string]interface{}, ec *models.ExecutionContext) *models.Result {
	d, ok := r.Get(id)
	if !ok {
		return &models.Result{
			Success:  false,
			Error:    fmt.Sprintf("Integration '%s' not found", id),
			Metadata: models.ResultMetadata{NodeType: "unknown"},
		}
	}

	hydrated := expression.HydrateConfigMap(config, ec, id == BranchConditionID)

	start := time.Now()
	result := r.dispatch(ctx, d, hydrated, ec)
	result.Metadata.NodeType = string(d.Category)
	result.Metadata.Subtype = id
	result.Metadata.ExecutionTime = time.Since(start).Milliseconds()

	if result.Success {
		r.checkOutputShape(id, result)
	}

	return result
}

// dispatch invokes the executor, converting returned errors and
// panics into unsuccessful results
func (r *Registry) dispatch(ctx context.Context, d *Descriptor, config map[string]interface{}, ec *models.ExecutionContext) (result *models.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Integration panicked", map[string]interface{}{
				"integration": d.ID,
				"panic":       fmt.Sprintf("%v", rec),
			})
			result = &models.Result{
				Success: false,
				Error:   fmt.Sprintf("%v", rec),
			}
		}
	}()

	res, err := d.Execute(ctx, config, ec)
	if err != nil {
		return &models.Result{Success: false, Error: err.Error()}
	}
	if res == nil {
		return &models.Result{Success: false, Error: fmt.Sprintf("integration %q returned no result", d.ID)}
	}
	return res
}

// checkOutputShape verifies the output contract every successful
// integration result honors: a data payload carrying a string
// timestamp. Violations log a warning but the result passes through
// unchanged.
func (r *Registry) checkOutputShape(id string, result *models.Result) {
	if result.Data == nil {
		r.logger.Warn("Integration result missing data payload", map[string]interface{}{
			"integration": id,
		})
		return
	}
	if _, ok := result.Data["timestamp"].(string); !ok {
		r.logger.Warn("Integration result missing string timestamp", map[string]interface{}{
			"integration": id,
		})
	}
}

// truthy mirrors the loose required-field check applied to configs:
// nil, empty strings, false, zero numbers and empty collections fail.
func truthy(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case []interface{}:
		return len(v) > 0
	case map[string]interface{}:
		return len(v) > 0
	default:
		return true
	}
}
