package models

// ResultMetadata is the envelope every integration result carries
type ResultMetadata struct {
	NodeType      string `json:"nodeType,omitempty"`
	Subtype       string `json:"subtype,omitempty"`
	ExecutionTime int64  `json:"executionTime"` // milliseconds
}

// Result is the outcome of one integration execution. Data is a
// structured-but-opaque payload; consumers reach into it only through
// the expression evaluator.
type Result struct {
	Success  bool                   `json:"success"`
	Data     map[string]interface{} `json:"data,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Metadata ResultMetadata         `json:"metadata"`
}

// AsMap renders the result as the nested key/value tree stored in the
// step record and addressable via $node.<id>.<path> expressions
func (r *Result) AsMap() map[string]interface{} {
	m := map[string]interface{}{
		"success": r.Success,
		"metadata": map[string]interface{}{
			"nodeType":      r.Metadata.NodeType,
			"subtype":       r.Metadata.Subtype,
			"executionTime": r.Metadata.ExecutionTime,
		},
	}
	if r.Data != nil {
		m["data"] = r.Data
	}
	if r.Error != "" {
		m["error"] = r.Error
	}
	return m
}
