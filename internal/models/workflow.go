package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WorkflowStatus is the lifecycle state of a workflow definition
type WorkflowStatus string

// Workflow statuses
const (
	WorkflowStatusActive   WorkflowStatus = "active"
	WorkflowStatusInactive WorkflowStatus = "inactive"
)

// NodeType categorizes a node within a workflow graph
type NodeType string

// Node types
const (
	NodeTypeTrigger NodeType = "trigger"
	NodeTypeAction  NodeType = "action"
	NodeTypeLogic   NodeType = "logic"
)

// Position is the editor placement of a node. It is carried through
// storage untouched; the engine never reads it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a single step in a workflow graph. Subtype names the
// integration that executes it and Config is that integration's
// opaque configuration map.
type Node struct {
	ID       string                 `json:"id"`
	Type     NodeType               `json:"type"`
	Subtype  string                 `json:"subtype"`
	Config   map[string]interface{} `json:"config"`
	Position Position               `json:"position"`
}

// Edge is a directed connector between two nodes. SourceHandle
// carries the "true"/"false" label emitted by branch nodes; it is
// empty for unconditional edges.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
}

// NodeList is a JSONB-backed slice of nodes
type NodeList []Node

// Value implements driver.Valuer
func (n NodeList) Value() (driver.Value, error) {
	if n == nil {
		return json.Marshal([]Node{})
	}
	return json.Marshal(n)
}

// Scan implements sql.Scanner
func (n *NodeList) Scan(src interface{}) error {
	return scanJSON(src, n)
}

// EdgeList is a JSONB-backed slice of edges
type EdgeList []Edge

// Value implements driver.Valuer
func (e EdgeList) Value() (driver.Value, error) {
	if e == nil {
		return json.Marshal([]Edge{})
	}
	return json.Marshal(e)
}

// Scan implements sql.Scanner
func (e *EdgeList) Scan(src interface{}) error {
	return scanJSON(src, e)
}

// JSONMap is a JSONB-backed generic map, used for step results and
// execution context snapshots
type JSONMap map[string]interface{}

// Value implements driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *JSONMap) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	return scanJSON(src, m)
}

func scanJSON(src, dst interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported scan type %T", src)
	}
}

// Workflow is a persisted, acyclic directed graph of nodes describing
// an automation
type Workflow struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	Name      string         `json:"name" db:"name"`
	Nodes     NodeList       `json:"nodes" db:"nodes"`
	Edges     EdgeList       `json:"edges" db:"edges"`
	Status    WorkflowStatus `json:"status" db:"status"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// NodeByID returns the node with the given id, or nil
func (w *Workflow) NodeByID(id string) *Node {
	for i := range w.Nodes {
		if w.Nodes[i].ID == id {
			return &w.Nodes[i]
		}
	}
	return nil
}

// Validate checks structural invariants: unique node ids, edges that
// reference known nodes, no self loops, no duplicate edges. Acyclicity
// is enforced at execution time by the topological sort.
func (w *Workflow) Validate() error {
	nodeIDs := make(map[string]struct{}, len(w.Nodes))
	for _, n := range w.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node with empty id")
		}
		if _, dup := nodeIDs[n.ID]; dup {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}
		nodeIDs[n.ID] = struct{}{}
	}

	seen := make(map[string]struct{}, len(w.Edges))
	for _, e := range w.Edges {
		if e.Source == e.Target {
			return fmt.Errorf("edge %q is a self loop", e.ID)
		}
		if _, ok := nodeIDs[e.Source]; !ok {
			return fmt.Errorf("edge %q references unknown source %q", e.ID, e.Source)
		}
		if _, ok := nodeIDs[e.Target]; !ok {
			return fmt.Errorf("edge %q references unknown target %q", e.ID, e.Target)
		}
		key := e.Source + "\x00" + e.Target
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate edge %s -> %s", e.Source, e.Target)
		}
		seen[key] = struct{}{}
	}

	return nil
}
