// Package store persists frameworks, the node-type catalog, and execution
// results in a relational database. Two implementations are provided:
// SQLite for single-process deployments and Postgres for shared ones.
package store

import (
	"context"
	"errors"

	"github.com/amiddlebrook/agentgraph/pkg/agentgraph"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates the requested row doesn't exist.
	ErrNotFound = errors.New("store: not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("store: closed")
)

// NodeTypeDef is a catalog entry describing a node type the editor can
// place on the canvas, with default configuration for new nodes.
type NodeTypeDef struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Category    string         `json:"category,omitempty"`
	Description string         `json:"description,omitempty"`
	Defaults    map[string]any `json:"defaults,omitempty"`
}

// Store is the persistence contract. Implementations must be safe for
// concurrent use.
//
// Deleting a framework cascades to its nodes, edges, test results, and
// execution logs. Updating a framework replaces its node/edge sets
// wholesale inside one transaction.
type Store interface {
	// Init creates the schema if it doesn't exist.
	Init(ctx context.Context) error

	// Frameworks.
	CreateFramework(ctx context.Context, fw *agentgraph.Framework) error
	GetFramework(ctx context.Context, id string) (*agentgraph.Framework, error)
	ListFrameworks(ctx context.Context) ([]agentgraph.Framework, error)
	UpdateFramework(ctx context.Context, fw *agentgraph.Framework) error
	DeleteFramework(ctx context.Context, id string) error

	// Results. SaveResult also folds the run into the framework's
	// aggregate metrics.
	SaveResult(ctx context.Context, res *agentgraph.ExecutionResult) error
	ListResults(ctx context.Context, frameworkID string) ([]agentgraph.ExecutionResult, error)

	// Node-type catalog.
	CreateNodeType(ctx context.Context, nt *NodeTypeDef) error
	ListNodeTypes(ctx context.Context) ([]NodeTypeDef, error)
	UpdateNodeType(ctx context.Context, nt *NodeTypeDef) error
	DeleteNodeType(ctx context.Context, id string) error

	// Close releases any resources (connections, files).
	Close() error
}
