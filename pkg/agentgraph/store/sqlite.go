package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/amiddlebrook/agentgraph/pkg/agentgraph"
)

// sqliteSchema is the full relational schema. Child tables cascade on
// framework deletion; execution logs cascade on result deletion.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS frameworks (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	avg_latency REAL NOT NULL DEFAULT 0,
	success_rate REAL NOT NULL DEFAULT 0,
	total_runs INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS nodes (
	id TEXT NOT NULL,
	framework_id TEXT NOT NULL REFERENCES frameworks(id) ON DELETE CASCADE,
	type TEXT NOT NULL,
	pos_x REAL NOT NULL DEFAULT 0,
	pos_y REAL NOT NULL DEFAULT 0,
	label TEXT NOT NULL DEFAULT '',
	config TEXT NOT NULL DEFAULT '{}',
	custom_code TEXT NOT NULL DEFAULT '',
	seq INTEGER NOT NULL,
	PRIMARY KEY (framework_id, id)
);

CREATE TABLE IF NOT EXISTS edges (
	id TEXT NOT NULL,
	framework_id TEXT NOT NULL REFERENCES frameworks(id) ON DELETE CASCADE,
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT '',
	seq INTEGER NOT NULL,
	PRIMARY KEY (framework_id, id)
);

CREATE TABLE IF NOT EXISTS node_types (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	defaults TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS test_results (
	id TEXT PRIMARY KEY,
	framework_id TEXT NOT NULL REFERENCES frameworks(id) ON DELETE CASCADE,
	timestamp TEXT NOT NULL,
	test_input TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	success INTEGER NOT NULL,
	latency INTEGER NOT NULL,
	total_tokens INTEGER NOT NULL,
	total_cost REAL NOT NULL,
	output TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS execution_logs (
	result_id TEXT NOT NULL REFERENCES test_results(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	node_id TEXT NOT NULL,
	input TEXT NOT NULL DEFAULT '',
	output TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT '',
	tokens INTEGER NOT NULL DEFAULT 0,
	latency_ms INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (result_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_nodes_framework ON nodes(framework_id);
CREATE INDEX IF NOT EXISTS idx_edges_framework ON edges(framework_id);
CREATE INDEX IF NOT EXISTS idx_results_framework ON test_results(framework_id);
`

// SQLiteStore persists frameworks and results to SQLite.
// Suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path. Use ":memory:"
// for testing. Foreign keys are enabled explicitly because SQLite defaults
// them off; cascade deletion depends on it.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Init implements Store.
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// CreateFramework implements Store.
func (s *SQLiteStore) CreateFramework(ctx context.Context, fw *agentgraph.Framework) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO frameworks (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		fw.ID, fw.Name, fw.Description, now, now,
	); err != nil {
		return fmt.Errorf("insert framework: %w", err)
	}

	if err := insertGraphSQLite(ctx, tx, fw); err != nil {
		return err
	}

	return tx.Commit()
}

// insertGraphSQLite writes the node and edge rows, keeping declaration
// order in the seq column.
func insertGraphSQLite(ctx context.Context, tx *sql.Tx, fw *agentgraph.Framework) error {
	for i, n := range fw.Nodes {
		cfg, err := marshalMap(n.Data.Config)
		if err != nil {
			return fmt.Errorf("marshal node %s config: %w", n.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO nodes (id, framework_id, type, pos_x, pos_y, label, config, custom_code, seq)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			n.ID, fw.ID, string(n.Type), n.Position.X, n.Position.Y, n.Data.Label, cfg, n.Data.CustomCode, i,
		); err != nil {
			return fmt.Errorf("insert node %s: %w", n.ID, err)
		}
	}
	for i, e := range fw.Edges {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO edges (id, framework_id, source, target, type, seq) VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, fw.ID, e.Source, e.Target, e.Type, i,
		); err != nil {
			return fmt.Errorf("insert edge %s: %w", e.ID, err)
		}
	}
	return nil
}

// GetFramework implements Store.
func (s *SQLiteStore) GetFramework(ctx context.Context, id string) (*agentgraph.Framework, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	fw := &agentgraph.Framework{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT name, description, avg_latency, success_rate, total_runs FROM frameworks WHERE id = ?`, id,
	).Scan(&fw.Name, &fw.Description, &fw.Metrics.AvgLatency, &fw.Metrics.SuccessRate, &fw.Metrics.TotalRuns)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query framework: %w", err)
	}

	if err := s.loadGraph(ctx, fw); err != nil {
		return nil, err
	}
	return fw, nil
}

// loadGraph hydrates nodes and edges in declaration order.
func (s *SQLiteStore) loadGraph(ctx context.Context, fw *agentgraph.Framework) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, pos_x, pos_y, label, config, custom_code FROM nodes WHERE framework_id = ? ORDER BY seq`, fw.ID)
	if err != nil {
		return fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var n agentgraph.Node
		var typ, cfg string
		if err := rows.Scan(&n.ID, &typ, &n.Position.X, &n.Position.Y, &n.Data.Label, &cfg, &n.Data.CustomCode); err != nil {
			return fmt.Errorf("scan node: %w", err)
		}
		n.Type = agentgraph.NodeType(typ)
		if n.Data.Config, err = unmarshalMap(cfg); err != nil {
			return fmt.Errorf("node %s config: %w", n.ID, err)
		}
		fw.Nodes = append(fw.Nodes, n)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate nodes: %w", err)
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT id, source, target, type FROM edges WHERE framework_id = ? ORDER BY seq`, fw.ID)
	if err != nil {
		return fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e agentgraph.Edge
		if err := rows.Scan(&e.ID, &e.Source, &e.Target, &e.Type); err != nil {
			return fmt.Errorf("scan edge: %w", err)
		}
		fw.Edges = append(fw.Edges, e)
	}
	return rows.Err()
}

// ListFrameworks implements Store.
func (s *SQLiteStore) ListFrameworks(ctx context.Context) ([]agentgraph.Framework, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, avg_latency, success_rate, total_runs FROM frameworks ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query frameworks: %w", err)
	}
	defer rows.Close()

	var fws []agentgraph.Framework
	for rows.Next() {
		var fw agentgraph.Framework
		if err := rows.Scan(&fw.ID, &fw.Name, &fw.Description,
			&fw.Metrics.AvgLatency, &fw.Metrics.SuccessRate, &fw.Metrics.TotalRuns); err != nil {
			return nil, fmt.Errorf("scan framework: %w", err)
		}
		fws = append(fws, fw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate frameworks: %w", err)
	}

	for i := range fws {
		if err := s.loadGraph(ctx, &fws[i]); err != nil {
			return nil, err
		}
	}
	return fws, nil
}

// UpdateFramework implements Store. The node/edge sets are replaced
// wholesale inside one transaction so a crash mid-update cannot leave a
// framework without its graph.
func (s *SQLiteStore) UpdateFramework(ctx context.Context, fw *agentgraph.Framework) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE frameworks SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		fw.Name, fw.Description, time.Now().UTC().Format(time.RFC3339Nano), fw.ID)
	if err != nil {
		return fmt.Errorf("update framework: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE framework_id = ?`, fw.ID); err != nil {
		return fmt.Errorf("delete edges: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE framework_id = ?`, fw.ID); err != nil {
		return fmt.Errorf("delete nodes: %w", err)
	}
	if err := insertGraphSQLite(ctx, tx, fw); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteFramework implements Store. Child rows cascade.
func (s *SQLiteStore) DeleteFramework(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM frameworks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete framework: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveResult implements Store. The result row, its log rows, and the
// framework's aggregate metrics are written in one transaction.
func (s *SQLiteStore) SaveResult(ctx context.Context, res *agentgraph.ExecutionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO test_results (id, framework_id, timestamp, test_input, status, success, latency, total_tokens, total_cost, output)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.FrameworkID, res.Timestamp.UTC().Format(time.RFC3339Nano), res.TestInput,
		res.Status, boolToInt(res.Success), res.Latency, res.TotalTokens, res.TotalCost, res.Output,
	); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}

	for i, l := range res.Logs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO execution_logs (result_id, seq, node_id, input, output, model, tokens, latency_ms, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.ID, i, l.NodeID, l.Input, l.Output, l.Model, l.Tokens, l.LatencyMs, l.Error,
		); err != nil {
			return fmt.Errorf("insert log %d: %w", i, err)
		}
	}

	// Fold the run into the framework's aggregates. SET expressions read
	// the pre-update row, so total_runs here is the old count.
	if _, err := tx.ExecContext(ctx,
		`UPDATE frameworks SET
			avg_latency = (avg_latency * total_runs + ?) / (total_runs + 1),
			success_rate = (success_rate * total_runs + ?) / (total_runs + 1),
			total_runs = total_runs + 1
		 WHERE id = ?`,
		float64(res.Latency), boolToFloat(res.Success), res.FrameworkID,
	); err != nil {
		return fmt.Errorf("update metrics: %w", err)
	}

	return tx.Commit()
}

// ListResults implements Store, newest first, with logs and the per-node
// maps rebuilt from the log rows.
func (s *SQLiteStore) ListResults(ctx context.Context, frameworkID string) ([]agentgraph.ExecutionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, test_input, status, success, latency, total_tokens, total_cost, output
		 FROM test_results WHERE framework_id = ? ORDER BY timestamp DESC`, frameworkID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []agentgraph.ExecutionResult
	for rows.Next() {
		res := agentgraph.ExecutionResult{FrameworkID: frameworkID}
		var ts string
		var success int
		if err := rows.Scan(&res.ID, &ts, &res.TestInput, &res.Status, &success,
			&res.Latency, &res.TotalTokens, &res.TotalCost, &res.Output); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		res.Success = success != 0
		res.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}

	for i := range results {
		if err := s.loadLogs(ctx, &results[i]); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// loadLogs hydrates one result's log rows and rebuilds its per-node maps.
func (s *SQLiteStore) loadLogs(ctx context.Context, res *agentgraph.ExecutionResult) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT node_id, input, output, model, tokens, latency_ms, error
		 FROM execution_logs WHERE result_id = ? ORDER BY seq`, res.ID)
	if err != nil {
		return fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	res.NodeTimings = make(map[string]int64)
	res.NodeOutputs = make(map[string]string)
	for rows.Next() {
		var l agentgraph.ExecutionLog
		if err := rows.Scan(&l.NodeID, &l.Input, &l.Output, &l.Model, &l.Tokens, &l.LatencyMs, &l.Error); err != nil {
			return fmt.Errorf("scan log: %w", err)
		}
		res.Logs = append(res.Logs, l)
		res.NodeTimings[l.NodeID] = l.LatencyMs
		res.NodeOutputs[l.NodeID] = l.Output
	}
	return rows.Err()
}

// CreateNodeType implements Store.
func (s *SQLiteStore) CreateNodeType(ctx context.Context, nt *NodeTypeDef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	defaults, err := marshalMap(nt.Defaults)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO node_types (id, name, category, description, defaults) VALUES (?, ?, ?, ?, ?)`,
		nt.ID, nt.Name, nt.Category, nt.Description, defaults,
	); err != nil {
		return fmt.Errorf("insert node type: %w", err)
	}
	return nil
}

// ListNodeTypes implements Store.
func (s *SQLiteStore) ListNodeTypes(ctx context.Context) ([]NodeTypeDef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, category, description, defaults FROM node_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query node types: %w", err)
	}
	defer rows.Close()

	var types []NodeTypeDef
	for rows.Next() {
		var nt NodeTypeDef
		var defaults string
		if err := rows.Scan(&nt.ID, &nt.Name, &nt.Category, &nt.Description, &defaults); err != nil {
			return nil, fmt.Errorf("scan node type: %w", err)
		}
		if nt.Defaults, err = unmarshalMap(defaults); err != nil {
			return nil, fmt.Errorf("node type %s defaults: %w", nt.ID, err)
		}
		types = append(types, nt)
	}
	return types, rows.Err()
}

// UpdateNodeType implements Store.
func (s *SQLiteStore) UpdateNodeType(ctx context.Context, nt *NodeTypeDef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	defaults, err := marshalMap(nt.Defaults)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE node_types SET name = ?, category = ?, description = ?, defaults = ? WHERE id = ?`,
		nt.Name, nt.Category, nt.Description, defaults, nt.ID)
	if err != nil {
		return fmt.Errorf("update node type: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteNodeType implements Store.
func (s *SQLiteStore) DeleteNodeType(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM node_types WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete node type: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// marshalMap encodes a possibly-nil map as JSON text.
func marshalMap(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unmarshalMap decodes JSON text into a map, treating empty text as empty.
func unmarshalMap(s string) (map[string]any, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
