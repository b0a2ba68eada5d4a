package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amiddlebrook/agentgraph/pkg/agentgraph"
)

// postgresSchema mirrors the SQLite schema with Postgres types.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS frameworks (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	avg_latency DOUBLE PRECISION NOT NULL DEFAULT 0,
	success_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_runs BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS nodes (
	id TEXT NOT NULL,
	framework_id TEXT NOT NULL REFERENCES frameworks(id) ON DELETE CASCADE,
	type TEXT NOT NULL,
	pos_x DOUBLE PRECISION NOT NULL DEFAULT 0,
	pos_y DOUBLE PRECISION NOT NULL DEFAULT 0,
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
	timestamp TIMESTAMPTZ NOT NULL,
	test_input TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	success BOOLEAN NOT NULL,
	latency BIGINT NOT NULL,
	total_tokens BIGINT NOT NULL,
	total_cost DOUBLE PRECISION NOT NULL,
	output TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS execution_logs (
	result_id TEXT NOT NULL REFERENCES test_results(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	node_id TEXT NOT NULL,
	input TEXT NOT NULL DEFAULT '',
	output TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT '',
	tokens BIGINT NOT NULL DEFAULT 0,
	latency_ms BIGINT NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (result_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_nodes_framework ON nodes(framework_id);
CREATE INDEX IF NOT EXISTS idx_edges_framework ON edges(framework_id);
CREATE INDEX IF NOT EXISTS idx_results_framework ON test_results(framework_id);
`

// PostgresStore persists frameworks and results to Postgres via a pgx
// connection pool. Use for multi-process deployments.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to the database named by connString
// (a libpq-style URL or DSN).
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Init implements Store.
func (s *PostgresStore) Init(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// CreateFramework implements Store.
func (s *PostgresStore) CreateFramework(ctx context.Context, fw *agentgraph.Framework) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`INSERT INTO frameworks (id, name, description, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		fw.ID, fw.Name, fw.Description, now, now,
	); err != nil {
		return fmt.Errorf("insert framework: %w", err)
	}

	if err := insertGraphPostgres(ctx, tx, fw); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func insertGraphPostgres(ctx context.Context, tx pgx.Tx, fw *agentgraph.Framework) error {
	for i, n := range fw.Nodes {
		cfg, err := marshalMap(n.Data.Config)
		if err != nil {
			return fmt.Errorf("marshal node %s config: %w", n.ID, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO nodes (id, framework_id, type, pos_x, pos_y, label, config, custom_code, seq)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			n.ID, fw.ID, string(n.Type), n.Position.X, n.Position.Y, n.Data.Label, cfg, n.Data.CustomCode, i,
		); err != nil {
			return fmt.Errorf("insert node %s: %w", n.ID, err)
		}
	}
	for i, e := range fw.Edges {
		if _, err := tx.Exec(ctx,
			`INSERT INTO edges (id, framework_id, source, target, type, seq) VALUES ($1, $2, $3, $4, $5, $6)`,
			e.ID, fw.ID, e.Source, e.Target, e.Type, i,
		); err != nil {
			return fmt.Errorf("insert edge %s: %w", e.ID, err)
		}
	}
	return nil
}

// GetFramework implements Store.
func (s *PostgresStore) GetFramework(ctx context.Context, id string) (*agentgraph.Framework, error) {
	fw := &agentgraph.Framework{ID: id}
	err := s.pool.QueryRow(ctx,
		`SELECT name, description, avg_latency, success_rate, total_runs FROM frameworks WHERE id = $1`, id,
	).Scan(&fw.Name, &fw.Description, &fw.Metrics.AvgLatency, &fw.Metrics.SuccessRate, &fw.Metrics.TotalRuns)
	if errors.Is(err, pgx.ErrNoRows) {
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

func (s *PostgresStore) loadGraph(ctx context.Context, fw *agentgraph.Framework) error {
	rows, err := s.pool.Query(ctx,
		`SELECT id, type, pos_x, pos_y, label, config, custom_code FROM nodes WHERE framework_id = $1 ORDER BY seq`, fw.ID)
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
	rows.Close()

	rows, err = s.pool.Query(ctx,
		`SELECT id, source, target, type FROM edges WHERE framework_id = $1 ORDER BY seq`, fw.ID)
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
func (s *PostgresStore) ListFrameworks(ctx context.Context) ([]agentgraph.Framework, error) {
	rows, err := s.pool.Query(ctx,
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
	rows.Close()

	for i := range fws {
		if err := s.loadGraph(ctx, &fws[i]); err != nil {
			return nil, err
		}
	}
	return fws, nil
}

// UpdateFramework implements Store.
func (s *PostgresStore) UpdateFramework(ctx context.Context, fw *agentgraph.Framework) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE frameworks SET name = $1, description = $2, updated_at = $3 WHERE id = $4`,
		fw.Name, fw.Description, time.Now().UTC(), fw.ID)
	if err != nil {
		return fmt.Errorf("update framework: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM edges WHERE framework_id = $1`, fw.ID); err != nil {
		return fmt.Errorf("delete edges: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM nodes WHERE framework_id = $1`, fw.ID); err != nil {
		return fmt.Errorf("delete nodes: %w", err)
	}
	if err := insertGraphPostgres(ctx, tx, fw); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// DeleteFramework implements Store.
func (s *PostgresStore) DeleteFramework(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM frameworks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete framework: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveResult implements Store.
func (s *PostgresStore) SaveResult(ctx context.Context, res *agentgraph.ExecutionResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO test_results (id, framework_id, timestamp, test_input, status, success, latency, total_tokens, total_cost, output)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		res.ID, res.FrameworkID, res.Timestamp.UTC(), res.TestInput,
		res.Status, res.Success, res.Latency, res.TotalTokens, res.TotalCost, res.Output,
	); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}

	for i, l := range res.Logs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO execution_logs (result_id, seq, node_id, input, output, model, tokens, latency_ms, error)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			res.ID, i, l.NodeID, l.Input, l.Output, l.Model, l.Tokens, l.LatencyMs, l.Error,
		); err != nil {
			return fmt.Errorf("insert log %d: %w", i, err)
		}
	}

	// SET expressions read the pre-update row, so total_runs here is the
	// old count.
	if _, err := tx.Exec(ctx,
		`UPDATE frameworks SET
			avg_latency = (avg_latency * total_runs + $1) / (total_runs + 1),
			success_rate = (success_rate * total_runs + $2) / (total_runs + 1),
			total_runs = total_runs + 1
		 WHERE id = $3`,
		float64(res.Latency), boolToFloat(res.Success), res.FrameworkID,
	); err != nil {
		return fmt.Errorf("update metrics: %w", err)
	}

	return tx.Commit(ctx)
}

// ListResults implements Store.
func (s *PostgresStore) ListResults(ctx context.Context, frameworkID string) ([]agentgraph.ExecutionResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, timestamp, test_input, status, success, latency, total_tokens, total_cost, output
		 FROM test_results WHERE framework_id = $1 ORDER BY timestamp DESC`, frameworkID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []agentgraph.ExecutionResult
	for rows.Next() {
		res := agentgraph.ExecutionResult{FrameworkID: frameworkID}
		if err := rows.Scan(&res.ID, &res.Timestamp, &res.TestInput, &res.Status, &res.Success,
			&res.Latency, &res.TotalTokens, &res.TotalCost, &res.Output); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	rows.Close()

	for i := range results {
		if err := s.loadLogs(ctx, &results[i]); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (s *PostgresStore) loadLogs(ctx context.Context, res *agentgraph.ExecutionResult) error {
	rows, err := s.pool.Query(ctx,
		`SELECT node_id, input, output, model, tokens, latency_ms, error
		 FROM execution_logs WHERE result_id = $1 ORDER BY seq`, res.ID)
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
func (s *PostgresStore) CreateNodeType(ctx context.Context, nt *NodeTypeDef) error {
	defaults, err := marshalMap(nt.Defaults)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO node_types (id, name, category, description, defaults) VALUES ($1, $2, $3, $4, $5)`,
		nt.ID, nt.Name, nt.Category, nt.Description, defaults,
	); err != nil {
		return fmt.Errorf("insert node type: %w", err)
	}
	return nil
}

// ListNodeTypes implements Store.
func (s *PostgresStore) ListNodeTypes(ctx context.Context) ([]NodeTypeDef, error) {
	rows, err := s.pool.Query(ctx,
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
func (s *PostgresStore) UpdateNodeType(ctx context.Context, nt *NodeTypeDef) error {
	defaults, err := marshalMap(nt.Defaults)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE node_types SET name = $1, category = $2, description = $3, defaults = $4 WHERE id = $5`,
		nt.Name, nt.Category, nt.Description, defaults, nt.ID)
	if err != nil {
		return fmt.Errorf("update node type: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteNodeType implements Store.
func (s *PostgresStore) DeleteNodeType(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM node_types WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete node type: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
