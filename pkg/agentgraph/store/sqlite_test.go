package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amiddlebrook/agentgraph/pkg/agentgraph"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Init(context.Background()))
	return st
}

func sampleFramework(id string) *agentgraph.Framework {
	return &agentgraph.Framework{
		ID:          id,
		Name:        "sample",
		Description: "a test pipeline",
		Nodes: []agentgraph.Node{
			{
				ID:       "in",
				Type:     agentgraph.NodeInput,
				Position: agentgraph.Position{X: 10, Y: 20},
				Data:     agentgraph.NodeData{Label: "Input"},
			},
			{
				ID:   "agent",
				Type: agentgraph.NodeAgent,
				Data: agentgraph.NodeData{
					Label:  "Agent",
					Config: map[string]any{"model": "openai/gpt-4o-mini", "temperature": 0.3},
				},
			},
			{
				ID:   "out",
				Type: agentgraph.NodeOutput,
				Data: agentgraph.NodeData{Label: "Output"},
			},
		},
		Edges: []agentgraph.Edge{
			{ID: "e1", Source: "in", Target: "agent"},
			{ID: "e2", Source: "agent", Target: "out"},
		},
	}
}

func sampleResult(id, frameworkID string, success bool) *agentgraph.ExecutionResult {
	status := agentgraph.StatusCompleted
	return &agentgraph.ExecutionResult{
		ID:          id,
		FrameworkID: frameworkID,
		Timestamp:   time.Now().UTC(),
		TestInput:   "hello",
		Status:      status,
		Success:     success,
		Latency:     120,
		TotalTokens: 42,
		TotalCost:   0.0021,
		Output:      "HELLO",
		Logs: []agentgraph.ExecutionLog{
			{NodeID: "in", Input: "hello", Output: "hello", LatencyMs: 1},
			{NodeID: "agent", Input: "hello", Output: "HELLO", Model: "openai/gpt-4o-mini", Tokens: 42, LatencyMs: 100},
			{NodeID: "out", Input: "HELLO", Output: "HELLO", LatencyMs: 1},
		},
	}
}

func TestSQLiteStore_FrameworkRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	fw := sampleFramework("fw-1")
	require.NoError(t, st.CreateFramework(ctx, fw))

	got, err := st.GetFramework(ctx, "fw-1")
	require.NoError(t, err)

	assert.Equal(t, fw.Name, got.Name)
	assert.Equal(t, fw.Description, got.Description)
	require.Len(t, got.Nodes, 3)
	require.Len(t, got.Edges, 2)

	// Declaration order survives the round trip.
	assert.Equal(t, "in", got.Nodes[0].ID)
	assert.Equal(t, "agent", got.Nodes[1].ID)
	assert.Equal(t, "out", got.Nodes[2].ID)
	assert.Equal(t, "e1", got.Edges[0].ID)

	assert.Equal(t, agentgraph.Position{X: 10, Y: 20}, got.Nodes[0].Position)
	assert.Equal(t, "openai/gpt-4o-mini", got.Nodes[1].Data.Config["model"])
	assert.InDelta(t, 0.3, got.Nodes[1].Data.Config["temperature"], 1e-9)
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	st := newTestStore(t)

	_, err := st.GetFramework(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_List(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateFramework(ctx, sampleFramework("fw-a")))
	require.NoError(t, st.CreateFramework(ctx, sampleFramework("fw-b")))

	fws, err := st.ListFrameworks(ctx)
	require.NoError(t, err)
	require.Len(t, fws, 2)
	assert.Len(t, fws[0].Nodes, 3)
}

func TestSQLiteStore_UpdateReplacesGraph(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	fw := sampleFramework("fw-1")
	require.NoError(t, st.CreateFramework(ctx, fw))

	fw.Name = "renamed"
	fw.Nodes = fw.Nodes[:2] // drop the output node
	fw.Edges = fw.Edges[:1]
	require.NoError(t, st.UpdateFramework(ctx, fw))

	got, err := st.GetFramework(ctx, "fw-1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Len(t, got.Nodes, 2)
	assert.Len(t, got.Edges, 1)
}

func TestSQLiteStore_UpdateMissing(t *testing.T) {
	st := newTestStore(t)

	err := st.UpdateFramework(context.Background(), sampleFramework("ghost"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_DeleteCascades(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	fw := sampleFramework("fw-1")
	require.NoError(t, st.CreateFramework(ctx, fw))
	require.NoError(t, st.SaveResult(ctx, sampleResult("res-1", "fw-1", true)))

	require.NoError(t, st.DeleteFramework(ctx, "fw-1"))

	_, err := st.GetFramework(ctx, "fw-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Results and their logs are gone with the framework.
	results, err := st.ListResults(ctx, "fw-1")
	require.NoError(t, err)
	assert.Empty(t, results)

	var nodes, logs int
	require.NoError(t, st.db.QueryRow(`SELECT COUNT(*) FROM nodes`).Scan(&nodes))
	require.NoError(t, st.db.QueryRow(`SELECT COUNT(*) FROM execution_logs`).Scan(&logs))
	assert.Zero(t, nodes)
	assert.Zero(t, logs)
}

func TestSQLiteStore_DeleteMissing(t *testing.T) {
	st := newTestStore(t)
	err := st.DeleteFramework(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_SaveResultRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateFramework(ctx, sampleFramework("fw-1")))
	res := sampleResult("res-1", "fw-1", true)
	require.NoError(t, st.SaveResult(ctx, res))

	results, err := st.ListResults(ctx, "fw-1")
	require.NoError(t, err)
	require.Len(t, results, 1)

	got := results[0]
	assert.Equal(t, "res-1", got.ID)
	assert.Equal(t, agentgraph.StatusCompleted, got.Status)
	assert.True(t, got.Success)
	assert.Equal(t, int64(120), got.Latency)
	assert.Equal(t, 42, got.TotalTokens)
	assert.InDelta(t, 0.0021, got.TotalCost, 1e-9)
	assert.Equal(t, "HELLO", got.Output)

	require.Len(t, got.Logs, 3)
	assert.Equal(t, "agent", got.Logs[1].NodeID)
	assert.Equal(t, 42, got.Logs[1].Tokens)

	// Per-node maps are rebuilt from the log rows.
	assert.Equal(t, "HELLO", got.NodeOutputs["agent"])
	assert.Equal(t, int64(100), got.NodeTimings["agent"])
}

func TestSQLiteStore_MetricsFold(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateFramework(ctx, sampleFramework("fw-1")))

	r1 := sampleResult("res-1", "fw-1", true)
	r1.Latency = 100
	require.NoError(t, st.SaveResult(ctx, r1))

	r2 := sampleResult("res-2", "fw-1", false)
	r2.Latency = 300
	require.NoError(t, st.SaveResult(ctx, r2))

	fw, err := st.GetFramework(ctx, "fw-1")
	require.NoError(t, err)

	assert.Equal(t, 2, fw.Metrics.TotalRuns)
	assert.InDelta(t, 200, fw.Metrics.AvgLatency, 1e-9)
	assert.InDelta(t, 0.5, fw.Metrics.SuccessRate, 1e-9)
}

func TestSQLiteStore_ResultsNewestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateFramework(ctx, sampleFramework("fw-1")))

	older := sampleResult("res-old", "fw-1", true)
	older.Timestamp = time.Now().UTC().Add(-time.Hour)
	newer := sampleResult("res-new", "fw-1", true)

	require.NoError(t, st.SaveResult(ctx, older))
	require.NoError(t, st.SaveResult(ctx, newer))

	results, err := st.ListResults(ctx, "fw-1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "res-new", results[0].ID)
	assert.Equal(t, "res-old", results[1].ID)
}

func TestSQLiteStore_NodeTypes(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	nt := &NodeTypeDef{
		ID:          "summarizer",
		Name:        "Summarizer",
		Category:    "llm",
		Description: "Condenses text",
		Defaults:    map[string]any{"model": "openai/gpt-4o-mini"},
	}
	require.NoError(t, st.CreateNodeType(ctx, nt))

	types, err := st.ListNodeTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, "Summarizer", types[0].Name)
	assert.Equal(t, "openai/gpt-4o-mini", types[0].Defaults["model"])

	nt.Name = "Condensed Summarizer"
	require.NoError(t, st.UpdateNodeType(ctx, nt))

	types, err = st.ListNodeTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Condensed Summarizer", types[0].Name)

	require.NoError(t, st.DeleteNodeType(ctx, "summarizer"))
	types, err = st.ListNodeTypes(ctx)
	require.NoError(t, err)
	assert.Empty(t, types)

	err = st.UpdateNodeType(ctx, nt)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_Closed(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Close())

	_, err := st.ListFrameworks(context.Background())
	assert.ErrorIs(t, err, ErrStoreClosed)

	err = st.CreateFramework(context.Background(), sampleFramework("fw"))
	assert.ErrorIs(t, err, ErrStoreClosed)

	// Closing twice is fine.
	assert.NoError(t, st.Close())
}
