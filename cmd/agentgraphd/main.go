// Command agentgraphd serves the framework editor API.
//
// Configuration comes from the environment (a .env file is loaded if
// present) and an optional YAML/JSON config file:
//
//	AGENTGRAPH_CONFIG  path to a config file (keys: addr, db_path)
//	DATABASE_URL       Postgres connection string; SQLite is used when unset
//	AGENTGRAPH_DB      SQLite database path (default agentgraph.db)
//	OPENROUTER_API_KEY gateway API key; chat endpoints are disabled when unset
//	AGENTGRAPH_ADDR    listen address (default :8080)
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/amiddlebrook/agentgraph/internal/server"
	"github.com/amiddlebrook/agentgraph/pkg/agentgraph"
	"github.com/amiddlebrook/agentgraph/pkg/agentgraph/config"
	"github.com/amiddlebrook/agentgraph/pkg/agentgraph/llm"
	"github.com/amiddlebrook/agentgraph/pkg/agentgraph/observability"
	"github.com/amiddlebrook/agentgraph/pkg/agentgraph/store"
)

func main() {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.New(nil)
	if path := os.Getenv("AGENTGRAPH_CONFIG"); path != "" {
		var err error
		cfg, err = config.FromFile(path)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Init(ctx); err != nil {
		log.Fatalf("init store: %v", err)
	}
	if err := seedNodeTypes(ctx, st); err != nil {
		log.Fatalf("seed node types: %v", err)
	}

	var gateway agentgraph.Gateway
	if apiKey := os.Getenv("OPENROUTER_API_KEY"); apiKey != "" {
		gateway = llm.New(apiKey)
	} else {
		logger.Warn("OPENROUTER_API_KEY not set, agent nodes and chat endpoints disabled")
	}

	executor := agentgraph.NewExecutor(gateway)
	runner := agentgraph.NewRunner(executor,
		agentgraph.WithLogger(logger),
		agentgraph.WithMetrics(observability.NewMetricsRecorder()),
		agentgraph.WithTracing(observability.NewSpanManager()),
	)

	srv := server.New(st, runner, gateway, server.WithLogger(logger))

	addr := envOr("AGENTGRAPH_ADDR", cfg.String("addr", ":8080"))
	logger.Info("listening", "addr", addr)
	log.Fatal(srv.App().Listen(addr))
}

// openStore picks Postgres when DATABASE_URL is set, SQLite otherwise.
func openStore(cfg config.Config) (store.Store, error) {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		return store.NewPostgresStore(context.Background(), dbURL)
	}
	path := envOr("AGENTGRAPH_DB", cfg.String("db_path", "agentgraph.db"))
	return store.NewSQLiteStore(path)
}

// seedNodeTypes installs the built-in catalog on first boot.
func seedNodeTypes(ctx context.Context, st store.Store) error {
	existing, err := st.ListNodeTypes(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	builtins := []store.NodeTypeDef{
		{ID: "input", Name: "Input", Category: "io", Description: "Receives the test input"},
		{ID: "output", Name: "Output", Category: "io", Description: "Emits the final output"},
		{ID: "agent", Name: "Agent", Category: "llm", Description: "Calls an LLM with a system prompt",
			Defaults: map[string]any{
				"model":        agentgraph.DefaultModel,
				"temperature":  agentgraph.DefaultTemperature,
				"maxTokens":    agentgraph.DefaultMaxTokens,
				"systemPrompt": agentgraph.DefaultSystemPrompt,
			}},
		{ID: "processor", Name: "Processor", Category: "transform", Description: "Runs a text-transform script",
			Defaults: map[string]any{"script": "trim"}},
		{ID: "tool", Name: "Web Fetch", Category: "tool", Description: "Fetches a URL and converts it to markdown"},
	}
	for i := range builtins {
		if err := st.CreateNodeType(ctx, &builtins[i]); err != nil {
			return err
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
