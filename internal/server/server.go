// Package server exposes the framework editor's REST surface: framework
// CRUD, test runs, the node-type catalog, and chat-based framework
// generation. JSON in, JSON out.
package server

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/amiddlebrook/agentgraph/pkg/agentgraph"
	"github.com/amiddlebrook/agentgraph/pkg/agentgraph/store"
)

// Server wires the store, the graph runner, and the LLM gateway behind
// HTTP handlers.
type Server struct {
	store   store.Store
	runner  *agentgraph.Runner
	gateway agentgraph.Gateway
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New creates a Server. The gateway may be nil, in which case the chat
// endpoints return 503.
func New(st store.Store, runner *agentgraph.Runner, gateway agentgraph.Gateway, opts ...Option) *Server {
	s := &Server{store: st, runner: runner, gateway: gateway}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// App builds the Fiber application with all routes registered.
func (s *Server) App() *fiber.App {
	app := fiber.New()

	app.Get("/frameworks", s.listFrameworks)
	app.Post("/frameworks", s.createFramework)
	app.Get("/frameworks/:id", s.getFramework)
	app.Put("/frameworks/:id", s.updateFramework)
	app.Delete("/frameworks/:id", s.deleteFramework)

	app.Post("/tests/:id/run", s.runTest)
	app.Get("/tests/:id/results", s.listResults)

	app.Post("/chat", s.chat)
	app.Post("/chat/generate", s.generateFramework)

	app.Get("/node-types", s.listNodeTypes)
	app.Post("/node-types", s.createNodeType)
	app.Put("/node-types/:id", s.updateNodeType)
	app.Delete("/node-types/:id", s.deleteNodeType)

	return app
}
