package server

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/amiddlebrook/agentgraph/pkg/agentgraph"
	"github.com/amiddlebrook/agentgraph/pkg/agentgraph/observability"
	"github.com/amiddlebrook/agentgraph/pkg/agentgraph/store"
)

func (s *Server) listFrameworks(c fiber.Ctx) error {
	fws, err := s.store.ListFrameworks(c.Context())
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	if fws == nil {
		fws = []agentgraph.Framework{}
	}
	return c.JSON(fws)
}

// createFramework accepts a name/description (and optionally a full graph).
// When no nodes are supplied a minimal input→output skeleton is seeded so
// the editor always opens on a runnable graph.
func (s *Server) createFramework(c fiber.Ctx) error {
	var fw agentgraph.Framework
	if err := c.Bind().JSON(&fw); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	if fw.Name == "" {
		return c.Status(400).JSON(fiber.Map{"error": "name is required"})
	}
	if fw.ID == "" {
		fw.ID = uuid.NewString()
	}
	if len(fw.Nodes) == 0 {
		seedSkeleton(&fw)
	}

	if status, body := validationStatus(&fw); status != 0 {
		return c.Status(status).JSON(body)
	}

	if err := s.store.CreateFramework(c.Context(), &fw); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(201).JSON(fw)
}

// seedSkeleton populates a new framework with a connected input→output pair.
func seedSkeleton(fw *agentgraph.Framework) {
	fw.Nodes = []agentgraph.Node{
		{
			ID:       "input-1",
			Type:     agentgraph.NodeInput,
			Position: agentgraph.Position{X: 100, Y: 200},
			Data:     agentgraph.NodeData{Label: "Input"},
		},
		{
			ID:       "output-1",
			Type:     agentgraph.NodeOutput,
			Position: agentgraph.Position{X: 500, Y: 200},
			Data:     agentgraph.NodeData{Label: "Output"},
		},
	}
	fw.Edges = []agentgraph.Edge{
		{ID: "e-input-output", Source: "input-1", Target: "output-1"},
	}
}

// validationStatus maps graph validation failures to HTTP semantics:
// cycles are 422 (well-formed but unprocessable), everything else 400.
// A zero status means the framework is valid.
func validationStatus(fw *agentgraph.Framework) (int, fiber.Map) {
	err := agentgraph.ValidateFramework(fw)
	if err == nil {
		return 0, nil
	}
	var cycleErr *agentgraph.CycleError
	if errors.As(err, &cycleErr) {
		return 422, fiber.Map{"error": err.Error(), "nodes": cycleErr.Nodes}
	}
	return 400, fiber.Map{"error": err.Error()}
}

func (s *Server) getFramework(c fiber.Ctx) error {
	fw, err := s.store.GetFramework(c.Context(), c.Params("id"))
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(404).JSON(fiber.Map{"error": "framework not found"})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fw)
}

func (s *Server) updateFramework(c fiber.Ctx) error {
	var fw agentgraph.Framework
	if err := c.Bind().JSON(&fw); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	fw.ID = c.Params("id")

	if status, body := validationStatus(&fw); status != 0 {
		return c.Status(status).JSON(body)
	}

	err := s.store.UpdateFramework(c.Context(), &fw)
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(404).JSON(fiber.Map{"error": "framework not found"})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fw)
}

func (s *Server) deleteFramework(c fiber.Ctx) error {
	err := s.store.DeleteFramework(c.Context(), c.Params("id"))
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(404).JSON(fiber.Map{"error": "framework not found"})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.SendStatus(204)
}

type runRequest struct {
	Input string `json:"input"`
}

// runTest executes the framework against the supplied input, persists the
// result, and returns it. Run-level failures still produce a saved result
// with status "failed".
func (s *Server) runTest(c fiber.Ctx) error {
	var req runRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}

	fw, err := s.store.GetFramework(c.Context(), c.Params("id"))
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(404).JSON(fiber.Map{"error": "framework not found"})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}

	res := s.runner.Run(c.Context(), fw, req.Input)

	if err := s.store.SaveResult(c.Context(), res); err != nil {
		observability.LogRunError(s.logger, res.ID, err, float64(res.Latency))
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(res)
}

func (s *Server) listResults(c fiber.Ctx) error {
	results, err := s.store.ListResults(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	if results == nil {
		results = []agentgraph.ExecutionResult{}
	}
	return c.JSON(results)
}

func (s *Server) listNodeTypes(c fiber.Ctx) error {
	types, err := s.store.ListNodeTypes(c.Context())
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	if types == nil {
		types = []store.NodeTypeDef{}
	}
	return c.JSON(types)
}

func (s *Server) createNodeType(c fiber.Ctx) error {
	var nt store.NodeTypeDef
	if err := c.Bind().JSON(&nt); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	if nt.Name == "" {
		return c.Status(400).JSON(fiber.Map{"error": "name is required"})
	}
	if nt.ID == "" {
		nt.ID = uuid.NewString()
	}
	if err := s.store.CreateNodeType(c.Context(), &nt); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(201).JSON(nt)
}

func (s *Server) updateNodeType(c fiber.Ctx) error {
	var nt store.NodeTypeDef
	if err := c.Bind().JSON(&nt); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	nt.ID = c.Params("id")
	err := s.store.UpdateNodeType(c.Context(), &nt)
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(404).JSON(fiber.Map{"error": "node type not found"})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(nt)
}

func (s *Server) deleteNodeType(c fiber.Ctx) error {
	if err := s.store.DeleteNodeType(c.Context(), c.Params("id")); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.SendStatus(204)
}
