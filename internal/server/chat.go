package server

import (
	"encoding/json"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/kaptinlin/jsonrepair"

	"github.com/amiddlebrook/agentgraph/pkg/agentgraph"
	"github.com/amiddlebrook/agentgraph/pkg/agentgraph/llm"
)

type chatRequest struct {
	Message      string  `json:"message"`
	Model        string  `json:"model,omitempty"`
	SystemPrompt string  `json:"systemPrompt,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
}

type chatResponse struct {
	Response string  `json:"response"`
	Model    string  `json:"model"`
	Tokens   int     `json:"tokens"`
	Cost     float64 `json:"cost"`
}

// chat forwards a single-turn prompt to the gateway.
func (s *Server) chat(c fiber.Ctx) error {
	if s.gateway == nil {
		return c.Status(503).JSON(fiber.Map{"error": "no gateway configured"})
	}

	var req chatRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	if req.Message == "" {
		return c.Status(400).JSON(fiber.Map{"error": "message is required"})
	}
	if req.Model == "" {
		req.Model = agentgraph.DefaultModel
	}
	if req.SystemPrompt == "" {
		req.SystemPrompt = agentgraph.DefaultSystemPrompt
	}

	comp, err := s.gateway.Complete(c.Context(), llm.CompletionRequest{
		Model: req.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: req.SystemPrompt},
			{Role: llm.RoleUser, Content: req.Message},
		},
		Temperature: req.Temperature,
	})
	if err != nil {
		return c.Status(502).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(chatResponse{
		Response: comp.Content,
		Model:    comp.Model,
		Tokens:   comp.Usage.TotalTokens,
		Cost:     comp.Usage.Cost,
	})
}

// generatePrompt instructs the model to emit a framework definition as bare
// JSON. Models routinely wrap it in prose or markdown fences anyway, which
// is why the response goes through jsonrepair before decoding.
const generatePrompt = `You design multi-agent LLM pipelines as JSON graphs.
Respond with ONLY a JSON object, no markdown, of the form:
{"name": string, "description": string,
 "nodes": [{"id": string, "type": "input"|"output"|"agent"|"processor"|"tool",
            "position": {"x": number, "y": number},
            "data": {"label": string, "config": object}}],
 "edges": [{"id": string, "source": string, "target": string}]}
The graph must be acyclic, start at an input node, and end at an output node.
Agent node config keys: model, systemPrompt, temperature, maxTokens.`

type generateRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

// generateFramework asks the gateway to design a framework for the given
// prompt, repairs the (frequently malformed) JSON reply, validates the
// decoded graph, and persists it.
func (s *Server) generateFramework(c fiber.Ctx) error {
	if s.gateway == nil {
		return c.Status(503).JSON(fiber.Map{"error": "no gateway configured"})
	}

	var req generateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	if req.Prompt == "" {
		return c.Status(400).JSON(fiber.Map{"error": "prompt is required"})
	}
	if req.Model == "" {
		req.Model = agentgraph.DefaultModel
	}

	comp, err := s.gateway.Complete(c.Context(), llm.CompletionRequest{
		Model: req.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: generatePrompt},
			{Role: llm.RoleUser, Content: req.Prompt},
		},
	})
	if err != nil {
		return c.Status(502).JSON(fiber.Map{"error": err.Error()})
	}

	repaired, err := jsonrepair.JSONRepair(comp.Content)
	if err != nil {
		return c.Status(502).JSON(fiber.Map{"error": "model returned unusable JSON: " + err.Error()})
	}

	var fw agentgraph.Framework
	if err := json.Unmarshal([]byte(repaired), &fw); err != nil {
		return c.Status(502).JSON(fiber.Map{"error": "decode generated framework: " + err.Error()})
	}
	fw.ID = uuid.NewString()
	if fw.Name == "" {
		fw.Name = "Generated framework"
	}

	if status, body := validationStatus(&fw); status != 0 {
		return c.Status(status).JSON(body)
	}

	if err := s.store.CreateFramework(c.Context(), &fw); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(201).JSON(fw)
}
