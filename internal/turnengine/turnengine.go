// Package turnengine drives the agentic loop between a conversation and
// an LLM client: send a turn, execute any requested tools, and repeat
// until the model stops asking for tools or the iteration budget runs
// out.
package turnengine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
)

// maxToolIterations bounds how many tool_use round-trips a single turn
// may take before the engine gives up and returns its best-effort text.
const maxToolIterations = 5

// ContentBlock is one block of an LLM message: either plain text or a
// tool_use request. Exactly one of Text/ToolUse is populated, per Type.
type ContentBlock struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	ToolUseID string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
}

// Message is one turn of conversation history, Claude-message-API shaped.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// Usage accumulates token counts across a turn's tool-use round-trips.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is what an LLMClient call returns.
type Response struct {
	Content    []ContentBlock
	Usage      Usage
	StopReason string
}

// ToolDefinition is the JSON-schema description of a callable tool, sent
// to the LLM alongside the conversation.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// LLMClient is the stateless model backend the engine drives. A single
// call sends the full system prompt, history, and tool definitions and
// returns one response; the engine itself owns the loop.
type LLMClient interface {
	Messages(ctx context.Context, model, system string, history []Message, tools []ToolDefinition, maxTokens int, temperature float64) (Response, error)
}

// Tool is the minimal shape turnengine needs from a tool implementation.
type Tool interface {
	Name() string
	Description() string
	InputSchema() json.RawMessage
	Invoke(input json.RawMessage) (string, error)
}

// Engine runs the tool-use loop for a given model configuration.
type Engine struct {
	Client      LLMClient
	Model       string
	System      string
	MaxTokens   int
	Temperature float64

	tools map[string]Tool
	defs  []ToolDefinition

	logger *log.Logger
}

// New constructs an Engine with the given tool set, dispatched by name
// rather than the first-registered-tool pattern some agentic clients
// use: every tool_use block is routed to the tool whose Name() matches.
func New(client LLMClient, model, system string, maxTokens int, temperature float64, tools []Tool, logger *log.Logger) *Engine {
	e := &Engine{
		Client:      client,
		Model:       model,
		System:      system,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		tools:       make(map[string]Tool, len(tools)),
		logger:      logger,
	}
	for _, t := range tools {
		e.tools[t.Name()] = t
		e.defs = append(e.defs, ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return e
}

// Turn sends message with the given prior history, runs the tool-use
// loop to completion (or exhaustion), and returns the assistant's final
// text along with total token usage.
func (e *Engine) Turn(ctx context.Context, message string, history []Message) (string, Usage, error) {
	messages := append(append([]Message(nil), history...), Message{
		Role:    "user",
		Content: []ContentBlock{{Type: "text", Text: message}},
	})

	var total Usage

	resp, err := e.Client.Messages(ctx, e.Model, e.System, messages, e.defs, e.MaxTokens, e.Temperature)
	if err != nil {
		return "", total, fmt.Errorf("llm call: %w", err)
	}
	total.InputTokens += resp.Usage.InputTokens
	total.OutputTokens += resp.Usage.OutputTokens

	iteration := 0
	for resp.StopReason == "tool_use" && iteration < maxToolIterations {
		iteration++

		var toolResults []ContentBlock
		for _, block := range resp.Content {
			if block.Type != "tool_use" {
				continue
			}
			result := e.invoke(block.Name, block.Input)
			toolResults = append(toolResults, ContentBlock{
				Type:      "tool_result",
				ToolUseID: block.ToolUseID,
				Text:      result,
			})
		}

		messages = append(messages,
			Message{Role: "assistant", Content: resp.Content},
			Message{Role: "user", Content: toolResults},
		)

		resp, err = e.Client.Messages(ctx, e.Model, e.System, messages, e.defs, e.MaxTokens, e.Temperature)
		if err != nil {
			return "", total, fmt.Errorf("llm call (tool iteration %d): %w", iteration, err)
		}
		total.InputTokens += resp.Usage.InputTokens
		total.OutputTokens += resp.Usage.OutputTokens
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, total, nil
}

func (e *Engine) invoke(name string, input json.RawMessage) string {
	tool, ok := e.tools[name]
	if !ok {
		return fmt.Sprintf(`{"error": "Tool '%s' not found"}`, name)
	}

	result, err := tool.Invoke(input)
	if err != nil {
		if e.logger != nil {
			e.logger.Printf("tool %s error: %v", name, err)
		}
		return fmt.Sprintf(`{"error": "Tool execution failed: %s"}`, err.Error())
	}
	return result
}
