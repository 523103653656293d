package turnengine

import (
	"context"
	"encoding/json"
	"testing"
)

type scriptedClient struct {
	responses []Response
	calls     int
}

func (c *scriptedClient) Messages(ctx context.Context, model, system string, history []Message, tools []ToolDefinition, maxTokens int, temperature float64) (Response, error) {
	resp := c.responses[c.calls]
	c.calls++
	return resp, nil
}

type echoTool struct{}

func (echoTool) Name() string                 { return "echo" }
func (echoTool) Description() string          { return "echoes its input" }
func (echoTool) InputSchema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (echoTool) Invoke(input json.RawMessage) (string, error) {
	return string(input), nil
}

func TestTurnReturnsTextWithoutToolUse(t *testing.T) {
	client := &scriptedClient{responses: []Response{
		{
			Content:    []ContentBlock{{Type: "text", Text: "73!"}},
			Usage:      Usage{InputTokens: 10, OutputTokens: 5},
			StopReason: "end_turn",
		},
	}}
	e := New(client, "test-model", "system prompt", 500, 0.7, nil, nil)

	text, usage, err := e.Turn(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("Turn() error = %v", err)
	}
	if text != "73!" {
		t.Errorf("text = %q, want 73!", text)
	}
	if usage.InputTokens != 10 || usage.OutputTokens != 5 {
		t.Errorf("usage = %+v", usage)
	}
	if client.calls != 1 {
		t.Errorf("calls = %d, want 1", client.calls)
	}
}

func TestTurnRunsToolLoopAndAccumulatesUsage(t *testing.T) {
	client := &scriptedClient{responses: []Response{
		{
			Content: []ContentBlock{
				{Type: "tool_use", ToolUseID: "t1", Name: "echo", Input: json.RawMessage(`{"x":1}`)},
			},
			Usage:      Usage{InputTokens: 10, OutputTokens: 5},
			StopReason: "tool_use",
		},
		{
			Content:    []ContentBlock{{Type: "text", Text: "done"}},
			Usage:      Usage{InputTokens: 8, OutputTokens: 3},
			StopReason: "end_turn",
		},
	}}
	e := New(client, "test-model", "system prompt", 500, 0.7, []Tool{echoTool{}}, nil)

	text, usage, err := e.Turn(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("Turn() error = %v", err)
	}
	if text != "done" {
		t.Errorf("text = %q, want done", text)
	}
	if usage.InputTokens != 18 || usage.OutputTokens != 8 {
		t.Errorf("usage = %+v, want accumulated across both calls", usage)
	}
	if client.calls != 2 {
		t.Errorf("calls = %d, want 2", client.calls)
	}
}

func TestTurnUnknownToolReturnsErrorResult(t *testing.T) {
	client := &scriptedClient{responses: []Response{
		{
			Content: []ContentBlock{
				{Type: "tool_use", ToolUseID: "t1", Name: "nonexistent", Input: json.RawMessage(`{}`)},
			},
			StopReason: "tool_use",
		},
		{
			Content:    []ContentBlock{{Type: "text", Text: "ok"}},
			StopReason: "end_turn",
		},
	}}
	e := New(client, "test-model", "system prompt", 500, 0.7, nil, nil)

	_, _, err := e.Turn(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("Turn() error = %v", err)
	}
}

func TestTurnStopsAfterMaxIterations(t *testing.T) {
	toolUseResp := Response{
		Content: []ContentBlock{
			{Type: "tool_use", ToolUseID: "t1", Name: "echo", Input: json.RawMessage(`{}`)},
		},
		StopReason: "tool_use",
	}
	responses := make([]Response, 0, maxToolIterations+1)
	for i := 0; i < maxToolIterations+1; i++ {
		responses = append(responses, toolUseResp)
	}
	client := &scriptedClient{responses: responses}
	e := New(client, "test-model", "system prompt", 500, 0.7, []Tool{echoTool{}}, nil)

	_, _, err := e.Turn(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("Turn() error = %v", err)
	}
	if client.calls != maxToolIterations+1 {
		t.Errorf("calls = %d, want %d (initial call + %d tool iterations)", client.calls, maxToolIterations+1, maxToolIterations)
	}
}
