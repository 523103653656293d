// Package anthropic is a minimal HTTP client for the Anthropic Messages
// API, implementing turnengine.LLMClient directly against the wire
// protocol rather than a vendored SDK.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"bbsgatewayd/internal/turnengine"
)

const (
	defaultBaseURL = "https://api.anthropic.com/v1/messages"
	apiVersion     = "2023-06-01"
)

// Client calls the Anthropic Messages API over HTTPS.
type Client struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a Client for apiKey with a 30s request timeout.
func New(apiKey string) *Client {
	return &Client{
		APIKey:     apiKey,
		BaseURL:    defaultBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type apiMessage struct {
	Role    string            `json:"role"`
	Content []apiContentBlock `json:"content"`
}

type apiContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type apiTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type apiRequest struct {
	Model       string       `json:"model"`
	MaxTokens   int          `json:"max_tokens"`
	Temperature float64      `json:"temperature"`
	System      string       `json:"system,omitempty"`
	Messages    []apiMessage `json:"messages"`
	Tools       []apiTool    `json:"tools,omitempty"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiResponse struct {
	Content    []apiContentBlock `json:"content"`
	StopReason string            `json:"stop_reason"`
	Usage      apiUsage          `json:"usage"`
}

type apiErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func toAPIBlock(b turnengine.ContentBlock) apiContentBlock {
	switch b.Type {
	case "tool_use":
		return apiContentBlock{Type: "tool_use", ID: b.ToolUseID, Name: b.Name, Input: b.Input}
	case "tool_result":
		return apiContentBlock{Type: "tool_result", ToolUseID: b.ToolUseID, Content: b.Text}
	default:
		return apiContentBlock{Type: "text", Text: b.Text}
	}
}

func fromAPIBlock(b apiContentBlock) turnengine.ContentBlock {
	switch b.Type {
	case "tool_use":
		return turnengine.ContentBlock{Type: "tool_use", ToolUseID: b.ID, Name: b.Name, Input: b.Input}
	default:
		return turnengine.ContentBlock{Type: "text", Text: b.Text}
	}
}

// Messages implements turnengine.LLMClient against the real Anthropic API.
func (c *Client) Messages(ctx context.Context, model, system string, history []turnengine.Message, tools []turnengine.ToolDefinition, maxTokens int, temperature float64) (turnengine.Response, error) {
	messages := make([]apiMessage, 0, len(history))
	for _, m := range history {
		blocks := make([]apiContentBlock, 0, len(m.Content))
		for _, b := range m.Content {
			blocks = append(blocks, toAPIBlock(b))
		}
		messages = append(messages, apiMessage{Role: m.Role, Content: blocks})
	}

	apiTools := make([]apiTool, 0, len(tools))
	for _, t := range tools {
		apiTools = append(apiTools, apiTool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}

	reqBody := apiRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		System:      system,
		Messages:    messages,
		Tools:       apiTools,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return turnengine.Response{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return turnengine.Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return turnengine.Response{}, fmt.Errorf("connection error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return turnengine.Response{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorBody
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return turnengine.Response{}, fmt.Errorf("API error (%s): %s", apiErr.Error.Type, apiErr.Error.Message)
		}
		return turnengine.Response{}, fmt.Errorf("API error: status %d", resp.StatusCode)
	}

	var out apiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return turnengine.Response{}, fmt.Errorf("decode response: %w", err)
	}

	content := make([]turnengine.ContentBlock, 0, len(out.Content))
	for _, b := range out.Content {
		content = append(content, fromAPIBlock(b))
	}

	return turnengine.Response{
		Content:    content,
		StopReason: out.StopReason,
		Usage: turnengine.Usage{
			InputTokens:  out.Usage.InputTokens,
			OutputTokens: out.Usage.OutputTokens,
		},
	}, nil
}
