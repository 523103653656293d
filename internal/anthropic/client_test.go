package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"bbsgatewayd/internal/turnengine"
)

func TestMessagesParsesTextResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		w.Write([]byte(`{
			"content": [{"type": "text", "text": "73!"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 4}
		}`))
	}))
	defer srv.Close()

	c := New("test-key")
	c.BaseURL = srv.URL

	resp, err := c.Messages(context.Background(), "claude-3-5-sonnet-20241022", "system", nil, nil, 500, 0.7)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(resp.Content) != 1 || resp.Content[0].Text != "73!" {
		t.Errorf("content = %+v", resp.Content)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 4 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestMessagesSendsToolResultAsContentField(t *testing.T) {
	var captured apiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.Write([]byte(`{"content": [], "stop_reason": "end_turn", "usage": {}}`))
	}))
	defer srv.Close()

	c := New("test-key")
	c.BaseURL = srv.URL

	history := []turnengine.Message{
		{Role: "user", Content: []turnengine.ContentBlock{{Type: "tool_result", ToolUseID: "t1", Text: `{"ok":true}`}}},
	}
	_, err := c.Messages(context.Background(), "m", "s", history, nil, 100, 0.5)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(captured.Messages) != 1 || len(captured.Messages[0].Content) != 1 {
		t.Fatalf("captured = %+v", captured)
	}
	block := captured.Messages[0].Content[0]
	if block.Type != "tool_result" || block.ToolUseID != "t1" || block.Content != `{"ok":true}` {
		t.Errorf("block = %+v", block)
	}
}

func TestMessagesReturnsErrorOnNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"type": "rate_limit_error", "message": "slow down"}}`))
	}))
	defer srv.Close()

	c := New("test-key")
	c.BaseURL = srv.URL

	_, err := c.Messages(context.Background(), "m", "s", nil, nil, 100, 0.5)
	if err == nil {
		t.Fatal("expected error")
	}
}
