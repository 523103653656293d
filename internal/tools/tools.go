// Package tools implements the stateless Tool objects the turn engine
// dispatches agentic tool_use calls to: QRZ lookup, BBS mail, file
// management, multi-user chat, session control, and a handful of
// disabled-by-default external data feeds.
package tools

import "encoding/json"

// Tool is a single callable the LLM can invoke by name. Implementations
// must be pure with respect to the local store: all state lives behind
// the Persistence API or another narrow capability interface injected at
// construction, never a back-reference to the whole application.
type Tool interface {
	Name() string
	Description() string
	InputSchema() json.RawMessage
	Invoke(input json.RawMessage) (string, error)
}

func errorJSON(message string) string {
	b, _ := json.Marshal(map[string]string{"error": message})
	return string(b)
}

func errorJSONf(kind, message string) string {
	b, _ := json.Marshal(map[string]string{"error": kind, "message": message})
	return string(b)
}
