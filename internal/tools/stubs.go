package tools

import "encoding/json"

// The external data-feed tools (POTA spots, DX cluster, band conditions,
// web search) are out of scope per the gateway's own spec: their
// back-ends are opaque, stateless Tool objects that this module never
// calls out to. Each one reports itself disabled rather than reaching
// an external API, so the LLM still sees a consistent, well-described
// tool surface and can tell the user the feature isn't available here.

type disabledTool struct {
	name        string
	description string
	schema      json.RawMessage
}

func (t *disabledTool) Name() string                { return t.name }
func (t *disabledTool) Description() string         { return t.description }
func (t *disabledTool) InputSchema() json.RawMessage { return t.schema }

func (t *disabledTool) Invoke(json.RawMessage) (string, error) {
	b, _ := json.Marshal(map[string]string{
		"error":   t.name + " is not enabled on this gateway",
		"message": "This feature requires an external integration that this station has not configured.",
	})
	return string(b), nil
}

// NewPotaSpotsTool builds a disabled stub for the pota_spots tool.
func NewPotaSpotsTool() Tool {
	return &disabledTool{
		name:        "pota_spots",
		description: "Fetch current Parks on the Air (POTA) activator spots.",
		schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"band": {"type": "string", "description": "Band to filter, e.g. 20m"}
			}
		}`),
	}
}

// NewDxClusterTool builds a disabled stub for the dx_cluster tool.
func NewDxClusterTool() Tool {
	return &disabledTool{
		name:        "dx_cluster",
		description: "Fetch current DX cluster spots, optionally filtered by band and mode.",
		schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"band": {"type": "string"},
				"mode": {"type": "string"}
			}
		}`),
	}
}

// NewBandConditionsTool builds a disabled stub for the band_conditions tool.
func NewBandConditionsTool() Tool {
	return &disabledTool{
		name:        "band_conditions",
		description: "Get current HF band propagation conditions and solar indices.",
		schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"action": {"type": "string", "enum": ["summary", "solar", "band_detail"]},
				"band": {"type": "string"}
			},
			"required": ["action"]
		}`),
	}
}

// NewWebSearchTool builds a disabled stub for the web_search tool.
func NewWebSearchTool() Tool {
	return &disabledTool{
		name:        "web_search",
		description: "Search the web for a query and return a short list of results.",
		schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string"}
			},
			"required": ["query"]
		}`),
	}
}
