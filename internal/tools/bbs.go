package tools

import "encoding/json"

// BbsControl is the narrow capability surface the bbs_session tool is
// allowed to exercise. It replaces a back-reference to the whole gateway
// so the tool stays pure JSON in/out, independent of dispatch internals.
type BbsControl interface {
	ListUsers() []string
	Status() BbsStatus
	ClearHistory(callsign string) bool
	Disconnect(callsign string) bool
}

// BbsStatus is a snapshot of gateway-wide counters for the get_status action.
type BbsStatus struct {
	ActiveSessions int
	ActiveAX25     int
	ActiveTelnet   int
	UptimeSeconds  int64
}

// BbsSessionTool wraps a BbsControl as the bbs_session tool: connected
// user listing, status, history clearing, and disconnect.
type BbsSessionTool struct {
	control BbsControl
}

// NewBbsSessionTool constructs the bbs_session tool over a BbsControl.
func NewBbsSessionTool(control BbsControl) *BbsSessionTool {
	return &BbsSessionTool{control: control}
}

func (t *BbsSessionTool) Name() string { return "bbs_session" }

func (t *BbsSessionTool) Description() string {
	return "Interact with the BBS system. Use this to show the list of connected " +
		"users, get system status, clear conversation history, or disconnect a user."
}

func (t *BbsSessionTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {
				"type": "string",
				"enum": ["list_users", "get_status", "clear_history", "disconnect"],
				"description": "The action to perform"
			},
			"callsign": {
				"type": "string",
				"description": "Callsign to act on (required for clear_history, disconnect)"
			}
		},
		"required": ["action"]
	}`)
}

type bbsInput struct {
	Action   string `json:"action"`
	Callsign string `json:"callsign"`
}

func (t *BbsSessionTool) Invoke(input json.RawMessage) (string, error) {
	var in bbsInput
	if err := json.Unmarshal(input, &in); err != nil {
		return errorJSON("invalid input"), nil
	}

	switch in.Action {
	case "list_users":
		b, _ := json.Marshal(map[string]interface{}{"success": true, "users": t.control.ListUsers()})
		return string(b), nil
	case "get_status":
		s := t.control.Status()
		b, _ := json.Marshal(map[string]interface{}{
			"success": true,
			"status": map[string]interface{}{
				"active_sessions": s.ActiveSessions,
				"active_ax25":     s.ActiveAX25,
				"active_telnet":   s.ActiveTelnet,
				"uptime_seconds":  s.UptimeSeconds,
			},
		})
		return string(b), nil
	case "clear_history":
		if in.Callsign == "" {
			return errorJSON("callsign parameter is required"), nil
		}
		ok := t.control.ClearHistory(in.Callsign)
		b, _ := json.Marshal(map[string]interface{}{"success": ok})
		return string(b), nil
	case "disconnect":
		if in.Callsign == "" {
			return errorJSON("callsign parameter is required"), nil
		}
		ok := t.control.Disconnect(in.Callsign)
		b, _ := json.Marshal(map[string]interface{}{"success": ok})
		return string(b), nil
	default:
		return errorJSON("Unknown action: " + in.Action), nil
	}
}
