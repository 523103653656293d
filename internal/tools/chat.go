package tools

import (
	"encoding/json"
	"strings"
	"time"

	"bbsgatewayd/internal/chatproto"
	"bbsgatewayd/internal/store"
)

// ChatTool wraps the channel/presence/message tables as the chat tool:
// multi-user channels, like CB simulator or conference mode on classic
// BBSes.
type ChatTool struct {
	store *store.Store
}

// NewChatTool constructs the chat tool over a persistence store.
func NewChatTool(s *store.Store) *ChatTool {
	return &ChatTool{store: s}
}

func (t *ChatTool) Name() string { return "chat" }

func (t *ChatTool) Description() string {
	return "Multi-user chat system for the BBS. Users can join channels, send messages, " +
		"see who's online, list channels, and set topics. Like CB Simulator or conference " +
		"mode on classic BBSes. Use this when users want to chat, talk to others, join a " +
		"channel, or see who's online."
}

func (t *ChatTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {
				"type": "string",
				"enum": ["join", "leave", "send", "list_channels", "who", "recent", "topic"],
				"description": "The action to perform"
			},
			"callsign": {
				"type": "string",
				"description": "User's callsign (required for all actions)"
			},
			"channel": {
				"type": "string",
				"description": "Channel name (required for join, send, who, recent, topic actions; for leave, omitting it leaves every channel). Use 'MAIN' for the main public channel."
			},
			"message": {
				"type": "string",
				"description": "Message text (required for send action)"
			},
			"topic": {
				"type": "string",
				"description": "New channel topic (required for topic action)"
			}
		},
		"required": ["action", "callsign"]
	}`)
}

type chatInput struct {
	Action   string `json:"action"`
	Callsign string `json:"callsign"`
	Channel  string `json:"channel"`
	Message  string `json:"message"`
	Topic    string `json:"topic"`
}

func (t *ChatTool) Invoke(input json.RawMessage) (string, error) {
	var in chatInput
	if err := json.Unmarshal(input, &in); err != nil {
		return errorJSON("invalid input"), nil
	}
	in.Callsign = strings.ToUpper(strings.TrimSpace(in.Callsign))
	if in.Callsign == "" {
		return errorJSONf("Missing parameter", "Callsign is required"), nil
	}
	in.Channel = strings.ToUpper(strings.TrimSpace(in.Channel))

	switch in.Action {
	case "join":
		if in.Channel == "" {
			return errorJSON("channel required for join action"), nil
		}
		return t.join(in)
	case "leave":
		if in.Channel == "" {
			return t.leaveAll(in)
		}
		return t.leave(in)
	case "send":
		if in.Channel == "" || in.Message == "" {
			return errorJSON("channel and message required for send action"), nil
		}
		return t.send(in)
	case "list_channels":
		return t.listChannels()
	case "who":
		if in.Channel == "" {
			return errorJSON("channel required for who action"), nil
		}
		return t.who(in)
	case "recent":
		if in.Channel == "" {
			return errorJSON("channel required for recent action"), nil
		}
		return t.recent(in)
	case "topic":
		if in.Channel == "" {
			return errorJSON("channel required for topic action"), nil
		}
		return t.topic(in)
	default:
		return errorJSON("Unknown action: " + in.Action), nil
	}
}

func (t *ChatTool) join(in chatInput) (string, error) {
	channelID, err := t.store.GetOrCreateChannel(in.Channel, in.Callsign)
	if err != nil {
		return errorJSONf("Failed to join channel", err.Error()), nil
	}
	if err := t.store.Join(channelID, in.Callsign); err != nil {
		return errorJSONf("Failed to join channel", err.Error()), nil
	}

	topic, _ := t.store.GetTopic(channelID)
	users, err := t.store.GetUsers(channelID)
	if err != nil {
		return errorJSONf("Failed to join channel", err.Error()), nil
	}
	recent, err := t.store.GetRecent(channelID, 4, 24)
	if err != nil {
		return errorJSONf("Failed to join channel", err.Error()), nil
	}

	recentOut := make([]map[string]interface{}, 0, len(recent))
	for _, m := range recent {
		recentOut = append(recentOut, map[string]interface{}{
			"callsign": m.Callsign,
			"message":  m.Body,
			"time":     m.CreatedAt.Format("15:04"),
		})
	}

	event := chatproto.Joined(in.Channel, in.Callsign, time.Now().Unix())
	b, _ := json.Marshal(map[string]interface{}{
		"success": true,
		"message": "Joined channel " + in.Channel,
		"display": event.Render(),
		"channel": map[string]interface{}{
			"name":         in.Channel,
			"topic":        topic,
			"users_online": len(users),
			"users":        users,
		},
		"recent_messages": recentOut,
	})
	return string(b), nil
}

func (t *ChatTool) leave(in chatInput) (string, error) {
	channelID, err := t.store.GetOrCreateChannel(in.Channel, in.Callsign)
	if err != nil {
		return errorJSONf("Failed to leave channel", err.Error()), nil
	}
	if err := t.store.Leave(channelID, in.Callsign); err != nil {
		return errorJSONf("Failed to leave channel", err.Error()), nil
	}
	event := chatproto.Left(in.Channel, in.Callsign, time.Now().Unix())
	b, _ := json.Marshal(map[string]interface{}{"success": true, "message": "Left channel " + in.Channel, "display": event.Render()})
	return string(b), nil
}

func (t *ChatTool) leaveAll(in chatInput) (string, error) {
	if err := t.store.LeaveAll(in.Callsign); err != nil {
		return errorJSONf("Failed to leave channels", err.Error()), nil
	}
	b, _ := json.Marshal(map[string]interface{}{"success": true, "message": "Left all channels"})
	return string(b), nil
}

func (t *ChatTool) send(in chatInput) (string, error) {
	channelID, err := t.store.GetOrCreateChannel(in.Channel, in.Callsign)
	if err != nil {
		return errorJSONf("Failed to send message", err.Error()), nil
	}
	if _, err := t.store.PostMessage(channelID, in.Callsign, in.Message); err != nil {
		return errorJSONf("Failed to send message", err.Error()), nil
	}
	event := chatproto.Posted(in.Channel, in.Callsign, in.Message, time.Now().Unix())
	b, _ := json.Marshal(map[string]interface{}{"success": true, "message": "Posted to " + in.Channel, "display": event.Render()})
	return string(b), nil
}

func (t *ChatTool) listChannels() (string, error) {
	channels, err := t.store.ListChannels()
	if err != nil {
		return errorJSONf("Failed to list channels", err.Error()), nil
	}
	b, _ := json.Marshal(map[string]interface{}{"success": true, "channels": channels})
	return string(b), nil
}

func (t *ChatTool) who(in chatInput) (string, error) {
	channelID, err := t.store.GetOrCreateChannel(in.Channel, in.Callsign)
	if err != nil {
		return errorJSONf("Failed to list users", err.Error()), nil
	}
	users, err := t.store.GetUsers(channelID)
	if err != nil {
		return errorJSONf("Failed to list users", err.Error()), nil
	}
	b, _ := json.Marshal(map[string]interface{}{"success": true, "channel": in.Channel, "users": users})
	return string(b), nil
}

func (t *ChatTool) recent(in chatInput) (string, error) {
	channelID, err := t.store.GetOrCreateChannel(in.Channel, in.Callsign)
	if err != nil {
		return errorJSONf("Failed to get recent messages", err.Error()), nil
	}
	recent, err := t.store.GetRecent(channelID, 20, 24)
	if err != nil {
		return errorJSONf("Failed to get recent messages", err.Error()), nil
	}

	out := make([]map[string]interface{}, 0, len(recent))
	for _, m := range recent {
		out = append(out, map[string]interface{}{
			"callsign": m.Callsign,
			"message":  m.Body,
			"time":     m.CreatedAt.Format("15:04"),
		})
	}
	b, _ := json.Marshal(map[string]interface{}{"success": true, "channel": in.Channel, "messages": out})
	return string(b), nil
}

func (t *ChatTool) topic(in chatInput) (string, error) {
	channelID, err := t.store.GetOrCreateChannel(in.Channel, in.Callsign)
	if err != nil {
		return errorJSONf("Failed to set topic", err.Error()), nil
	}
	if in.Topic == "" {
		topic, err := t.store.GetTopic(channelID)
		if err != nil {
			return errorJSONf("Failed to get topic", err.Error()), nil
		}
		b, _ := json.Marshal(map[string]interface{}{"success": true, "channel": in.Channel, "topic": topic})
		return string(b), nil
	}
	if err := t.store.SetTopic(channelID, in.Topic); err != nil {
		return errorJSONf("Failed to set topic", err.Error()), nil
	}
	event := chatproto.TopicChanged(in.Channel, in.Callsign, in.Topic, time.Now().Unix())
	b, _ := json.Marshal(map[string]interface{}{"success": true, "message": "Topic updated", "display": event.Render()})
	return string(b), nil
}
