package tools

import (
	"database/sql"
	"encoding/json"
	"strings"

	"bbsgatewayd/internal/store"
)

// MailTool wraps the persistence mail tables as the messages tool,
// BBS-style email between callsigns.
type MailTool struct {
	store *store.Store
}

// NewMailTool constructs the messages tool over a persistence store.
func NewMailTool(s *store.Store) *MailTool {
	return &MailTool{store: s}
}

func (t *MailTool) Name() string { return "messages" }

func (t *MailTool) Description() string {
	return "Interact with the BBS message system. Users can send messages to other " +
		"callsigns, list their received messages, list their sent messages, read " +
		"specific messages, delete messages, and reply to messages. This is like email " +
		"for packet radio operators. Use this when users ask about mail, messages, " +
		"outbox, sent messages, or want to communicate with other users."
}

func (t *MailTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {
				"type": "string",
				"enum": ["list", "read", "send", "delete", "reply"],
				"description": "The action to perform"
			},
			"callsign": {
				"type": "string",
				"description": "User's callsign (required for all actions)"
			},
			"message_id": {
				"type": "integer",
				"description": "Message ID (required for read, delete, reply actions)"
			},
			"to_callsign": {
				"type": "string",
				"description": "Recipient callsign (required for send action)"
			},
			"subject": {
				"type": "string",
				"description": "Message subject (optional for send action - generated from body if omitted)"
			},
			"body": {
				"type": "string",
				"description": "Message body (required for send and reply actions)"
			},
			"unread_only": {
				"type": "boolean",
				"description": "For list action: only show unread messages (default: false)"
			},
			"sent": {
				"type": "boolean",
				"description": "For list action: show sent messages instead of received (default: false)"
			}
		},
		"required": ["action", "callsign"]
	}`)
}

type mailInput struct {
	Action     string `json:"action"`
	Callsign   string `json:"callsign"`
	MessageID  int64  `json:"message_id"`
	ToCallsign string `json:"to_callsign"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	UnreadOnly bool   `json:"unread_only"`
	Sent       bool   `json:"sent"`
}

func (t *MailTool) Invoke(input json.RawMessage) (string, error) {
	var in mailInput
	if err := json.Unmarshal(input, &in); err != nil {
		return errorJSON("invalid input"), nil
	}
	in.Callsign = strings.ToUpper(strings.TrimSpace(in.Callsign))
	if in.Callsign == "" {
		return errorJSONf("Missing parameter", "Callsign is required"), nil
	}

	switch in.Action {
	case "list":
		return t.list(in)
	case "read":
		if in.MessageID == 0 {
			return errorJSON("message_id required for read action"), nil
		}
		return t.read(in)
	case "send":
		in.ToCallsign = strings.ToUpper(strings.TrimSpace(in.ToCallsign))
		if in.ToCallsign == "" || in.Body == "" {
			return errorJSON("to_callsign and body required for send action"), nil
		}
		if in.Subject == "" {
			in.Subject = generateSubject(in.Body)
		}
		return t.send(in)
	case "delete":
		if in.MessageID == 0 {
			return errorJSON("message_id required for delete action"), nil
		}
		return t.delete(in)
	case "reply":
		if in.MessageID == 0 || in.Body == "" {
			return errorJSON("message_id and body required for reply action"), nil
		}
		return t.reply(in)
	default:
		return errorJSON("Unknown action: " + in.Action), nil
	}
}

func generateSubject(body string) string {
	firstLine := strings.SplitN(strings.TrimSpace(body), "\n", 2)[0]
	if len(firstLine) > 50 {
		return strings.TrimSpace(firstLine[:50]) + "..."
	}
	subject := strings.TrimSpace(firstLine)
	if subject == "" {
		return "(no subject)"
	}
	return subject
}

func (t *MailTool) list(in mailInput) (string, error) {
	if in.Sent {
		msgs, err := t.store.ListSentMessages(in.Callsign)
		if err != nil {
			return errorJSONf("Failed to list messages", err.Error()), nil
		}
		return marshalMailList(msgs, true, 0), nil
	}

	msgs, err := t.store.ListMessages(in.Callsign, in.UnreadOnly)
	if err != nil {
		return errorJSONf("Failed to list messages", err.Error()), nil
	}
	unread, err := t.store.UnreadCount(in.Callsign)
	if err != nil {
		unread = 0
	}
	return marshalMailList(msgs, false, unread), nil
}

func marshalMailList(msgs []store.Message, sent bool, unreadCount int) string {
	if len(msgs) == 0 {
		result := map[string]interface{}{
			"success":     true,
			"message":     "No messages.",
			"total_count": 0,
			"messages":    []interface{}{},
		}
		if sent {
			result["message"] = "No sent messages."
		} else {
			result["unread_count"] = 0
		}
		b, _ := json.Marshal(result)
		return string(b)
	}

	list := make([]map[string]interface{}, 0, len(msgs))
	for _, m := range msgs {
		entry := map[string]interface{}{
			"id":      m.ID,
			"subject": m.Subject,
			"date":    m.CreatedAt.Format("2006-01-02 15:04"),
			"is_read": m.IsRead,
		}
		if sent {
			status := " "
			if m.IsRead {
				status = "R"
			}
			entry["status"] = status
			entry["to"] = m.To
		} else {
			status := " "
			if !m.IsRead {
				status = "N"
			}
			entry["status"] = status
			entry["from"] = m.From
		}
		list = append(list, entry)
	}

	result := map[string]interface{}{
		"success":     true,
		"total_count": len(msgs),
		"messages":    list,
	}
	if !sent {
		result["unread_count"] = unreadCount
	}
	b, _ := json.Marshal(result)
	return string(b)
}

func (t *MailTool) read(in mailInput) (string, error) {
	msg, err := t.store.GetMessage(in.MessageID, in.Callsign)
	if err != nil {
		return errorJSONf("Message not found", "message not found or you don't have permission to read it"), nil
	}

	if msg.To == in.Callsign && !msg.IsRead {
		if err := t.store.MarkRead(in.MessageID, in.Callsign); err == nil {
			msg.IsRead = true
		}
	}

	b, _ := json.Marshal(map[string]interface{}{
		"success": true,
		"message": map[string]interface{}{
			"id":          msg.ID,
			"from":        msg.From,
			"to":          msg.To,
			"subject":     msg.Subject,
			"body":        msg.Body,
			"date":        msg.CreatedAt.Format("2006-01-02 15:04"),
			"is_read":     msg.IsRead,
			"in_reply_to": nullInt(msg.InReplyTo),
		},
	})
	return string(b), nil
}

func (t *MailTool) send(in mailInput) (string, error) {
	id, err := t.store.SendMessage(in.Callsign, in.ToCallsign, in.Subject, in.Body, 0)
	if err != nil {
		return errorJSONf("Failed to send message", err.Error()), nil
	}
	b, _ := json.Marshal(map[string]interface{}{
		"success":    true,
		"message_id": id,
		"message":    "Message sent to " + in.ToCallsign + ".",
	})
	return string(b), nil
}

func (t *MailTool) delete(in mailInput) (string, error) {
	if err := t.store.SoftDelete(in.MessageID, in.Callsign); err != nil {
		return errorJSONf("Delete failed", "message not found or already deleted"), nil
	}
	b, _ := json.Marshal(map[string]interface{}{
		"success": true,
		"message": "Message deleted.",
	})
	return string(b), nil
}

func (t *MailTool) reply(in mailInput) (string, error) {
	original, err := t.store.GetMessage(in.MessageID, in.Callsign)
	if err != nil {
		return errorJSONf("Message not found", "message not found or you don't have permission"), nil
	}

	to := original.To
	if original.To == in.Callsign {
		to = original.From
	}

	subject := original.Subject
	if !strings.HasPrefix(subject, "Re: ") {
		subject = "Re: " + subject
	}

	id, err := t.store.SendMessage(in.Callsign, to, subject, in.Body, in.MessageID)
	if err != nil {
		return errorJSONf("Failed to send reply", err.Error()), nil
	}
	b, _ := json.Marshal(map[string]interface{}{
		"success":    true,
		"message_id": id,
		"message":    "Reply sent to " + to + ".",
	})
	return string(b), nil
}

func nullInt(n sql.NullInt64) interface{} {
	if !n.Valid {
		return nil
	}
	return n.Int64
}
