package store

import (
	"database/sql"
	"strconv"
	"time"
)

// ChatMessage is one posted channel message.
type ChatMessage struct {
	ID        int64
	ChannelID int64
	Callsign  string
	Body      string
	CreatedAt time.Time
}

// GetOrCreateChannel returns the id of the named channel, creating it
// if absent. The name is stored as given; the chat tool upper-cases it
// before calling.
func (s *Store) GetOrCreateChannel(name, createdBy string) (int64, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM channels WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}
	res, err := s.db.Exec(`INSERT INTO channels(name, created_by) VALUES(?, ?)`, name, createdBy)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListChannels returns all channels.
func (s *Store) ListChannels() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM channels ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// SetTopic updates a channel's topic.
func (s *Store) SetTopic(channelID int64, topic string) error {
	_, err := s.db.Exec(`UPDATE channels SET topic = ? WHERE id = ?`, topic, channelID)
	return err
}

// GetTopic returns a channel's current topic, "" if unset.
func (s *Store) GetTopic(channelID int64) (string, error) {
	var topic sql.NullString
	err := s.db.QueryRow(`SELECT topic FROM channels WHERE id = ?`, channelID).Scan(&topic)
	if err != nil {
		return "", err
	}
	return topic.String, nil
}

// Join records callsign's presence in channelID (idempotent).
func (s *Store) Join(channelID int64, callsign string) error {
	_, err := s.db.Exec(
		`INSERT INTO channel_presence(channel_id, callsign) VALUES(?, ?)
		 ON CONFLICT(channel_id, callsign) DO UPDATE SET joined_at = CURRENT_TIMESTAMP`,
		channelID, callsign,
	)
	return err
}

// Leave removes callsign's presence row for channelID.
func (s *Store) Leave(channelID int64, callsign string) error {
	_, err := s.db.Exec(`DELETE FROM channel_presence WHERE channel_id = ? AND callsign = ?`, channelID, callsign)
	return err
}

// LeaveAll removes every presence row for callsign, across all channels.
func (s *Store) LeaveAll(callsign string) error {
	_, err := s.db.Exec(`DELETE FROM channel_presence WHERE callsign = ?`, callsign)
	return err
}

// GetUsers returns callsigns present in channelID.
func (s *Store) GetUsers(channelID int64) ([]string, error) {
	rows, err := s.db.Query(`SELECT callsign FROM channel_presence WHERE channel_id = ? ORDER BY joined_at`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var cs string
		if err := rows.Scan(&cs); err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// PostMessage appends a chat message to channelID.
func (s *Store) PostMessage(channelID int64, callsign, body string) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO chat_messages(channel_id, callsign, body) VALUES(?, ?, ?)`, channelID, callsign, body)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetRecent returns up to limit messages from channelID posted within the
// trailing window of hours, oldest first.
func (s *Store) GetRecent(channelID int64, limit, hours int) ([]ChatMessage, error) {
	rows, err := s.db.Query(
		`SELECT id, channel_id, callsign, body, created_at FROM chat_messages
		 WHERE channel_id = ? AND created_at > datetime('now', ?)
		 ORDER BY created_at DESC LIMIT ?`,
		channelID, dayWindow(hours), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.Callsign, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	// Reverse to oldest-first for display.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

// CleanupStalePresence removes presence rows older than hours.
func (s *Store) CleanupStalePresence(hours int) error {
	_, err := s.db.Exec(`DELETE FROM channel_presence WHERE joined_at < datetime('now', ?)`, dayWindow(hours))
	return err
}

func dayWindow(hours int) string {
	if hours <= 0 {
		hours = 1
	}
	return "-" + strconv.Itoa(hours) + " hours"
}
