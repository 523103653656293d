package store

import (
	"database/sql"
	"time"
)

// Message is one mail item.
type Message struct {
	ID         int64
	From       string
	To         string
	Subject    string
	Body       string
	IsRead     bool
	InReplyTo  sql.NullInt64
	CreatedAt  time.Time
	ReadAt     sql.NullTime
	DeletedAt  sql.NullTime
}

// SendMessage inserts a new mail item and returns its id.
func (s *Store) SendMessage(from, to, subject, body string, inReplyTo int64) (int64, error) {
	var replyTo sql.NullInt64
	if inReplyTo > 0 {
		replyTo = sql.NullInt64{Int64: inReplyTo, Valid: true}
	}
	res, err := s.db.Exec(
		`INSERT INTO messages(from_callsign, to_callsign, subject, body, in_reply_to) VALUES(?, ?, ?, ?, ?)`,
		from, to, subject, body, replyTo,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListMessages returns mail addressed to callsign, optionally restricted to
// unread items. Soft-deleted messages are never returned.
func (s *Store) ListMessages(callsign string, unreadOnly bool) ([]Message, error) {
	query := `SELECT id, from_callsign, to_callsign, subject, body, is_read, in_reply_to, created_at, read_at, deleted_at
	          FROM messages WHERE to_callsign = ? AND deleted_at IS NULL`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, callsign)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ListSentMessages returns mail sent by callsign.
func (s *Store) ListSentMessages(callsign string) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, from_callsign, to_callsign, subject, body, is_read, in_reply_to, created_at, read_at, deleted_at
		 FROM messages WHERE from_callsign = ? ORDER BY created_at DESC`,
		callsign,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.From, &m.To, &m.Subject, &m.Body, &m.IsRead, &m.InReplyTo, &m.CreatedAt, &m.ReadAt, &m.DeletedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetMessage returns message id, visible only to its sender or recipient.
func (s *Store) GetMessage(id int64, callsign string) (Message, error) {
	var m Message
	err := s.db.QueryRow(
		`SELECT id, from_callsign, to_callsign, subject, body, is_read, in_reply_to, created_at, read_at, deleted_at
		 FROM messages WHERE id = ? AND (from_callsign = ? OR to_callsign = ?)`,
		id, callsign, callsign,
	).Scan(&m.ID, &m.From, &m.To, &m.Subject, &m.Body, &m.IsRead, &m.InReplyTo, &m.CreatedAt, &m.ReadAt, &m.DeletedAt)
	return m, err
}

// MarkRead marks message id read, only if addressed to "to".
func (s *Store) MarkRead(id int64, to string) error {
	res, err := s.db.Exec(
		`UPDATE messages SET is_read = 1, read_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND to_callsign = ? AND is_read = 0`,
		id, to,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SoftDelete marks message id deleted for its recipient only.
func (s *Store) SoftDelete(id int64, to string) error {
	res, err := s.db.Exec(
		`UPDATE messages SET deleted_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND to_callsign = ? AND deleted_at IS NULL`,
		id, to,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UnreadCount returns the number of unread, non-deleted messages addressed
// to callsign.
func (s *Store) UnreadCount(callsign string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM messages WHERE to_callsign = ? AND is_read = 0 AND deleted_at IS NULL`,
		callsign,
	).Scan(&n)
	return n, err
}
