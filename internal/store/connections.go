package store

import (
	"database/sql"
	"fmt"
	"time"
)

// LogConnection records a new connection for callsign over transport and
// returns its row id.
func (s *Store) LogConnection(callsign, transport string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO connections(callsign, transport) VALUES(?, ?)`,
		callsign, transport,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// LogDisconnection marks connection id as ended, computing its duration
// from the stored connected_at timestamp.
func (s *Store) LogDisconnection(id int64, packetsSent, packetsReceived int) error {
	var connectedAt time.Time
	if err := s.db.QueryRow(
		`SELECT connected_at FROM connections WHERE id = ?`, id,
	).Scan(&connectedAt); err != nil {
		return fmt.Errorf("lookup connection %d: %w", id, err)
	}

	duration := int(time.Since(connectedAt).Seconds())
	_, err := s.db.Exec(
		`UPDATE connections
		 SET disconnected_at = CURRENT_TIMESTAMP, duration_seconds = ?,
		     packets_sent = ?, packets_received = ?
		 WHERE id = ?`,
		duration, packetsSent, packetsReceived, id,
	)
	return err
}

// QueryLog describes one logged LLM turn.
type QueryLog struct {
	ConnectionID   int64
	Callsign       string
	Query          string
	Response       string
	TokensUsed     int
	ResponseTimeMs int
	Err            string
}

// LogQuery appends a query/response row, used both for operator statistics
// and as the ground truth for rate-limit decisions.
func (s *Store) LogQuery(q QueryLog) error {
	var errVal sql.NullString
	if q.Err != "" {
		errVal = sql.NullString{String: q.Err, Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO queries(connection_id, callsign, query, response, tokens_used, response_time_ms, error)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		q.ConnectionID, q.Callsign, q.Query, q.Response, q.TokensUsed, q.ResponseTimeMs, errVal,
	)
	return err
}

// LogError appends an operator-visible error row.
func (s *Store) LogError(callsign, errType, message, context string) error {
	_, err := s.db.Exec(
		`INSERT INTO errors(callsign, error_type, error_message, context) VALUES(?, ?, ?, ?)`,
		callsign, errType, message, context,
	)
	return err
}

// CheckRateLimit counts successful queries (error IS NULL) for callsign in
// the trailing hour and day and returns whether a new query is allowed.
// The hourly quota is checked first.
func (s *Store) CheckRateLimit(callsign string, perHour, perDay int) (allowed bool, reason string, err error) {
	var hourlyCount, dailyCount int
	if err = s.db.QueryRow(
		`SELECT COUNT(*) FROM queries WHERE callsign = ? AND timestamp > datetime('now', '-1 hour') AND error IS NULL`,
		callsign,
	).Scan(&hourlyCount); err != nil {
		return false, "", err
	}
	if err = s.db.QueryRow(
		`SELECT COUNT(*) FROM queries WHERE callsign = ? AND timestamp > datetime('now', '-1 day') AND error IS NULL`,
		callsign,
	).Scan(&dailyCount); err != nil {
		return false, "", err
	}

	if hourlyCount >= perHour {
		return false, fmt.Sprintf("Hourly limit reached (%d/hour)", perHour), nil
	}
	if dailyCount >= perDay {
		return false, fmt.Sprintf("Daily limit reached (%d/day)", perDay), nil
	}
	return true, "", nil
}

// RateLimitStatus reports usage against both quotas for display.
type RateLimitStatus struct {
	HourlyUsed, HourlyLimit, HourlyRemaining int
	DailyUsed, DailyLimit, DailyRemaining    int
}

// RateLimitStatusFor computes the current window usage for callsign.
func (s *Store) RateLimitStatusFor(callsign string, perHour, perDay int) (RateLimitStatus, error) {
	var st RateLimitStatus
	st.HourlyLimit, st.DailyLimit = perHour, perDay

	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM queries WHERE callsign = ? AND timestamp > datetime('now', '-1 hour') AND error IS NULL`,
		callsign,
	).Scan(&st.HourlyUsed); err != nil {
		return st, err
	}
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM queries WHERE callsign = ? AND timestamp > datetime('now', '-1 day') AND error IS NULL`,
		callsign,
	).Scan(&st.DailyUsed); err != nil {
		return st, err
	}

	st.HourlyRemaining = max0(perHour - st.HourlyUsed)
	st.DailyRemaining = max0(perDay - st.DailyUsed)
	return st, nil
}

// RecordRateWindow persists a denormalized snapshot of a window rollover;
// purely an audit trail, not consulted by CheckRateLimit.
func (s *Store) RecordRateWindow(callsign string, count int, windowStart, windowEnd time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO rate_limits(callsign, query_count, window_start, window_end, last_query) VALUES(?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		callsign, count, windowStart, windowEnd,
	)
	return err
}

// ConnectionLog is one row of connection history, as shown to an
// operator by the CLI's "sessions" subcommand.
type ConnectionLog struct {
	Callsign        string
	Transport       string
	ConnectedAt     time.Time
	DurationSeconds int
}

// RecentConnections returns the most recent limit connections, newest
// first.
func (s *Store) RecentConnections(limit int) ([]ConnectionLog, error) {
	rows, err := s.db.Query(
		`SELECT callsign, transport, connected_at, COALESCE(duration_seconds, 0)
		 FROM connections ORDER BY connected_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConnectionLog
	for rows.Next() {
		var c ConnectionLog
		if err := rows.Scan(&c.Callsign, &c.Transport, &c.ConnectedAt, &c.DurationSeconds); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CleanupOldData drops queries, rate_limits, and errors rows older than
// olderThanDays.
func (s *Store) CleanupOldData(olderThanDays int) error {
	cutoff := fmt.Sprintf("-%d days", olderThanDays)
	if _, err := s.db.Exec(`DELETE FROM queries WHERE timestamp < datetime('now', ?)`, cutoff); err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM rate_limits WHERE window_end < datetime('now', ?)`, cutoff); err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM errors WHERE timestamp < datetime('now', ?)`, cutoff); err != nil {
		return err
	}
	return nil
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
