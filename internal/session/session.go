// Package session tracks per-callsign conversation state: bounded message
// history, activity timestamps, and authentication status.
package session

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Message is one turn of conversation history.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// OperatorInfo is the directory-lookup result attached to an authenticated
// session.
type OperatorInfo struct {
	FullName string
	Location string
	GridSquare string
}

// Session is one callsign's conversation state.
type Session struct {
	mu sync.Mutex

	Callsign      string
	maxMessages   int
	messages      []Message
	CreatedAt     time.Time
	LastActivity  time.Time
	QueryCount    int
	Authenticated bool
	OperatorInfo  *OperatorInfo
}

func newSession(callsign string, maxMessages int) *Session {
	now := time.Now()
	return &Session{
		Callsign:     callsign,
		maxMessages:  maxMessages,
		CreatedAt:    now,
		LastActivity: now,
	}
}

// AddMessage appends a message to history, evicting the oldest entry once
// maxMessages is exceeded. Bumps QueryCount on user messages.
func (s *Session) AddMessage(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, Message{Role: role, Content: content})
	if len(s.messages) > s.maxMessages {
		s.messages = s.messages[len(s.messages)-s.maxMessages:]
	}
	s.LastActivity = time.Now()
	if role == "user" {
		s.QueryCount++
	}
}

// History returns a copy of the conversation so far, oldest first.
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Clear empties the conversation history.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	slog.Info("cleared conversation history", "callsign", s.Callsign)
}

// Authenticate marks the session authenticated and attaches operator info.
func (s *Session) Authenticate(info OperatorInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Authenticated = true
	s.OperatorInfo = &info
	slog.Info("session authenticated", "callsign", s.Callsign, "operator", info.FullName)
}

// Age returns how long the session has existed.
func (s *Session) Age() time.Duration {
	return time.Since(s.CreatedAt)
}

// IdleTime returns how long since the session last saw activity.
func (s *Session) IdleTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.LastActivity)
}

// messageCount returns the current history length, for stats.
func (s *Session) messageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Store manages conversation sessions for multiple callsigns.
type Store struct {
	mu          sync.Mutex
	maxMessages int
	sessions    map[string]*Session
}

// NewStore creates a Store holding up to maxMessages of history per
// session.
func NewStore(maxMessages int) *Store {
	return &Store{
		maxMessages: maxMessages,
		sessions:    make(map[string]*Session),
	}
}

// Get returns the session for callsign, creating it if absent.
func (st *Store) Get(callsign string) *Session {
	cs := strings.ToUpper(callsign)

	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[cs]
	if !ok {
		slog.Info("creating new session", "callsign", cs)
		s = newSession(cs, st.maxMessages)
		st.sessions[cs] = s
	}
	return s
}

// AddUserMessage records a user turn for callsign.
func (st *Store) AddUserMessage(callsign, message string) {
	st.Get(callsign).AddMessage("user", message)
}

// AddAssistantMessage records an assistant turn for callsign.
func (st *Store) AddAssistantMessage(callsign, message string) {
	st.Get(callsign).AddMessage("assistant", message)
}

// History returns callsign's conversation so far.
func (st *Store) History(callsign string) []Message {
	return st.Get(callsign).History()
}

// ClearSession empties callsign's history, if a session exists.
func (st *Store) ClearSession(callsign string) {
	cs := strings.ToUpper(callsign)
	st.mu.Lock()
	s, ok := st.sessions[cs]
	st.mu.Unlock()
	if ok {
		s.Clear()
	}
}

// Remove deletes callsign's session entirely.
func (st *Store) Remove(callsign string) {
	cs := strings.ToUpper(callsign)
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[cs]; ok {
		delete(st.sessions, cs)
		slog.Info("removed session", "callsign", cs)
	}
}

// Rekey moves a session from oldCallsign to newCallsign, used when a
// connection authenticates mid-stream (P6). A no-op if oldCallsign has no
// session; overwrites any existing session under newCallsign.
func (st *Store) Rekey(oldCallsign, newCallsign string) {
	oldCS, newCS := strings.ToUpper(oldCallsign), strings.ToUpper(newCallsign)
	if oldCS == newCS {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[oldCS]
	if !ok {
		return
	}
	delete(st.sessions, oldCS)
	s.Callsign = newCS
	st.sessions[newCS] = s
}

// CleanupIdle removes sessions that have been idle longer than timeout,
// returning the removed callsigns.
func (st *Store) CleanupIdle(timeout time.Duration) []string {
	st.mu.Lock()
	defer st.mu.Unlock()

	var removed []string
	for cs, s := range st.sessions {
		if s.IdleTime() > timeout {
			removed = append(removed, cs)
		}
	}
	for _, cs := range removed {
		delete(st.sessions, cs)
		slog.Info("removing idle session", "callsign", cs)
	}
	return removed
}

// Count returns the number of active sessions.
func (st *Store) Count() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Stats summarizes all active sessions.
type Stats struct {
	ActiveSessions int
	TotalMessages  int
	TotalQueries   int
}

// Callsigns returns the keys of all authenticated sessions.
func (st *Store) Callsigns() []string {
	st.mu.Lock()
	defer st.mu.Unlock()

	var out []string
	for cs, s := range st.sessions {
		s.mu.Lock()
		auth := s.Authenticated
		s.mu.Unlock()
		if auth {
			out = append(out, cs)
		}
	}
	return out
}

// Stats computes aggregate session statistics.
func (st *Store) Stats() Stats {
	st.mu.Lock()
	sessions := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		sessions = append(sessions, s)
	}
	st.mu.Unlock()

	stats := Stats{ActiveSessions: len(sessions)}
	for _, s := range sessions {
		stats.TotalMessages += s.messageCount()
		s.mu.Lock()
		stats.TotalQueries += s.QueryCount
		s.mu.Unlock()
	}
	return stats
}
