package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Chat session persistence for the eliza platform.

// CreateChatSession stores a new session and its opening bot message.
func (s *Session) CreateChatSession(ctx context.Context, cs ChatSession, initialMessage string) error {
	return s.Tx(ctx, func(tx *sql.Tx) error {
		now := encodeTime(cs.StartTime)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO eliza_sessions (session_id, user_id, personality_type, is_active, start_time, last_activity)
			 VALUES (?, ?, ?, 1, ?, ?)`,
			cs.SessionID, cs.UserID, cs.PersonalityType, now, now); err != nil {
			return fmt.Errorf("insert eliza session: %w", err)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO eliza_messages (session_id, message_type, content, timestamp)
			 VALUES (?, 'bot', ?, ?)`,
			cs.SessionID, initialMessage, now)
		if err != nil {
			return fmt.Errorf("insert initial message: %w", err)
		}
		return nil
	})
}

// ChatSessionByID returns a session, or found=false for an unknown id.
func (s *Session) ChatSessionByID(ctx context.Context, sessionID string) (ChatSession, bool, error) {
	var cs ChatSession
	var active int
	var start, last sql.NullString
	err := s.conn.QueryRowContext(ctx,
		`SELECT session_id, user_id, personality_type, is_active, start_time, last_activity
		 FROM eliza_sessions WHERE session_id = ?`, sessionID).
		Scan(&cs.SessionID, &cs.UserID, &cs.PersonalityType, &active, &start, &last)
	if err == sql.ErrNoRows {
		return cs, false, nil
	}
	if err != nil {
		return cs, false, fmt.Errorf("query eliza session: %w", err)
	}
	cs.Active = active != 0
	if start.Valid {
		cs.StartTime = parseTime(start.String)
	}
	if last.Valid {
		cs.LastActivity = parseTime(last.String)
	}
	return cs, true, nil
}

// RecordChatExchange stores a user message and the bot response, touches the
// session, and bumps the platform interaction counter in one transaction.
func (s *Session) RecordChatExchange(ctx context.Context, sessionID, userMessage, botResponse string, now time.Time) error {
	return s.Tx(ctx, func(tx *sql.Tx) error {
		ts := encodeTime(now)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO eliza_messages (session_id, message_type, content, timestamp)
			 VALUES (?, 'user', ?, ?)`, sessionID, userMessage, ts); err != nil {
			return fmt.Errorf("insert user message: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO eliza_messages (session_id, message_type, content, timestamp)
			 VALUES (?, 'bot', ?, ?)`, sessionID, botResponse, ts); err != nil {
			return fmt.Errorf("insert bot message: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE eliza_sessions SET last_activity = ? WHERE session_id = ?`, ts, sessionID); err != nil {
			return fmt.Errorf("touch eliza session: %w", err)
		}
		return bumpPlatform(ctx, tx, "eliza", now, 0, 0)
	})
}

// ChatHistory returns all messages of a session in order.
func (s *Session) ChatHistory(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT session_id, message_type, content, timestamp
		 FROM eliza_messages WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query eliza history: %w", err)
	}
	defer rows.Close()

	var out []ChatMessage
	for rows.Next() {
		var m ChatMessage
		var ts sql.NullString
		if err := rows.Scan(&m.SessionID, &m.MessageType, &m.Content, &ts); err != nil {
			return nil, err
		}
		if ts.Valid {
			m.Timestamp = parseTime(ts.String)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// EndChatSession marks a session inactive.
func (s *Session) EndChatSession(ctx context.Context, sessionID string, now time.Time) error {
	return s.Tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE eliza_sessions SET is_active = 0, last_activity = ? WHERE session_id = ?`,
			encodeTime(now), sessionID)
		if err != nil {
			return fmt.Errorf("end eliza session: %w", err)
		}
		return nil
	})
}

// CleanupInactiveChatSessions deactivates sessions idle longer than timeout
// and returns how many were closed.
func (s *Session) CleanupInactiveChatSessions(ctx context.Context, timeout time.Duration, now time.Time) (int, error) {
	cutoff := encodeTime(now.Add(-timeout))
	var closed int64
	err := s.Tx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE eliza_sessions SET is_active = 0
			 WHERE is_active = 1 AND last_activity <= ?`, cutoff)
		if err != nil {
			return fmt.Errorf("cleanup eliza sessions: %w", err)
		}
		closed, err = res.RowsAffected()
		return err
	})
	return int(closed), err
}
