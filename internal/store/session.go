package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Session is a single worker's private handle to the store. It owns one
// dedicated connection, so a worker's actions are strictly sequential and no
// connection is ever shared across workers. Not safe for concurrent use.
type Session struct {
	conn  *sql.Conn
	tx    *sql.Tx
	depth int
	fail  error
}

// Close releases the underlying connection.
func (s *Session) Close() error {
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	return s.conn.Close()
}

// Tx runs fn inside a transaction scope. The outermost scope begins the
// transaction; nested scopes join it. On success the outermost scope commits,
// on any error the whole transaction rolls back and the original error
// propagates unmasked.
func (s *Session) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.tx == nil {
		tx, err := s.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		s.tx = tx
		s.fail = nil
	}
	s.depth++
	err := fn(s.tx)
	s.depth--

	if err != nil && s.fail == nil {
		s.fail = err
	}
	if s.depth == 0 {
		tx := s.tx
		s.tx = nil
		if s.fail != nil {
			_ = tx.Rollback()
			return s.fail
		}
		if cerr := tx.Commit(); cerr != nil {
			return fmt.Errorf("commit transaction: %w", cerr)
		}
	}
	return err
}

// IngestPost stores externally observed content. A duplicate
// (platform, post_id) is not an error: it means "already processed" and the
// call reports stored=false. A genuinely new post bumps the platform's
// interaction counter in the same transaction.
func (s *Session) IngestPost(ctx context.Context, p Post) (bool, error) {
	var stored bool
	err := s.Tx(ctx, func(tx *sql.Tx) error {
		ts := p.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO posts
			 (platform, post_id, username, subreddit, post_title, post_content, personality_id, personality_context, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Platform, p.PostID, p.Username, p.Subreddit, p.Title, p.Content,
			p.PersonalityID, p.PersonalityContext, encodeTime(ts))
		if err != nil {
			return fmt.Errorf("insert post %s/%s: %w", p.Platform, p.PostID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil // already seen
		}
		stored = true
		return bumpPlatform(ctx, tx, p.Platform, ts, 0, 0)
	})
	return stored, err
}

// RecordPost stores a post this process submitted, together with its stat
// updates, atomically. Duplicate external ids are a no-op like IngestPost.
func (s *Session) RecordPost(ctx context.Context, p Post) (bool, error) {
	var stored bool
	err := s.Tx(ctx, func(tx *sql.Tx) error {
		ts := p.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO posts
			 (platform, post_id, username, subreddit, post_title, post_content, personality_id, personality_context, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Platform, p.PostID, p.Username, p.Subreddit, p.Title, p.Content,
			p.PersonalityID, p.PersonalityContext, encodeTime(ts))
		if err != nil {
			return fmt.Errorf("insert post %s/%s: %w", p.Platform, p.PostID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		stored = true
		if err := bumpPlatform(ctx, tx, p.Platform, ts, 1, 0); err != nil {
			return err
		}
		return bumpPersonality(ctx, tx, p.PersonalityID, p.Platform, ts, 1, 0)
	})
	return stored, err
}

// RecordComment stores a comment this process submitted, together with its
// stat updates, atomically. Duplicate external ids are a no-op.
func (s *Session) RecordComment(ctx context.Context, c Comment) (bool, error) {
	var stored bool
	err := s.Tx(ctx, func(tx *sql.Tx) error {
		ts := c.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO comments
			 (platform, username, comment_id, post_id, comment_content, personality_id, personality_context, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.Platform, c.Username, c.CommentID, c.PostID, c.Content,
			c.PersonalityID, c.PersonalityContext, encodeTime(ts))
		if err != nil {
			return fmt.Errorf("insert comment %s/%s: %w", c.Platform, c.CommentID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		stored = true
		if err := bumpPlatform(ctx, tx, c.Platform, ts, 0, 1); err != nil {
			return err
		}
		return bumpPersonality(ctx, tx, c.PersonalityID, c.Platform, ts, 0, 1)
	})
	return stored, err
}

// HasPost reports whether (platform, postID) is already stored.
func (s *Session) HasPost(ctx context.Context, platform, postID string) (bool, error) {
	var one int
	err := s.conn.QueryRowContext(ctx,
		`SELECT 1 FROM posts WHERE platform = ? AND post_id = ?`, platform, postID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query post %s/%s: %w", platform, postID, err)
	}
	return true, nil
}

// LastActionTime returns the timestamp of the most recent recorded action of
// the given type on the platform. This is the source of truth for pacing
// across restarts; the status checkpoint file is only an advisory hint.
func (s *Session) LastActionTime(ctx context.Context, platform, action string) (time.Time, bool, error) {
	var query string
	args := []any{platform}
	switch action {
	case ActionPost:
		query = `SELECT MAX(timestamp) FROM posts WHERE platform = ? AND personality_id != ''`
	case ActionComment:
		query = `SELECT MAX(timestamp) FROM comments WHERE platform = ?`
	case ActionReply:
		// Chat replies live in eliza_messages, not comments.
		query = `SELECT MAX(timestamp) FROM eliza_messages WHERE message_type = 'bot'`
		args = nil
	default:
		return time.Time{}, false, fmt.Errorf("unknown action type %q", action)
	}
	var raw sql.NullString
	if err := s.conn.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		return time.Time{}, false, fmt.Errorf("query last %s time: %w", action, err)
	}
	if !raw.Valid || raw.String == "" {
		return time.Time{}, false, nil
	}
	return parseTime(raw.String), true, nil
}

// PlatformStats returns the counter row for one platform.
func (s *Session) PlatformStats(ctx context.Context, platform string) (PlatformStat, error) {
	var stat PlatformStat
	var last sql.NullString
	err := s.conn.QueryRowContext(ctx,
		`SELECT platform, total_interactions, total_posts, total_comments, last_activity
		 FROM platform_stats WHERE platform = ?`, platform).
		Scan(&stat.Platform, &stat.TotalInteractions, &stat.TotalPosts, &stat.TotalComments, &last)
	if err == sql.ErrNoRows {
		return PlatformStat{Platform: platform}, nil
	}
	if err != nil {
		return stat, fmt.Errorf("query platform stats: %w", err)
	}
	if last.Valid {
		stat.LastActivity = parseTime(last.String)
	}
	return stat, nil
}

// PersonalityStats returns all personality counter rows for one platform.
func (s *Session) PersonalityStats(ctx context.Context, platform string) ([]PersonalityStat, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT personality_id, platform, total_posts, total_comments, last_activity
		 FROM personality_stats WHERE platform = ? ORDER BY personality_id`, platform)
	if err != nil {
		return nil, fmt.Errorf("query personality stats: %w", err)
	}
	defer rows.Close()

	var out []PersonalityStat
	for rows.Next() {
		var st PersonalityStat
		var last sql.NullString
		if err := rows.Scan(&st.PersonalityID, &st.Platform, &st.TotalPosts, &st.TotalComments, &last); err != nil {
			return nil, err
		}
		if last.Valid {
			st.LastActivity = parseTime(last.String)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// RecentActivity returns the latest posts joined with their comments,
// newest first. Read-only.
func (s *Session) RecentActivity(ctx context.Context, platform string, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.conn.QueryContext(ctx,
		`SELECT p.post_id, p.username, p.subreddit, p.post_title, p.personality_id,
		        c.comment_id, c.comment_content, COALESCE(c.timestamp, p.timestamp)
		 FROM posts p
		 LEFT JOIN comments c ON p.post_id = c.post_id
		 WHERE p.platform = ?
		 ORDER BY COALESCE(c.timestamp, p.timestamp) DESC
		 LIMIT ?`, platform, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent activity: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		var commentID, commentContent, ts sql.NullString
		if err := rows.Scan(&a.PostID, &a.Username, &a.Subreddit, &a.Title, &a.PersonalityID,
			&commentID, &commentContent, &ts); err != nil {
			return nil, err
		}
		a.CommentID = commentID.String
		a.CommentContent = commentContent.String
		if ts.Valid {
			t := parseTime(ts.String)
			a.Timestamp = &t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func bumpPlatform(ctx context.Context, tx *sql.Tx, platform string, ts time.Time, posts, comments int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE platform_stats
		 SET total_interactions = total_interactions + 1,
		     total_posts = total_posts + ?,
		     total_comments = total_comments + ?,
		     last_activity = ?
		 WHERE platform = ?`,
		posts, comments, encodeTime(ts), platform)
	if err != nil {
		return fmt.Errorf("update platform_stats for %s: %w", platform, err)
	}
	return nil
}

func bumpPersonality(ctx context.Context, tx *sql.Tx, personalityID, platform string, ts time.Time, posts, comments int) error {
	if personalityID == "" {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO personality_stats (personality_id, platform, total_posts, total_comments, last_activity)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(personality_id, platform) DO UPDATE SET
		     total_posts = total_posts + excluded.total_posts,
		     total_comments = total_comments + excluded.total_comments,
		     last_activity = excluded.last_activity`,
		personalityID, platform, posts, comments, encodeTime(ts))
	if err != nil {
		return fmt.Errorf("update personality_stats for %s/%s: %w", personalityID, platform, err)
	}
	return nil
}
