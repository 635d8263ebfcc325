package store

import (
	"time"
)

// PlatformStat is the running counter row for one platform.
type PlatformStat struct {
	Platform          string    `json:"platform"`
	TotalInteractions int       `json:"total_interactions"`
	TotalPosts        int       `json:"total_posts"`
	TotalComments     int       `json:"total_comments"`
	LastActivity      time.Time `json:"last_activity"`
}

// Post is one stored post, append-only once created.
type Post struct {
	ID                 int64     `json:"id"`
	Platform           string    `json:"platform"`
	PostID             string    `json:"post_id"`
	Username           string    `json:"username"`
	Subreddit          string    `json:"subreddit"` // channel for non-reddit platforms
	Title              string    `json:"post_title"`
	Content            string    `json:"post_content"`
	PersonalityID      string    `json:"personality_id"`
	PersonalityContext string    `json:"personality_context"` // denormalized JSON snapshot
	Timestamp          time.Time `json:"timestamp"`
}

// Comment is one stored comment or reply.
type Comment struct {
	ID                 int64     `json:"id"`
	Platform           string    `json:"platform"`
	Username           string    `json:"username"`
	CommentID          string    `json:"comment_id"`
	PostID             string    `json:"post_id"`
	Content            string    `json:"comment_content"`
	PersonalityID      string    `json:"personality_id"`
	PersonalityContext string    `json:"personality_context"`
	Timestamp          time.Time `json:"timestamp"`
}

// PersonalityStat is the per-personality, per-platform counter row.
type PersonalityStat struct {
	PersonalityID string    `json:"personality_id"`
	Platform      string    `json:"platform"`
	TotalPosts    int       `json:"total_posts"`
	TotalComments int       `json:"total_comments"`
	LastActivity  time.Time `json:"last_activity"`
}

// Activity is one row of the merged recent-activity view.
type Activity struct {
	PostID         string     `json:"post_id"`
	Username       string     `json:"username"`
	Subreddit      string     `json:"subreddit"`
	Title          string     `json:"title"`
	PersonalityID  string     `json:"personality_id"`
	CommentID      string     `json:"comment_id,omitempty"`
	CommentContent string     `json:"comment_content,omitempty"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`
}

// ChatSession is one eliza conversation session.
type ChatSession struct {
	SessionID       string    `json:"session_id"`
	UserID          string    `json:"user_id"`
	PersonalityType string    `json:"personality_type"`
	Active          bool      `json:"active"`
	StartTime       time.Time `json:"start_time"`
	LastActivity    time.Time `json:"last_activity"`
}

// ChatMessage is one message inside an eliza session.
type ChatMessage struct {
	SessionID   string    `json:"session_id"`
	MessageType string    `json:"message_type"` // "user" or "bot"
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
}

// Action types tracked per platform.
const (
	ActionPost    = "post"
	ActionComment = "comment"
	ActionReply   = "reply"
)

// Platforms with a platform_stats row created at initialization.
var KnownPlatforms = []string{"reddit", "twitter", "eliza"}

// contentTables are dropped and recreated on a forced re-init.
var contentTables = []string{
	"platform_stats", "posts", "comments", "personality_stats",
	"eliza_sessions", "eliza_messages",
}

const Schema = `
CREATE TABLE IF NOT EXISTS platform_stats (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	platform TEXT UNIQUE,
	total_interactions INTEGER DEFAULT 0,
	total_posts INTEGER DEFAULT 0,
	total_comments INTEGER DEFAULT 0,
	last_activity TEXT
);

CREATE TABLE IF NOT EXISTS posts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	platform TEXT,
	post_id TEXT,
	username TEXT,
	subreddit TEXT,
	post_title TEXT,
	post_content TEXT,
	personality_id TEXT,
	personality_context TEXT,
	timestamp TEXT,
	UNIQUE(platform, post_id)
);
CREATE INDEX IF NOT EXISTS idx_posts_timestamp ON posts(timestamp);
CREATE INDEX IF NOT EXISTS idx_posts_platform ON posts(platform);

-- post_id is a soft reference: posts are keyed by (platform, post_id), so an
-- enforced single-column FK cannot express it.
CREATE TABLE IF NOT EXISTS comments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	platform TEXT,
	username TEXT,
	comment_id TEXT,
	post_id TEXT,
	comment_content TEXT,
	personality_id TEXT,
	personality_context TEXT,
	timestamp TEXT,
	UNIQUE(platform, comment_id)
);
CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id);
CREATE INDEX IF NOT EXISTS idx_comments_timestamp ON comments(timestamp);

CREATE TABLE IF NOT EXISTS personality_stats (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	personality_id TEXT,
	platform TEXT,
	total_posts INTEGER DEFAULT 0,
	total_comments INTEGER DEFAULT 0,
	last_activity TEXT,
	UNIQUE(personality_id, platform)
);

CREATE TABLE IF NOT EXISTS eliza_sessions (
	session_id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	personality_type TEXT,
	is_active INTEGER NOT NULL DEFAULT 1,
	start_time TEXT,
	last_activity TEXT
);
CREATE INDEX IF NOT EXISTS idx_eliza_sessions_active ON eliza_sessions(is_active);

CREATE TABLE IF NOT EXISTS eliza_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES eliza_sessions(session_id),
	message_type TEXT NOT NULL,
	content TEXT,
	timestamp TEXT
);
CREATE INDEX IF NOT EXISTS idx_eliza_messages_session ON eliza_messages(session_id);
`
