package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flavumhive/hivemind/internal/config"
	"github.com/flavumhive/hivemind/internal/pacing"
	"github.com/flavumhive/hivemind/internal/personality"
	"github.com/flavumhive/hivemind/internal/status"
	"github.com/flavumhive/hivemind/internal/store"
)

// ErrSessionClosed is returned when a message targets a session that does
// not exist or was already ended.
var ErrSessionClosed = errors.New("chat session not found or inactive")

// ErrThrottled is returned when the chat rate limit rejects a message.
var ErrThrottled = errors.New("chat rate limit exceeded")

// Eliza is the toy chat responder. Unlike the other platforms it is driven
// by callers, not by its cycle; RunCycle only expires idle sessions.
type Eliza struct {
	cfg        config.ElizaConfig
	sess       *store.Session
	registry   *personality.Registry
	limiter    *pacing.Limiter
	statusPath string
	log        *slog.Logger
}

func NewEliza(ctx context.Context, cfg config.ElizaConfig, sess *store.Session,
	registry *personality.Registry, stateDir string) (*Eliza, error) {

	e := &Eliza{
		cfg:        cfg,
		sess:       sess,
		registry:   registry,
		limiter:    pacing.New("eliza", cfg.RateLimits),
		statusPath: status.Path(stateDir, "eliza"),
		log:        slog.With("platform", "eliza"),
	}
	seedLimiter(ctx, sess, e.limiter, "eliza")
	return e, nil
}

func (e *Eliza) Name() string { return "eliza" }

func (e *Eliza) CycleDelay() time.Duration {
	return time.Duration(e.cfg.CycleDelaySecs) * time.Second
}

func (e *Eliza) Close() error {
	return e.sess.Close()
}

// Limiter exposes the pacing state for status reporting.
func (e *Eliza) Limiter() *pacing.Limiter { return e.limiter }

func (e *Eliza) sessionTimeout() time.Duration {
	return time.Duration(e.cfg.SessionTimeoutSecs) * time.Second
}

// RunCycle expires sessions that have been idle past the configured timeout.
func (e *Eliza) RunCycle(ctx context.Context) error {
	n, err := e.sess.CleanupInactiveChatSessions(ctx, e.sessionTimeout(), time.Now())
	if err != nil {
		return fmt.Errorf("cleanup chat sessions: %w", err)
	}
	if n > 0 {
		e.log.Info("expired inactive chat sessions", "count", n)
	}
	return nil
}

// CreateSession opens a new chat session for a user and returns its id. The
// persona is fixed for the lifetime of the session.
func (e *Eliza) CreateSession(ctx context.Context, userID, personalityName string) (string, error) {
	var persona *personality.Personality
	if personalityName != "" {
		persona = e.registry.Get(personalityName)
		if persona == nil || !persona.SupportsPlatform("eliza") {
			return "", fmt.Errorf("personality %q not available for chat", personalityName)
		}
	} else {
		persona = e.registry.RandomEligible("eliza")
		if persona == nil {
			return "", fmt.Errorf("no personality supports chat")
		}
	}

	now := time.Now()
	sessionID := uuid.NewString()
	err := e.sess.CreateChatSession(ctx, store.ChatSession{
		SessionID:       sessionID,
		UserID:          userID,
		PersonalityType: persona.Name,
		Active:          true,
		StartTime:       now,
		LastActivity:    now,
	}, e.greeting(persona))
	if err != nil {
		return "", fmt.Errorf("create chat session: %w", err)
	}
	e.log.Info("chat session started", "session_id", sessionID, "user_id", userID, "personality", persona.Name)
	return sessionID, nil
}

// ProcessMessage records the user message and returns the persona's reply.
// Both sides of the exchange are persisted atomically.
func (e *Eliza) ProcessMessage(ctx context.Context, sessionID, message string) (string, error) {
	cs, found, err := e.sess.ChatSessionByID(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("look up session: %w", err)
	}
	if !found || !cs.Active {
		return "", ErrSessionClosed
	}

	now := time.Now()
	if !e.limiter.Eligible(store.ActionReply, now) {
		return "", ErrThrottled
	}

	persona := e.registry.Get(cs.PersonalityType)
	response := e.respond(persona, message)

	if err := e.sess.RecordChatExchange(ctx, sessionID, message, response, now); err != nil {
		return "", fmt.Errorf("record exchange: %w", err)
	}
	e.limiter.Record(store.ActionReply, now)
	e.checkpoint(now)
	return response, nil
}

// History returns all messages of a session in order.
func (e *Eliza) History(ctx context.Context, sessionID string) ([]store.ChatMessage, error) {
	return e.sess.ChatHistory(ctx, sessionID)
}

// EndSession marks a session inactive. Ending an unknown session is an error.
func (e *Eliza) EndSession(ctx context.Context, sessionID string) error {
	_, found, err := e.sess.ChatSessionByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if !found {
		return ErrSessionClosed
	}
	if err := e.sess.EndChatSession(ctx, sessionID, time.Now()); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	e.log.Info("chat session ended", "session_id", sessionID)
	return nil
}

func (e *Eliza) greeting(persona *personality.Personality) string {
	if len(persona.Bio) > 0 {
		return fmt.Sprintf("Hi, I'm %s. %s What's on your mind?", persona.Name, persona.Bio[0])
	}
	return fmt.Sprintf("Hi, I'm %s. What's on your mind?", persona.Name)
}

// respond produces a rule-based reflection of the user's message, flavored
// with the persona's vocabulary. Deliberately simple: this platform exists
// to exercise session plumbing, not to hold a conversation.
func (e *Eliza) respond(persona *personality.Personality, message string) string {
	trimmed := strings.TrimSpace(message)
	var reply string
	switch {
	case trimmed == "":
		reply = "Say something and I'll pick it up from there."
	case strings.HasSuffix(trimmed, "?"):
		reply = fmt.Sprintf("Good question. When you ask %q, what answer are you hoping for?", trimmed)
	case len(trimmed) < 20:
		reply = fmt.Sprintf("Tell me more about %q.", trimmed)
	default:
		reply = fmt.Sprintf("I hear you saying: %q. What makes that important to you right now?", firstWords(trimmed, 12))
	}
	if persona != nil && len(persona.Style.Chat) > 0 {
		reply = fmt.Sprintf("%s (%s)", reply, persona.Style.Chat[0])
	}
	return reply
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ") + "..."
}

func (e *Eliza) checkpoint(at time.Time) {
	err := writeCheckpoint(e.statusPath, e.limiter,
		e.cfg.RateLimits.ActionsPerHour, e.cfg.RateLimits.MinDelayBetweenActions, at, true)
	if err != nil {
		e.log.Warn("failed to write status checkpoint", "error", err)
	}
}
