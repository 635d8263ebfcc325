package platform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flavumhive/hivemind/internal/config"
	"github.com/flavumhive/hivemind/internal/generator"
	"github.com/flavumhive/hivemind/internal/pacing"
	"github.com/flavumhive/hivemind/internal/personality"
	"github.com/flavumhive/hivemind/internal/retry"
	"github.com/flavumhive/hivemind/internal/status"
	"github.com/flavumhive/hivemind/internal/store"
)

// TwitterClientFactory builds a fresh authenticated client. The handler
// rebuilds the browser session after it gets wedged, so construction has to
// be repeatable.
type TwitterClientFactory func(ctx context.Context) (TwitterClient, error)

// Twitter posts generated tweets on a randomized schedule and sometimes adds
// a follow-up reply from a contrasting personality.
type Twitter struct {
	cfg        config.TwitterConfig
	factory    TwitterClientFactory
	client     TwitterClient
	sess       *store.Session
	registry   *personality.Registry
	gen        generator.Generator
	limiter    *pacing.Limiter
	retryPol   retry.Policy
	statusPath string
	dryRun     bool
	log        *slog.Logger
}

// NewTwitter builds the handler. The client is constructed eagerly so a
// broken login is a startup failure rather than a silent no-op loop.
func NewTwitter(ctx context.Context, cfg config.TwitterConfig, gcfg config.GeneratorConfig,
	factory TwitterClientFactory, sess *store.Session, registry *personality.Registry,
	gen generator.Generator, stateDir string, dryRun bool) (*Twitter, error) {

	client, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("twitter client: %w", err)
	}
	t := &Twitter{
		cfg:      cfg,
		factory:  factory,
		client:   client,
		sess:     sess,
		registry: registry,
		gen:      gen,
		limiter:  pacing.New("twitter", cfg.RateLimits),
		retryPol: retry.Policy{
			Attempts: gcfg.RetryAttempts,
			Delay:    time.Duration(gcfg.RetryDelaySec) * time.Second,
		},
		statusPath: status.Path(stateDir, "twitter"),
		dryRun:     dryRun,
		log:        slog.With("platform", "twitter"),
	}
	seedLimiter(ctx, sess, t.limiter, "twitter")
	return t, nil
}

func (t *Twitter) Name() string { return "twitter" }

func (t *Twitter) CycleDelay() time.Duration {
	return time.Duration(t.cfg.CycleDelaySecs) * time.Second
}

func (t *Twitter) Close() error {
	var first error
	if t.client != nil {
		first = t.client.Close()
		t.client = nil
	}
	if err := t.sess.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// Limiter exposes the pacing state for status reporting.
func (t *Twitter) Limiter() *pacing.Limiter { return t.limiter }

// RunCycle posts at most one tweet per cycle, plus an optional follow-up
// reply. A wedged browser session is rebuilt and the cycle retried once.
func (t *Twitter) RunCycle(ctx context.Context) error {
	now := time.Now()
	if !t.limiter.Eligible(store.ActionPost, now) {
		return nil
	}
	persona := t.activePersona()
	if persona == nil {
		t.log.Warn("no eligible personality, skipping tweet cycle")
		return nil
	}

	err := t.postOnce(ctx, persona, now)
	if err == nil || ctx.Err() != nil {
		return err
	}

	// Long-lived browser sessions drift: expired auth, stuck overlays,
	// challenge pages. Rebuild from scratch and try once more.
	t.log.Warn("tweet cycle failed, rebuilding browser session", "error", err)
	if rerr := t.rebuildClient(ctx); rerr != nil {
		return fmt.Errorf("rebuild twitter session: %w", rerr)
	}
	return t.postOnce(ctx, persona, time.Now())
}

func (t *Twitter) postOnce(ctx context.Context, persona *personality.Personality, now time.Time) error {
	pc := generator.PromptContext{
		PersonalityName: persona.Name,
		Persona:         persona.Prompt("twitter", false),
		Platform:        "twitter",
		Channel:         t.cfg.TweetContext,
	}
	var content string
	err := t.retryPol.Do(ctx, "generate tweet", func() error {
		var gerr error
		_, content, gerr = t.gen.GeneratePost(ctx, pc)
		return gerr
	})
	if err != nil {
		t.log.Warn("tweet generation failed, skipping cycle", "error", err)
		return nil
	}

	if t.dryRun {
		t.log.Info("dry run: would post tweet", "personality", persona.Name, "length", len(content))
		return nil
	}

	tweetID, err := t.client.PostTweet(ctx, content)
	if err != nil {
		return fmt.Errorf("post tweet: %w", err)
	}
	t.limiter.Record(store.ActionPost, now)

	stored, err := t.sess.RecordPost(ctx, store.Post{
		Platform:           "twitter",
		PostID:             tweetID,
		Username:           t.client.Username(),
		Title:              "",
		Content:            content,
		PersonalityID:      persona.Name,
		PersonalityContext: persona.ContextSnapshot(false),
		Timestamp:          now,
	})
	if err != nil {
		t.log.Error("INCONSISTENCY: tweet posted externally but not persisted",
			"tweet_id", tweetID, "error", err)
		return nil
	}
	if stored {
		t.log.Info("posted tweet", "tweet_id", tweetID, "personality", persona.Name)
		t.checkpoint(now)
	}

	if t.cfg.Personality.Settings.AutoReply && t.registry.ShouldInteract("twitter") {
		t.followUp(ctx, persona, tweetID, content)
	}
	return nil
}

// followUp adds a reply from a contrasting personality under the tweet the
// handler just posted. Failure here never fails the cycle.
func (t *Twitter) followUp(ctx context.Context, author *personality.Personality, tweetID, tweetText string) {
	now := time.Now()
	if !t.limiter.Eligible(store.ActionComment, now) {
		return
	}
	persona := t.registry.Contrasting(author.Name, "twitter")
	if persona == nil {
		return
	}

	pc := generator.PromptContext{
		PersonalityName: persona.Name,
		Persona:         persona.Prompt("twitter", true),
		Platform:        "twitter",
		IsReply:         true,
	}
	var reply string
	err := t.retryPol.Do(ctx, "generate tweet reply", func() error {
		var gerr error
		reply, gerr = t.gen.GenerateComment(ctx, pc, "", tweetText)
		return gerr
	})
	if err != nil {
		t.log.Warn("follow-up generation failed", "tweet_id", tweetID, "error", err)
		return
	}

	replyID, err := t.client.ReplyToTweet(ctx, tweetID, reply)
	if err != nil {
		t.log.Warn("follow-up reply failed", "tweet_id", tweetID, "error", err)
		return
	}
	t.limiter.Record(store.ActionComment, now)

	_, err = t.sess.RecordComment(ctx, store.Comment{
		Platform:           "twitter",
		Username:           persona.Name,
		CommentID:          replyID,
		PostID:             tweetID,
		Content:            reply,
		PersonalityID:      persona.Name,
		PersonalityContext: persona.ContextSnapshot(true),
		Timestamp:          now,
	})
	if err != nil {
		t.log.Error("INCONSISTENCY: reply posted externally but not persisted",
			"reply_id", replyID, "tweet_id", tweetID, "error", err)
		return
	}
	t.log.Info("posted follow-up reply", "reply_id", replyID, "tweet_id", tweetID, "personality", persona.Name)
	t.checkpoint(now)
}

func (t *Twitter) rebuildClient(ctx context.Context) error {
	if t.client != nil {
		_ = t.client.Close()
		t.client = nil
	}
	client, err := t.factory(ctx)
	if err != nil {
		return err
	}
	t.client = client
	return nil
}

func (t *Twitter) activePersona() *personality.Personality {
	if name := t.cfg.Personality.Active; name != "" {
		if p := t.registry.Get(name); p != nil && p.SupportsPlatform("twitter") {
			return p
		}
		t.log.Warn("configured personality unavailable, falling back to random", "name", name)
	}
	return t.registry.RandomEligible("twitter")
}

func (t *Twitter) checkpoint(at time.Time) {
	err := writeCheckpoint(t.statusPath, t.limiter,
		t.cfg.RateLimits.ActionsPerHour, t.cfg.RateLimits.MinDelayBetweenActions, at, true)
	if err != nil {
		t.log.Warn("failed to write status checkpoint", "error", err)
	}
}
