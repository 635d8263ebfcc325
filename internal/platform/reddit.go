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

// Reddit is the Reddit platform session manager. It owns the API client and
// one store session; all its actions are strictly sequential.
type Reddit struct {
	cfg        config.RedditConfig
	client     RedditClient
	sess       *store.Session
	registry   *personality.Registry
	gen        generator.Generator
	limiter    *pacing.Limiter
	retryPol   retry.Policy
	statusPath string
	dryRun     bool
	log        *slog.Logger
}

// NewReddit constructs the handler and seeds its rate limiter from the
// database, not from the checkpoint file.
func NewReddit(ctx context.Context, cfg config.RedditConfig, gcfg config.GeneratorConfig,
	client RedditClient, sess *store.Session, registry *personality.Registry,
	gen generator.Generator, stateDir string, dryRun bool) (*Reddit, error) {

	if len(cfg.TargetSubreddits) == 0 {
		return nil, fmt.Errorf("reddit enabled but no target subreddits configured")
	}
	r := &Reddit{
		cfg:      cfg,
		client:   client,
		sess:     sess,
		registry: registry,
		gen:      gen,
		limiter:  pacing.New("reddit", cfg.RateLimits),
		retryPol: retry.Policy{
			Attempts: gcfg.RetryAttempts,
			Delay:    time.Duration(gcfg.RetryDelaySec) * time.Second,
		},
		statusPath: status.Path(stateDir, "reddit"),
		dryRun:     dryRun,
		log:        slog.With("platform", "reddit"),
	}
	seedLimiter(ctx, sess, r.limiter, "reddit")
	return r, nil
}

func (r *Reddit) Name() string { return "reddit" }

func (r *Reddit) CycleDelay() time.Duration {
	return time.Duration(r.cfg.CycleDelaySecs) * time.Second
}

func (r *Reddit) Close() error {
	return r.sess.Close()
}

// Limiter exposes the pacing state for status reporting.
func (r *Reddit) Limiter() *pacing.Limiter { return r.limiter }

// RunCycle processes every target subreddit: optionally submits one new
// post, then ingests unseen submissions and optionally comments on them.
// A single bad item never aborts the cycle.
func (r *Reddit) RunCycle(ctx context.Context) error {
	for _, subreddit := range r.cfg.TargetSubreddits {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.maybeSubmitPost(ctx, subreddit)
		if err := r.scanSubreddit(ctx, subreddit); err != nil {
			return err
		}
	}
	return nil
}

// maybeSubmitPost generates and submits one new post when a persona is
// eligible and the rate limit allows. All failures are recoverable skips.
func (r *Reddit) maybeSubmitPost(ctx context.Context, subreddit string) {
	now := time.Now()
	if !r.limiter.Eligible(store.ActionPost, now) {
		return
	}
	persona := r.activePersona()
	if persona == nil {
		r.log.Warn("no eligible personality, skipping post cycle")
		return
	}

	pc := generator.PromptContext{
		PersonalityName: persona.Name,
		Persona:         persona.Prompt("reddit", false),
		Platform:        "reddit",
		Channel:         subreddit,
	}
	var title, body string
	err := r.retryPol.Do(ctx, "generate reddit post", func() error {
		var gerr error
		title, body, gerr = r.gen.GeneratePost(ctx, pc)
		return gerr
	})
	if err != nil {
		r.log.Warn("content generation failed, skipping post", "subreddit", subreddit, "error", err)
		return
	}
	if r.cfg.Personality.Settings.AddSignature {
		body = fmt.Sprintf("*Thoughts from **%s** - %s*\n\n%s", persona.Name, firstLine(persona.Bio), body)
	}

	if r.dryRun {
		r.log.Info("dry run: would submit post", "subreddit", subreddit, "title", title)
		return
	}

	postID, err := r.client.SubmitPost(ctx, subreddit, title, body)
	if err != nil {
		r.log.Warn("post submission failed", "subreddit", subreddit, "error", err)
		return
	}

	// The external action succeeded; the limiter advances regardless of how
	// persistence below fares.
	r.limiter.Record(store.ActionPost, now)

	stored, err := r.sess.RecordPost(ctx, store.Post{
		Platform:           "reddit",
		PostID:             postID,
		Username:           r.client.Username(),
		Subreddit:          subreddit,
		Title:              title,
		Content:            body,
		PersonalityID:      persona.Name,
		PersonalityContext: persona.ContextSnapshot(false),
		Timestamp:          now,
	})
	if err != nil {
		// External state is now ahead of local state. Do not retry: a second
		// submit would duplicate the external side effect.
		r.log.Error("INCONSISTENCY: post submitted externally but not persisted",
			"post_id", postID, "subreddit", subreddit, "error", err)
		return
	}
	if stored {
		r.log.Info("submitted post", "post_id", postID, "subreddit", subreddit, "personality", persona.Name)
		r.checkpoint(now)
	}
}

// scanSubreddit ingests unseen submissions and optionally comments on the
// newly stored ones. Per-item failures are logged and skipped.
func (r *Reddit) scanSubreddit(ctx context.Context, subreddit string) error {
	items, err := r.client.FetchNewest(ctx, subreddit, r.cfg.ScanLimit)
	if err != nil {
		return fmt.Errorf("fetch r/%s: %w", subreddit, err)
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		stored, err := r.sess.IngestPost(ctx, store.Post{
			Platform:  "reddit",
			PostID:    item.ID,
			Username:  item.Author,
			Subreddit: item.Subreddit,
			Title:     item.Title,
			Content:   item.Body,
			Timestamp: item.Created,
		})
		if err != nil {
			r.log.Warn("failed to store post, skipping item", "post_id", item.ID, "error", err)
			continue
		}
		if !stored {
			continue // already processed
		}
		r.log.Info("stored new post", "post_id", item.ID, "subreddit", subreddit, "author", item.Author)

		if r.cfg.Personality.Settings.AutoReply {
			r.maybeComment(ctx, item)
		}
	}
	return nil
}

// maybeComment adds one generated comment to a freshly stored post, subject
// to the reply probability and the comment rate limit.
func (r *Reddit) maybeComment(ctx context.Context, item RedditItem) {
	if !r.registry.ShouldInteract("reddit") {
		r.log.Debug("skipping reply based on probability settings", "post_id", item.ID)
		return
	}
	now := time.Now()
	if !r.limiter.Eligible(store.ActionComment, now) {
		return
	}
	persona := r.registry.ForThread(item.ID, "reddit")
	if persona == nil {
		return
	}

	pc := generator.PromptContext{
		PersonalityName: persona.Name,
		Persona:         persona.Prompt("reddit", true),
		Platform:        "reddit",
		Channel:         item.Subreddit,
		IsReply:         true,
	}
	var text string
	err := r.retryPol.Do(ctx, "generate reddit comment", func() error {
		var gerr error
		text, gerr = r.gen.GenerateComment(ctx, pc, item.Title, item.Body)
		return gerr
	})
	if err != nil {
		r.log.Warn("comment generation failed, skipping", "post_id", item.ID, "error", err)
		return
	}

	if r.dryRun {
		r.log.Info("dry run: would submit comment", "post_id", item.ID, "personality", persona.Name)
		return
	}

	commentID, err := r.client.SubmitComment(ctx, item.ID, text)
	if err != nil {
		r.log.Warn("comment submission failed", "post_id", item.ID, "error", err)
		return
	}
	r.limiter.Record(store.ActionComment, now)

	stored, err := r.sess.RecordComment(ctx, store.Comment{
		Platform:           "reddit",
		Username:           persona.Name,
		CommentID:          commentID,
		PostID:             item.ID,
		Content:            text,
		PersonalityID:      persona.Name,
		PersonalityContext: persona.ContextSnapshot(true),
		Timestamp:          now,
	})
	if err != nil {
		r.log.Error("INCONSISTENCY: comment submitted externally but not persisted",
			"comment_id", commentID, "post_id", item.ID, "error", err)
		return
	}
	if stored {
		r.log.Info("submitted comment", "comment_id", commentID, "post_id", item.ID, "personality", persona.Name)
		r.checkpoint(now)
	}
}

func (r *Reddit) activePersona() *personality.Personality {
	if name := r.cfg.Personality.Active; name != "" {
		if p := r.registry.Get(name); p != nil && p.SupportsPlatform("reddit") {
			return p
		}
		r.log.Warn("configured personality unavailable, falling back to random", "name", name)
	}
	return r.registry.RandomEligible("reddit")
}

func (r *Reddit) checkpoint(at time.Time) {
	err := writeCheckpoint(r.statusPath, r.limiter,
		r.cfg.RateLimits.ActionsPerHour, r.cfg.RateLimits.MinDelayBetweenActions, at, true)
	if err != nil {
		r.log.Warn("failed to write status checkpoint", "error", err)
	}
}

func firstLine(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}
