package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flavumhive/hivemind/internal/config"
	"github.com/flavumhive/hivemind/internal/generator"
	"github.com/flavumhive/hivemind/internal/orchestrator"
	"github.com/flavumhive/hivemind/internal/personality"
	"github.com/flavumhive/hivemind/internal/platform"
	"github.com/flavumhive/hivemind/internal/store"
)

var runDryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot in the foreground",
	RunE:  runBot,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Generate content but never post it")
}

func runBot(cmd *cobra.Command, args []string) error {
	printHeader("Hivemind")
	fmt.Println("Starting hivemind...")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runDryRun {
		cfg.Global.DryRun = true
	}
	enabled := cfg.EnabledPlatforms()
	if len(enabled) == 0 {
		return fmt.Errorf("no platforms enabled; edit the config and enable at least one")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize, not Open: the counter updates assume one seeded
	// platform_stats row per platform, also on a first launch without db init.
	st, err := store.Initialize(cfg.Global.DatabasePath, false)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	registry, err := personality.Load(cfg.Global.PersonalityDir, map[string]float64{
		"reddit":  cfg.Platforms.Reddit.Personality.Settings.ReplyProbability,
		"twitter": cfg.Platforms.Twitter.Personality.Settings.ReplyProbability,
		"eliza":   cfg.Platforms.Eliza.Personality.Settings.ReplyProbability,
	})
	if err != nil {
		return fmt.Errorf("load personalities: %w", err)
	}
	fmt.Printf("Loaded %d personalities\n", len(registry.Names()))

	gen, err := generator.NewGemini(ctx, "", cfg.Generator)
	if err != nil {
		return fmt.Errorf("content generator: %w", err)
	}

	handlers, err := buildHandlers(ctx, cfg, st, registry, gen)
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(cfg.Global, handlers)
	if err != nil {
		return err
	}

	pidPath := pidFilePath(cfg.Global.StateDir)
	if err := writePIDFile(pidPath); err != nil {
		return err
	}
	defer os.Remove(pidPath)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		fmt.Printf("Received %s, shutting down...\n", s)
		cancel()
	}()

	fmt.Printf("Platforms: %v (dry-run: %v)\n", enabled, cfg.Global.DryRun)
	if err := orch.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	fmt.Println("Shutdown complete.")
	return nil
}

// buildHandlers constructs one platform handler per enabled platform. Any
// construction failure aborts startup; a platform explicitly enabled in the
// config must not silently run degraded.
func buildHandlers(ctx context.Context, cfg *config.Config, st *store.Store,
	registry *personality.Registry, gen generator.Generator) ([]platform.Handler, error) {

	var handlers []platform.Handler
	stateDir := cfg.Global.StateDir
	dryRun := cfg.Global.DryRun

	if cfg.Platforms.Reddit.Enabled {
		creds, err := config.LoadRedditCredentials()
		if err != nil {
			return nil, err
		}
		client, err := platform.NewRedditClient(creds)
		if err != nil {
			return nil, fmt.Errorf("reddit client: %w", err)
		}
		sess, err := st.NewSession(ctx)
		if err != nil {
			return nil, fmt.Errorf("reddit store session: %w", err)
		}
		h, err := platform.NewReddit(ctx, cfg.Platforms.Reddit, cfg.Generator,
			client, sess, registry, gen, stateDir, dryRun)
		if err != nil {
			return nil, fmt.Errorf("reddit handler: %w", err)
		}
		handlers = append(handlers, h)
	}

	if cfg.Platforms.Twitter.Enabled {
		creds, err := config.LoadTwitterCredentials()
		if err != nil {
			return nil, err
		}
		headless := cfg.Platforms.Twitter.Headless
		factory := func(ctx context.Context) (platform.TwitterClient, error) {
			return platform.NewTwitterBrowser(ctx, creds, headless)
		}
		sess, err := st.NewSession(ctx)
		if err != nil {
			return nil, fmt.Errorf("twitter store session: %w", err)
		}
		h, err := platform.NewTwitter(ctx, cfg.Platforms.Twitter, cfg.Generator,
			factory, sess, registry, gen, stateDir, dryRun)
		if err != nil {
			return nil, fmt.Errorf("twitter handler: %w", err)
		}
		handlers = append(handlers, h)
	}

	if cfg.Platforms.Eliza.Enabled {
		sess, err := st.NewSession(ctx)
		if err != nil {
			return nil, fmt.Errorf("eliza store session: %w", err)
		}
		h, err := platform.NewEliza(ctx, cfg.Platforms.Eliza, sess, registry, stateDir)
		if err != nil {
			return nil, fmt.Errorf("eliza handler: %w", err)
		}
		handlers = append(handlers, h)
	}

	return handlers, nil
}
