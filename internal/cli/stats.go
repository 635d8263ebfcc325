package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/flavumhive/hivemind/internal/config"
	"github.com/flavumhive/hivemind/internal/store"
)

var (
	statsPlatform    string
	activityPlatform string
	activityLimit    int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-platform and per-personality counters",
	RunE:  runStats,
}

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show recent posts and comments",
	RunE:  runActivity,
}

func init() {
	statsCmd.Flags().StringVarP(&statsPlatform, "platform", "p", "", "Limit to one platform")
	activityCmd.Flags().StringVarP(&activityPlatform, "platform", "p", "reddit", "Platform to show")
	activityCmd.Flags().IntVarP(&activityLimit, "limit", "n", 10, "Number of entries")
}

func openSession(ctx context.Context) (*store.Store, *store.Session, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	st, err := store.Open(cfg.Global.DatabasePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	sess, err := st.NewSession(ctx)
	if err != nil {
		st.Close()
		return nil, nil, nil, fmt.Errorf("open session: %w", err)
	}
	return st, sess, cfg, nil
}

func runStats(cmd *cobra.Command, args []string) error {
	printHeader("Stats")
	ctx := context.Background()
	st, sess, _, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	defer sess.Close()

	platforms := store.KnownPlatforms
	if statsPlatform != "" {
		platforms = []string{statsPlatform}
	}

	for _, p := range platforms {
		ps, err := sess.PlatformStats(ctx, p)
		if err != nil {
			return fmt.Errorf("stats for %s: %w", p, err)
		}
		fmt.Println(color.CyanString(strings.ToUpper(p)))
		fmt.Printf("  interactions: %d  posts: %d  comments: %d\n",
			ps.TotalInteractions, ps.TotalPosts, ps.TotalComments)
		if !ps.LastActivity.IsZero() {
			fmt.Printf("  last activity: %s\n", ps.LastActivity.Local().Format("2006-01-02 15:04:05"))
		}

		personas, err := sess.PersonalityStats(ctx, p)
		if err != nil {
			return fmt.Errorf("personality stats for %s: %w", p, err)
		}
		for _, pp := range personas {
			fmt.Printf("    %-24s posts: %-4d comments: %-4d\n",
				pp.PersonalityID, pp.TotalPosts, pp.TotalComments)
		}
		fmt.Println()
	}
	return nil
}

func runActivity(cmd *cobra.Command, args []string) error {
	printHeader("Recent Activity")
	ctx := context.Background()
	st, sess, _, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	defer sess.Close()

	items, err := sess.RecentActivity(ctx, activityPlatform, activityLimit)
	if err != nil {
		return fmt.Errorf("recent activity: %w", err)
	}
	if len(items) == 0 {
		fmt.Println("No activity recorded yet.")
		return nil
	}

	for _, a := range items {
		when := ""
		if a.Timestamp != nil {
			when = a.Timestamp.Local().Format("01-02 15:04")
		}
		if a.CommentID != "" {
			fmt.Printf("%s  %s commented on %s: %s\n",
				when, color.YellowString(a.PersonalityID), a.PostID, truncate(a.CommentContent, 60))
		} else {
			author := a.Username
			if a.PersonalityID != "" {
				author = color.YellowString(a.PersonalityID)
			}
			fmt.Printf("%s  %s posted %q in %s\n", when, author, truncate(a.Title, 60), a.Subreddit)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
