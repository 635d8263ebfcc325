package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/flavumhive/hivemind/internal/config"
	"github.com/flavumhive/hivemind/internal/personality"
	"github.com/flavumhive/hivemind/internal/platform"
	"github.com/flavumhive/hivemind/internal/store"
)

var (
	chatPersonality string
	chatUser        string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session with a personality",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatPersonality, "personality", "p", "", "Personality to chat with (default: random)")
	chatCmd.Flags().StringVar(&chatUser, "user", "local", "User id recorded for the session")
}

func runChat(cmd *cobra.Command, args []string) error {
	printHeader("Chat")
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	st, err := store.Initialize(cfg.Global.DatabasePath, false)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	registry, err := personality.Load(cfg.Global.PersonalityDir, map[string]float64{
		"eliza": cfg.Platforms.Eliza.Personality.Settings.ReplyProbability,
	})
	if err != nil {
		return fmt.Errorf("load personalities: %w", err)
	}

	sess, err := st.NewSession(ctx)
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	h, err := platform.NewEliza(ctx, cfg.Platforms.Eliza, sess, registry, cfg.Global.StateDir)
	if err != nil {
		return fmt.Errorf("chat handler: %w", err)
	}
	defer h.Close()

	fmt.Println("Type 'exit' to end the session.")
	return chatLoop(ctx, h, os.Stdin, os.Stdout, chatUser, chatPersonality)
}

// chatLoop drives one chat session over the given reader/writer until the
// user types exit or the input ends.
func chatLoop(ctx context.Context, h *platform.Eliza, in io.Reader, out io.Writer, userID, personaName string) error {
	sessionID, err := h.CreateSession(ctx, userID, personaName)
	if err != nil {
		return err
	}
	defer h.EndSession(ctx, sessionID)

	history, err := h.History(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(history) > 0 {
		fmt.Fprintf(out, "%s %s\n", color.CyanString("bot>"), history[0].Content)
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "exit" || line == "quit" {
			break
		}
		reply, err := h.ProcessMessage(ctx, sessionID, line)
		switch {
		case errors.Is(err, platform.ErrThrottled):
			fmt.Fprintf(out, "%s rate limited, give it a moment\n", color.YellowString("!"))
			continue
		case errors.Is(err, platform.ErrSessionClosed):
			fmt.Fprintln(out, "session expired")
			return nil
		case err != nil:
			return err
		}
		fmt.Fprintf(out, "%s %s\n", color.CyanString("bot>"), reply)
	}
	fmt.Fprintln(out, "bye")
	return scanner.Err()
}
