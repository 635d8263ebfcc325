// Package cli implements the hivemind command tree.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/flavumhive/hivemind/internal/cli.version=1.2.3"
	version = "0.9.0"
	logo    = "\n" +
		"  _     _                    _           _\n" +
		" | |__ (_)_   _____ _ __ ___ (_)_ __   __| |\n" +
		" | '_ \\| \\ \\ / / _ \\ '_ ` _ \\| | '_ \\ / _` |\n" +
		" | | | | |\\ V /  __/ | | | | | | | | | (_| |\n" +
		" |_| |_|_| \\_/ \\___|_| |_| |_|_|_| |_|\\__,_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "hivemind",
	Short: "hivemind - Multi-platform persona bot",
	Long:  color.CyanString(logo) + "\nA multi-platform social bot with rotating personalities.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("Version")
		fmt.Printf("Version: %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(activityCmd)
	rootCmd.AddCommand(chatCmd)
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}
