package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/flavumhive/hivemind/internal/config"
	"github.com/flavumhive/hivemind/internal/store"
)

var dbInitForce bool

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the bot database",
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database schema and seed platform rows",
	RunE:  runDBInit,
}

func init() {
	dbInitCmd.Flags().BoolVar(&dbInitForce, "force", false, "Drop content tables and recreate from scratch")
	dbCmd.AddCommand(dbInitCmd)
}

func runDBInit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if dbInitForce {
		fmt.Println(color.YellowString("Force mode: existing content will be dropped."))
	}
	st, err := store.Initialize(cfg.Global.DatabasePath, dbInitForce)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer st.Close()

	fmt.Printf("%s Database ready at %s\n", color.GreenString("✓"), cfg.Global.DatabasePath)
	return nil
}
