package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply the schema migrations of the configured backend (DATABASE_DRIVER).
Applied migrations are recorded and skipped on later runs.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	store, err := openStore(cmd.Context(), cfg, true)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Printf("Migrations applied (%s)\n", cfg.Database.Driver)
	return nil
}
