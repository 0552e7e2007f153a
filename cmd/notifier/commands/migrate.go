package commands

import (
	"fmt"

	"regulatory_notifier/internal/infra/database"
	"regulatory_notifier/internal/infra/logger"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := database.NewConnection(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("could not connect to database: %w", err)
	}
	defer db.Close()

	return database.Migrate(db, cfg.DatabaseDriver, logger.Log.WithField("component", "migrate"))
}
