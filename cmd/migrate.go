package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/webhookdb/webhookdb/internal/config"
	"github.com/webhookdb/webhookdb/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long: `Applies every embedded migration in internal/database/migrations
that hasn't yet been recorded in schema_migrations, creating the
replicated schema (users, repositories, issues, pull_requests, ...) on a
fresh database or bringing an existing one up to date.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	fmt.Printf("Migrations applied (%s driver).\n", db.Driver())
	return nil
}
