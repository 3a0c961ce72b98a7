package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/webhookdb/webhookdb/internal/config"
	"github.com/webhookdb/webhookdb/internal/database"
	"github.com/webhookdb/webhookdb/internal/jobs"
	"github.com/webhookdb/webhookdb/internal/scanner"
	"github.com/webhookdb/webhookdb/internal/upstream"
)

var (
	syncOwner    string
	syncRepo     string
	syncChildren bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a one-shot full sync of a repository or the configured watchlist",
	Long: `Walks the paginated scan kinds (issues, labels, milestones, pull
requests, hooks) for one repository, or every entry in
sync.watchlist when --owner/--repo are omitted — the same work the
recurring cron schedule performs, run inline on the calling process.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncOwner, "owner", "", "Repository owner (requires --repo)")
	syncCmd.Flags().StringVar(&syncRepo, "repo", "", "Repository name (requires --owner)")
	syncCmd.Flags().BoolVar(&syncChildren, "children", true, "Also scan issues, labels, milestones, pull requests, and hooks")
}

func runSync(cmd *cobra.Command, args []string) error {
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

	up, err := upstream.New(cfg.GitHub)
	if err != nil {
		return fmt.Errorf("configuring upstream client: %w", err)
	}

	sched := jobs.New(true, cfg.Queue.MaxAttempts) // eager: a CLI invocation runs inline
	eng := &scanner.Engine{DB: db, Upstream: up, Scheduler: sched, PullFileThreshold: cfg.Server.PullFileThreshold}

	entries := cfg.Sync.Watchlist
	if syncOwner != "" && syncRepo != "" {
		entries = []string{syncOwner + "/" + syncRepo}
	}
	if len(entries) == 0 {
		return fmt.Errorf("nothing to sync: pass --owner/--repo or set sync.watchlist in the config")
	}

	for _, entry := range entries {
		owner, repo, ok := splitOwnerRepo(entry)
		if !ok {
			slog.Warn("skipping malformed entry", "entry", entry)
			continue
		}
		fmt.Printf("Syncing %s/%s...\n", owner, repo)
		if err := eng.Repository(ctx, owner, repo); err != nil {
			return fmt.Errorf("syncing %s/%s: %w", owner, repo, err)
		}
		if syncChildren {
			if err := eng.RepositoryCascade(ctx, owner, repo); err != nil {
				return fmt.Errorf("cascading %s/%s: %w", owner, repo, err)
			}
		}
	}

	fmt.Println("Sync complete.")
	return nil
}
