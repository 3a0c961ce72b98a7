package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/webhookdb/webhookdb/internal/config"
	"github.com/webhookdb/webhookdb/internal/database"
	"github.com/webhookdb/webhookdb/internal/httpapi"
	"github.com/webhookdb/webhookdb/internal/jobs"
	"github.com/webhookdb/webhookdb/internal/scanner"
	"github.com/webhookdb/webhookdb/internal/upstream"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhookdb HTTP server",
	Long: `Starts the replication engine's HTTP surface: the webhook intake
(POST /replication), the synchronous/async load endpoints (POST /repos/...,
POST /user/...), and a small operational surface (GET /health, GET
/api/status).

A recurring full-sync schedule also starts if sync.full_sync_cron is set
in the configuration, driven by robfig/cron against sync.watchlist.

Quick API reference:
  GET  /health                              liveness check
  GET  /api/status                          queue depth / active scan count
  POST /replication                         webhook intake
  POST /repos/{owner}/{repo}                sync a repository (?inline=true&children=true)
  POST /repos/{owner}/{repo}/pulls          scan pull requests (?state=open|closed|all)
  POST /repos/{owner}/{repo}/issues         scan issues
  POST /repos/{owner}/{repo}/labels         scan labels
  POST /repos/{owner}/{repo}/milestones     scan milestones
  POST /repos/{owner}/{repo}/hooks          scan webhooks
  POST /user/repos                          scan the token's own repo list
  POST /user/{username}/repos               scan a user's repo list`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port to listen on (default 18080, overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		fmt.Println("\nShutting down webhookdb gracefully...")
		cancel()
	}()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 18080
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

	sched := jobs.New(cfg.Queue.Eager, cfg.Queue.MaxAttempts)
	eng := &scanner.Engine{DB: db, Upstream: up, Scheduler: sched, PullFileThreshold: cfg.Server.PullFileThreshold}

	var cronRunner *jobs.CronRunner
	if cfg.Sync.FullSyncCron != "" {
		cronRunner, err = jobs.NewCronRunner(cfg.Sync.FullSyncCron, jobs.Func{
			Name: "full_sync",
			Fn:   func(ctx context.Context) error { return runFullSync(ctx, eng, cfg.Sync.Watchlist) },
		})
		if err != nil {
			return fmt.Errorf("configuring full sync schedule: %w", err)
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	srv := httpapi.New(db, eng, sched, up, cfg.GitHub.WebhookSecret)
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("webhookdb serving\n")
	fmt.Printf("  API       : http://%s\n", addr)
	fmt.Printf("  Webhook   : http://%s/replication\n", addr)
	fmt.Printf("  DB driver : %s\n\n", cfg.Database.Driver)
	fmt.Println("Press Ctrl+C to stop gracefully.")

	slog.Info("webhookdb listening", "addr", "http://"+addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// runFullSync walks the configured watchlist running every scan kind
// per repository, the cron-driven counterpart to the on-demand load
// endpoints.
func runFullSync(ctx context.Context, eng *scanner.Engine, watchlist []string) error {
	for _, entry := range watchlist {
		owner, repo, ok := splitOwnerRepo(entry)
		if !ok {
			slog.Warn("skipping malformed watchlist entry", "entry", entry)
			continue
		}
		if err := eng.Repository(ctx, owner, repo); err != nil {
			slog.Error("full sync: repository scan failed", "owner", owner, "repo", repo, "error", err)
			continue
		}
		if err := eng.RepositoryCascade(ctx, owner, repo); err != nil {
			slog.Error("full sync: cascade failed", "owner", owner, "repo", repo, "error", err)
		}
	}
	return nil
}

func splitOwnerRepo(entry string) (owner, repo string, ok bool) {
	for i := 0; i < len(entry); i++ {
		if entry[i] == '/' {
			return entry[:i], entry[i+1:], true
		}
	}
	return "", "", false
}
