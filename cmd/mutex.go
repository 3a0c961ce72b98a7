package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/webhookdb/webhookdb/internal/config"
	"github.com/webhookdb/webhookdb/internal/database"
	"github.com/webhookdb/webhookdb/internal/mutex"
)

var clearStaleAge time.Duration

var mutexCmd = &cobra.Command{
	Use:   "mutex",
	Short: "Administer scan mutexes",
	Long: `Scan mutexes have no automatic lease or expiry: a scan that
crashes or is killed leaves its mutex row behind forever,
blocking every future spawn for that scope until cleared here.`,
}

var mutexListCmd = &cobra.Command{
	Use:   "list",
	Short: "List currently held scan mutexes",
	RunE:  runMutexList,
}

var mutexClearCmd = &cobra.Command{
	Use:   "clear [name]",
	Short: "Release one named mutex, or sweep every mutex older than --older-than",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMutexClear,
}

func init() {
	mutexClearCmd.Flags().DurationVar(&clearStaleAge, "older-than", time.Hour, "Sweep every mutex created before now minus this duration (ignored when a name is given)")
	mutexCmd.AddCommand(mutexListCmd, mutexClearCmd)
}

func openDB(ctx context.Context) (database.DB, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

func runMutexList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	type row struct {
		Name      string    `db:"name"`
		CreatedAt time.Time `db:"created_at"`
	}
	var rows []row
	if err := db.Select(ctx, &rows, `SELECT name, created_at FROM mutexes ORDER BY created_at`); err != nil {
		return fmt.Errorf("listing mutexes: %w", err)
	}
	if len(rows) == 0 {
		fmt.Println("No mutexes currently held.")
		return nil
	}
	for _, r := range rows {
		fmt.Printf("%-60s held since %s (age %s)\n", r.Name, r.CreatedAt.Format(time.RFC3339), time.Since(r.CreatedAt).Round(time.Second))
	}
	return nil
}

func runMutexClear(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if len(args) == 1 {
		if err := db.Exec(ctx, `DELETE FROM mutexes WHERE name = ?`, args[0]); err != nil {
			return fmt.Errorf("clearing mutex %s: %w", args[0], err)
		}
		fmt.Printf("Cleared mutex %s.\n", args[0])
		return nil
	}

	n, err := mutex.ClearStale(ctx, db, clearStaleAge)
	if err != nil {
		return fmt.Errorf("sweeping stale mutexes: %w", err)
	}
	fmt.Printf("Cleared %d stale mutex(es) older than %s.\n", n, clearStaleAge)
	return nil
}
