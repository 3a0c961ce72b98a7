package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "webhookdb",
	Short: "GitHub mirror replication engine",
	Long: `webhookdb replicates a GitHub organization's object graph — users,
repositories, issues, pull requests, labels, milestones, hooks — into a
local relational mirror, kept fresh by a webhook intake and periodic
full scans.

Get started:
  webhookdb migrate   Apply the database schema
  webhookdb serve      Run the HTTP server (webhook intake + load endpoints)
  webhookdb sync       Run a one-shot full sync of a repository or user
  webhookdb mutex      Administer scan mutexes
  webhookdb config     View or edit the saved configuration`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.webhookdb/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		migrateCmd,
		serveCmd,
		syncCmd,
		mutexCmd,
		configCmd,
	)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		slog.Debug("verbose logging enabled")
	}
}
