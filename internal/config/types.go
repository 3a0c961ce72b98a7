package config

// Config is the root configuration structure for the replicator.
// Serialised to ~/.webhookdb/config.json.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	GitHub   GitHubConfig   `mapstructure:"github"   json:"github"`
	Server   ServerConfig   `mapstructure:"server"   json:"server"`
	Queue    QueueConfig    `mapstructure:"queue"    json:"queue"`
	Sync     SyncConfig     `mapstructure:"sync"     json:"sync"`
}

// DatabaseConfig controls the storage backend.
type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string `mapstructure:"driver" json:"driver"`
	// Path is the SQLite file path (expanded at runtime).
	Path string `mapstructure:"path"   json:"path"`
	// DSN is the MySQL data source name (used when Driver == "mysql").
	DSN string `mapstructure:"dsn"    json:"dsn"`
}

// GitHubConfig holds the upstream credentials used by the replication
// engine's Upstream Client when fetching and authenticating webhooks.
type GitHubConfig struct {
	// Token is the personal access token or installation token used for
	// every outbound REST request. Required.
	Token string `mapstructure:"token" json:"token"` // #nosec G101 -- config field, not a hardcoded credential
	// Host is the GitHub Enterprise hostname (e.g. github.mycompany.com);
	// the API base becomes https://<host>/api/v3/. Empty or github.com
	// means github.com.
	Host string `mapstructure:"host" json:"host"`
	// BaseURL overrides the full API base URL directly, taking precedence
	// over Host. Useful for local proxies and test doubles.
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	// WebhookSecret validates the X-Hub-Signature-256 header on inbound
	// webhook deliveries. Empty disables signature verification (useful
	// only for local development).
	WebhookSecret string `mapstructure:"webhook_secret" json:"webhook_secret"` // #nosec G101 -- config field, not a hardcoded credential
}

// ServerConfig controls the HTTP surface: webhook intake plus the
// synchronous load endpoints.
type ServerConfig struct {
	// Port is the TCP port the HTTP server listens on (default: 18080).
	Port int `mapstructure:"port" json:"port"`
	// PullFileThreshold is the changed-file count under which a pull
	// request webhook replaces the file set inline rather than spawning
	// an async file scan.
	PullFileThreshold int `mapstructure:"pull_file_threshold" json:"pull_file_threshold"`
}

// QueueConfig controls how background jobs (scans, retries, cascades)
// are scheduled.
type QueueConfig struct {
	// Eager runs every enqueued job synchronously in the calling
	// goroutine instead of handing it to the worker pool. Useful for
	// tests and small single-tenant deployments.
	Eager bool `mapstructure:"eager" json:"eager"`
	// MaxAttempts bounds how many times a job that keeps losing
	// concurrent-insert races is re-attempted before it is abandoned
	// and logged.
	MaxAttempts int `mapstructure:"max_attempts" json:"max_attempts"`
}

// SyncConfig controls the recurring full-sync schedule driven by
// robfig/cron.
type SyncConfig struct {
	// FullSyncCron is a standard 5-field cron expression controlling how
	// often every watched repository is rescanned end to end. Empty
	// disables the recurring schedule.
	FullSyncCron string `mapstructure:"full_sync_cron" json:"full_sync_cron"`
	// Watchlist is a list of "owner/repo" entries kept fresh by the
	// recurring full sync.
	Watchlist []string `mapstructure:"watchlist" json:"watchlist"`
}
