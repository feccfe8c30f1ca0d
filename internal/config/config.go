// Package config loads KotaDB's server configuration: data directory,
// network settings, ingestion limits, and the include/exclude patterns an
// ingest walk filters by. Config files are KDL (`.kotadb.kdl`), with a TOML
// fallback (`.kotadb.toml`) for deployments that prefer it.
package config

// Config is KotaDB's fully resolved runtime configuration, after defaults,
// file contents, and CLI flag overrides have all been applied.
type Config struct {
	DataDir string
	Server  Server
	Ingest  Ingest
	APIKeys APIKeys
}

// Server controls the HTTP and JSON-RPC listeners.
type Server struct {
	Port  int
	Quiet bool
}

// Ingest bounds a single repository walk: how large a file it will read, how
// many files it will process, and which paths it skips outright.
type Ingest struct {
	MaxFileSizeBytes int64
	MaxFileCount     int
	FollowSymlinks   bool
	RespectGitignore bool
	ParallelWorkers  int
	Include          []string
	Exclude          []string
}

// APIKeys configures the rate-limit/quota store independent of the document
// engine, per §4's "explicit, non-global lifecycle" requirement.
type APIKeys struct {
	DatabaseURL           string
	MaxConnections        int
	ConnectTimeoutSeconds int
	DefaultRateLimit      int
	DefaultMonthlyQuota   int64
}

// Default returns the configuration KotaDB runs with when no config file and
// no CLI overrides are present.
func Default(dataDir string) Config {
	return Config{
		DataDir: dataDir,
		Server: Server{
			Port: 8080,
		},
		Ingest: Ingest{
			MaxFileSizeBytes: 10 * 1024 * 1024,
			MaxFileCount:     50000,
			FollowSymlinks:   false,
			RespectGitignore: true,
			ParallelWorkers:  4,
			Include:          nil,
			Exclude:          []string{"**/.git/**", "**/node_modules/**", "**/target/**", "**/.kotadb/**"},
		},
		APIKeys: APIKeys{
			MaxConnections:        10,
			ConnectTimeoutSeconds: 5,
			DefaultRateLimit:      60,
			DefaultMonthlyQuota:   1_000_000,
		},
	}
}
