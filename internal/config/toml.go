package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	kerrors "github.com/kotadb/kotadb/internal/errors"
)

// tomlConfig mirrors Config's shape for deployments that prefer TOML over
// KDL; field names follow the file's snake_case convention.
type tomlConfig struct {
	DataDir string `toml:"data_dir"`
	Server  struct {
		Port  int  `toml:"port"`
		Quiet bool `toml:"quiet"`
	} `toml:"server"`
	Ingest struct {
		MaxFileSizeBytes int64    `toml:"max_file_size_bytes"`
		MaxFileCount     int      `toml:"max_file_count"`
		FollowSymlinks   bool     `toml:"follow_symlinks"`
		RespectGitignore *bool    `toml:"respect_gitignore"`
		ParallelWorkers  int      `toml:"parallel_workers"`
		Include          []string `toml:"include"`
		Exclude          []string `toml:"exclude"`
	} `toml:"ingest"`
	APIKeys struct {
		DatabaseURL           string `toml:"database_url"`
		MaxConnections        int    `toml:"max_connections"`
		ConnectTimeoutSeconds int    `toml:"connect_timeout_seconds"`
		DefaultRateLimit      int    `toml:"default_rate_limit"`
		DefaultMonthlyQuota   int64  `toml:"default_monthly_quota"`
	} `toml:"api_keys"`
}

// LoadTOML reads `.kotadb.toml` from projectRoot and overlays it onto base.
// A missing file is not an error.
func LoadTOML(projectRoot string, base Config) (Config, error) {
	path := filepath.Join(projectRoot, ".kotadb.toml")
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return base, nil
	}
	if err != nil {
		return base, kerrors.New(kerrors.IO, "config.LoadTOML", err)
	}

	var parsed tomlConfig
	if err := toml.Unmarshal(content, &parsed); err != nil {
		return base, kerrors.New(kerrors.BadRequest, "config.LoadTOML", err)
	}

	cfg := base
	if parsed.DataDir != "" {
		cfg.DataDir = parsed.DataDir
	}
	if parsed.Server.Port != 0 {
		cfg.Server.Port = parsed.Server.Port
	}
	cfg.Server.Quiet = parsed.Server.Quiet || cfg.Server.Quiet
	if parsed.Ingest.MaxFileSizeBytes != 0 {
		cfg.Ingest.MaxFileSizeBytes = parsed.Ingest.MaxFileSizeBytes
	}
	if parsed.Ingest.MaxFileCount != 0 {
		cfg.Ingest.MaxFileCount = parsed.Ingest.MaxFileCount
	}
	cfg.Ingest.FollowSymlinks = parsed.Ingest.FollowSymlinks
	if parsed.Ingest.RespectGitignore != nil {
		cfg.Ingest.RespectGitignore = *parsed.Ingest.RespectGitignore
	}
	if parsed.Ingest.ParallelWorkers != 0 {
		cfg.Ingest.ParallelWorkers = parsed.Ingest.ParallelWorkers
	}
	if len(parsed.Ingest.Include) > 0 {
		cfg.Ingest.Include = parsed.Ingest.Include
	}
	if len(parsed.Ingest.Exclude) > 0 {
		cfg.Ingest.Exclude = parsed.Ingest.Exclude
	}
	if parsed.APIKeys.DatabaseURL != "" {
		cfg.APIKeys.DatabaseURL = parsed.APIKeys.DatabaseURL
	}
	if parsed.APIKeys.MaxConnections != 0 {
		cfg.APIKeys.MaxConnections = parsed.APIKeys.MaxConnections
	}
	if parsed.APIKeys.ConnectTimeoutSeconds != 0 {
		cfg.APIKeys.ConnectTimeoutSeconds = parsed.APIKeys.ConnectTimeoutSeconds
	}
	if parsed.APIKeys.DefaultRateLimit != 0 {
		cfg.APIKeys.DefaultRateLimit = parsed.APIKeys.DefaultRateLimit
	}
	if parsed.APIKeys.DefaultMonthlyQuota != 0 {
		cfg.APIKeys.DefaultMonthlyQuota = parsed.APIKeys.DefaultMonthlyQuota
	}

	return cfg, nil
}

// Load tries KDL first, then TOML, layering each over defaults in turn so a
// project may use either (or neither) without the other failing.
func Load(projectRoot string) (Config, error) {
	cfg := Default(projectRoot)
	cfg, err := LoadKDL(projectRoot, cfg)
	if err != nil {
		return cfg, err
	}
	return LoadTOML(projectRoot, cfg)
}
