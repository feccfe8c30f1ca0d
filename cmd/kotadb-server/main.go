// Command kotadb-server runs KotaDB's HTTP and MCP surfaces over a single
// on-disk data directory, per §6's CLI surface table.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/kotadb/kotadb/internal/apikeys"
	"github.com/kotadb/kotadb/internal/config"
	"github.com/kotadb/kotadb/internal/graph"
	"github.com/kotadb/kotadb/internal/httpapi"
	"github.com/kotadb/kotadb/internal/index"
	"github.com/kotadb/kotadb/internal/ingest"
	"github.com/kotadb/kotadb/internal/mcpapi"
	"github.com/kotadb/kotadb/internal/observability"
	"github.com/kotadb/kotadb/internal/parser"
	"github.com/kotadb/kotadb/internal/storage"
	"github.com/kotadb/kotadb/internal/symbols"
	"github.com/kotadb/kotadb/internal/version"
)

// exitConfigOrIO and exitDataDirUnusable are the non-zero exit codes §6
// reserves: 1 for a bad config/flag or other startup I/O failure, 2
// specifically for a data directory that can't be opened.
const (
	exitConfigOrIO      = 1
	exitDataDirUnusable = 2
)

func main() {
	app := &cli.App{
		Name:    "kotadb-server",
		Usage:   "document storage, trigram search, and code-intelligence server",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "data-dir", Usage: "directory holding the page store, WAL, index segments, and graph", Value: "./kotadb-data"},
			&cli.IntFlag{Name: "port", Usage: "HTTP listen port"},
			&cli.StringFlag{Name: "database-url", Usage: "API key store connection string"},
			&cli.IntFlag{Name: "max-connections", Usage: "API key store max connections"},
			&cli.IntFlag{Name: "connect-timeout", Usage: "API key store connect timeout, seconds"},
			&cli.IntFlag{Name: "default-rate-limit", Usage: "default per-minute request limit for a new API key"},
			&cli.Int64Flag{Name: "default-monthly-quota", Usage: "default monthly request quota for a new API key"},
			&cli.BoolFlag{Name: "quiet", Usage: "suppress info-level logging"},
			&cli.BoolFlag{Name: "watch", Usage: "re-ingest the most recently checked-out repository on filesystem changes"},
		},
		Action: runServer,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "kotadb-server: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// startupError carries the exit code a failure at a given stage should
// produce, so Action can return ordinary errors and main still picks the
// right code per §6's exit-code table.
type startupError struct {
	code int
	err  error
}

func (e *startupError) Error() string { return e.err.Error() }
func (e *startupError) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	var se *startupError
	if as, ok := err.(*startupError); ok {
		se = as
	}
	if se != nil {
		return se.code
	}
	return exitConfigOrIO
}

func runServer(c *cli.Context) error {
	dataDir := c.String("data-dir")
	cfg, err := config.Load(dataDir)
	if err != nil {
		return &startupError{exitConfigOrIO, fmt.Errorf("load config: %w", err)}
	}
	applyFlagOverrides(c, &cfg)

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return &startupError{exitDataDirUnusable, fmt.Errorf("prepare data dir %s: %w", dataDir, err)}
	}

	logger := observability.New(os.Stderr, cfg.Server.Quiet)

	docs, err := storage.OpenDocumentStore(dataDir, storage.DocumentStoreConfig{CacheCapacity: 4096})
	if err != nil {
		return &startupError{exitDataDirUnusable, fmt.Errorf("open document store: %w", err)}
	}
	defer docs.Close()

	idx, err := index.Open(filepath.Join(dataDir, "trigram"), docs, index.Config{})
	if err != nil {
		return &startupError{exitDataDirUnusable, fmt.Errorf("open trigram index: %w", err)}
	}
	defer idx.Close()

	symStore, err := symbols.Open(filepath.Join(dataDir, "symbols.bin"))
	if err != nil {
		return &startupError{exitDataDirUnusable, fmt.Errorf("open symbol store: %w", err)}
	}
	defer symStore.Close()

	graphPath := filepath.Join(dataDir, "dependency_graph.bin")
	var qe *graph.QueryEngine
	if g, loadErr := graph.Load(graphPath); loadErr == nil {
		qe = graph.NewQueryEngine(g)
	}

	ig := ingest.New(docs, idx, symStore, parser.New(), graphPath)
	keys := apikeys.New(apikeys.Config{
		DatabaseURL:           cfg.APIKeys.DatabaseURL,
		MaxConnections:        cfg.APIKeys.MaxConnections,
		ConnectTimeoutSeconds: cfg.APIKeys.ConnectTimeoutSeconds,
		DefaultRateLimit:      cfg.APIKeys.DefaultRateLimit,
		DefaultMonthlyQuota:   cfg.APIKeys.DefaultMonthlyQuota,
	})
	httpSrv := httpapi.New(docs, idx, qe, ig, logger)
	httpSrv.WorkDir = filepath.Join(dataDir, "checkouts")
	httpSrv.IngestCfg = cfg.Ingest
	httpSrv.GraphPath = graphPath
	if err := os.MkdirAll(httpSrv.WorkDir, 0o755); err != nil {
		return &startupError{exitDataDirUnusable, fmt.Errorf("prepare checkout dir: %w", err)}
	}

	mcpSrv := mcpapi.New(docs, idx, qe, ig, logger)
	httpSrv.OnGraphRebuilt = mcpSrv.SetGraph

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if c.Bool("watch") {
		var watchCancel context.CancelFunc
		httpSrv.OnIngestComplete = func(repoRoot string, ingestCfg config.Ingest) {
			if watchCancel != nil {
				watchCancel()
			}
			w, err := ingest.NewWatcher(repoRoot, 500*time.Millisecond, logger)
			if err != nil {
				logger.InfoContext(ctx, "watch disabled", "error", err)
				return
			}
			w.OnChange = func() {
				if _, err := ig.Ingest(ctx, repoRoot, ingestCfg); err != nil {
					logger.InfoContext(ctx, "watch re-ingest failed", "error", err)
					return
				}
				if g, loadErr := graph.Load(graphPath); loadErr == nil {
					qe := graph.NewQueryEngine(g)
					httpSrv.SetGraph(qe)
					mcpSrv.SetGraph(qe)
				}
			}
			var watchCtx context.Context
			watchCtx, watchCancel = context.WithCancel(ctx)
			go w.Run(watchCtx)
		}
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: rateLimited(keys, httpSrv),
	}

	errCh := make(chan error, 2)
	go func() {
		logger.InfoContext(ctx, "http listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		errCh <- mcpSrv.Run(ctx)
	}()

	select {
	case <-sigCh:
		logger.InfoContext(ctx, "shutting down")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return &startupError{exitConfigOrIO, fmt.Errorf("http shutdown: %w", err)}
		}
		return nil
	case err := <-errCh:
		if err != nil {
			return &startupError{exitConfigOrIO, err}
		}
		return nil
	}
}

func applyFlagOverrides(c *cli.Context, cfg *config.Config) {
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	if c.IsSet("quiet") {
		cfg.Server.Quiet = c.Bool("quiet")
	}
	if c.IsSet("database-url") {
		cfg.APIKeys.DatabaseURL = c.String("database-url")
	}
	if c.IsSet("max-connections") {
		cfg.APIKeys.MaxConnections = c.Int("max-connections")
	}
	if c.IsSet("connect-timeout") {
		cfg.APIKeys.ConnectTimeoutSeconds = c.Int("connect-timeout")
	}
	if c.IsSet("default-rate-limit") {
		cfg.APIKeys.DefaultRateLimit = c.Int("default-rate-limit")
	}
	if c.IsSet("default-monthly-quota") {
		cfg.APIKeys.DefaultMonthlyQuota = c.Int64("default-monthly-quota")
	}
}

// rateLimited wraps handler with a per-API-key token-bucket check. A request
// with no X-Api-Key header is let through unmetered — auth is out of scope,
// only the rate-limit/quota bookkeeping behavior is implemented here.
func rateLimited(keys *apikeys.Store, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Api-Key")
		if key != "" {
			if !keys.Allow(key) {
				http.Error(w, `{"error":"unavailable","message":"rate limit exceeded"}`, http.StatusServiceUnavailable)
				return
			}
			if !keys.RecordUsage(key) {
				http.Error(w, `{"error":"unavailable","message":"monthly quota exceeded"}`, http.StatusServiceUnavailable)
				return
			}
		}
		handler.ServeHTTP(w, r)
	})
}
