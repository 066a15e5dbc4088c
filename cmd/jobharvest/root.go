package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jobharvest/jobharvest/internal/cache"
	"github.com/jobharvest/jobharvest/internal/config"
	"github.com/jobharvest/jobharvest/internal/coordinator"
	"github.com/jobharvest/jobharvest/internal/model"
	"github.com/jobharvest/jobharvest/internal/scraper"
	"github.com/jobharvest/jobharvest/internal/session"
	"github.com/jobharvest/jobharvest/internal/store"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobharvest",
	Short: "Multi-board job aggregator",
	Long:  "JobHarvest scrapes several job boards in parallel, keeps only postings it has never seen, and pushes them to Telegram.",
	// Default to `serve` so that the bare binary runs the daemon.
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBHARVEST_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > JOBHARVEST_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("JOBHARVEST_CONFIG"); env != "" {
			path = env
		} else if _, err := os.Stat("config.yaml"); err == nil {
			// The implicit default is optional; an explicit path is not.
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

// setupStore opens Mongo when configured, sqlite otherwise.
func setupStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (model.JobStore, error) {
	if cfg.MongoURI != "" {
		logger.Info("using mongo store", "db", cfg.MongoDBName)
		return store.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDBName, logger)
	}
	logger.Info("using sqlite store", "path", cfg.SQLitePath)
	return store.NewSQLiteStore(cfg.SQLitePath, logger)
}

// setupCache returns the redis cache when configured, a no-op otherwise.
func setupCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) cache.Cache {
	if cfg.RedisURL == "" {
		return cache.Nop{}
	}
	c, err := cache.NewRedis(ctx, cfg.RedisURL, logger)
	if err != nil {
		logger.Warn("redis unavailable, continuing without cache", "error", err)
		return cache.Nop{}
	}
	logger.Info("redis cache connected")
	return c
}

func setupCoordinator(cfg *config.Config, c cache.Cache, logger *slog.Logger) *coordinator.Coordinator {
	factory := session.NewFactory(cfg.Proxies, cfg.HTTPTimeout, logger)
	registry := scraper.Registry(scraper.Options{
		BoardATViewURL: cfg.BoardAT.ViewURL,
		Cache:          c,
	})
	return coordinator.New(registry, factory, logger)
}
