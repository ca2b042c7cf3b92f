package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mathblog/internal/cache"
	"mathblog/internal/config"
	"mathblog/internal/content"
	dbinit "mathblog/internal/db"
	"mathblog/internal/importer"
	"mathblog/internal/logging"
	"mathblog/internal/metrics"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mathblog",
	Short: "Serve a directory of front-matter blog posts",
	Long: `mathblog reads blog posts written as a YAML front matter header
(layout, author, ...) followed by prose, keeps them in SQLite and serves
them read-only over HTTP as JSON.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, cfg.Logging.Development)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "mathblog.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd, importCmd, listCmd, showCmd, potCmd, hashTokenCmd, initConfigCmd)
}

// app bundles what every command that touches posts needs.
type app struct {
	db       *sql.DB
	store    *dbinit.Store
	cache    cache.Cache
	metrics  *metrics.Metrics
	importer *importer.Importer
}

func openApp() (*app, error) {
	db, err := dbinit.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	var c cache.Cache = cache.NewMemory()
	if cfg.MemcachedAddr != "" {
		c = cache.NewMemcached(cfg.MemcachedAddr, "mathblog", logger)
	}

	store := &dbinit.Store{DB: db, Logger: logger}
	m := metrics.New()
	return &app{
		db:      db,
		store:   store,
		cache:   c,
		metrics: m,
		importer: &importer.Importer{
			Loader:  &content.Loader{Root: cfg.PostsDir, Logger: logger, Workers: cfg.Workers},
			Store:   store,
			Cache:   c,
			Metrics: m,
			Logger:  logger,
		},
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
