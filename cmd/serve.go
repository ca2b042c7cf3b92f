package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"mathblog/internal/handlers"
	"mathblog/internal/watch"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Import the posts directory and serve it over HTTP",
	Long: `Imports every post under posts_dir, then serves:

  GET  /posts             list (filters: author, layout, tag, q, limit, offset)
  GET  /posts/{slug}      one post
  GET  /posts/{slug}/raw  one post in its front matter format
  GET  /authors           authors with post counts
  GET  /authors/{name}    an author's posts
  GET  /pot               pot volume (top, base, height)
  POST /admin/reload      re-import, needs admin_token_hash
  GET  /healthz, /metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.importer.Run(ctx); err != nil {
		return err
	}

	if cfg.Watch {
		w, err := watch.New(cfg.PostsDir, a.importer, 0, logger)
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
	}

	errs := &handlers.ErrorHandler{Logger: logger}
	router := &handlers.Router{
		Posts:   &handlers.PostHandler{Store: a.store, Cache: a.cache, CacheTTL: cfg.GetCacheTTL(), Err: errs},
		Authors: &handlers.AuthorHandler{Store: a.store, Err: errs},
		Pot:     &handlers.PotHandler{Err: errs},
		Admin:   &handlers.AdminHandler{TokenHash: cfg.AdminTokenHash, Reloader: a.importer, Logger: logger, Err: errs},
		Err:     errs,
		Metrics: a.metrics,
		Logger:  logger,
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.Handler(),
		ReadHeaderTimeout: cfg.GetReadHeaderTimeout(),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server is starting", zap.String("addr", cfg.ListenAddr))
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
