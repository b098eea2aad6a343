// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/telepost-bot/telepost/internal/bot"
	"github.com/telepost-bot/telepost/internal/cache"
	"github.com/telepost-bot/telepost/internal/collector"
	"github.com/telepost-bot/telepost/internal/config"
	"github.com/telepost-bot/telepost/internal/fsutil"
	"github.com/telepost-bot/telepost/internal/gateway"
	"github.com/telepost-bot/telepost/internal/ingest"
	tplog "github.com/telepost-bot/telepost/internal/log"
	"github.com/telepost-bot/telepost/internal/pipeline"
	"github.com/telepost-bot/telepost/internal/poster"
	"github.com/telepost-bot/telepost/internal/render"
	"github.com/telepost-bot/telepost/internal/server"
	"github.com/telepost-bot/telepost/internal/shortener"
	"github.com/telepost-bot/telepost/internal/store"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe defaults until the real config is loaded.
	tplog.Configure(tplog.Config{
		Level:   "info",
		Service: "telepost",
		Version: version,
	})
	logger := tplog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(*configPath, version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
	}

	tplog.Configure(tplog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("daemon exited with error")
	}
	logger.Info().Str("event", "daemon.stopped").Msg("shutdown complete")
}

func run(ctx context.Context, cfg config.Config) error {
	logger := tplog.WithComponent("daemon")

	st, err := store.Open("badger", filepath.Join(cfg.DataDir, "db"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error().Err(err).Msg("closing store failed")
		}
	}()

	var lookupCache cache.Cache
	if cfg.RedisAddr != "" {
		lookupCache, err = cache.NewRedisCache(cache.RedisConfig{Addr: cfg.RedisAddr}, tplog.WithComponent("cache"))
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
	} else {
		lookupCache = cache.NewMemoryCache(10 * time.Minute)
	}
	defer lookupCache.Close()

	tg, err := gateway.NewTelegram(cfg.BotToken, tplog.WithComponent("gateway"))
	if err != nil {
		return fmt.Errorf("connect gateway: %w", err)
	}
	suppressor := &gateway.Suppressor{}
	gw := gateway.NewProtected(tg, suppressor, tplog.WithComponent("gateway"))

	// The HTTP redirect routes need the bot username; persist it so tooling
	// can read it without talking to the API.
	usernamePath := filepath.Join(cfg.DataDir, cfg.BotUsernameFile)
	if err := fsutil.WriteFileAtomic(usernamePath, []byte(tg.Username()+"\n"), 0o644); err != nil {
		logger.Warn().Err(err).Str("path", usernamePath).Msg("persisting bot username failed")
	}

	// Registry and pipeline reference each other: the registry hands closed
	// windows to the pipeline, the pipeline releases owners back into the
	// registry. Tie the loop with a late-bound closure.
	var pl *pipeline.Pipeline
	reg := collector.NewRegistry(collector.Config{
		Inactivity: cfg.BatchWindow,
		PendingMax: cfg.PendingDrainMax,
		Suspended:  suppressor.Suspended,
		OnClose: func(owner int64, w *collector.Window) {
			pl.OnClose(owner, w)
		},
	})
	defer reg.Shutdown()

	renderer := &render.Renderer{
		BaseURL:   cfg.PublicBaseURL,
		Shortener: shortener.New(lookupCache, cfg.CacheTTL),
		Posters:   poster.New(cfg.PosterAPIBase, cfg.PosterAPIKey, lookupCache, cfg.CacheTTL),
	}

	pl = pipeline.New(ctx, pipeline.Config{
		Store:        st,
		Registry:     reg,
		Gateway:      gw,
		Renderer:     renderer,
		PostDelay:    cfg.PostDelay,
		EditInterval: cfg.EditThrottle,
	})

	worker := ingest.NewWorker(ingest.Config{
		Store:        st,
		Registry:     reg,
		Gateway:      gw,
		ArchiveChat:  cfg.OwnerDBChannel,
		Pause:        cfg.IngestPause,
		EditInterval: cfg.EditThrottle,
	})

	router := bot.New(bot.Config{
		Updater:   tg,
		Gateway:   gw,
		Store:     st,
		Worker:    worker,
		Registry:  reg,
		Shortener: shortener.New(lookupCache, cfg.CacheTTL),
		BaseURL:   cfg.PublicBaseURL,
	})

	srv := server.New(server.Config{
		Store:             st,
		Registry:          reg,
		Opener:            gw,
		BotUsername:       tg.Username,
		Version:           version,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	})
	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		return router.Run(gctx)
	})
	g.Go(func() error {
		logger.Info().
			Str("event", "daemon.started").
			Str("listen", cfg.ListenAddr).
			Str("bot", tg.Username()).
			Msg("telepost up")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
