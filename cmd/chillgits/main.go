// Command chillgits serves the profile aggregation API.
//
// Usage:
//
//	chillgits                 # listen on :8080
//	chillgits -port 9090 -debug
//	GITHUB_TOKEN=... GOOGLE_AI_API_KEY=... chillgits
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chillgits/chillgits/aggregate"
	"github.com/chillgits/chillgits/cache"
	"github.com/chillgits/chillgits/config"
	"github.com/chillgits/chillgits/counter"
	"github.com/chillgits/chillgits/github"
	"github.com/chillgits/chillgits/insight"
	"github.com/chillgits/chillgits/server"
)

func main() {
	cfg := config.Load()

	port := flag.Int("port", cfg.Server.Port, "HTTP listen port")
	debug := flag.Bool("debug", false, "enable debug logging")
	noCache := flag.Bool("no-cache", false, "disable the profile cache (always fetch fresh)")
	cacheTTL := flag.Duration("cache-ttl", cfg.Cache.TTL, "profile cache time-to-live")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug || strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Cache and counter degrade to disabled variants when their
	// backends cannot be initialized; neither is a correctness
	// dependency.
	profileCache := cache.Disabled(logger)
	if !*noCache {
		pc, err := cache.New(*cacheTTL, cfg.Cache.Dir, logger)
		if err != nil {
			logger.Warn("profile cache unavailable, serving uncached", "error", err)
		} else {
			profileCache = pc
		}
	}
	defer func() {
		if err := profileCache.Close(); err != nil {
			logger.Warn("closing cache", "error", err)
		}
	}()

	usage := counter.Disabled(logger)
	if c, err := counter.Open(cfg.Data.Dir, logger); err != nil {
		logger.Warn("usage counter unavailable, reporting zero", "error", err)
	} else {
		usage = c
	}
	defer func() {
		if err := usage.Close(); err != nil {
			logger.Warn("closing counter", "error", err)
		}
	}()

	ghOpts := []github.Option{github.WithLogger(logger)}
	if cfg.GitHub.Token != "" {
		ghOpts = append(ghOpts, github.WithToken(cfg.GitHub.Token))
	} else {
		logger.Info("no GITHUB_TOKEN set, using unauthenticated rate limits")
	}
	gh := github.New(ghOpts...)

	var generator insight.Generator
	if cfg.AI.APIKey != "" {
		g, err := insight.NewGemini(ctx, cfg.AI.APIKey, cfg.AI.Model)
		if err != nil {
			logger.Warn("insight generator unavailable", "error", err)
		} else {
			generator = g
		}
	} else {
		logger.Info("no GOOGLE_AI_API_KEY set, /insight disabled")
	}

	svc := aggregate.New(gh, profileCache, logger)
	handler := server.New(server.Deps{
		Aggregator: svc,
		Insight:    generator,
		Counter:    usage,
		Logger:     logger,
	})

	addr := fmt.Sprintf(":%d", *port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("chillgits listening", "addr", addr, "cache", profileCache.Enabled(), "counter", usage.Enabled())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1) //nolint:gocritic // exitAfterDefer is acceptable in main
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
