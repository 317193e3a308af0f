package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"transitcat/internal/cache"
	"transitcat/internal/catalogue"
	"transitcat/internal/config"
	"transitcat/internal/domain"
	"transitcat/internal/handler"
	"transitcat/internal/loader"
	"transitcat/internal/middleware"
	"transitcat/internal/query"
	"transitcat/internal/router"
	"transitcat/internal/snapshot"
)

type dataset struct {
	catalogue   *catalogue.Catalogue
	settings    domain.RoutingSettings
	fingerprint string
	source      string
}

// loadDataset prefers the snapshot; the base document is the fallback for
// development setups without make_base.
func loadDataset(cfg *config.Config) (*dataset, error) {
	if cfg.SnapshotPath != "" {
		snap, fingerprint, err := snapshot.Load(cfg.SnapshotPath)
		if err != nil {
			return nil, err
		}
		cat, settings, err := snap.Restore()
		if err != nil {
			return nil, err
		}
		return &dataset{catalogue: cat, settings: settings, fingerprint: fingerprint, source: cfg.SnapshotPath}, nil
	}

	data, err := os.ReadFile(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("read base document: %w", err)
	}
	doc, err := loader.Decode(bytes.NewReader(data), loader.FormatFromPath(cfg.BasePath))
	if err != nil {
		return nil, err
	}
	if doc.RoutingSettings == nil {
		return nil, fmt.Errorf("base document %s has no routing_settings", cfg.BasePath)
	}
	cat, err := loader.Apply(doc)
	if err != nil {
		return nil, err
	}
	return &dataset{
		catalogue:   cat,
		settings:    *doc.RoutingSettings,
		fingerprint: snapshot.Fingerprint(data),
		source:      cfg.BasePath,
	}, nil
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting transitcat server",
		"log_level", cfg.LogLevel.String(),
		"http_addr", cfg.HTTPAddr,
		"redis_enabled", cfg.RedisEnabled,
	)

	ds, err := loadDataset(cfg)
	if err != nil {
		return fmt.Errorf("load catalogue: %w", err)
	}
	rt, err := router.New(ds.settings, ds.catalogue)
	if err != nil {
		return err
	}
	logger.Info("catalogue loaded",
		"source", ds.source,
		"stops", ds.catalogue.StopCount(),
		"buses", ds.catalogue.BusCount(),
		"graph_edges", rt.Graph().EdgeCount(),
		"fingerprint", ds.fingerprint,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	processor := query.NewProcessor(ds.catalogue, rt, logger)

	var (
		counters handler.CacheCounters
		pinger   handler.Pinger
	)
	if cfg.RedisEnabled {
		redisCache, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.Warn("redis unavailable, serving without cache", "error", err)
		} else {
			defer redisCache.Close()
			results := cache.NewResults(redisCache, ds.fingerprint, cfg.CacheTTL, logger)
			processor = processor.WithCache(results)
			counters, pinger = results, redisCache

			warmer := cache.NewCacheWarmer(results, ds.catalogue, logger)
			if cfg.CacheWarmOnStart {
				go func() {
					if err := warmer.WarmAll(ctx); err != nil && ctx.Err() == nil {
						logger.Error("cache warming failed", "error", err)
					}
				}()
			}
			if cfg.CacheTTL > 0 {
				go warmer.ScheduleRefresh(ctx, cfg.CacheTTL/2)
			}
		}
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerWindow, cfg.RateLimitWindow, cfg.RateLimitWhitelist, logger)
	go limiter.Run(ctx)

	stopCount, busCount := ds.catalogue.StopCount(), ds.catalogue.BusCount()
	mux := handler.NewRouter(handler.Handlers{
		Catalogue: handler.NewCatalogueHandler(processor, logger),
		WS:        handler.NewWSHandler(processor, logger),
		Health:    handler.NewHealthHandler(stopCount, busCount, pinger),
		Stats:     handler.NewStatsHandler(rt, stopCount, busCount, ds.fingerprint, counters, limiter),
		RateLimit: limiter.Middleware,
	}, logger)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		logger.Error("HTTP server error", "error", err)
		cancel()
		return err
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
