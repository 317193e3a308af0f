package cache

import (
	"context"
	"log/slog"
	"time"

	"transitcat/internal/catalogue"
)

// CacheWarmer precomputes per-bus statistics and per-stop bus lists.
type CacheWarmer struct {
	results   *Results
	catalogue *catalogue.Catalogue
	logger    *slog.Logger
}

func NewCacheWarmer(results *Results, cat *catalogue.Catalogue, logger *slog.Logger) *CacheWarmer {
	return &CacheWarmer{
		results:   results,
		catalogue: cat,
		logger:    logger.With("component", "cache_warmer"),
	}
}

func (w *CacheWarmer) WarmAll(ctx context.Context) error {
	start := time.Now()
	w.logger.Info("starting cache warming")

	if err := w.warmStatistics(ctx); err != nil {
		w.logger.Error("failed to warm bus statistics", "error", err)
	}

	if err := w.warmStopBuses(ctx); err != nil {
		w.logger.Error("failed to warm stop buses", "error", err)
	}

	if err := w.results.cache.Set(ctx, KeyWarmedAt(w.results.fingerprint), []byte(time.Now().UTC().Format(time.RFC3339)), w.results.ttl); err != nil {
		w.logger.Warn("failed to record warm time", "error", err)
	}

	w.logger.Info("cache warming completed", "duration_ms", time.Since(start).Milliseconds())
	return ctx.Err()
}

func (w *CacheWarmer) warmStatistics(ctx context.Context) error {
	start := time.Now()
	buses := w.catalogue.AllBusNames()
	warmed := 0

	for _, bus := range buses {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.results.StoreStatistics(ctx, bus, w.catalogue.GetStatistics(bus)); err != nil {
			w.logger.Debug("failed to cache bus statistics", "bus", bus, "error", err)
			continue
		}
		warmed++
	}

	w.logger.Info("warmed bus statistics",
		"buses_warmed", warmed,
		"total_buses", len(buses),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (w *CacheWarmer) warmStopBuses(ctx context.Context) error {
	start := time.Now()
	stops := w.catalogue.AllStopNames()
	warmed := 0

	for _, stop := range stops {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.results.StoreStopBuses(ctx, stop, w.catalogue.GetBusForStop(stop)); err != nil {
			w.logger.Debug("failed to cache stop buses", "stop", stop, "error", err)
			continue
		}
		warmed++
	}

	w.logger.Info("warmed stop buses",
		"stops_warmed", warmed,
		"total_stops", len(stops),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// ScheduleRefresh rewarms every interval so entries do not expire while the
// process is serving. It returns when ctx is done.
func (w *CacheWarmer) ScheduleRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("scheduled cache refresh", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.logger.Info("cache refresh starting")
			if err := w.WarmAll(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("cache refresh failed", "error", err)
			}
		}
	}
}
