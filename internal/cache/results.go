package cache

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"transitcat/internal/domain"
)

// Results adapts RedisCache to the query layer. Errors are logged and
// reported as misses.
type Results struct {
	cache       *RedisCache
	fingerprint string
	ttl         time.Duration
	logger      *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

func NewResults(cache *RedisCache, fingerprint string, ttl time.Duration, logger *slog.Logger) *Results {
	return &Results{
		cache:       cache,
		fingerprint: fingerprint,
		ttl:         ttl,
		logger:      logger.With("component", "result_cache", "fingerprint", shortFingerprint(fingerprint)),
	}
}

// Counters reports lookups since start; errors count as misses.
func (r *Results) Counters() (hits, misses int64) {
	return r.hits.Load(), r.misses.Load()
}

func (r *Results) record(ok bool) bool {
	if ok {
		r.hits.Add(1)
	} else {
		r.misses.Add(1)
	}
	return ok
}

func (r *Results) LoadItinerary(ctx context.Context, from, to string) (domain.Itinerary, bool) {
	var it domain.Itinerary
	ok, err := r.cache.GetJSONCompressed(ctx, KeyItinerary(r.fingerprint, from, to), &it)
	if err != nil {
		r.logger.Warn("itinerary lookup failed", "from", from, "to", to, "error", err)
		return domain.Itinerary{}, r.record(false)
	}
	return it, r.record(ok)
}

func (r *Results) StoreItinerary(ctx context.Context, from, to string, it domain.Itinerary) {
	if err := r.cache.SetJSONCompressed(ctx, KeyItinerary(r.fingerprint, from, to), it, r.ttl); err != nil {
		r.logger.Warn("itinerary store failed", "from", from, "to", to, "error", err)
	}
}

func (r *Results) LoadStatistics(ctx context.Context, bus string) (domain.RouteStatistics, bool) {
	var stats domain.RouteStatistics
	ok, err := r.cache.GetJSON(ctx, KeyStatistics(r.fingerprint, bus), &stats)
	if err != nil {
		r.logger.Warn("statistics lookup failed", "bus", bus, "error", err)
		return domain.RouteStatistics{}, r.record(false)
	}
	return stats, r.record(ok)
}

func (r *Results) StoreStatistics(ctx context.Context, bus string, stats domain.RouteStatistics) error {
	return r.cache.SetJSON(ctx, KeyStatistics(r.fingerprint, bus), stats, r.ttl)
}

// LoadStopBuses only ever holds known stops, so a hit has HaveStop set.
func (r *Results) LoadStopBuses(ctx context.Context, stop string) (domain.StopBuses, bool) {
	var buses domain.StopBuses
	ok, err := r.cache.GetJSON(ctx, KeyStopBuses(r.fingerprint, stop), &buses)
	if err != nil {
		r.logger.Warn("stop lookup failed", "stop", stop, "error", err)
		return domain.StopBuses{}, r.record(false)
	}
	if !r.record(ok) {
		return domain.StopBuses{}, false
	}
	buses.HaveStop = true
	if buses.Buses == nil {
		buses.Buses = []string{}
	}
	return buses, true
}

func (r *Results) StoreStopBuses(ctx context.Context, stop string, buses domain.StopBuses) error {
	if !buses.HaveStop {
		return nil
	}
	return r.cache.SetJSON(ctx, KeyStopBuses(r.fingerprint, stop), buses, r.ttl)
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
