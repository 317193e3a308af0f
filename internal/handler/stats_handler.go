package handler

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"transitcat/internal/middleware"
	"transitcat/internal/router"
)

// Stats tracks server-wide counters.
type Stats struct {
	startTime        time.Time
	requestCount     atomic.Int64
	wsConnections    atomic.Int64
	wsMessagesIn     atomic.Int64
	wsMessagesOut    atomic.Int64
	rateLimitBlocked atomic.Int64
}

var ServerStats = &Stats{
	startTime: time.Now(),
}

func (s *Stats) IncRequests()         { s.requestCount.Add(1) }
func (s *Stats) IncWSConnections()    { s.wsConnections.Add(1) }
func (s *Stats) DecWSConnections()    { s.wsConnections.Add(-1) }
func (s *Stats) IncWSMessagesIn()     { s.wsMessagesIn.Add(1) }
func (s *Stats) IncWSMessagesOut()    { s.wsMessagesOut.Add(1) }
func (s *Stats) IncRateLimitBlocked() { s.rateLimitBlocked.Add(1) }

// CacheCounters is implemented by result caches that count lookups.
type CacheCounters interface {
	Counters() (hits, misses int64)
}

type StatsHandler struct {
	router      *router.Router
	stopCount   int
	busCount    int
	fingerprint string
	cache       CacheCounters
	limiter     *middleware.RateLimiter
}

// NewStatsHandler accepts nil cache and limiter when those are disabled.
func NewStatsHandler(r *router.Router, stopCount, busCount int, fingerprint string, cache CacheCounters, limiter *middleware.RateLimiter) *StatsHandler {
	return &StatsHandler{
		router:      r,
		stopCount:   stopCount,
		busCount:    busCount,
		fingerprint: fingerprint,
		cache:       cache,
		limiter:     limiter,
	}
}

type StatsResponse struct {
	Server    ServerStatsResponse    `json:"server"`
	Catalogue CatalogueStatsResponse `json:"catalogue"`
	WebSocket WebSocketStatsResponse `json:"websocket"`
	Cache     *CacheStatsResponse    `json:"cache,omitempty"`
	RateLimit *middleware.Stats      `json:"rate_limit,omitempty"`
	Go        GoStatsResponse        `json:"go"`
}

type ServerStatsResponse struct {
	Uptime        string    `json:"uptime"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	StartTime     time.Time `json:"start_time"`
	RequestCount  int64     `json:"request_count"`
	RateLimited   int64     `json:"rate_limited"`
}

type CatalogueStatsResponse struct {
	Stops         int     `json:"stops"`
	Buses         int     `json:"buses"`
	GraphVertices int     `json:"graph_vertices"`
	GraphEdges    int     `json:"graph_edges"`
	BusWaitTime   int     `json:"bus_wait_time"`
	BusVelocity   float64 `json:"bus_velocity"`
	Fingerprint   string  `json:"fingerprint,omitempty"`
}

type WebSocketStatsResponse struct {
	Connections int64 `json:"connections"`
	MessagesIn  int64 `json:"messages_in"`
	MessagesOut int64 `json:"messages_out"`
}

type CacheStatsResponse struct {
	Hits   int64   `json:"hits"`
	Misses int64   `json:"misses"`
	Ratio  float64 `json:"hit_ratio"`
}

type GoStatsResponse struct {
	Goroutines  int     `json:"goroutines"`
	HeapAlloc   uint64  `json:"heap_alloc_bytes"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	NumGC       uint32  `json:"num_gc"`
	GoVersion   string  `json:"go_version"`
}

func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(ServerStats.startTime)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	settings := h.router.Settings()
	response := StatsResponse{
		Server: ServerStatsResponse{
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			StartTime:     ServerStats.startTime,
			RequestCount:  ServerStats.requestCount.Load(),
			RateLimited:   ServerStats.rateLimitBlocked.Load(),
		},
		Catalogue: CatalogueStatsResponse{
			Stops:         h.stopCount,
			Buses:         h.busCount,
			GraphVertices: h.router.Graph().VertexCount(),
			GraphEdges:    h.router.Graph().EdgeCount(),
			BusWaitTime:   settings.BusWaitTime,
			BusVelocity:   settings.BusVelocity,
			Fingerprint:   h.fingerprint,
		},
		WebSocket: WebSocketStatsResponse{
			Connections: ServerStats.wsConnections.Load(),
			MessagesIn:  ServerStats.wsMessagesIn.Load(),
			MessagesOut: ServerStats.wsMessagesOut.Load(),
		},
		Go: GoStatsResponse{
			Goroutines:  runtime.NumGoroutine(),
			HeapAlloc:   mem.HeapAlloc,
			HeapAllocMB: float64(mem.HeapAlloc) / 1024 / 1024,
			NumGC:       mem.NumGC,
			GoVersion:   runtime.Version(),
		},
	}

	if h.cache != nil {
		hits, misses := h.cache.Counters()
		var ratio float64
		if total := hits + misses; total > 0 {
			ratio = float64(hits) / float64(total)
		}
		response.Cache = &CacheStatsResponse{Hits: hits, Misses: misses, Ratio: ratio}
	}
	if h.limiter != nil {
		stats := h.limiter.Stats()
		response.RateLimit = &stats
	}

	w.Header().Set("Cache-Control", "no-cache")
	respondJSON(w, http.StatusOK, response)
}
