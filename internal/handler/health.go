package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether an optional dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	stopCount int
	busCount  int
	cache     Pinger
}

// NewHealthHandler is created once the catalogue and router are built, so
// readiness only depends on the optional cache.
func NewHealthHandler(stopCount, busCount int, cache Pinger) *HealthHandler {
	return &HealthHandler{stopCount: stopCount, busCount: busCount, cache: cache}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type ReadyResponse struct {
	Ready      bool      `json:"ready"`
	Stops      int       `json:"stops"`
	Buses      int       `json:"buses"`
	Cache      string    `json:"cache"`
	ServerTime time.Time `json:"server_time"`
}

// Readyz stays ready when the cache is down; queries fall back to the
// in-memory catalogue.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	cacheState := "disabled"
	if h.cache != nil {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if err := h.cache.Ping(ctx); err != nil {
			cacheState = "degraded"
		} else {
			cacheState = "ok"
		}
	}

	respondJSON(w, http.StatusOK, ReadyResponse{
		Ready:      true,
		Stops:      h.stopCount,
		Buses:      h.busCount,
		Cache:      cacheState,
		ServerTime: time.Now(),
	})
}
