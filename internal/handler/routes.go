package handler

import (
	"log/slog"
	"net/http"
)

// Handlers groups everything the HTTP server exposes.
type Handlers struct {
	Catalogue *CatalogueHandler
	WS        *WSHandler
	Health    *HealthHandler
	Stats     *StatsHandler

	// RateLimit wraps the API routes; nil disables it.
	RateLimit func(http.Handler) http.Handler
}

// NewRouter mounts the routes and middleware. The websocket endpoint skips
// gzip since the upgrade needs the raw connection.
func NewRouter(h Handlers, logger *slog.Logger) http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /v1/buses", h.Catalogue.ListBuses)
	api.HandleFunc("GET /v1/buses/{name}", h.Catalogue.GetBus)
	api.HandleFunc("GET /v1/buses/{name}/stops", h.Catalogue.GetBusStops)
	api.HandleFunc("GET /v1/stops", h.Catalogue.ListStops)
	api.HandleFunc("GET /v1/stops/{name}", h.Catalogue.GetStop)
	api.HandleFunc("GET /v1/route", h.Catalogue.FindRoute)
	api.HandleFunc("POST /v1/requests", h.Catalogue.ProcessRequests)
	api.HandleFunc("GET /v1/stats", h.Stats.GetStats)

	var apiHandler http.Handler = api
	if h.RateLimit != nil {
		apiHandler = h.RateLimit(apiHandler)
	}
	apiHandler = GzipMiddleware(apiHandler)

	var wsHandler http.Handler = http.HandlerFunc(h.WS.ServeWS)
	if h.RateLimit != nil {
		wsHandler = h.RateLimit(wsHandler)
	}

	root := http.NewServeMux()
	root.Handle("/v1/", apiHandler)
	root.Handle("GET /v1/ws", wsHandler)
	root.HandleFunc("GET /healthz", h.Health.Healthz)
	root.HandleFunc("GET /readyz", h.Health.Readyz)

	return RequestLogger(logger)(CORSMiddleware(root))
}
