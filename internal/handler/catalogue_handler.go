package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"transitcat/internal/domain"
	"transitcat/internal/query"
)

const maxRequestBody = 1 << 20

type CatalogueHandler struct {
	processor *query.Processor
	logger    *slog.Logger
}

func NewCatalogueHandler(p *query.Processor, logger *slog.Logger) *CatalogueHandler {
	return &CatalogueHandler{
		processor: p,
		logger:    logger.With("handler", "catalogue"),
	}
}

type BusSummary struct {
	Name        string `json:"name"`
	IsRoundtrip bool   `json:"is_roundtrip"`
	StopCount   int    `json:"stop_count"`
}

type BusesResponse struct {
	Buses      []BusSummary `json:"buses"`
	Count      int          `json:"count"`
	ServerTime time.Time    `json:"server_time"`
}

func (h *CatalogueHandler) ListBuses(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	cat := h.processor.Catalogue()

	names := cat.AllBusNames()
	buses := make([]BusSummary, 0, len(names))
	for _, name := range names {
		bus, _ := cat.Bus(name)
		buses = append(buses, BusSummary{Name: name, IsRoundtrip: bus.IsRoundtrip, StopCount: len(bus.Stops)})
	}

	h.logger.Debug("ListBuses response",
		"count", len(buses),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	respondJSON(w, http.StatusOK, BusesResponse{
		Buses:      buses,
		Count:      len(buses),
		ServerTime: time.Now(),
	})
}

type BusResponse struct {
	domain.Bus
	Statistics domain.RouteStatistics `json:"statistics"`
}

func (h *CatalogueHandler) GetBus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := r.PathValue("name")

	bus, ok := h.processor.Catalogue().Bus(name)
	if !ok {
		h.logger.Debug("GetBus not found", "bus", name)
		respondError(w, http.StatusNotFound, "bus not found")
		return
	}
	stats := h.processor.Statistics(r.Context(), name)

	h.logger.Debug("GetBus response",
		"bus", name,
		"stops", stats.Stops,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	respondJSON(w, http.StatusOK, BusResponse{Bus: bus, Statistics: stats})
}

type BusStopsResponse struct {
	Bus         string        `json:"bus"`
	IsRoundtrip bool          `json:"is_roundtrip"`
	Stops       []domain.Stop `json:"stops"`
	Count       int           `json:"count"`
}

// GetBusStops returns the full visited sequence with coordinates, which is
// what a map client needs to draw the line.
func (h *CatalogueHandler) GetBusStops(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	cat := h.processor.Catalogue()

	route := cat.BusRoute(name)
	if route == nil {
		h.logger.Debug("GetBusStops not found", "bus", name)
		respondError(w, http.StatusNotFound, "bus not found")
		return
	}

	respondJSON(w, http.StatusOK, BusStopsResponse{
		Bus:         name,
		IsRoundtrip: cat.BusIsRoundtrip(name),
		Stops:       route,
		Count:       len(route),
	})
}

type StopsResponse struct {
	Stops      []domain.Stop `json:"stops"`
	Count      int           `json:"count"`
	ServerTime time.Time     `json:"server_time"`
}

func (h *CatalogueHandler) ListStops(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	cat := h.processor.Catalogue()

	names := cat.AllStopNames()
	stops := make([]domain.Stop, 0, len(names))
	for _, name := range names {
		stop, _ := cat.Stop(name)
		stops = append(stops, stop)
	}

	h.logger.Debug("ListStops response",
		"count", len(stops),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	respondJSON(w, http.StatusOK, StopsResponse{
		Stops:      stops,
		Count:      len(stops),
		ServerTime: time.Now(),
	})
}

type StopResponse struct {
	domain.Stop
	Buses []string `json:"buses"`
}

func (h *CatalogueHandler) GetStop(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	stop, ok := h.processor.Catalogue().Stop(name)
	if !ok {
		h.logger.Debug("GetStop not found", "stop", name)
		respondError(w, http.StatusNotFound, "stop not found")
		return
	}
	buses := h.processor.StopBuses(r.Context(), name)

	respondJSON(w, http.StatusOK, StopResponse{Stop: stop, Buses: buses.Buses})
}

type RouteResponse struct {
	From string `json:"from"`
	To   string `json:"to"`
	domain.Itinerary
}

func (h *CatalogueHandler) FindRoute(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")

	h.logger.Debug("FindRoute request",
		"from", from,
		"to", to,
		"remote_addr", r.RemoteAddr,
	)

	if from == "" || to == "" {
		h.logger.Warn("FindRoute bad request", "error", "missing from or to parameter")
		respondError(w, http.StatusBadRequest, "missing from or to parameter")
		return
	}

	it, ok := h.processor.Itinerary(r.Context(), from, to)
	if !ok {
		h.logger.Debug("FindRoute not found", "from", from, "to", to)
		respondError(w, http.StatusNotFound, "route not found")
		return
	}

	h.logger.Debug("FindRoute response",
		"from", from,
		"to", to,
		"legs", len(it.Items),
		"total_time", it.TotalTime,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	respondJSON(w, http.StatusOK, RouteResponse{From: from, To: to, Itinerary: it})
}

// ProcessRequests answers a JSON array of stat requests in order, in the
// same shape as the process_requests command.
func (h *CatalogueHandler) ProcessRequests(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var reqs []domain.StatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&reqs); err != nil {
		h.logger.Warn("ProcessRequests bad request", "error", err)
		respondError(w, http.StatusBadRequest, "invalid request body: expected a JSON array of stat requests")
		return
	}

	answers := h.processor.AnswerAll(r.Context(), reqs)

	h.logger.Debug("ProcessRequests response",
		"count", len(answers),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	respondJSON(w, http.StatusOK, answers)
}
