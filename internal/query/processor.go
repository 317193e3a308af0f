// Package query answers stat requests against a sealed catalogue and its
// router.
package query

import (
	"context"
	"log/slog"
	"time"

	"transitcat/internal/catalogue"
	"transitcat/internal/domain"
	"transitcat/internal/router"
)

const (
	TypeBus   = "Bus"
	TypeStop  = "Stop"
	TypeRoute = "Route"
	TypeMap   = "Map"

	msgNotFound       = "not found"
	msgUnknownType    = "unknown request type"
	msgMapUnsupported = "map rendering is not supported"
)

type ErrorAnswer struct {
	RequestID    int    `json:"request_id"`
	ErrorMessage string `json:"error_message"`
}

type BusAnswer struct {
	RequestID       int     `json:"request_id"`
	StopCount       int     `json:"stop_count"`
	UniqueStopCount int     `json:"unique_stop_count"`
	RouteLength     int     `json:"route_length"`
	Curvature       float64 `json:"curvature"`
}

type StopAnswer struct {
	RequestID int      `json:"request_id"`
	Buses     []string `json:"buses"`
}

type RouteAnswer struct {
	RequestID int `json:"request_id"`
	domain.Itinerary
}

// ResultCache stores derived answers outside the process. Implementations
// must treat every failure as a miss.
type ResultCache interface {
	LoadItinerary(ctx context.Context, from, to string) (domain.Itinerary, bool)
	StoreItinerary(ctx context.Context, from, to string, it domain.Itinerary)
	LoadStatistics(ctx context.Context, bus string) (domain.RouteStatistics, bool)
	LoadStopBuses(ctx context.Context, stop string) (domain.StopBuses, bool)
}

type Processor struct {
	catalogue *catalogue.Catalogue
	router    *router.Router
	cache     ResultCache
	logger    *slog.Logger
}

func NewProcessor(cat *catalogue.Catalogue, r *router.Router, logger *slog.Logger) *Processor {
	return &Processor{
		catalogue: cat,
		router:    r,
		logger:    logger.With("component", "query"),
	}
}

// WithCache returns a copy of p that consults cache before computing.
func (p *Processor) WithCache(cache ResultCache) *Processor {
	cp := *p
	cp.cache = cache
	return &cp
}

func (p *Processor) Catalogue() *catalogue.Catalogue { return p.catalogue }
func (p *Processor) Router() *router.Router          { return p.router }

// AnswerAll answers requests in order.
func (p *Processor) AnswerAll(ctx context.Context, reqs []domain.StatRequest) []any {
	start := time.Now()
	answers := make([]any, 0, len(reqs))
	for _, req := range reqs {
		answers = append(answers, p.Answer(ctx, req))
	}
	p.logger.Debug("answered stat requests", "count", len(reqs), "duration_ms", time.Since(start).Milliseconds())
	return answers
}

// Answer returns one of BusAnswer, StopAnswer, RouteAnswer or ErrorAnswer.
func (p *Processor) Answer(ctx context.Context, req domain.StatRequest) any {
	switch req.Type {
	case TypeBus:
		stats := p.Statistics(ctx, req.Name)
		if !stats.Found() {
			return ErrorAnswer{RequestID: req.ID, ErrorMessage: msgNotFound}
		}
		return BusAnswer{
			RequestID:       req.ID,
			StopCount:       stats.Stops,
			UniqueStopCount: stats.UniqueStops,
			RouteLength:     stats.RouteLength,
			Curvature:       stats.Curvature,
		}

	case TypeStop:
		stop := p.StopBuses(ctx, req.Name)
		if !stop.HaveStop {
			return ErrorAnswer{RequestID: req.ID, ErrorMessage: msgNotFound}
		}
		return StopAnswer{RequestID: req.ID, Buses: stop.Buses}

	case TypeRoute:
		it, ok := p.Itinerary(ctx, req.From, req.To)
		if !ok {
			return ErrorAnswer{RequestID: req.ID, ErrorMessage: msgNotFound}
		}
		return RouteAnswer{RequestID: req.ID, Itinerary: it}

	case TypeMap:
		return ErrorAnswer{RequestID: req.ID, ErrorMessage: msgMapUnsupported}

	default:
		p.logger.Warn("unknown request type", "request_id", req.ID, "type", req.Type)
		return ErrorAnswer{RequestID: req.ID, ErrorMessage: msgUnknownType}
	}
}

func (p *Processor) Statistics(ctx context.Context, bus string) domain.RouteStatistics {
	if p.cache != nil {
		if stats, ok := p.cache.LoadStatistics(ctx, bus); ok {
			return stats
		}
	}
	return p.catalogue.GetStatistics(bus)
}

func (p *Processor) StopBuses(ctx context.Context, stop string) domain.StopBuses {
	if p.cache != nil {
		if buses, ok := p.cache.LoadStopBuses(ctx, stop); ok {
			return buses
		}
	}
	return p.catalogue.GetBusForStop(stop)
}

// Itinerary finds the fastest journey and expands it into alternating
// wait and ride legs.
func (p *Processor) Itinerary(ctx context.Context, from, to string) (domain.Itinerary, bool) {
	if p.cache != nil {
		if it, ok := p.cache.LoadItinerary(ctx, from, to); ok {
			return it, true
		}
	}

	route, ok := p.router.FindRoute(from, to)
	if !ok {
		return domain.Itinerary{}, false
	}

	it := domain.Itinerary{
		TotalTime: route.Weight,
		Items:     make([]domain.Leg, 0, len(route.Edges)),
	}
	for _, id := range route.Edges {
		edge, _ := p.router.Edge(id)
		info, _ := p.router.EdgeInfo(id)
		switch info.Kind {
		case router.EdgeWait:
			it.Items = append(it.Items, domain.Leg{Type: domain.LegWait, StopName: info.Name, Time: edge.Weight})
		case router.EdgeRide:
			it.Items = append(it.Items, domain.Leg{Type: domain.LegBus, Bus: info.Name, SpanCount: info.SpanCount, Time: edge.Weight})
		}
	}

	if p.cache != nil {
		p.cache.StoreItinerary(ctx, from, to, it)
	}
	return it, true
}
