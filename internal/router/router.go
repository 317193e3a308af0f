// Package router turns a sealed catalogue into a time-weighted graph and
// answers fastest-journey queries over it.
//
// Every stop i (in name order) owns two vertices: arrival 2i and departure
// 2i+1. A wait edge joins them; ride edges go from a departure vertex to an
// arrival vertex, one per ordered stop pair along each bus direction.
package router

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"transitcat/internal/catalogue"
	"transitcat/internal/domain"
	"transitcat/pkg/graph"
)

var ErrInvalidSettings = errors.New("invalid routing settings")

// EdgeKind tags an edge as waiting at a stop or riding a bus.
type EdgeKind int

const (
	EdgeWait EdgeKind = iota
	EdgeRide
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeWait:
		return "Wait"
	case EdgeRide:
		return "Bus"
	default:
		return "unknown"
	}
}

// EdgeInfo is the presentation data for one graph edge. Name is the stop
// for a wait edge and the bus for a ride edge.
type EdgeInfo struct {
	Kind      EdgeKind
	Name      string
	SpanCount int
}

// Router is immutable after New and safe for concurrent use.
type Router struct {
	settings  domain.RoutingSettings
	graph     *graph.DirectedWeightedGraph[float64]
	router    *graph.Router[float64]
	stopIndex map[string]graph.VertexID
	edgeInfo  []EdgeInfo
}

var validate = validator.New()

// New builds the routing graph for cat.
func New(settings domain.RoutingSettings, cat *catalogue.Catalogue) (*Router, error) {
	if err := validate.Struct(settings); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	r := &Router{
		settings:  settings,
		graph:     graph.NewDirectedWeightedGraph[float64](cat.StopCount() * 2),
		stopIndex: make(map[string]graph.VertexID, cat.StopCount()),
	}

	names := cat.AllStopNames()
	for i, name := range names {
		r.stopIndex[name] = 2 * i
	}

	for _, name := range names {
		arrival := r.stopIndex[name]
		if err := r.addEdge(arrival, arrival+1, float64(settings.BusWaitTime), EdgeInfo{Kind: EdgeWait, Name: name}); err != nil {
			return nil, fmt.Errorf("build routing graph: %w", err)
		}
	}

	for _, bus := range cat.AllBusNames() {
		route := cat.BusRouteIDs(bus)
		if cat.BusIsRoundtrip(bus) {
			if err := r.addRideEdges(cat, bus, route); err != nil {
				return nil, err
			}
			continue
		}
		// The turnaround stop ends the outbound half and starts the inbound one.
		mid := len(route) / 2
		if err := r.addRideEdges(cat, bus, route[:mid+1]); err != nil {
			return nil, err
		}
		if err := r.addRideEdges(cat, bus, route[mid:]); err != nil {
			return nil, err
		}
	}

	r.router = graph.NewRouter(r.graph)
	return r, nil
}

// addRideEdges adds a departure->arrival edge for every pair i<j of the
// segment, weighted by the accumulated road distance at the bus velocity.
func (r *Router) addRideEdges(cat *catalogue.Catalogue, bus string, segment []catalogue.StopID) error {
	for i := 0; i+1 < len(segment); i++ {
		from := cat.StopByID(segment[i]).Name
		meters := 0
		for j := i + 1; j < len(segment); j++ {
			d, err := cat.DistanceBetween(segment[j-1], segment[j])
			if err != nil {
				return fmt.Errorf("build routing graph: bus %q: %w", bus, err)
			}
			meters += d

			to := cat.StopByID(segment[j]).Name
			info := EdgeInfo{Kind: EdgeRide, Name: bus, SpanCount: j - i}
			if err := r.addEdge(r.stopIndex[from]+1, r.stopIndex[to], r.travelMinutes(meters), info); err != nil {
				return fmt.Errorf("build routing graph: bus %q: %w", bus, err)
			}
		}
	}
	return nil
}

func (r *Router) travelMinutes(meters int) float64 {
	return float64(meters) / 1000 / r.settings.BusVelocity * 60
}

func (r *Router) addEdge(from, to graph.VertexID, weight float64, info EdgeInfo) error {
	id, err := r.graph.AddEdge(graph.Edge[float64]{From: from, To: to, Weight: weight})
	if err != nil {
		return err
	}
	if id != len(r.edgeInfo) {
		return fmt.Errorf("edge id %d out of step with metadata table (%d)", id, len(r.edgeInfo))
	}
	r.edgeInfo = append(r.edgeInfo, info)
	return nil
}

// FindRoute returns the fastest journey between two stops in minutes.
// ok is false when either stop is unknown or the destination is unreachable.
func (r *Router) FindRoute(from, to string) (graph.RouteInfo[float64], bool) {
	fromIdx, ok := r.stopIndex[from]
	if !ok {
		return graph.RouteInfo[float64]{}, false
	}
	toIdx, ok := r.stopIndex[to]
	if !ok {
		return graph.RouteInfo[float64]{}, false
	}
	return r.router.BuildRoute(fromIdx, toIdx)
}

func (r *Router) Edge(id graph.EdgeID) (graph.Edge[float64], bool) {
	return r.graph.Edge(id)
}

func (r *Router) EdgeInfo(id graph.EdgeID) (EdgeInfo, bool) {
	if id < 0 || id >= len(r.edgeInfo) {
		return EdgeInfo{}, false
	}
	return r.edgeInfo[id], true
}

// StopIndex returns the arrival vertex of a stop; departure is one above it.
func (r *Router) StopIndex(name string) (graph.VertexID, bool) {
	idx, ok := r.stopIndex[name]
	return idx, ok
}

func (r *Router) Settings() domain.RoutingSettings { return r.settings }

// Graph exposes the built graph read-only; callers must not add edges.
func (r *Router) Graph() *graph.DirectedWeightedGraph[float64] { return r.graph }
