package domain

import "transitcat/pkg/geo"

// Stop is a named location. Names are unique within a catalogue.
type Stop struct {
	Name        string          `json:"name"`
	Coordinates geo.Coordinates `json:"coordinates"`
}

// Bus is a named route over catalogue stops.
//
// For a non-round-trip bus Stops holds the outbound half only; the bus
// travels it out and back. Catalogue.BusRoute expands the visited sequence.
type Bus struct {
	Name        string   `json:"name"`
	Stops       []string `json:"stops"`
	IsRoundtrip bool     `json:"is_roundtrip"`
}

// RouteStatistics is derived from a bus route on demand.
// A zero value (Stops == 0) means the bus is unknown.
type RouteStatistics struct {
	Stops          int     `json:"stop_count"`
	UniqueStops    int     `json:"unique_stop_count"`
	RouteLength    int     `json:"route_length"`
	RouteLengthGeo float64 `json:"route_length_geo"`
	Curvature      float64 `json:"curvature"`
}

// Found reports whether the statistics describe a known bus.
func (s RouteStatistics) Found() bool { return s.Stops > 0 }

// StopBuses lists the buses serving a stop, sorted by name.
// HaveStop is false when the stop is unknown.
type StopBuses struct {
	HaveStop bool     `json:"-"`
	Buses    []string `json:"buses"`
}

// RoutingSettings configure travel time synthesis.
type RoutingSettings struct {
	BusWaitTime int     `json:"bus_wait_time" yaml:"bus_wait_time" validate:"gte=0"`
	BusVelocity float64 `json:"bus_velocity" yaml:"bus_velocity" validate:"gt=0"`
}

// StatRequest is one query from a request document.
type StatRequest struct {
	ID   int    `json:"id" yaml:"id"`
	Type string `json:"type" yaml:"type" validate:"required"`
	Name string `json:"name,omitempty" yaml:"name"`
	From string `json:"from,omitempty" yaml:"from"`
	To   string `json:"to,omitempty" yaml:"to"`
}

const (
	LegWait = "Wait"
	LegBus  = "Bus"
)

// Leg is one step of an itinerary: waiting at StopName, or riding Bus for
// SpanCount stops. Time is in minutes.
type Leg struct {
	Type      string  `json:"type"`
	StopName  string  `json:"stop_name,omitempty"`
	Bus       string  `json:"bus,omitempty"`
	SpanCount int     `json:"span_count,omitempty"`
	Time      float64 `json:"time"`
}

// Itinerary is the fastest journey between two stops.
type Itinerary struct {
	TotalTime float64 `json:"total_time"`
	Items     []Leg   `json:"items"`
}
