// Package catalogue stores transit stops, buses and the directed road
// distance table. A Builder collects the data once; Build turns it into an
// immutable Catalogue that is safe for concurrent readers.
package catalogue

import (
	"cmp"
	"slices"

	"transitcat/internal/domain"
	"transitcat/pkg/geo"
)

// DistanceEntry is one directed row of the distance table.
type DistanceEntry struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Meters int    `json:"meters"`
}

// Catalogue is the sealed, read-only view produced by Builder.Build.
type Catalogue struct {
	stops     []domain.Stop
	stopIndex map[string]StopID
	buses     []busRecord
	busIndex  map[string]BusID
	stopBuses [][]string
	distances map[distanceKey]int
}

func (c *Catalogue) StopCount() int { return len(c.stops) }
func (c *Catalogue) BusCount() int  { return len(c.buses) }

// StopID returns the handle of the named stop.
func (c *Catalogue) StopID(name string) (StopID, bool) {
	id, ok := c.stopIndex[name]
	return id, ok
}

func (c *Catalogue) Stop(name string) (domain.Stop, bool) {
	id, ok := c.stopIndex[name]
	if !ok {
		return domain.Stop{}, false
	}
	return c.stops[id], true
}

// StopByID panics on an id not issued by this catalogue.
func (c *Catalogue) StopByID(id StopID) domain.Stop {
	return c.stops[id]
}

// AllStopNames returns every stop name in lexicographic order.
func (c *Catalogue) AllStopNames() []string {
	names := make([]string, 0, len(c.stops))
	for _, s := range c.stops {
		names = append(names, s.Name)
	}
	slices.Sort(names)
	return names
}

// AllBusNames returns every bus name in lexicographic order.
func (c *Catalogue) AllBusNames() []string {
	names := make([]string, 0, len(c.buses))
	for _, b := range c.buses {
		names = append(names, b.name)
	}
	slices.Sort(names)
	return names
}

// Bus returns the bus as it was added: outbound stops only for a
// non-round-trip bus.
func (c *Catalogue) Bus(name string) (domain.Bus, bool) {
	id, ok := c.busIndex[name]
	if !ok {
		return domain.Bus{}, false
	}
	rec := c.buses[id]
	stops := make([]string, len(rec.stops))
	for i, s := range rec.stops {
		stops[i] = c.stops[s].Name
	}
	return domain.Bus{Name: rec.name, Stops: stops, IsRoundtrip: rec.roundtrip}, true
}

func (c *Catalogue) BusIsRoundtrip(name string) bool {
	id, ok := c.busIndex[name]
	return ok && c.buses[id].roundtrip
}

// BusRoute returns the full visited stop sequence of a bus, or nil if the
// bus is unknown. A non-round-trip bus with N outbound stops yields 2N-1.
func (c *Catalogue) BusRoute(name string) []domain.Stop {
	ids := c.BusRouteIDs(name)
	if ids == nil {
		return nil
	}
	route := make([]domain.Stop, len(ids))
	for i, id := range ids {
		route[i] = c.stops[id]
	}
	return route
}

// BusRouteIDs is BusRoute expressed in stop handles.
func (c *Catalogue) BusRouteIDs(name string) []StopID {
	id, ok := c.busIndex[name]
	if !ok {
		return nil
	}
	return c.fullRoute(id)
}

func (c *Catalogue) fullRoute(id BusID) []StopID {
	rec := c.buses[id]
	if rec.roundtrip {
		return slices.Clone(rec.stops)
	}
	n := len(rec.stops)
	route := make([]StopID, 0, 2*n-1)
	route = append(route, rec.stops...)
	for i := n - 2; i >= 0; i-- {
		route = append(route, rec.stops[i])
	}
	return route
}

// GetDistance returns the road distance from -> to, falling back to the
// to -> from entry when only the reverse direction is known.
func (c *Catalogue) GetDistance(from, to string) (int, error) {
	fromID, ok := c.stopIndex[from]
	if !ok {
		return 0, &UnknownStopError{Name: from}
	}
	toID, ok := c.stopIndex[to]
	if !ok {
		return 0, &UnknownStopError{Name: to}
	}
	return c.DistanceBetween(fromID, toID)
}

// DistanceBetween is GetDistance over stop handles.
func (c *Catalogue) DistanceBetween(from, to StopID) (int, error) {
	if d, ok := c.distances[distanceKey{from, to}]; ok {
		return d, nil
	}
	if d, ok := c.distances[distanceKey{to, from}]; ok {
		return d, nil
	}
	return 0, &NoDistanceDataError{From: c.stops[from].Name, To: c.stops[to].Name}
}

// GetStatistics returns zero statistics for an unknown bus.
func (c *Catalogue) GetStatistics(busName string) domain.RouteStatistics {
	route := c.BusRouteIDs(busName)
	if len(route) == 0 {
		return domain.RouteStatistics{}
	}

	unique := make(map[StopID]struct{}, len(route))
	for _, id := range route {
		unique[id] = struct{}{}
	}

	stats := domain.RouteStatistics{
		Stops:       len(route),
		UniqueStops: len(unique),
	}
	for i := 0; i+1 < len(route); i++ {
		from, to := route[i], route[i+1]
		stats.RouteLengthGeo += geo.ComputeDistance(c.stops[from].Coordinates, c.stops[to].Coordinates)
		// Build guarantees every consecutive pair has a distance.
		d, _ := c.DistanceBetween(from, to)
		stats.RouteLength += d
	}
	if stats.RouteLengthGeo != 0 {
		stats.Curvature = float64(stats.RouteLength) / stats.RouteLengthGeo
	}
	return stats
}

// GetBusForStop reports the buses serving a stop; HaveStop is false for an
// unknown stop and Buses may be empty for a known one.
func (c *Catalogue) GetBusForStop(stopName string) domain.StopBuses {
	id, ok := c.stopIndex[stopName]
	if !ok {
		return domain.StopBuses{}
	}
	return domain.StopBuses{HaveStop: true, Buses: slices.Clone(c.stopBuses[id])}
}

// DistancesTable returns every stored directed entry sorted by from, then to.
func (c *Catalogue) DistancesTable() []DistanceEntry {
	table := make([]DistanceEntry, 0, len(c.distances))
	for k, d := range c.distances {
		table = append(table, DistanceEntry{
			From:   c.stops[k.from].Name,
			To:     c.stops[k.to].Name,
			Meters: d,
		})
	}
	slices.SortFunc(table, func(a, b DistanceEntry) int {
		if n := cmp.Compare(a.From, b.From); n != 0 {
			return n
		}
		return cmp.Compare(a.To, b.To)
	})
	return table
}
