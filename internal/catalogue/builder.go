package catalogue

import (
	"fmt"
	"slices"

	"transitcat/internal/domain"
	"transitcat/pkg/geo"
)

// StopID is a stable handle into the stop arena.
type StopID int

// BusID is a stable handle into the bus arena.
type BusID int

type busRecord struct {
	name      string
	stops     []StopID
	roundtrip bool
}

type distanceKey struct {
	from StopID
	to   StopID
}

// Builder collects stops, distances and buses. It is consumed by Build;
// every call after that returns ErrSealed.
type Builder struct {
	stops     []domain.Stop
	stopIndex map[string]StopID
	buses     []busRecord
	busIndex  map[string]BusID
	stopBuses []map[BusID]struct{}
	distances map[distanceKey]int
	sealed    bool
}

func NewBuilder() *Builder {
	return &Builder{
		stopIndex: make(map[string]StopID),
		busIndex:  make(map[string]BusID),
		distances: make(map[distanceKey]int),
	}
}

// AddStop registers a stop. Names must be unique.
func (b *Builder) AddStop(name string, lat, lng float64) error {
	if b.sealed {
		return fmt.Errorf("add stop %q: %w", name, ErrSealed)
	}
	if _, exists := b.stopIndex[name]; exists {
		return fmt.Errorf("add stop %q: %w", name, ErrDuplicateStop)
	}

	id := StopID(len(b.stops))
	b.stops = append(b.stops, domain.Stop{
		Name:        name,
		Coordinates: geo.Coordinates{Lat: lat, Lng: lng},
	})
	b.stopIndex[name] = id
	b.stopBuses = append(b.stopBuses, nil)
	return nil
}

// SetDistance records the road distance for the ordered pair from -> to,
// overwriting any previous value for that exact pair.
func (b *Builder) SetDistance(from, to string, meters int) error {
	if b.sealed {
		return fmt.Errorf("set distance %q -> %q: %w", from, to, ErrSealed)
	}
	if meters < 0 {
		return fmt.Errorf("set distance %q -> %q: %w: %d", from, to, ErrNegativeDistance, meters)
	}
	fromID, err := b.lookup(from)
	if err != nil {
		return fmt.Errorf("set distance: %w", err)
	}
	toID, err := b.lookup(to)
	if err != nil {
		return fmt.Errorf("set distance: %w", err)
	}

	b.distances[distanceKey{fromID, toID}] = meters
	return nil
}

// AddBus registers a bus over already added stops. For a non-round-trip
// bus stopNames is the outbound half of the route.
func (b *Builder) AddBus(name string, stopNames []string, isRoundtrip bool) error {
	if b.sealed {
		return fmt.Errorf("add bus %q: %w", name, ErrSealed)
	}
	if _, exists := b.busIndex[name]; exists {
		return fmt.Errorf("add bus %q: %w", name, ErrDuplicateBus)
	}
	if len(stopNames) == 0 {
		return fmt.Errorf("add bus %q: %w", name, ErrEmptyRoute)
	}

	stops := make([]StopID, 0, len(stopNames))
	for _, stopName := range stopNames {
		id, err := b.lookup(stopName)
		if err != nil {
			return fmt.Errorf("add bus %q: %w", name, err)
		}
		stops = append(stops, id)
	}

	id := BusID(len(b.buses))
	b.buses = append(b.buses, busRecord{name: name, stops: stops, roundtrip: isRoundtrip})
	b.busIndex[name] = id

	for _, stop := range stops {
		if b.stopBuses[stop] == nil {
			b.stopBuses[stop] = make(map[BusID]struct{})
		}
		b.stopBuses[stop][id] = struct{}{}
	}
	return nil
}

// Build seals the builder and returns the immutable catalogue. It fails with
// a NoDistanceDataError when some consecutive pair on a bus route has no
// distance in either direction.
func (b *Builder) Build() (*Catalogue, error) {
	if b.sealed {
		return nil, fmt.Errorf("build: %w", ErrSealed)
	}

	c := &Catalogue{
		stops:     b.stops,
		stopIndex: b.stopIndex,
		buses:     b.buses,
		busIndex:  b.busIndex,
		distances: b.distances,
		stopBuses: make([][]string, len(b.stops)),
	}

	for stop, set := range b.stopBuses {
		names := make([]string, 0, len(set))
		for bus := range set {
			names = append(names, b.buses[bus].name)
		}
		slices.Sort(names)
		c.stopBuses[stop] = names
	}

	for id := range c.buses {
		route := c.fullRoute(BusID(id))
		for i := 0; i+1 < len(route); i++ {
			if _, err := c.DistanceBetween(route[i], route[i+1]); err != nil {
				return nil, fmt.Errorf("build: bus %q: %w", c.buses[id].name, err)
			}
		}
	}

	b.sealed = true
	b.stops, b.buses, b.stopBuses = nil, nil, nil
	b.stopIndex, b.busIndex, b.distances = nil, nil, nil
	return c, nil
}

func (b *Builder) lookup(name string) (StopID, error) {
	id, ok := b.stopIndex[name]
	if !ok {
		return 0, &UnknownStopError{Name: name}
	}
	return id, nil
}
