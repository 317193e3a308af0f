package query

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"slices"
	"testing"

	"transitcat/internal/catalogue"
	"transitcat/internal/domain"
	"transitcat/internal/router"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newProcessor(t *testing.T) *Processor {
	t.Helper()
	b := catalogue.NewBuilder()
	steps := []error{
		b.AddStop("A", 55.0, 37.0),
		b.AddStop("B", 55.1, 37.1),
		b.AddStop("C", 55.2, 37.2),
		b.AddStop("Island", 60, 30),
		b.SetDistance("A", "B", 1000),
		b.SetDistance("B", "C", 2000),
		b.AddBus("X", []string{"A", "B"}, true),
		b.AddBus("Y", []string{"B", "C"}, false),
	}
	for _, err := range steps {
		if err != nil {
			t.Fatal(err)
		}
	}
	cat, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	r, err := router.New(domain.RoutingSettings{BusWaitTime: 5, BusVelocity: 30}, cat)
	if err != nil {
		t.Fatal(err)
	}
	return NewProcessor(cat, r, testLogger())
}

func TestAnswerBus(t *testing.T) {
	p := newProcessor(t)
	ctx := context.Background()

	got, ok := p.Answer(ctx, domain.StatRequest{ID: 1, Type: TypeBus, Name: "Y"}).(BusAnswer)
	if !ok {
		t.Fatalf("answer type = %T", got)
	}
	if got.RequestID != 1 || got.StopCount != 3 || got.UniqueStopCount != 2 || got.RouteLength != 4000 {
		t.Errorf("answer = %+v", got)
	}

	miss := p.Answer(ctx, domain.StatRequest{ID: 2, Type: TypeBus, Name: "nope"})
	if miss != (ErrorAnswer{RequestID: 2, ErrorMessage: "not found"}) {
		t.Errorf("unknown bus answer = %+v", miss)
	}
}

func TestAnswerStop(t *testing.T) {
	p := newProcessor(t)
	ctx := context.Background()

	got, ok := p.Answer(ctx, domain.StatRequest{ID: 3, Type: TypeStop, Name: "B"}).(StopAnswer)
	if !ok || !slices.Equal(got.Buses, []string{"X", "Y"}) {
		t.Errorf("B answer = %+v", got)
	}

	island, ok := p.Answer(ctx, domain.StatRequest{ID: 4, Type: TypeStop, Name: "Island"}).(StopAnswer)
	if !ok {
		t.Fatalf("Island answer type = %T", island)
	}
	data, _ := json.Marshal(island)
	if string(data) != `{"request_id":4,"buses":[]}` {
		t.Errorf("Island json = %s", data)
	}

	if _, ok := p.Answer(ctx, domain.StatRequest{ID: 5, Type: TypeStop, Name: "nope"}).(ErrorAnswer); !ok {
		t.Error("unknown stop should be an error answer")
	}
}

func TestAnswerRoute(t *testing.T) {
	p := newProcessor(t)
	ctx := context.Background()

	got, ok := p.Answer(ctx, domain.StatRequest{ID: 6, Type: TypeRoute, From: "A", To: "C"}).(RouteAnswer)
	if !ok {
		t.Fatalf("answer type = %T", got)
	}
	want := []domain.Leg{
		{Type: domain.LegWait, StopName: "A", Time: 5},
		{Type: domain.LegBus, Bus: "X", SpanCount: 1, Time: 2},
		{Type: domain.LegWait, StopName: "B", Time: 5},
		{Type: domain.LegBus, Bus: "Y", SpanCount: 1, Time: 4},
	}
	if len(got.Items) != len(want) {
		t.Fatalf("items = %+v", got.Items)
	}
	for i := range want {
		if got.Items[i].Type != want[i].Type || got.Items[i].StopName != want[i].StopName ||
			got.Items[i].Bus != want[i].Bus || got.Items[i].SpanCount != want[i].SpanCount ||
			math.Abs(got.Items[i].Time-want[i].Time) > 1e-9 {
			t.Errorf("item %d = %+v, want %+v", i, got.Items[i], want[i])
		}
	}
	if math.Abs(got.TotalTime-16) > 1e-9 {
		t.Errorf("total = %v, want 16", got.TotalTime)
	}

	var decoded map[string]any
	data, _ := json.Marshal(got)
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"request_id", "total_time", "items"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("route json missing %q: %s", key, data)
		}
	}

	if _, ok := p.Answer(ctx, domain.StatRequest{ID: 7, Type: TypeRoute, From: "A", To: "Island"}).(ErrorAnswer); !ok {
		t.Error("unreachable route should be an error answer")
	}

	same, ok := p.Answer(ctx, domain.StatRequest{ID: 8, Type: TypeRoute, From: "B", To: "B"}).(RouteAnswer)
	if !ok || same.TotalTime != 0 || same.Items == nil || len(same.Items) != 0 {
		t.Errorf("same stop answer = %+v", same)
	}
}

func TestAnswerOtherTypes(t *testing.T) {
	p := newProcessor(t)
	answers := p.AnswerAll(context.Background(), []domain.StatRequest{
		{ID: 9, Type: TypeMap},
		{ID: 10, Type: "Tram"},
	})
	if len(answers) != 2 {
		t.Fatalf("answers = %v", answers)
	}
	if a, ok := answers[0].(ErrorAnswer); !ok || a.RequestID != 9 || a.ErrorMessage != msgMapUnsupported {
		t.Errorf("map answer = %+v", answers[0])
	}
	if a, ok := answers[1].(ErrorAnswer); !ok || a.ErrorMessage != msgUnknownType {
		t.Errorf("unknown type answer = %+v", answers[1])
	}
}

type memoryCache struct {
	itineraries map[string]domain.Itinerary
	stats       map[string]domain.RouteStatistics
	stores      int
}

func (m *memoryCache) LoadItinerary(_ context.Context, from, to string) (domain.Itinerary, bool) {
	it, ok := m.itineraries[from+"|"+to]
	return it, ok
}

func (m *memoryCache) StoreItinerary(_ context.Context, from, to string, it domain.Itinerary) {
	m.stores++
	m.itineraries[from+"|"+to] = it
}

func (m *memoryCache) LoadStatistics(_ context.Context, bus string) (domain.RouteStatistics, bool) {
	s, ok := m.stats[bus]
	return s, ok
}

func (m *memoryCache) LoadStopBuses(context.Context, string) (domain.StopBuses, bool) {
	return domain.StopBuses{}, false
}

func TestProcessorUsesCache(t *testing.T) {
	cache := &memoryCache{
		itineraries: map[string]domain.Itinerary{},
		stats:       map[string]domain.RouteStatistics{"X": {Stops: 42}},
	}
	p := newProcessor(t).WithCache(cache)
	ctx := context.Background()

	first, ok := p.Itinerary(ctx, "A", "B")
	if !ok || cache.stores != 1 {
		t.Fatalf("first lookup ok=%v stores=%d", ok, cache.stores)
	}
	second, _ := p.Itinerary(ctx, "A", "B")
	if cache.stores != 1 || second.TotalTime != first.TotalTime {
		t.Errorf("second lookup should hit the cache, stores=%d", cache.stores)
	}

	if _, ok := p.Itinerary(ctx, "A", "Island"); ok || cache.stores != 1 {
		t.Error("unreachable routes must not be stored")
	}

	if got := p.Statistics(ctx, "X"); got.Stops != 42 {
		t.Errorf("statistics = %+v, want cached value", got)
	}
	if got := p.StopBuses(ctx, "A"); !got.HaveStop {
		t.Error("stop lookup should fall through to the catalogue")
	}
}
