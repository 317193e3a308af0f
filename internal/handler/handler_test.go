package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"transitcat/internal/catalogue"
	"transitcat/internal/domain"
	"transitcat/internal/middleware"
	"transitcat/internal/query"
	"transitcat/internal/router"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func newTestRouter(t *testing.T, limiter *middleware.RateLimiter, pinger Pinger) http.Handler {
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
	p := query.NewProcessor(cat, r, testLogger())

	h := Handlers{
		Catalogue: NewCatalogueHandler(p, testLogger()),
		WS:        NewWSHandler(p, testLogger()),
		Health:    NewHealthHandler(cat.StopCount(), cat.BusCount(), pinger),
		Stats:     NewStatsHandler(r, cat.StopCount(), cat.BusCount(), "fp", nil, limiter),
	}
	if limiter != nil {
		h.RateLimit = limiter.Middleware
	}
	return NewRouter(h, testLogger())
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func TestStatusCodes(t *testing.T) {
	h := newTestRouter(t, nil, nil)

	tests := []struct {
		target string
		want   int
	}{
		{"/v1/buses", http.StatusOK},
		{"/v1/buses/X", http.StatusOK},
		{"/v1/buses/nope", http.StatusNotFound},
		{"/v1/buses/Y/stops", http.StatusOK},
		{"/v1/buses/nope/stops", http.StatusNotFound},
		{"/v1/stops", http.StatusOK},
		{"/v1/stops/Island", http.StatusOK},
		{"/v1/stops/nope", http.StatusNotFound},
		{"/v1/route?from=A&to=C", http.StatusOK},
		{"/v1/route?from=A", http.StatusBadRequest},
		{"/v1/route?from=A&to=Island", http.StatusNotFound},
		{"/v1/route?from=A&to=nope", http.StatusNotFound},
		{"/v1/stats", http.StatusOK},
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusOK},
		{"/v1/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			if rec := get(t, h, tt.target); rec.Code != tt.want {
				t.Errorf("GET %s = %d, want %d: %s", tt.target, rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestBusEndpoints(t *testing.T) {
	h := newTestRouter(t, nil, nil)

	list := decode[BusesResponse](t, get(t, h, "/v1/buses"))
	if list.Count != 2 || list.Buses[0].Name != "X" || !list.Buses[0].IsRoundtrip || list.Buses[1].IsRoundtrip {
		t.Errorf("buses = %+v", list)
	}

	bus := decode[BusResponse](t, get(t, h, "/v1/buses/Y"))
	if bus.Name != "Y" || len(bus.Stops) != 2 || bus.Statistics.Stops != 3 || bus.Statistics.RouteLength != 4000 {
		t.Errorf("bus = %+v", bus)
	}

	stops := decode[BusStopsResponse](t, get(t, h, "/v1/buses/Y/stops"))
	var names []string
	for _, s := range stops.Stops {
		names = append(names, s.Name)
	}
	if strings.Join(names, ",") != "B,C,B" || stops.Stops[1].Coordinates.Lat != 55.2 {
		t.Errorf("route = %+v", stops)
	}
}

func TestStopEndpoints(t *testing.T) {
	h := newTestRouter(t, nil, nil)

	list := decode[StopsResponse](t, get(t, h, "/v1/stops"))
	if list.Count != 4 || list.Stops[0].Name != "A" {
		t.Errorf("stops = %+v", list)
	}

	stop := decode[StopResponse](t, get(t, h, "/v1/stops/B"))
	if stop.Name != "B" || strings.Join(stop.Buses, ",") != "X,Y" {
		t.Errorf("stop = %+v", stop)
	}

	rec := get(t, h, "/v1/stops/Island")
	if !strings.Contains(rec.Body.String(), `"buses":[]`) {
		t.Errorf("island body = %s", rec.Body.String())
	}
}

func TestFindRouteEndpoint(t *testing.T) {
	h := newTestRouter(t, nil, nil)

	route := decode[RouteResponse](t, get(t, h, "/v1/route?from=A&to=B"))
	if route.From != "A" || route.To != "B" || route.TotalTime != 7 {
		t.Errorf("route = %+v", route)
	}
	if len(route.Items) != 2 || route.Items[0].Type != "Wait" || route.Items[1].Bus != "X" {
		t.Errorf("items = %+v", route.Items)
	}
}

func TestProcessRequests(t *testing.T) {
	h := newTestRouter(t, nil, nil)

	body := `[
		{"id": 1, "type": "Bus", "name": "X"},
		{"id": 2, "type": "Stop", "name": "nope"},
		{"id": 3, "type": "Route", "from": "A", "to": "B"}
	]`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/requests", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	answers := decode[[]map[string]any](t, rec)
	if len(answers) != 3 {
		t.Fatalf("answers = %v", answers)
	}
	if answers[0]["stop_count"] != float64(2) || answers[0]["request_id"] != float64(1) {
		t.Errorf("bus answer = %v", answers[0])
	}
	if answers[1]["error_message"] != "not found" {
		t.Errorf("stop answer = %v", answers[1])
	}
	if answers[2]["total_time"] != float64(7) {
		t.Errorf("route answer = %v", answers[2])
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/requests", strings.NewReader(`{"id":1}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("object body status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/requests", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /v1/requests = %d, want 405", rec.Code)
	}
}

func TestMiddlewareChain(t *testing.T) {
	h := newTestRouter(t, nil, nil)

	rec := get(t, h, "/v1/buses")
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("missing request id")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/stops", nil)
	req.Header.Set(RequestIDHeader, "fixed-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get(RequestIDHeader) != "fixed-id" {
		t.Errorf("request id = %q, want fixed-id", rec.Header().Get(RequestIDHeader))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/v1/route", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight = %d", rec.Code)
	}
}

func TestGzipLargeResponses(t *testing.T) {
	b := catalogue.NewBuilder()
	for i := 0; i < 200; i++ {
		if err := b.AddStop(fmt.Sprintf("Stop %03d", i), 55, 37+float64(i)/1000); err != nil {
			t.Fatal(err)
		}
	}
	cat, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	r, err := router.New(domain.RoutingSettings{BusWaitTime: 1, BusVelocity: 40}, cat)
	if err != nil {
		t.Fatal(err)
	}
	p := query.NewProcessor(cat, r, testLogger())
	h := NewRouter(Handlers{
		Catalogue: NewCatalogueHandler(p, testLogger()),
		WS:        NewWSHandler(p, testLogger()),
		Health:    NewHealthHandler(cat.StopCount(), 0, nil),
		Stats:     NewStatsHandler(r, cat.StopCount(), 0, "", nil, nil),
	}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/v1/stops", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Errorf("Content-Encoding = %q, want gzip", rec.Header().Get("Content-Encoding"))
	}
}

func TestRateLimitedRequestsAreCounted(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, time.Minute, nil, testLogger())
	h := newTestRouter(t, limiter, nil)
	before := ServerStats.rateLimitBlocked.Load()

	if rec := get(t, h, "/v1/buses"); rec.Code != http.StatusOK {
		t.Fatalf("first = %d", rec.Code)
	}
	if rec := get(t, h, "/v1/buses"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second = %d, want 429", rec.Code)
	}
	if got := ServerStats.rateLimitBlocked.Load() - before; got != 1 {
		t.Errorf("blocked counter delta = %d, want 1", got)
	}
	// health checks bypass the limiter
	if rec := get(t, h, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}
}

func TestStatsAndReadiness(t *testing.T) {
	h := newTestRouter(t, nil, fakePinger{err: errors.New("down")})

	stats := decode[StatsResponse](t, get(t, h, "/v1/stats"))
	if stats.Catalogue.Stops != 4 || stats.Catalogue.Buses != 2 || stats.Catalogue.GraphVertices != 8 {
		t.Errorf("catalogue stats = %+v", stats.Catalogue)
	}
	if stats.Catalogue.BusWaitTime != 5 || stats.Catalogue.Fingerprint != "fp" || stats.Cache != nil {
		t.Errorf("stats = %+v", stats)
	}

	ready := decode[ReadyResponse](t, get(t, h, "/readyz"))
	if !ready.Ready || ready.Cache != "degraded" {
		t.Errorf("ready = %+v", ready)
	}

	ok := decode[ReadyResponse](t, get(t, newTestRouter(t, nil, fakePinger{}), "/readyz"))
	if ok.Cache != "ok" {
		t.Errorf("cache state = %q, want ok", ok.Cache)
	}
}

func TestWebsocketQueries(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t, nil, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() map[string]json.RawMessage {
		t.Helper()
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var msg map[string]json.RawMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		return msg
	}
	write := func(s string) {
		t.Helper()
		if err := conn.Write(ctx, websocket.MessageText, []byte(s)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	welcome := read()
	if string(welcome["type"]) != `"welcome"` || !strings.Contains(string(welcome["payload"]), "session_id") {
		t.Fatalf("welcome = %v", welcome)
	}

	write(`{"type":"request","payload":{"id":7,"type":"Route","from":"A","to":"B"}}`)
	answer := read()
	if string(answer["type"]) != `"answer"` {
		t.Fatalf("answer = %v", answer)
	}
	var route query.RouteAnswer
	if err := json.Unmarshal(answer["payload"], &route); err != nil {
		t.Fatal(err)
	}
	if route.RequestID != 7 || route.TotalTime != 7 {
		t.Errorf("route answer = %+v", route)
	}

	write(`{"type":"batch","payload":[{"id":1,"type":"Bus","name":"X"},{"id":2,"type":"Bus","name":"nope"}]}`)
	batch := read()
	var answers []map[string]any
	if err := json.Unmarshal(batch["payload"], &answers); err != nil {
		t.Fatal(err)
	}
	if len(answers) != 2 || answers[1]["error_message"] != "not found" {
		t.Errorf("batch = %v", answers)
	}

	write(`{"type":"ping"}`)
	if pong := read(); string(pong["type"]) != `"pong"` {
		t.Errorf("pong = %v", pong)
	}

	write(`not json`)
	if e := read(); string(e["type"]) != `"error"` {
		t.Errorf("error = %v", e)
	}
}
