// Package snapshot persists the inputs of a catalogue and its routing
// settings. The routing graph is never stored; it is rebuilt on load.
package snapshot

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"transitcat/internal/catalogue"
	"transitcat/internal/domain"
)

const formatVersion = 1

var ErrIncomplete = errors.New("snapshot is incomplete")

type Stop struct {
	Name string
	Lat  float64
	Lng  float64
}

type Bus struct {
	Name        string
	Stops       []string
	IsRoundtrip bool
}

// Snapshot holds everything needed to rebuild an identical catalogue and
// router. Buses keep only their outbound stops.
type Snapshot struct {
	Version         int
	Stops           []Stop
	Distances       []catalogue.DistanceEntry
	Buses           []Bus
	RoutingSettings domain.RoutingSettings
}

func FromCatalogue(cat *catalogue.Catalogue, settings domain.RoutingSettings) *Snapshot {
	s := &Snapshot{
		Version:         formatVersion,
		Distances:       cat.DistancesTable(),
		RoutingSettings: settings,
	}

	for _, name := range cat.AllStopNames() {
		stop, _ := cat.Stop(name)
		s.Stops = append(s.Stops, Stop{Name: stop.Name, Lat: stop.Coordinates.Lat, Lng: stop.Coordinates.Lng})
	}
	for _, name := range cat.AllBusNames() {
		bus, _ := cat.Bus(name)
		s.Buses = append(s.Buses, Bus{Name: bus.Name, Stops: bus.Stops, IsRoundtrip: bus.IsRoundtrip})
	}
	return s
}

// Restore replays the snapshot into a fresh builder: stops, then
// distances, then buses.
func (s *Snapshot) Restore() (*catalogue.Catalogue, domain.RoutingSettings, error) {
	b := catalogue.NewBuilder()
	for _, stop := range s.Stops {
		if err := b.AddStop(stop.Name, stop.Lat, stop.Lng); err != nil {
			return nil, domain.RoutingSettings{}, fmt.Errorf("restore snapshot: %w", err)
		}
	}
	for _, d := range s.Distances {
		if err := b.SetDistance(d.From, d.To, d.Meters); err != nil {
			return nil, domain.RoutingSettings{}, fmt.Errorf("restore snapshot: %w", err)
		}
	}
	for _, bus := range s.Buses {
		if err := b.AddBus(bus.Name, bus.Stops, bus.IsRoundtrip); err != nil {
			return nil, domain.RoutingSettings{}, fmt.Errorf("restore snapshot: %w", err)
		}
	}

	cat, err := b.Build()
	if err != nil {
		return nil, domain.RoutingSettings{}, fmt.Errorf("restore snapshot: %w", err)
	}
	return cat, s.RoutingSettings, nil
}

// Fingerprint identifies snapshot contents; caches key on it.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Load reads a snapshot file and returns it with the fingerprint of the
// raw file bytes.
func Load(path string) (*Snapshot, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("load snapshot: %w", err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("load snapshot %s: %w", path, err)
	}
	defer zr.Close()

	var s Snapshot
	if err := gob.NewDecoder(zr).Decode(&s); err != nil {
		return nil, "", fmt.Errorf("load snapshot %s: %w", path, err)
	}

	if s.Version == 0 {
		return nil, "", fmt.Errorf("load snapshot %s: %w", path, ErrIncomplete)
	}
	if s.Version != formatVersion {
		return nil, "", fmt.Errorf("load snapshot %s: unsupported version %d", path, s.Version)
	}

	return &s, Fingerprint(data), nil
}

// Save writes the snapshot atomically through a temporary file and returns
// the fingerprint of what was written.
func Save(path string, s *Snapshot) (string, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("save snapshot: %w", err)
		}
	}

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}
	encErr := gob.NewEncoder(zw).Encode(s)
	closeErr := zw.Close()
	if encErr != nil {
		return "", fmt.Errorf("save snapshot: encode: %w", encErr)
	}
	if closeErr != nil {
		return "", fmt.Errorf("save snapshot: compress: %w", closeErr)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("save snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("save snapshot: %w", err)
	}

	return Fingerprint(buf.Bytes()), nil
}
