// Package loader decodes base documents and replays them into a catalogue.
package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"transitcat/internal/catalogue"
	"transitcat/internal/domain"
)

const (
	TypeStop = "Stop"
	TypeBus  = "Bus"
)

// Format selects the document encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// BaseRequest describes either a stop or a bus, depending on Type.
type BaseRequest struct {
	Type          string         `json:"type" yaml:"type" validate:"required,oneof=Stop Bus"`
	Name          string         `json:"name" yaml:"name" validate:"required"`
	Latitude      float64        `json:"latitude" yaml:"latitude" validate:"gte=-90,lte=90"`
	Longitude     float64        `json:"longitude" yaml:"longitude" validate:"gte=-180,lte=180"`
	RoadDistances map[string]int `json:"road_distances,omitempty" yaml:"road_distances" validate:"dive,gte=0"`
	Stops         []string       `json:"stops,omitempty" yaml:"stops" validate:"required_if=Type Bus,dive,required"`
	IsRoundtrip   bool           `json:"is_roundtrip" yaml:"is_roundtrip"`
}

type SerializationSettings struct {
	File string `json:"file" yaml:"file"`
}

// Document is a complete input: catalogue data, settings and queries.
// Any section may be absent depending on the command consuming it.
type Document struct {
	BaseRequests          []BaseRequest           `json:"base_requests,omitempty" yaml:"base_requests" validate:"dive"`
	RoutingSettings       *domain.RoutingSettings `json:"routing_settings,omitempty" yaml:"routing_settings" validate:"omitempty"`
	SerializationSettings SerializationSettings   `json:"serialization_settings" yaml:"serialization_settings"`
	StatRequests          []domain.StatRequest    `json:"stat_requests,omitempty" yaml:"stat_requests" validate:"dive"`
}

var validate = validator.New()

// Decode reads and validates a document.
func Decode(r io.Reader, format Format) (*Document, error) {
	var doc Document
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode yaml document: %w", err)
		}
	default:
		if err := json.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode json document: %w", err)
		}
	}

	if err := validate.Struct(&doc); err != nil {
		return nil, fmt.Errorf("validate document: %w", err)
	}
	return &doc, nil
}

// DecodeFile picks the format from the file extension: .yaml and .yml are
// YAML, everything else is JSON.
func DecodeFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	return Decode(f, FormatFromPath(path))
}

func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Apply builds a catalogue from the base requests: every stop first, then
// every road distance, then every bus.
func Apply(doc *Document) (*catalogue.Catalogue, error) {
	b := catalogue.NewBuilder()

	for _, req := range doc.BaseRequests {
		if req.Type != TypeStop {
			continue
		}
		if err := b.AddStop(req.Name, req.Latitude, req.Longitude); err != nil {
			return nil, fmt.Errorf("apply base requests: %w", err)
		}
	}

	for _, req := range doc.BaseRequests {
		if req.Type != TypeStop {
			continue
		}
		for to, meters := range req.RoadDistances {
			if err := b.SetDistance(req.Name, to, meters); err != nil {
				return nil, fmt.Errorf("apply base requests: %w", err)
			}
		}
	}

	for _, req := range doc.BaseRequests {
		if req.Type != TypeBus {
			continue
		}
		if err := b.AddBus(req.Name, req.Stops, req.IsRoundtrip); err != nil {
			return nil, fmt.Errorf("apply base requests: %w", err)
		}
	}

	cat, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("apply base requests: %w", err)
	}
	return cat, nil
}
