package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"transitcat/internal/loader"
	"transitcat/internal/query"
	"transitcat/internal/router"
	"transitcat/internal/snapshot"
)

// readDocument decodes the document at path, or from stdin when path is
// empty. yaml forces YAML for stdin input.
func readDocument(path string, yaml bool, stdin io.Reader) (*loader.Document, error) {
	if path != "" {
		return loader.DecodeFile(path)
	}
	format := loader.FormatJSON
	if yaml {
		format = loader.FormatYAML
	}
	return loader.Decode(stdin, format)
}

func documentFlags(name string, args []string) (path string, yaml bool, err error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&path, "in", "", "document path (default stdin)")
	fs.BoolVar(&yaml, "yaml", false, "read stdin as YAML")
	err = fs.Parse(args)
	return path, yaml, err
}

func runMakeBase(args []string, stdin io.Reader, logger *slog.Logger) error {
	start := time.Now()
	path, yaml, err := documentFlags("make_base", args)
	if err != nil {
		return err
	}

	doc, err := readDocument(path, yaml, stdin)
	if err != nil {
		return err
	}
	if doc.SerializationSettings.File == "" {
		return errors.New("make_base: serialization_settings.file is required")
	}
	if doc.RoutingSettings == nil {
		return errors.New("make_base: routing_settings is required")
	}

	cat, err := loader.Apply(doc)
	if err != nil {
		return fmt.Errorf("make_base: %w", err)
	}
	// build once so an unusable catalogue never reaches disk
	if _, err := router.New(*doc.RoutingSettings, cat); err != nil {
		return fmt.Errorf("make_base: %w", err)
	}

	fingerprint, err := snapshot.Save(doc.SerializationSettings.File, snapshot.FromCatalogue(cat, *doc.RoutingSettings))
	if err != nil {
		return fmt.Errorf("make_base: %w", err)
	}

	logger.Info("snapshot written",
		"file", doc.SerializationSettings.File,
		"stops", cat.StopCount(),
		"buses", cat.BusCount(),
		"fingerprint", fingerprint,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func runProcessRequests(args []string, stdin io.Reader, stdout io.Writer, logger *slog.Logger) error {
	start := time.Now()
	path, yaml, err := documentFlags("process_requests", args)
	if err != nil {
		return err
	}

	doc, err := readDocument(path, yaml, stdin)
	if err != nil {
		return err
	}
	if doc.SerializationSettings.File == "" {
		return errors.New("process_requests: serialization_settings.file is required")
	}

	snap, fingerprint, err := snapshot.Load(doc.SerializationSettings.File)
	if err != nil {
		return fmt.Errorf("process_requests: %w", err)
	}
	cat, settings, err := snap.Restore()
	if err != nil {
		return fmt.Errorf("process_requests: %w", err)
	}
	r, err := router.New(settings, cat)
	if err != nil {
		return fmt.Errorf("process_requests: %w", err)
	}

	p := query.NewProcessor(cat, r, logger)
	answers := p.AnswerAll(context.Background(), doc.StatRequests)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "    ")
	if err := enc.Encode(answers); err != nil {
		return fmt.Errorf("process_requests: write answers: %w", err)
	}

	logger.Info("requests processed",
		"count", len(answers),
		"fingerprint", fingerprint,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
