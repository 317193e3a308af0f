package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"transitcat/internal/config"
)

const usage = `usage: transitcat <command> [flags]

commands:
  make_base         build a catalogue from a base document and write its snapshot
  process_requests  answer the stat requests of a document against a snapshot
  serve             serve the catalogue over HTTP
`

func main() {
	// a missing .env file is fine
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	level, err := config.LogLevel()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	// stdout carries command output, so logs go to stderr
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	args := os.Args[2:]
	switch os.Args[1] {
	case "make_base":
		err = runMakeBase(args, os.Stdin, logger)
	case "process_requests":
		err = runProcessRequests(args, os.Stdin, os.Stdout, logger)
	case "serve":
		err = runServe()
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		slog.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}
