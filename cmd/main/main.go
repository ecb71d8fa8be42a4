package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"samstore/ingest/internal/config"
	"samstore/ingest/internal/container"

	log "github.com/sirupsen/logrus"
)

func main() {
	log.Info("Starting catalog ingestion service...")

	// Load configuration using viper
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Info("Configuration loaded successfully")

	// Initialize container with all dependencies
	app, err := container.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// `ingest <file|url>` runs one pipeline pass; the default mode
	// serves the HTTP API.
	if len(os.Args) > 1 && os.Args[1] == "ingest" {
		if len(os.Args) < 3 {
			log.Fatal("Usage: ingest <file|url>")
		}
		result, err := app.IngestSource(ctx, os.Args[2])
		if err != nil {
			log.Fatalf("Ingest failed: %v", err)
		}
		log.Infof("Ingest finished: %d categories, %d products, %d mappings (%d entries skipped)",
			result.Categories, result.Products, result.Mappings, result.SkippedEntries)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("Application exited with error: %v", err)
	}

	log.Info("Application finished successfully")
}
