// Package main is the entry point for the places API server.
//
// main's job is deliberately small: read configuration, build the shared
// dependencies (logger, geocoder, asset store), and start the application.
// All actual logic lives in the internal packages.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/places-api/internal/config"
	"github.com/sakif/places-api/internal/geocode"
	"github.com/sakif/places-api/internal/server"
	"github.com/sakif/places-api/internal/storage"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// The data directory for the SQLite file may not exist on first run.
	if dbDir := filepath.Dir(cfg.DBPath); dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	var assets storage.ObjectStore
	switch cfg.AssetBackend {
	case config.AssetBackendS3:
		assets, err = storage.NewS3Store(context.Background(), storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	default:
		assets, err = storage.NewDiskStore(cfg.UploadDir)
	}
	if err != nil {
		logger.Error("failed to create asset store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	geocoder := geocode.NewClient(cfg.GeocoderURL)

	srv, err := server.New(cfg, logger, geocoder, assets)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until the server is shut down (Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
