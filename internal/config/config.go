// Package config loads process configuration from the environment.
//
// A .env file in the working directory is loaded first if present (handy for
// local development); real environment variables always win. All values are
// read exactly once at startup and never mutated afterwards — in particular
// the JWT secret, which is injected into the token service as an immutable
// value rather than read from a global.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Asset store backends selectable via ASSET_BACKEND.
const (
	AssetBackendDisk = "disk"
	AssetBackendS3   = "s3"
)

type Config struct {
	Port      int    // PORT (default 8080)
	DBPath    string // DB_PATH (default data/places.db)
	JWTSecret string // JWT_SECRET (required, ≥16 chars enforced by auth)

	UploadDir    string // UPLOAD_DIR (default uploads), disk backend only
	AssetBackend string // ASSET_BACKEND: disk (default) or s3

	S3Bucket    string // S3_BUCKET (required for s3 backend)
	S3Region    string // S3_REGION
	S3Endpoint  string // S3_ENDPOINT (set for MinIO / non-AWS endpoints)
	S3AccessKey string // S3_ACCESS_KEY
	S3SecretKey string // S3_SECRET_KEY

	GeocoderURL string // GEOCODER_URL (default Nominatim)

	TrustedOrigins []string // TRUSTED_ORIGINS, comma-separated CORS origins
}

// Load reads the configuration from the environment, applying defaults.
// It returns an error for missing required values or unparseable ones, so
// main can fail fast instead of starting a half-configured server.
func Load() (Config, error) {
	// Ignore the error: a missing .env file is the normal production case.
	_ = godotenv.Load()

	cfg := Config{
		Port:         8080,
		DBPath:       "data/places.db",
		UploadDir:    "uploads",
		AssetBackend: AssetBackendDisk,
		GeocoderURL:  "https://nominatim.openstreetmap.org",
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}

	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("config: JWT_SECRET is required")
	}

	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		cfg.UploadDir = v
	}

	if v := os.Getenv("ASSET_BACKEND"); v != "" {
		if v != AssetBackendDisk && v != AssetBackendS3 {
			return Config{}, fmt.Errorf("config: unknown ASSET_BACKEND %q", v)
		}
		cfg.AssetBackend = v
	}

	cfg.S3Bucket = os.Getenv("S3_BUCKET")
	cfg.S3Region = os.Getenv("S3_REGION")
	cfg.S3Endpoint = os.Getenv("S3_ENDPOINT")
	cfg.S3AccessKey = os.Getenv("S3_ACCESS_KEY")
	cfg.S3SecretKey = os.Getenv("S3_SECRET_KEY")

	if cfg.AssetBackend == AssetBackendS3 && cfg.S3Bucket == "" {
		return Config{}, errors.New("config: S3_BUCKET is required when ASSET_BACKEND=s3")
	}

	if v := os.Getenv("GEOCODER_URL"); v != "" {
		cfg.GeocoderURL = v
	}

	if v := os.Getenv("TRUSTED_ORIGINS"); v != "" {
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.TrustedOrigins = append(cfg.TrustedOrigins, origin)
			}
		}
	}

	return cfg, nil
}
