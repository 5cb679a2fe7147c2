// Package config holds all environment-based configuration for the
// sync service.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Backend names accepted in BACKEND.
const (
	BackendMongo = "mongo"
	BackendREST  = "rest"
)

// Media backend names accepted in MEDIA_BACKEND.
const (
	MediaMinio      = "minio"
	MediaCloudinary = "cloudinary"
	MediaNone       = "none"
)

// Config holds all environment-based configuration for roadsync.
type Config struct {
	// Environment controls log format.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// OwnerID identifies the signed-in user whose reports this device
	// submits and watches.
	OwnerID string `env:"OWNER_ID"`

	// Backend selects the remote report store.
	Backend string `env:"BACKEND" envDefault:"rest"`

	// Document store settings (required when backend is mongo).
	MongoURI string `env:"MONGO_URI"`
	MongoDB  string `env:"MONGO_DB" envDefault:"roadsync"`

	// REST settings (base URL required when backend is rest). FeedURL
	// is the websocket change feed; empty disables the status watcher
	// on the REST backend.
	RESTBaseURL string `env:"REST_BASE_URL"`
	FeedURL     string `env:"FEED_URL"`

	// MediaBackend selects where photos are uploaded. "none" disables
	// uploads; submissions with photos will queue until it is enabled.
	MediaBackend string `env:"MEDIA_BACKEND" envDefault:"none"`

	// S3-compatible blob store settings (required when media is minio).
	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioBucket    string `env:"MINIO_BUCKET" envDefault:"roadsync-photos"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"true"`

	// Cloudinary settings (required when media is cloudinary).
	CloudinaryCloud  string `env:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryKey    string `env:"CLOUDINARY_API_KEY"`
	CloudinarySecret string `env:"CLOUDINARY_API_SECRET"`

	// QueueDBPath overrides the queue database location. Empty means
	// ~/.roadsync/queue.db.
	QueueDBPath string `env:"QUEUE_DB_PATH"`

	// SpoolDir is a directory watched for dropped draft files. Empty
	// disables the spool.
	SpoolDir string `env:"SPOOL_DIR"`

	// ProbeURL answers the single startup reachability check.
	ProbeURL string `env:"PROBE_URL" envDefault:"https://clients3.google.com/generate_204"`

	// ListTimeoutMS bounds reads before the cached snapshot is served.
	ListTimeoutMS int `env:"LIST_TIMEOUT_MS" envDefault:"2500"`

	// DemoDataset points at a YAML fixture used to seed the list cache
	// before the first successful remote read. Empty disables seeding.
	DemoDataset string `env:"DEMO_DATASET"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing credentials to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	// Resolve the spool dir to an absolute path at startup so log lines
	// and rejected-file paths stay meaningful after any chdir.
	if cfg.SpoolDir != "" {
		absDir, err := filepath.Abs(cfg.SpoolDir)
		if err != nil {
			return nil, fmt.Errorf("resolving spool dir to absolute path: %w", err)
		}

		cfg.SpoolDir = absDir
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.OwnerID == "" {
		return fmt.Errorf("OWNER_ID is required")
	}

	switch c.Backend {
	case BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when backend is %s", BackendMongo)
		}
	case BackendREST:
		if c.RESTBaseURL == "" {
			return fmt.Errorf("REST_BASE_URL is required when backend is %s", BackendREST)
		}
	default:
		return fmt.Errorf("BACKEND must be %s or %s, got %q", BackendMongo, BackendREST, c.Backend)
	}

	switch c.MediaBackend {
	case MediaNone:
	case MediaMinio:
		if c.MinioEndpoint == "" || c.MinioAccessKey == "" || c.MinioSecretKey == "" {
			return fmt.Errorf("MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when media is %s", MediaMinio)
		}
	case MediaCloudinary:
		if c.CloudinaryCloud == "" || c.CloudinaryKey == "" || c.CloudinarySecret == "" {
			return fmt.Errorf("CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET are required when media is %s", MediaCloudinary)
		}
	default:
		return fmt.Errorf("MEDIA_BACKEND must be %s, %s or %s, got %q", MediaMinio, MediaCloudinary, MediaNone, c.MediaBackend)
	}

	if c.ListTimeoutMS <= 0 {
		return fmt.Errorf("LIST_TIMEOUT_MS must be positive, got %d", c.ListTimeoutMS)
	}

	return nil
}

// ListTimeout returns LIST_TIMEOUT_MS as a duration.
func (c *Config) ListTimeout() time.Duration {
	return time.Duration(c.ListTimeoutMS) * time.Millisecond
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
