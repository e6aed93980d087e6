package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all service configuration, loaded from environment variables.
type Config struct {
	// Port is the HTTP listen port for the API server.
	Port string `env:"PORT" envDefault:"8080"`

	// ProjectID is the Google Cloud project hosting Firestore and BigQuery.
	ProjectID string `env:"GCP_PROJECT"`

	// EvidenceBucket is the GCS bucket holding evidence images. Empty
	// disables the GCS blob store and falls back to Firestore image docs.
	EvidenceBucket string `env:"EVIDENCE_BUCKET"`

	// AdminKey authorizes administrator sessions on /api/admin endpoints.
	AdminKey string `env:"ADMIN_KEY"`

	// GeminiModel is the recognition model used for evidence extraction.
	GeminiModel string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`

	// BigQueryDataset receives recalculation audit rows. Empty disables
	// audit logging.
	BigQueryDataset string `env:"BQ_DATASET"`

	// Health thresholds for the stats engine.
	StorageCeilingMB  float64 `env:"STORAGE_CEILING_MB" envDefault:"800"`
	AvgDailyUsersMax  float64 `env:"AVG_DAILY_USERS_MAX" envDefault:"5000"`
	PeakDailyUsersMax int64   `env:"PEAK_DAILY_USERS_MAX" envDefault:"20000"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	return cfg, nil
}
