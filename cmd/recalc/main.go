// One-shot counter recalculation. Rebuilds the totals record from the
// source collections and prints the result.
package main

import (
	"context"
	"encoding/json"
	"os"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"

	"github.com/dvloznov/registration-tracker/internal/config"
	infraBQ "github.com/dvloznov/registration-tracker/internal/infra/bigquery"
	infraFS "github.com/dvloznov/registration-tracker/internal/infra/firestore"
	"github.com/dvloznov/registration-tracker/internal/infra/gcs"
	"github.com/dvloznov/registration-tracker/internal/logger"
	"github.com/dvloznov/registration-tracker/internal/stats"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.ProjectID == "" {
		log.Fatal().Msg("GCP_PROJECT is required")
	}

	ctx := context.Background()

	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Firestore client")
	}
	defer fsClient.Close()

	var blobs stats.BlobScanner
	if cfg.EvidenceBucket != "" {
		gcsClient, err := storage.NewClient(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer gcsClient.Close()
		blobs = gcs.NewBlobStore(gcsClient, cfg.EvidenceBucket)
	}

	var audit stats.AuditLog
	if cfg.BigQueryDataset != "" {
		bqClient, err := bigquery.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery client")
		}
		defer bqClient.Close()
		audit = infraBQ.NewAuditLog(bqClient, cfg.BigQueryDataset)
	}

	engine := stats.NewEngine(
		infraFS.NewCounterRepo(fsClient),
		infraFS.NewScanner(fsClient),
		blobs,
		audit,
		stats.Thresholds{
			StorageCeilingMB:  cfg.StorageCeilingMB,
			AvgDailyUsersMax:  cfg.AvgDailyUsersMax,
			PeakDailyUsersMax: cfg.PeakDailyUsersMax,
		},
		log,
	)

	totals, err := engine.Recalculate(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Recalculation failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(totals)
}
