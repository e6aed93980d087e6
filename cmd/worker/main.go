// Standalone recalculation worker. Runs the counter rebuild on a fixed
// interval so counter drift from best-effort increments is bounded in time
// even when no administrator triggers a manual recalculation.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

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
	interval := flag.Duration("interval", 6*time.Hour, "time between recalculation runs")
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.ProjectID == "" {
		log.Fatal().Msg("GCP_PROJECT is required for the worker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	log.Info().Dur("interval", *interval).Msg("Recalculation worker started")

	run := func() {
		totals, err := engine.Recalculate(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Scheduled recalculation failed")
			return
		}
		daily, err := engine.DailyCounts(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to read daily counters for health check")
		}
		health := engine.EvaluateHealth(totals, daily)
		log.Info().Str("health", health.Status).Str("reason", health.Reason).Msg("Scheduled recalculation finished")
	}

	run()
	for {
		select {
		case <-ticker.C:
			run()
		case <-stop:
			log.Info().Msg("Worker shutting down")
			return
		}
	}
}
