package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"

	"github.com/dvloznov/registration-tracker/internal/api/handlers"
	"github.com/dvloznov/registration-tracker/internal/api/middleware"
	"github.com/dvloznov/registration-tracker/internal/config"
	"github.com/dvloznov/registration-tracker/internal/evidence"
	infraBQ "github.com/dvloznov/registration-tracker/internal/infra/bigquery"
	infraFS "github.com/dvloznov/registration-tracker/internal/infra/firestore"
	"github.com/dvloznov/registration-tracker/internal/infra/gcs"
	"github.com/dvloznov/registration-tracker/internal/infra/memory"
	"github.com/dvloznov/registration-tracker/internal/jobs"
	"github.com/dvloznov/registration-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/registration-tracker/internal/logger"
	"github.com/dvloznov/registration-tracker/internal/program"
	"github.com/dvloznov/registration-tracker/internal/stats"
	"github.com/dvloznov/registration-tracker/internal/transaction"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := context.Background()

	// Persistence: Firestore when a project is configured, in-memory
	// otherwise (local development without credentials).
	var (
		meta      transaction.MetaRepository
		images    transaction.ImageRepository
		directory program.Directory
		writer    handlers.ProgramWriter
		reorderer program.Reorderer
		counters  stats.CounterStore
		scanner   stats.CollectionScanner
		blobs     stats.BlobScanner
		audit     stats.AuditLog
	)

	if cfg.ProjectID != "" {
		fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Firestore client")
		}
		defer fsClient.Close()

		meta = infraFS.NewTransactionRepo(fsClient)
		images = infraFS.NewImageRepo(fsClient)
		programRepo := infraFS.NewProgramRepo(fsClient)
		directory, writer, reorderer = programRepo, programRepo, programRepo
		counters = infraFS.NewCounterRepo(fsClient)
		scanner = infraFS.NewScanner(fsClient)

		if cfg.EvidenceBucket != "" {
			gcsClient, err := storage.NewClient(ctx)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to create storage client")
			}
			defer gcsClient.Close()
			store := gcs.NewBlobStore(gcsClient, cfg.EvidenceBucket)
			images = store
			blobs = store
		}

		if cfg.BigQueryDataset != "" {
			bqClient, err := bigquery.NewClient(ctx, cfg.ProjectID)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to create BigQuery client")
			}
			defer bqClient.Close()
			audit = infraBQ.NewAuditLog(bqClient, cfg.BigQueryDataset)
		}
	} else {
		log.Warn().Msg("No GCP project configured - using in-memory persistence")
		txRepo := memory.NewTransactionRepo()
		meta = txRepo
		imageRepo := memory.NewImageRepo()
		images = imageRepo
		blobs = imageRepo
		programRepo := memory.NewProgramRepo()
		directory, writer, reorderer = programRepo, programRepo, programRepo
		counters = memory.NewCounterRepo()
		// Recalculation must scan the same repositories the handlers write
		// to, or a recalc run would overwrite live counters with zeros.
		scanner = memory.NewScanner(txRepo, imageRepo, programRepo, memory.NewDocumentStore())
	}

	engine := stats.NewEngine(counters, scanner, blobs, audit, stats.Thresholds{
		StorageCeilingMB:  cfg.StorageCeilingMB,
		AvgDailyUsersMax:  cfg.AvgDailyUsersMax,
		PeakDailyUsersMax: cfg.PeakDailyUsersMax,
	}, log)

	store := transaction.NewStore(meta, images, engine, log)

	var recognizer evidence.Recognizer
	if cfg.GeminiModel != "" {
		recognizer = evidence.NewGeminiRecognizer(cfg.GeminiModel)
	} else {
		log.Warn().Msg("No recognition model configured - evidence extraction disabled")
	}

	// Recalculation jobs run inside the API process.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(16, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		recalcJob, ok := job.(*jobs.RecalculateJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}
		log.Info().Str("job_id", recalcJob.JobID).Str("requested_by", recalcJob.RequestedBy).Msg("Processing recalculation job")
		if _, err := engine.Recalculate(ctx); err != nil {
			return err
		}
		return nil
	}

	go func() {
		log.Info().Msg("Starting recalculation worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Recalculation worker stopped with error")
		}
	}()

	// Handlers
	registrationsHandler := handlers.NewRegistrationsHandler(store, directory, recognizer, engine, log)
	adminHandler := handlers.NewAdminHandler(store, directory, log)
	programsHandler := handlers.NewProgramsHandler(directory, writer, reorderer, store, engine, log)
	statsHandler := handlers.NewStatsHandler(engine, jobQueue, jobStore, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/device-token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			registrationsHandler.IssueDeviceToken(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/registrations", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			registrationsHandler.Submit(w, r)
		case http.MethodGet:
			registrationsHandler.ListMine(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/registrations/quote", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			registrationsHandler.Quote(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/programs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			programsHandler.List(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/programs/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/programs/")
		if id == "" || strings.Contains(id, "/") {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		if r.Method == http.MethodGet {
			programsHandler.Get(w, r, id)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Admin console routes.
	adminMux := http.NewServeMux()

	adminMux.HandleFunc("/api/admin/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			adminHandler.ListTransactions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	adminMux.HandleFunc("/api/admin/transactions/delete-verified", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			adminHandler.DeleteVerified(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	adminMux.HandleFunc("/api/admin/transactions/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/admin/transactions/")
		switch {
		case strings.HasSuffix(rest, "/status") && (r.Method == http.MethodPut || r.Method == http.MethodPost):
			adminHandler.UpdateStatus(w, r, strings.TrimSuffix(rest, "/status"))
		case strings.HasSuffix(rest, "/image") && r.Method == http.MethodGet:
			adminHandler.GetImage(w, r, strings.TrimSuffix(rest, "/image"))
		case !strings.Contains(rest, "/") && r.Method == http.MethodDelete:
			adminHandler.DeleteTransaction(w, r, rest)
		default:
			middleware.WriteError(w, http.StatusNotFound, "Not found")
		}
	})

	adminMux.HandleFunc("/api/admin/programs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			programsHandler.Upsert(w, r, "")
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	adminMux.HandleFunc("/api/admin/programs/reorder", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			programsHandler.Reorder(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	adminMux.HandleFunc("/api/admin/programs/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/admin/programs/")
		if id == "" || strings.Contains(id, "/") {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		switch r.Method {
		case http.MethodPut:
			programsHandler.Upsert(w, r, id)
		case http.MethodDelete:
			programsHandler.Delete(w, r, id)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	adminMux.HandleFunc("/api/admin/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			statsHandler.Overview(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	adminMux.HandleFunc("/api/admin/stats/recalculate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			statsHandler.Recalculate(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	adminMux.HandleFunc("/api/admin/stats/recalculate/", func(w http.ResponseWriter, r *http.Request) {
		jobID := strings.TrimPrefix(r.URL.Path, "/api/admin/stats/recalculate/")
		if jobID == "" || r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		statsHandler.GetJob(w, r, jobID)
	})

	mux.Handle("/api/admin/", middleware.RequireAdmin(adminMux))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	var handler http.Handler = mux
	handler = middleware.Sessions(cfg.AdminKey)(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.CORS(handler)
	handler = middleware.Logger(log)(handler)
	handler = middleware.Recovery(log)(handler)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Job queue shutdown failed")
	}
}
