package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/registration-tracker/internal/api/middleware"
	"github.com/dvloznov/registration-tracker/internal/jobs"
	"github.com/dvloznov/registration-tracker/internal/stats"
)

// StatsHandler serves the admin statistics dashboard and the recalculation
// trigger.
type StatsHandler struct {
	engine    *stats.Engine
	publisher jobs.Publisher
	jobStore  jobs.JobStore
	log       zerolog.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(engine *stats.Engine, publisher jobs.Publisher, jobStore jobs.JobStore, log zerolog.Logger) *StatsHandler {
	return &StatsHandler{engine: engine, publisher: publisher, jobStore: jobStore, log: log}
}

// Overview handles GET /api/admin/stats: current totals, daily counters,
// geographic distribution and the derived health status. Totals are the
// serving counters and may lag reality until the next recalculation.
func (h *StatsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totals, err := h.engine.Totals(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read totals")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read statistics")
		return
	}
	daily, err := h.engine.DailyCounts(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read daily counters")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read statistics")
		return
	}
	geo, err := h.engine.Geo(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read geo stats")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read statistics")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"totals": totals,
		"daily":  daily,
		"geo":    geo,
		"health": h.engine.EvaluateHealth(totals, daily),
	})
}

// Recalculate handles POST /api/admin/stats/recalculate. The rebuild runs
// asynchronously; the response is 202 with the job id for polling.
func (h *StatsHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := middleware.SessionFrom(ctx)

	job := &jobs.RecalculateJob{RequestedBy: sess.Subject}
	if err := h.publisher.PublishRecalculate(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue recalculation")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue recalculation")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// GetJob handles GET /api/admin/stats/recalculate/{jobId}.
func (h *StatsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.jobStore.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}
