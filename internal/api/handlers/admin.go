package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/registration-tracker/internal/api/middleware"
	"github.com/dvloznov/registration-tracker/internal/evidence"
	"github.com/dvloznov/registration-tracker/internal/program"
	"github.com/dvloznov/registration-tracker/internal/review"
	"github.com/dvloznov/registration-tracker/internal/transaction"
)

// AdminHandler handles the review console API. Every route behind it runs
// under middleware.RequireAdmin.
type AdminHandler struct {
	store    *transaction.Store
	programs program.Directory
	log      zerolog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(store *transaction.Store, programs program.Directory, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{store: store, programs: programs, log: log}
}

// reviewRecord is one transaction decorated with review console fields.
type reviewRecord struct {
	*transaction.Transaction
	Bucket      transaction.Status `json:"bucket"`
	AmountMatch bool               `json:"amountMatch"`
	Sender      string             `json:"sender,omitempty"`
	Resolution  review.Resolution  `json:"resolution"`
}

// ListTransactions handles GET /api/admin/transactions, with optional
// ?bucket= and ?program= filters. The response carries per-bucket counts,
// a demographic rollup of the filtered set and per-program rollups grouped
// by program signature.
func (h *AdminHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := middleware.SessionFrom(ctx)

	txs, err := h.store.List(ctx, sess)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	counts := review.Counts(txs)

	filtered := review.FilterProgram(txs, r.URL.Query().Get("program"))
	if bucket := r.URL.Query().Get("bucket"); bucket != "" {
		filtered = review.FilterBucket(filtered, review.BucketFor(bucket))
	}

	records := make([]reviewRecord, 0, len(filtered))
	for _, tx := range filtered {
		res, err := review.ResolveProgram(ctx, h.programs, tx)
		if err != nil {
			h.log.Warn().Err(err).Str("tx_id", tx.ID).Msg("Program resolution failed")
		}
		records = append(records, reviewRecord{
			Transaction: tx,
			Bucket:      review.BucketFor(tx.Status),
			AmountMatch: review.AmountMatch(tx),
			Sender:      evidence.SenderLine(tx.OCRText),
			Resolution:  res,
		})
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"transactions":   records,
		"count":          len(records),
		"buckets":        counts,
		"programs":       review.DistinctPrograms(txs),
		"rollup":         review.RollupOf(filtered),
		"programRollups": review.GroupPrograms(filtered),
	})
}

// UpdateStatus handles PUT /api/admin/transactions/{id}/status.
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	sess := middleware.SessionFrom(ctx)

	var req struct {
		Status   string `json:"status"`
		Comments string `json:"comments"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	to := transaction.Status(req.Status)
	err := h.store.Transition(ctx, sess, id, to, req.Comments)

	var iterr *transaction.InvalidTransitionError
	switch {
	case errors.As(err, &iterr):
		middleware.WriteError(w, http.StatusConflict, iterr.Error())
	case errors.Is(err, transaction.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
	case err != nil:
		h.log.Error().Err(err).Str("tx_id", id).Msg("Failed to update status")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update status")
	default:
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(to)})
	}
}

// DeleteTransaction handles DELETE /api/admin/transactions/{id}.
func (h *AdminHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	sess := middleware.SessionFrom(ctx)

	err := h.store.Delete(ctx, sess, id)
	if errors.Is(err, transaction.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("tx_id", id).Msg("Failed to delete transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"id": id, "deleted": "true"})
}

// DeleteVerified handles POST /api/admin/transactions/delete-verified: the
// periodic cleanup that removes every bank-verified record.
func (h *AdminHandler) DeleteVerified(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := middleware.SessionFrom(ctx)

	n, err := h.store.DeleteAllVerified(ctx, sess)
	if err != nil {
		h.log.Error().Err(err).Int("deleted", n).Msg("Delete verified sweep failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Cleanup failed part way through")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

// GetImage handles GET /api/admin/transactions/{id}/image. The blob is
// fetched on demand; a transaction whose blob is missing serves 204 rather
// than an error.
func (h *AdminHandler) GetImage(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	payload, err := h.store.GetImage(ctx, id)
	if err != nil {
		h.log.Error().Err(err).Str("tx_id", id).Msg("Failed to fetch image")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to fetch image")
		return
	}
	if len(payload) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(payload))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}
