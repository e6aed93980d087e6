// Package handlers implements the HTTP surface: participant submission
// endpoints and the administrator review console API.
package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/registration-tracker/internal/api/middleware"
	"github.com/dvloznov/registration-tracker/internal/auth"
	"github.com/dvloznov/registration-tracker/internal/evidence"
	"github.com/dvloznov/registration-tracker/internal/program"
	"github.com/dvloznov/registration-tracker/internal/registration"
	"github.com/dvloznov/registration-tracker/internal/stats"
	"github.com/dvloznov/registration-tracker/internal/transaction"
)

// RegistrationsHandler handles participant-facing endpoints.
type RegistrationsHandler struct {
	store      *transaction.Store
	programs   program.Directory
	recognizer evidence.Recognizer
	engine     *stats.Engine
	log        zerolog.Logger
}

// NewRegistrationsHandler creates a new registrations handler. recognizer
// may be nil when no recognition capability is configured; engine may be nil
// to disable visit tracking.
func NewRegistrationsHandler(store *transaction.Store, programs program.Directory, recognizer evidence.Recognizer, engine *stats.Engine, log zerolog.Logger) *RegistrationsHandler {
	return &RegistrationsHandler{
		store:      store,
		programs:   programs,
		recognizer: recognizer,
		engine:     engine,
		log:        log,
	}
}

// IssueDeviceToken handles POST /api/device-token. The token is generated
// server-side and returned; the client presents it on later requests via the
// X-Device-Token header.
func (h *RegistrationsHandler) IssueDeviceToken(w http.ResponseWriter, r *http.Request) {
	token := auth.NewDeviceToken()

	if h.engine != nil {
		var req struct {
			Location string `json:"location"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		h.engine.TrackVisit(r.Context(), token, req.Location)
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"device_token": token})
}

type submitRequest struct {
	ProgramID   string              `json:"programId"`
	Draft       *registration.Draft `json:"draft"`
	ImageBase64 string              `json:"imageBase64"`
}

// maxEvidenceBytes bounds an uploaded screenshot. Phone screenshots are
// well under this even uncompressed.
const maxEvidenceBytes = 10 << 20

// decodeSubmit parses either encoding of a submission. Multipart carries
// the draft as a JSON "payload" field and the screenshot as an "image"
// file part.
func decodeSubmit(r *http.Request) (submitRequest, []byte, error) {
	var req submitRequest

	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "multipart/") {
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, nil, err
	}

	if err := r.ParseMultipartForm(maxEvidenceBytes); err != nil {
		return req, nil, err
	}
	if err := json.Unmarshal([]byte(r.FormValue("payload")), &req); err != nil {
		return req, nil, err
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		// The image is optional in both encodings.
		return req, nil, nil
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxEvidenceBytes))
	if err != nil {
		return req, nil, err
	}
	return req, image, nil
}

// Submit handles POST /api/registrations. The body is either JSON with a
// base64 image or multipart form data with an "image" file part; extraction
// runs inline before the transaction is created so the review console sees
// the parsed amount immediately.
func (h *RegistrationsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := middleware.SessionFrom(ctx)

	req, multipartImage, err := decodeSubmit(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Draft == nil {
		middleware.WriteError(w, http.StatusBadRequest, "A registration draft is required")
		return
	}
	if req.ProgramID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "programId is required")
		return
	}

	ref, err := h.programs.GetByID(ctx, req.ProgramID)
	if errors.Is(err, program.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Unknown program")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("program_id", req.ProgramID).Msg("Failed to load program")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load program")
		return
	}

	image := multipartImage
	if len(image) == 0 && req.ImageBase64 != "" {
		image, err = base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "imageBase64 is not valid base64")
			return
		}
	}

	// Recognition failures never block the submission; the record simply
	// carries no parsed amount and reconciles manually.
	var ext evidence.Extraction
	if len(image) > 0 && h.recognizer != nil {
		ext, err = evidence.Extract(ctx, h.recognizer, image)
		if err != nil {
			h.log.Warn().Err(err).Msg("Evidence extraction failed")
		}
	}

	amount := req.Draft.ComputeTotal(ref.Fees())

	id, err := h.store.Create(ctx, transaction.SubmitRequest{
		ItemName:    ref.ProgramName,
		Amount:      amount,
		Draft:       req.Draft,
		Extraction:  ext,
		ProgramID:   ref.ID,
		ProgramDate: ref.ProgramDate,
		ProgramCity: ref.ProgramCity,
		DeviceToken: sess.Subject,
		Image:       image,
	})

	var verr *registration.ValidationError
	if errors.As(err, &verr) {
		middleware.WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": verr.Reason,
			"field": verr.Field,
		})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create registration")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":           id,
		"amount":       amount,
		"status":       string(transaction.StatusPending),
		"parsedAmount": ext.Amount,
		"amountMatch":  evidence.Reconcile(amount, ext.Amount),
	})
}

// ListMine handles GET /api/registrations. Results are scoped to the device
// token presented with the request, via header or ?device_token=.
func (h *RegistrationsHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := middleware.SessionFrom(ctx).Subject
	if token == "" {
		token = r.URL.Query().Get("device_token")
	}
	if token == "" {
		middleware.WriteError(w, http.StatusBadRequest, "A device token is required")
		return
	}

	txs, err := h.store.ListByDevice(ctx, token)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list registrations")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list registrations")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"registrations": txs,
		"count":         len(txs),
	})
}

// Quote handles POST /api/registrations/quote: totals a draft against a
// program's fee schedule without creating anything.
func (h *RegistrationsHandler) Quote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		ProgramID string              `json:"programId"`
		Draft     *registration.Draft `json:"draft"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Draft == nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ref, err := h.programs.GetByID(ctx, req.ProgramID)
	if errors.Is(err, program.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Unknown program")
		return
	}
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load program")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"amount": req.Draft.ComputeTotal(ref.Fees()),
		"fees":   ref.Fees(),
	})
}
