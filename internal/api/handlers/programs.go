package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/registration-tracker/internal/api/middleware"
	"github.com/dvloznov/registration-tracker/internal/program"
	"github.com/dvloznov/registration-tracker/internal/stats"
	"github.com/dvloznov/registration-tracker/internal/transaction"
)

// ProgramWriter is the mutable side of the program catalog, implemented by
// the Firestore and in-memory repos alongside the read-only Directory.
type ProgramWriter interface {
	Put(ctx context.Context, ref *program.Reference) error
	Delete(ctx context.Context, id string) error
}

// ProgramsHandler serves the program catalog: public listing for the
// registration flow, admin mutation and reordering.
type ProgramsHandler struct {
	directory program.Directory
	writer    ProgramWriter
	reorderer program.Reorderer
	store     *transaction.Store
	engine    *stats.Engine
	log       zerolog.Logger
}

// NewProgramsHandler creates a new programs handler. engine may be nil.
func NewProgramsHandler(directory program.Directory, writer ProgramWriter, reorderer program.Reorderer, store *transaction.Store, engine *stats.Engine, log zerolog.Logger) *ProgramsHandler {
	return &ProgramsHandler{
		directory: directory,
		writer:    writer,
		reorderer: reorderer,
		store:     store,
		engine:    engine,
		log:       log,
	}
}

// List handles GET /api/programs.
func (h *ProgramsHandler) List(w http.ResponseWriter, r *http.Request) {
	refs, err := h.directory.List(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list programs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list programs")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"programs": refs,
		"count":    len(refs),
	})
}

// Get handles GET /api/programs/{id}.
func (h *ProgramsHandler) Get(w http.ResponseWriter, r *http.Request, id string) {
	ref, err := h.directory.GetByID(r.Context(), id)
	if errors.Is(err, program.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Unknown program")
		return
	}
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load program")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, ref)
}

// Upsert handles POST /api/admin/programs and PUT /api/admin/programs/{id}.
func (h *ProgramsHandler) Upsert(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	var ref program.Reference
	if err := json.NewDecoder(r.Body).Decode(&ref); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if ref.ProgramName == "" {
		middleware.WriteError(w, http.StatusBadRequest, "programName is required")
		return
	}

	isNew := id == ""
	if isNew {
		ref.ID = uuid.NewString()
	} else {
		ref.ID = id
	}

	if err := h.writer.Put(ctx, &ref); err != nil {
		h.log.Error().Err(err).Str("program_id", ref.ID).Msg("Failed to save program")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save program")
		return
	}

	if isNew && h.engine != nil {
		h.engine.RecordProgram(ctx, true)
	}

	status := http.StatusOK
	if isNew {
		status = http.StatusCreated
	}
	middleware.WriteJSON(w, status, &ref)
}

// Delete handles DELETE /api/admin/programs/{id}. A program with existing
// registrations cannot be removed; the registrations must be adjudicated or
// deleted first.
func (h *ProgramsHandler) Delete(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	inUse, err := h.store.HasRegistrationsForProgram(ctx, id)
	if err != nil {
		h.log.Error().Err(err).Str("program_id", id).Msg("Failed to check program usage")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to check program usage")
		return
	}
	if inUse {
		middleware.WriteError(w, http.StatusConflict, "Program has registrations and cannot be deleted")
		return
	}

	err = h.writer.Delete(ctx, id)
	if errors.Is(err, program.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Unknown program")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("program_id", id).Msg("Failed to delete program")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete program")
		return
	}

	if h.engine != nil {
		h.engine.RecordProgram(ctx, false)
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"id": id, "deleted": "true"})
}

// Reorder handles POST /api/admin/programs/reorder: one atomic swap of two
// programs' display positions.
func (h *ProgramsHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDA string `json:"idA"`
		IDB string `json:"idB"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IDA == "" || req.IDB == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Both idA and idB are required")
		return
	}

	err := h.reorderer.Reorder(r.Context(), req.IDA, req.IDB)
	if errors.Is(err, program.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Unknown program")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to reorder programs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to reorder programs")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"swapped": req.IDA + "/" + req.IDB})
}
