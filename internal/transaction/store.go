package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/registration-tracker/internal/auth"
	"github.com/dvloznov/registration-tracker/internal/registration"
)

// Store owns the transaction lifecycle: creation on submission, the status
// state machine, deletion, and on-demand evidence access. Metadata and blob
// are written in two separate steps; a crash between them leaves hasImage
// set with no blob, which readers must treat as a recoverable empty state.
type Store struct {
	meta     MetaRepository
	images   ImageRepository
	recorder Recorder
	log      zerolog.Logger
}

// NewStore wires a store over the given repositories. recorder may be nil.
func NewStore(meta MetaRepository, images ImageRepository, recorder Recorder, log zerolog.Logger) *Store {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Store{meta: meta, images: images, recorder: recorder, log: log}
}

// Create validates the draft, assigns an id and persists the transaction in
// PENDING state. The metadata record and the evidence blob are two separate
// writes; a blob failure degrades the record rather than failing the
// submission. Counter updates are fire-and-forget.
func (s *Store) Create(ctx context.Context, req SubmitRequest) (string, error) {
	if req.Draft == nil {
		return "", fmt.Errorf("create transaction: draft is required")
	}
	if err := req.Draft.Validate(); err != nil {
		return "", err
	}

	id := uuid.NewString()

	// Snapshot copy: the stored participant list must not alias the draft.
	participants := make([]registration.Participant, len(req.Draft.Participants))
	copy(participants, req.Draft.Participants)

	tx := &Transaction{
		ID:               id,
		ItemName:         req.ItemName,
		Amount:           req.Amount,
		Status:           string(StatusPending),
		Timestamp:        time.Now().UTC(),
		HasImage:         len(req.Image) > 0,
		OCRText:          req.Extraction.RawText,
		ParsedAmount:     req.Extraction.Amount,
		ParticipantCount: len(participants),
		Participants:     participants,
		PrimaryApplicant: req.Draft.Primary(),
		Place:            req.Draft.Place,
		ProgramID:        req.ProgramID,
		ProgramDate:      req.ProgramDate,
		ProgramCity:      req.ProgramCity,
		DeviceID:         req.DeviceToken,
	}

	if err := s.meta.Insert(ctx, tx); err != nil {
		return "", fmt.Errorf("create transaction: insert metadata: %w", err)
	}

	if len(req.Image) > 0 {
		if err := s.images.Put(ctx, id, req.Image); err != nil {
			// Metadata already claims hasImage; GetImage tolerates the
			// missing blob, so the submission still stands.
			s.log.Warn().Err(err).Str("tx_id", id).Msg("Evidence blob write failed after metadata write")
		} else {
			s.recorder.RecordReceiptImage(ctx, int64(len(req.Image)))
		}
	}

	s.recorder.RecordRegistration(ctx, tx.ParticipantCount, true)

	s.log.Info().
		Str("tx_id", id).
		Str("item", tx.ItemName).
		Float64("amount", tx.Amount).
		Int("participants", tx.ParticipantCount).
		Bool("has_image", tx.HasImage).
		Msg("Transaction recorded")

	return id, nil
}

// Transition moves a transaction to a new status. Administrator only. The
// transition is validated against the state machine before any write, so a
// rejected transition is never partially applied.
func (s *Store) Transition(ctx context.Context, sess auth.Session, id string, to Status, comments string) error {
	if err := sess.RequireAdmin(); err != nil {
		return err
	}

	tx, err := s.meta.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("transition %s: %w", id, err)
	}

	from := tx.CurrentStatus()
	if !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}

	if err := s.meta.UpdateStatus(ctx, id, to, comments); err != nil {
		return fmt.Errorf("transition %s: update status: %w", id, err)
	}

	s.log.Info().
		Str("tx_id", id).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("admin", sess.Subject).
		Msg("Transaction status updated")

	return nil
}

// Delete removes a transaction and attempts blob removal. A missing blob is
// tolerated: metadata without a blob is an expected degraded state. Counter
// decrements are best-effort.
func (s *Store) Delete(ctx context.Context, sess auth.Session, id string) error {
	if err := sess.RequireAdmin(); err != nil {
		return err
	}

	tx, err := s.meta.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}

	if err := s.meta.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete %s: metadata: %w", id, err)
	}

	if err := s.images.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		s.log.Warn().Err(err).Str("tx_id", id).Msg("Evidence blob delete failed")
	}

	s.recorder.RecordRegistration(ctx, tx.ParticipantCount, false)

	s.log.Info().Str("tx_id", id).Str("admin", sess.Subject).Msg("Transaction deleted")
	return nil
}

// DeleteAllVerified removes every BNK_VERIFIED transaction and returns how
// many were deleted. Deletions proceed independently; the first failure
// stops the sweep and reports the count so far.
func (s *Store) DeleteAllVerified(ctx context.Context, sess auth.Session) (int, error) {
	if err := sess.RequireAdmin(); err != nil {
		return 0, err
	}

	txs, err := s.meta.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete verified: list: %w", err)
	}

	deleted := 0
	for _, tx := range txs {
		if tx.CurrentStatus() != StatusBnkVerified {
			continue
		}
		if err := s.Delete(ctx, sess, tx.ID); err != nil {
			return deleted, fmt.Errorf("delete verified: %w", err)
		}
		deleted++
	}
	return deleted, nil
}

// GetImage fetches the evidence blob on demand. A missing blob returns
// (nil, nil): metadata may legitimately outlive its blob.
func (s *Store) GetImage(ctx context.Context, id string) ([]byte, error) {
	payload, err := s.images.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get image %s: %w", id, err)
	}
	return payload, nil
}

// List returns all transactions, newest first. Administrator only.
func (s *Store) List(ctx context.Context, sess auth.Session) ([]*Transaction, error) {
	if err := sess.RequireAdmin(); err != nil {
		return nil, err
	}
	return s.meta.List(ctx)
}

// ListByDevice returns the caller's own transactions, scoped by the device
// token presented with the request.
func (s *Store) ListByDevice(ctx context.Context, deviceToken string) ([]*Transaction, error) {
	return s.meta.ListByDevice(ctx, deviceToken)
}

// HasRegistrationsForProgram reports whether any transaction references the
// program. Used before allowing program deletion.
func (s *Store) HasRegistrationsForProgram(ctx context.Context, programID string) (bool, error) {
	n, err := s.meta.CountByProgram(ctx, programID, 1)
	if err != nil {
		return false, fmt.Errorf("count by program %s: %w", programID, err)
	}
	return n > 0, nil
}

// Watch streams live snapshots of all transactions. Administrator only.
// Callers must invoke the returned cancel func when the console closes.
func (s *Store) Watch(ctx context.Context, sess auth.Session) (<-chan []*Transaction, func(), error) {
	if err := sess.RequireAdmin(); err != nil {
		return nil, nil, err
	}
	return s.meta.Watch(ctx)
}

// WatchDevice streams live snapshots of one device's transactions.
func (s *Store) WatchDevice(ctx context.Context, deviceToken string) (<-chan []*Transaction, func(), error) {
	return s.meta.WatchDevice(ctx, deviceToken)
}
