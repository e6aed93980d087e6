package transaction_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/registration-tracker/internal/auth"
	"github.com/dvloznov/registration-tracker/internal/evidence"
	"github.com/dvloznov/registration-tracker/internal/infra/memory"
	"github.com/dvloznov/registration-tracker/internal/registration"
	"github.com/dvloznov/registration-tracker/internal/transaction"
)

func validDraft() *registration.Draft {
	d := registration.NewDraft()
	d.Place = "Pune"
	d.Participants[0] = registration.Participant{
		Name: "Asha", Gender: registration.Female, Age: 30,
		Mobile: "9876543210", Accommodation: registration.Room,
	}
	return d
}

func newStore(t *testing.T) (*transaction.Store, *memory.TransactionRepo, *memory.ImageRepo) {
	t.Helper()
	meta := memory.NewTransactionRepo()
	images := memory.NewImageRepo()
	store := transaction.NewStore(meta, images, nil, zerolog.Nop())
	return store, meta, images
}

func TestCreatePersistsMetadataAndBlob(t *testing.T) {
	store, meta, _ := newStore(t)
	ctx := context.Background()

	amt := 5500.0
	id, err := store.Create(ctx, transaction.SubmitRequest{
		ItemName:    "Winter Retreat",
		Amount:      amt,
		Draft:       validDraft(),
		Extraction:  evidence.Extraction{RawText: "Rs 5500 UPI Ref 123456789012", Amount: &amt},
		DeviceToken: "dev_abc",
		Image:       []byte{0xFF, 0xD8, 0xFF, 0x01},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	tx, err := meta.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if tx.CurrentStatus() != transaction.StatusPending {
		t.Errorf("status = %q, want PENDING", tx.Status)
	}
	if !tx.HasImage {
		t.Error("hasImage not set")
	}
	if tx.ParticipantCount != 1 || tx.PrimaryApplicant.Name != "Asha" {
		t.Errorf("participant snapshot wrong: %+v", tx)
	}

	img, err := store.GetImage(ctx, id)
	if err != nil {
		t.Fatalf("GetImage: %v", err)
	}
	if len(img) != 4 {
		t.Errorf("image payload = %d bytes, want 4", len(img))
	}
}

func TestCreateRejectsInvalidDraft(t *testing.T) {
	store, _, _ := newStore(t)

	d := validDraft()
	d.Place = ""
	_, err := store.Create(context.Background(), transaction.SubmitRequest{Draft: d})

	var verr *registration.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "place" {
		t.Errorf("failed field = %q, want place", verr.Field)
	}
}

type failingImages struct{}

func (failingImages) Put(context.Context, string, []byte) error { return errors.New("blob store down") }
func (failingImages) Get(context.Context, string) ([]byte, error) {
	return nil, transaction.ErrNotFound
}
func (failingImages) Delete(context.Context, string) error { return transaction.ErrNotFound }

func TestCreateSurvivesBlobWriteFailure(t *testing.T) {
	meta := memory.NewTransactionRepo()
	store := transaction.NewStore(meta, failingImages{}, nil, zerolog.Nop())
	ctx := context.Background()

	id, err := store.Create(ctx, transaction.SubmitRequest{
		ItemName: "Retreat",
		Amount:   100,
		Draft:    validDraft(),
		Image:    []byte{1, 2, 3},
	})
	if err != nil {
		t.Fatalf("Create should tolerate a blob failure, got %v", err)
	}

	tx, err := meta.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	// Metadata claims an image that was never stored. Readers get the
	// degraded empty result rather than an error.
	if !tx.HasImage {
		t.Error("hasImage should remain set")
	}
	img, err := store.GetImage(ctx, id)
	if err != nil || img != nil {
		t.Errorf("GetImage = (%v, %v), want (nil, nil)", img, err)
	}
}

func TestTransitionStateMachine(t *testing.T) {
	store, _, _ := newStore(t)
	ctx := context.Background()
	admin := auth.Admin("ops")

	id, err := store.Create(ctx, transaction.SubmitRequest{
		ItemName: "Retreat", Amount: 100, Draft: validDraft(),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	steps := []transaction.Status{
		transaction.StatusHold,
		transaction.StatusRegistered,
		transaction.StatusBnkVerified,
	}
	for _, to := range steps {
		if err := store.Transition(ctx, admin, id, to, ""); err != nil {
			t.Fatalf("Transition to %s: %v", to, err)
		}
	}

	// BNK_VERIFIED can only step back to REGISTERED.
	err = store.Transition(ctx, admin, id, transaction.StatusPending, "")
	var iterr *transaction.InvalidTransitionError
	if !errors.As(err, &iterr) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if !errors.Is(err, transaction.ErrInvalidTransition) {
		t.Error("InvalidTransitionError should unwrap to ErrInvalidTransition")
	}

	if err := store.Transition(ctx, admin, id, transaction.StatusRegistered, "refund issued"); err != nil {
		t.Fatalf("Transition back to REGISTERED: %v", err)
	}
}

func TestTransitionRequiresAdmin(t *testing.T) {
	store, _, _ := newStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, transaction.SubmitRequest{
		ItemName: "Retreat", Amount: 100, Draft: validDraft(),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	sess := auth.Participant("dev_abc")
	err = store.Transition(ctx, sess, id, transaction.StatusRegistered, "")
	if !errors.Is(err, auth.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if _, err := store.List(ctx, sess); !errors.Is(err, auth.ErrPermissionDenied) {
		t.Fatalf("List as participant: expected permission denied, got %v", err)
	}
}

func TestDeleteCascadesToBlob(t *testing.T) {
	store, meta, images := newStore(t)
	ctx := context.Background()
	admin := auth.Admin("ops")

	id, err := store.Create(ctx, transaction.SubmitRequest{
		ItemName: "Retreat", Amount: 100, Draft: validDraft(), Image: []byte{1, 2},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := store.Delete(ctx, admin, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := meta.Get(ctx, id); !errors.Is(err, transaction.ErrNotFound) {
		t.Errorf("metadata still present after delete: %v", err)
	}
	if _, err := images.Get(ctx, id); !errors.Is(err, transaction.ErrNotFound) {
		t.Errorf("blob still present after delete: %v", err)
	}
}

func TestDeleteAllVerified(t *testing.T) {
	store, _, _ := newStore(t)
	ctx := context.Background()
	admin := auth.Admin("ops")

	var verified string
	for i := 0; i < 3; i++ {
		id, err := store.Create(ctx, transaction.SubmitRequest{
			ItemName: "Retreat", Amount: 100, Draft: validDraft(),
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if i == 0 {
			verified = id
		}
	}
	for _, to := range []transaction.Status{transaction.StatusRegistered, transaction.StatusBnkVerified} {
		if err := store.Transition(ctx, admin, verified, to, ""); err != nil {
			t.Fatalf("Transition: %v", err)
		}
	}

	n, err := store.DeleteAllVerified(ctx, admin)
	if err != nil {
		t.Fatalf("DeleteAllVerified: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}
	remaining, err := store.List(ctx, admin)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(remaining) != 2 {
		t.Errorf("%d transactions remain, want 2", len(remaining))
	}
}

func TestListByDeviceScopesResults(t *testing.T) {
	store, _, _ := newStore(t)
	ctx := context.Background()

	for _, dev := range []string{"dev_a", "dev_a", "dev_b"} {
		if _, err := store.Create(ctx, transaction.SubmitRequest{
			ItemName: "Retreat", Amount: 100, Draft: validDraft(), DeviceToken: dev,
		}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	mine, err := store.ListByDevice(ctx, "dev_a")
	if err != nil {
		t.Fatalf("ListByDevice: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("device dev_a sees %d transactions, want 2", len(mine))
	}
}

func TestWatchDeliversSnapshotsAndCancels(t *testing.T) {
	store, _, _ := newStore(t)
	ctx := context.Background()
	admin := auth.Admin("ops")

	ch, cancel, err := store.Watch(ctx, admin)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer cancel()

	select {
	case snap := <-ch:
		if len(snap) != 0 {
			t.Errorf("initial snapshot has %d records, want 0", len(snap))
		}
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot")
	}

	if _, err := store.Create(ctx, transaction.SubmitRequest{
		ItemName: "Retreat", Amount: 100, Draft: validDraft(),
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	select {
	case snap := <-ch:
		if len(snap) != 1 {
			t.Errorf("snapshot after insert has %d records, want 1", len(snap))
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot after insert")
	}

	cancel()
	if _, open := <-ch; open {
		// Drain any buffered snapshot delivered before cancellation.
		for range ch {
		}
	}
}

func TestWatchRequiresAdmin(t *testing.T) {
	store, _, _ := newStore(t)

	_, _, err := store.Watch(context.Background(), auth.Participant("dev_x"))
	if !errors.Is(err, auth.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
}
