package memory_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dvloznov/registration-tracker/internal/infra/memory"
	"github.com/dvloznov/registration-tracker/internal/registration"
	"github.com/dvloznov/registration-tracker/internal/stats"
	"github.com/dvloznov/registration-tracker/internal/transaction"
)

func twoParticipantDraft() *registration.Draft {
	return &registration.Draft{
		Place: "Mumbai",
		Participants: []registration.Participant{
			{Name: "Asha", Gender: registration.Female, Age: 30, Mobile: "9876543210", Accommodation: registration.Room},
			{Name: "Ravi", Gender: registration.Male, Age: 32, Mobile: "9876543211", Accommodation: registration.Dorm},
		},
	}
}

// Mirrors the credential-less wiring in cmd/api: the scanner reads the same
// repositories the store writes, so a recalculation confirms the incremental
// counters instead of zeroing them while records still exist.
func TestRecalculateSeesLiveRepositories(t *testing.T) {
	ctx := context.Background()

	txRepo := memory.NewTransactionRepo()
	imageRepo := memory.NewImageRepo()
	programRepo := memory.NewProgramRepo()
	scanner := memory.NewScanner(txRepo, imageRepo, programRepo, memory.NewDocumentStore())

	engine := stats.NewEngine(memory.NewCounterRepo(), scanner, imageRepo, nil, stats.Thresholds{}, zerolog.Nop())
	store := transaction.NewStore(txRepo, imageRepo, engine, zerolog.Nop())

	if _, err := store.Create(ctx, transaction.SubmitRequest{
		ItemName:    "Winter Retreat",
		Amount:      6000,
		Draft:       twoParticipantDraft(),
		DeviceToken: "dev_1",
		Image:       []byte("evidence-bytes"),
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	before, err := engine.Totals(ctx)
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if before.TotalParticipants != 2 || before.TotalReceipts != 1 {
		t.Fatalf("incremental totals = %+v, want 2 participants and 1 receipt", before)
	}

	after, err := engine.Recalculate(ctx)
	if err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if after.TotalParticipants != 2 {
		t.Errorf("recalculated participants = %d, want 2", after.TotalParticipants)
	}
	if after.TotalReceipts != 1 {
		t.Errorf("recalculated receipts = %d, want 1", after.TotalReceipts)
	}
	if after.TotalUniqueDevices != 1 {
		t.Errorf("recalculated unique devices = %d, want 1", after.TotalUniqueDevices)
	}
	if after.TotalImageSizeMB <= 0 {
		t.Errorf("recalculated image size = %v, want > 0", after.TotalImageSizeMB)
	}
}

// ClearAll through the live scanner must wipe the repositories themselves,
// not just seeded documents.
func TestScannerClearWipesLiveRepositories(t *testing.T) {
	ctx := context.Background()

	txRepo := memory.NewTransactionRepo()
	imageRepo := memory.NewImageRepo()
	programRepo := memory.NewProgramRepo()
	scanner := memory.NewScanner(txRepo, imageRepo, programRepo, memory.NewDocumentStore())

	store := transaction.NewStore(txRepo, imageRepo, nil, zerolog.Nop())
	id, err := store.Create(ctx, transaction.SubmitRequest{
		ItemName:    "Winter Retreat",
		Amount:      6000,
		Draft:       twoParticipantDraft(),
		DeviceToken: "dev_1",
		Image:       []byte("evidence-bytes"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if n, err := scanner.Clear(ctx, stats.ColTransactions); err != nil || n != 1 {
		t.Fatalf("Clear transactions = %d, %v; want 1, nil", n, err)
	}
	if n, err := scanner.Clear(ctx, stats.ColTransactionImages); err != nil || n != 1 {
		t.Fatalf("Clear images = %d, %v; want 1, nil", n, err)
	}

	if _, err := txRepo.Get(ctx, id); err != transaction.ErrNotFound {
		t.Errorf("Get after clear = %v, want ErrNotFound", err)
	}
	if _, err := imageRepo.Get(ctx, id); err != transaction.ErrNotFound {
		t.Errorf("image Get after clear = %v, want ErrNotFound", err)
	}
}
