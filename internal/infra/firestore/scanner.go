package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/registration-tracker/internal/stats"
)

// Scanner implements stats.CollectionScanner: raw iteration for the
// recalculation pass and bulk deletion for the reset tool. Documents are
// surfaced untyped because historical records do not share one shape.
type Scanner struct {
	client *firestore.Client
}

// NewScanner wraps an existing Firestore client.
func NewScanner(client *firestore.Client) *Scanner {
	return &Scanner{client: client}
}

// Scan implements stats.CollectionScanner.
func (s *Scanner) Scan(ctx context.Context, collection string, fn func(id string, doc map[string]any) error) error {
	it := s.client.Collection(collection).Documents(ctx)
	defer it.Stop()

	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("scan %s: %w", collection, err)
		}
		if err := fn(snap.Ref.ID, snap.Data()); err != nil {
			return err
		}
	}
}

// Clear implements stats.CollectionScanner, deleting through a BulkWriter
// to keep the sweep bounded in round trips.
func (s *Scanner) Clear(ctx context.Context, collection string) (int, error) {
	bw := s.client.BulkWriter(ctx)

	it := s.client.Collection(collection).Documents(ctx)
	defer it.Stop()

	deleted := 0
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			bw.End()
			return deleted, fmt.Errorf("clear %s: iterate: %w", collection, err)
		}
		if _, err := bw.Delete(snap.Ref); err != nil {
			bw.End()
			return deleted, fmt.Errorf("clear %s: delete %s: %w", collection, snap.Ref.ID, err)
		}
		deleted++
	}

	bw.End()
	return deleted, nil
}

var _ stats.CollectionScanner = (*Scanner)(nil)
