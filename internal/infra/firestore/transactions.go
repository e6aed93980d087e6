// Package firestore implements the persistence boundaries over Cloud
// Firestore. Collection and field names match the stored documents of the
// deployed system, so existing data loads without migration.
package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dvloznov/registration-tracker/internal/transaction"
)

const (
	colTransactions = "transactions"
	fieldTimestamp  = "timestamp"
	fieldDeviceID   = "deviceId"
	fieldProgramID  = "programId"
)

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// TransactionRepo implements transaction.MetaRepository over the
// transactions collection.
type TransactionRepo struct {
	client *firestore.Client
}

// NewTransactionRepo wraps an existing Firestore client. The caller owns
// the client's lifecycle.
func NewTransactionRepo(client *firestore.Client) *TransactionRepo {
	return &TransactionRepo{client: client}
}

func (r *TransactionRepo) doc(id string) *firestore.DocumentRef {
	return r.client.Collection(colTransactions).Doc(id)
}

// Insert implements transaction.MetaRepository.
func (r *TransactionRepo) Insert(ctx context.Context, tx *transaction.Transaction) error {
	if _, err := r.doc(tx.ID).Set(ctx, tx); err != nil {
		return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
	}
	return nil
}

// Get implements transaction.MetaRepository.
func (r *TransactionRepo) Get(ctx context.Context, id string) (*transaction.Transaction, error) {
	snap, err := r.doc(id).Get(ctx)
	if isNotFound(err) {
		return nil, transaction.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	var tx transaction.Transaction
	if err := snap.DataTo(&tx); err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", id, err)
	}
	tx.ID = snap.Ref.ID
	return &tx, nil
}

// UpdateStatus implements transaction.MetaRepository.
func (r *TransactionRepo) UpdateStatus(ctx context.Context, id string, st transaction.Status, comments string) error {
	updates := []firestore.Update{{Path: "status", Value: string(st)}}
	if comments != "" {
		updates = append(updates, firestore.Update{Path: "comments", Value: comments})
	}
	_, err := r.doc(id).Update(ctx, updates)
	if isNotFound(err) {
		return transaction.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update transaction %s status: %w", id, err)
	}
	return nil
}

// Delete implements transaction.MetaRepository.
func (r *TransactionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.doc(id).Delete(ctx, firestore.Exists)
	if isNotFound(err) || status.Code(err) == codes.FailedPrecondition {
		return transaction.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return nil
}

// List implements transaction.MetaRepository. Newest first.
func (r *TransactionRepo) List(ctx context.Context) ([]*transaction.Transaction, error) {
	q := r.client.Collection(colTransactions).OrderBy(fieldTimestamp, firestore.Desc)
	return r.collect(ctx, q.Documents(ctx))
}

// ListByDevice implements transaction.MetaRepository.
func (r *TransactionRepo) ListByDevice(ctx context.Context, deviceToken string) ([]*transaction.Transaction, error) {
	q := r.client.Collection(colTransactions).
		Where(fieldDeviceID, "==", deviceToken).
		OrderBy(fieldTimestamp, firestore.Desc)
	return r.collect(ctx, q.Documents(ctx))
}

// CountByProgram implements transaction.MetaRepository.
func (r *TransactionRepo) CountByProgram(ctx context.Context, programID string, limit int) (int, error) {
	q := r.client.Collection(colTransactions).Where(fieldProgramID, "==", programID)
	if limit > 0 {
		q = q.Limit(limit)
	}
	it := q.Documents(ctx)
	defer it.Stop()

	count := 0
	for {
		_, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("count transactions for program %s: %w", programID, err)
		}
		count++
	}
}

// Watch implements transaction.MetaRepository using Firestore snapshot
// listeners. The goroutine ends, and the channel closes, when cancel runs
// or ctx is done.
func (r *TransactionRepo) Watch(ctx context.Context) (<-chan []*transaction.Transaction, func(), error) {
	q := r.client.Collection(colTransactions).OrderBy(fieldTimestamp, firestore.Desc)
	return r.watch(ctx, q)
}

// WatchDevice implements transaction.MetaRepository.
func (r *TransactionRepo) WatchDevice(ctx context.Context, deviceToken string) (<-chan []*transaction.Transaction, func(), error) {
	q := r.client.Collection(colTransactions).
		Where(fieldDeviceID, "==", deviceToken).
		OrderBy(fieldTimestamp, firestore.Desc)
	return r.watch(ctx, q)
}

func (r *TransactionRepo) watch(ctx context.Context, q firestore.Query) (<-chan []*transaction.Transaction, func(), error) {
	watchCtx, cancel := context.WithCancel(ctx)
	ch := make(chan []*transaction.Transaction, 1)

	go func() {
		defer close(ch)
		snaps := q.Snapshots(watchCtx)
		defer snaps.Stop()

		for {
			snap, err := snaps.Next()
			if err != nil {
				// Cancellation or a terminal stream error; either way the
				// subscription is over.
				return
			}
			txs, err := r.collect(watchCtx, snap.Documents)
			if err != nil {
				continue
			}
			select {
			case ch <- txs:
			case <-watchCtx.Done():
				return
			}
		}
	}()

	return ch, cancel, nil
}

func (r *TransactionRepo) collect(ctx context.Context, it *firestore.DocumentIterator) ([]*transaction.Transaction, error) {
	defer it.Stop()

	var out []*transaction.Transaction
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("iterate transactions: %w", err)
		}
		var tx transaction.Transaction
		if err := snap.DataTo(&tx); err != nil {
			// Skip undecodable legacy records rather than failing the list.
			continue
		}
		tx.ID = snap.Ref.ID
		out = append(out, &tx)
	}
}

var _ transaction.MetaRepository = (*TransactionRepo)(nil)
