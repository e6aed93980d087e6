// Package memory provides in-memory implementations of the persistence
// boundaries. They back tests and single-process deployments that run
// without Google Cloud credentials; semantics mirror the Firestore
// implementations, including snapshot streaming for watches.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/dvloznov/registration-tracker/internal/transaction"
)

// TransactionRepo is an in-memory transaction.MetaRepository. Every read
// returns copies, and every mutation notifies active watchers with a fresh
// snapshot.
type TransactionRepo struct {
	mu   sync.RWMutex
	txs  map[string]*transaction.Transaction
	subs map[int]*subscriber
	next int
}

type subscriber struct {
	ch     chan []*transaction.Transaction
	device string // empty means all transactions
}

// NewTransactionRepo creates an empty repository.
func NewTransactionRepo() *TransactionRepo {
	return &TransactionRepo{
		txs:  make(map[string]*transaction.Transaction),
		subs: make(map[int]*subscriber),
	}
}

// Insert implements transaction.MetaRepository.
func (r *TransactionRepo) Insert(ctx context.Context, tx *transaction.Transaction) error {
	r.mu.Lock()
	cp := copyTx(tx)
	r.txs[tx.ID] = cp
	r.mu.Unlock()
	r.broadcast()
	return nil
}

// Get implements transaction.MetaRepository.
func (r *TransactionRepo) Get(ctx context.Context, id string) (*transaction.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tx, ok := r.txs[id]
	if !ok {
		return nil, transaction.ErrNotFound
	}
	return copyTx(tx), nil
}

// UpdateStatus implements transaction.MetaRepository.
func (r *TransactionRepo) UpdateStatus(ctx context.Context, id string, status transaction.Status, comments string) error {
	r.mu.Lock()
	tx, ok := r.txs[id]
	if !ok {
		r.mu.Unlock()
		return transaction.ErrNotFound
	}
	tx.Status = string(status)
	if comments != "" {
		tx.Comments = comments
	}
	r.mu.Unlock()
	r.broadcast()
	return nil
}

// Delete implements transaction.MetaRepository.
func (r *TransactionRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	if _, ok := r.txs[id]; !ok {
		r.mu.Unlock()
		return transaction.ErrNotFound
	}
	delete(r.txs, id)
	r.mu.Unlock()
	r.broadcast()
	return nil
}

// List implements transaction.MetaRepository. Newest first.
func (r *TransactionRepo) List(ctx context.Context) ([]*transaction.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked(""), nil
}

// ListByDevice implements transaction.MetaRepository.
func (r *TransactionRepo) ListByDevice(ctx context.Context, deviceToken string) ([]*transaction.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked(deviceToken), nil
}

// CountByProgram implements transaction.MetaRepository.
func (r *TransactionRepo) CountByProgram(ctx context.Context, programID string, limit int) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, tx := range r.txs {
		if tx.ProgramID == programID {
			count++
			if limit > 0 && count >= limit {
				break
			}
		}
	}
	return count, nil
}

// Watch implements transaction.MetaRepository. The returned channel gets the
// current snapshot immediately and a new one after every mutation, until the
// cancel func runs or ctx is done.
func (r *TransactionRepo) Watch(ctx context.Context) (<-chan []*transaction.Transaction, func(), error) {
	return r.watch(ctx, "")
}

// WatchDevice implements transaction.MetaRepository.
func (r *TransactionRepo) WatchDevice(ctx context.Context, deviceToken string) (<-chan []*transaction.Transaction, func(), error) {
	return r.watch(ctx, deviceToken)
}

func (r *TransactionRepo) watch(ctx context.Context, device string) (<-chan []*transaction.Transaction, func(), error) {
	r.mu.Lock()
	id := r.next
	r.next++
	sub := &subscriber{ch: make(chan []*transaction.Transaction, 8), device: device}
	r.subs[id] = sub
	initial := r.snapshotLocked(device)
	r.mu.Unlock()

	sub.ch <- initial

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
			close(sub.ch)
		})
	}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}

	return sub.ch, cancel, nil
}

func (r *TransactionRepo) broadcast() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, sub := range r.subs {
		snap := r.snapshotLocked(sub.device)
		select {
		case sub.ch <- snap:
		default:
			// Slow consumer; it will catch up on the next mutation.
		}
	}
}

func (r *TransactionRepo) snapshotLocked(device string) []*transaction.Transaction {
	out := make([]*transaction.Transaction, 0, len(r.txs))
	for _, tx := range r.txs {
		if device != "" && tx.DeviceID != device {
			continue
		}
		out = append(out, copyTx(tx))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// removeAll deletes every transaction, returning the number removed.
func (r *TransactionRepo) removeAll() int {
	r.mu.Lock()
	n := len(r.txs)
	r.txs = make(map[string]*transaction.Transaction)
	r.mu.Unlock()
	r.broadcast()
	return n
}

func copyTx(tx *transaction.Transaction) *transaction.Transaction {
	cp := *tx
	if tx.Participants != nil {
		cp.Participants = append(cp.Participants[:0:0], tx.Participants...)
	}
	if tx.ParsedAmount != nil {
		v := *tx.ParsedAmount
		cp.ParsedAmount = &v
	}
	return &cp
}

// ImageRepo is an in-memory transaction.ImageRepository.
type ImageRepo struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewImageRepo creates an empty blob store.
func NewImageRepo() *ImageRepo {
	return &ImageRepo{blobs: make(map[string][]byte)}
}

// Put implements transaction.ImageRepository.
func (r *ImageRepo) Put(ctx context.Context, id string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blobs[id] = append([]byte(nil), payload...)
	return nil
}

// Get implements transaction.ImageRepository.
func (r *ImageRepo) Get(ctx context.Context, id string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.blobs[id]
	if !ok {
		return nil, transaction.ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

// Delete implements transaction.ImageRepository.
func (r *ImageRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.blobs[id]; !ok {
		return transaction.ErrNotFound
	}
	delete(r.blobs, id)
	return nil
}

// removeAll deletes every blob, returning the number removed.
func (r *ImageRepo) removeAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.blobs)
	r.blobs = make(map[string][]byte)
	return n
}

// ScanSizes yields each stored blob's size, satisfying stats.BlobScanner.
func (r *ImageRepo) ScanSizes(ctx context.Context, fn func(id string, size int64) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, b := range r.blobs {
		if err := fn(id, int64(len(b))); err != nil {
			return err
		}
	}
	return nil
}

var _ transaction.MetaRepository = (*TransactionRepo)(nil)
var _ transaction.ImageRepository = (*ImageRepo)(nil)
