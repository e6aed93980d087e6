package memory

import (
	"context"
	"sync"

	"github.com/dvloznov/registration-tracker/internal/stats"
)

// DocumentStore is an in-memory stats.CollectionScanner: named collections
// of untyped documents, matching the shape recalculation and ClearAll work
// over. Tests seed it with historical document shapes directly.
type DocumentStore struct {
	mu   sync.RWMutex
	cols map[string]map[string]map[string]any
}

// NewDocumentStore creates an empty document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{cols: make(map[string]map[string]map[string]any)}
}

// Put inserts or replaces a document.
func (s *DocumentStore) Put(collection, id string, doc map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cols[collection] == nil {
		s.cols[collection] = make(map[string]map[string]any)
	}
	s.cols[collection][id] = doc
}

// Scan implements stats.CollectionScanner.
func (s *DocumentStore) Scan(ctx context.Context, collection string, fn func(id string, doc map[string]any) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, doc := range s.cols[collection] {
		if err := fn(id, doc); err != nil {
			return err
		}
	}
	return nil
}

// Clear implements stats.CollectionScanner.
func (s *DocumentStore) Clear(ctx context.Context, collection string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.cols[collection])
	delete(s.cols, collection)
	return n, nil
}

var _ stats.CollectionScanner = (*DocumentStore)(nil)

// Scanner merges the live in-memory repositories with a DocumentStore into
// one stats.CollectionScanner, so recalculation and ClearAll operate on the
// records the handlers actually write rather than a parallel copy.
type Scanner struct {
	txs      *TransactionRepo
	images   *ImageRepo
	programs *ProgramRepo
	docs     *DocumentStore
}

// NewScanner wires a scanner over live repositories. Collections without a
// live repo, the banner collections in particular, are served from docs.
func NewScanner(txs *TransactionRepo, images *ImageRepo, programs *ProgramRepo, docs *DocumentStore) *Scanner {
	return &Scanner{txs: txs, images: images, programs: programs, docs: docs}
}

// Scan implements stats.CollectionScanner. Transactions and programs are
// projected down to the fields recalculation reads. Evidence blobs are
// surfaced through ScanSizes on the image repo, so the image collection here
// holds only seeded legacy documents.
func (s *Scanner) Scan(ctx context.Context, collection string, fn func(id string, doc map[string]any) error) error {
	switch collection {
	case stats.ColTransactions:
		txs, err := s.txs.List(ctx)
		if err != nil {
			return err
		}
		for _, tx := range txs {
			doc := map[string]any{
				"participantCount": tx.ParticipantCount,
				"deviceId":         tx.DeviceID,
				"hasImage":         tx.HasImage,
			}
			if err := fn(tx.ID, doc); err != nil {
				return err
			}
		}
		return nil
	case stats.ColPrograms:
		refs, err := s.programs.List(ctx)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			if err := fn(ref.ID, map[string]any{"programName": ref.ProgramName}); err != nil {
				return err
			}
		}
		return nil
	default:
		return s.docs.Scan(ctx, collection, fn)
	}
}

// Clear implements stats.CollectionScanner, wiping the live repo and any
// seeded documents for the collection.
func (s *Scanner) Clear(ctx context.Context, collection string) (int, error) {
	n, err := s.docs.Clear(ctx, collection)
	if err != nil {
		return n, err
	}
	switch collection {
	case stats.ColTransactions:
		n += s.txs.removeAll()
	case stats.ColTransactionImages:
		n += s.images.removeAll()
	case stats.ColPrograms:
		n += s.programs.removeAll()
	}
	return n, nil
}

var _ stats.CollectionScanner = (*Scanner)(nil)
