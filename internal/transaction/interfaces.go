package transaction

import (
	"context"
	"errors"
)

// ErrNotFound is returned by repositories when a record or blob is absent.
var ErrNotFound = errors.New("not found")

// MetaRepository is the persistence boundary for transaction metadata
// records. Implementations provide per-document writes only; there is no
// multi-document transaction between metadata and the evidence blob.
type MetaRepository interface {
	Insert(ctx context.Context, tx *Transaction) error
	Get(ctx context.Context, id string) (*Transaction, error)
	UpdateStatus(ctx context.Context, id string, status Status, comments string) error
	Delete(ctx context.Context, id string) error

	// List returns all transactions, newest first.
	List(ctx context.Context) ([]*Transaction, error)
	// ListByDevice returns the transactions submitted under a device
	// token, newest first.
	ListByDevice(ctx context.Context, deviceToken string) ([]*Transaction, error)
	// CountByProgram returns how many transactions reference a program,
	// scanning at most limit records.
	CountByProgram(ctx context.Context, programID string, limit int) (int, error)

	// Watch streams snapshots of all transactions to the returned channel
	// until the cancel func is called or ctx is done. The channel is
	// closed on cancellation; callers must always invoke cancel.
	Watch(ctx context.Context) (<-chan []*Transaction, func(), error)
	// WatchDevice is Watch scoped to one device token.
	WatchDevice(ctx context.Context, deviceToken string) (<-chan []*Transaction, func(), error)
}

// ImageRepository stores evidence blobs keyed 1:1 by transaction id,
// separately from metadata so list queries stay bounded in size.
type ImageRepository interface {
	Put(ctx context.Context, id string, payload []byte) error
	// Get returns ErrNotFound when no blob exists for the id.
	Get(ctx context.Context, id string) ([]byte, error)
	// Delete returns ErrNotFound when no blob exists for the id.
	Delete(ctx context.Context, id string) error
}

// Recorder receives best-effort counter updates on transaction writes.
// Implementations must never fail the primary operation: errors are logged
// and swallowed internally.
type Recorder interface {
	RecordRegistration(ctx context.Context, participantCount int, isNew bool)
	RecordReceiptImage(ctx context.Context, sizeBytes int64)
}

// NopRecorder discards all counter updates.
type NopRecorder struct{}

func (NopRecorder) RecordRegistration(ctx context.Context, participantCount int, isNew bool) {}
func (NopRecorder) RecordReceiptImage(ctx context.Context, sizeBytes int64)                 {}

var _ Recorder = NopRecorder{}
