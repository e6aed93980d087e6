// Package gcs stores evidence blobs in a Google Cloud Storage bucket,
// keyed by transaction id. Keeping blobs out of the document store bounds
// metadata query sizes and lets storage usage be measured independently.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/registration-tracker/internal/stats"
	"github.com/dvloznov/registration-tracker/internal/transaction"
)

const objectPrefix = "transactions/"

// BlobStore implements transaction.ImageRepository over a GCS bucket, and
// stats.BlobScanner for recalculation. It assumes Application Default
// Credentials are configured.
type BlobStore struct {
	client *storage.Client
	bucket string
}

// NewBlobStore wraps an existing storage client. The caller owns the
// client's lifecycle.
func NewBlobStore(client *storage.Client, bucket string) *BlobStore {
	return &BlobStore{client: client, bucket: bucket}
}

func (s *BlobStore) object(id string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(objectPrefix + id)
}

// Put implements transaction.ImageRepository.
func (s *BlobStore) Put(ctx context.Context, id string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.object(id).NewWriter(ctx)
	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return fmt.Errorf("write GCS object %s: %w", id, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close GCS writer %s: %w", id, err)
	}
	return nil
}

// Get implements transaction.ImageRepository.
func (s *BlobStore) Get(ctx context.Context, id string) ([]byte, error) {
	r, err := s.object(id).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, transaction.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader %s: %w", id, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GCS object %s: %w", id, err)
	}
	return data, nil
}

// Delete implements transaction.ImageRepository.
func (s *BlobStore) Delete(ctx context.Context, id string) error {
	err := s.object(id).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return transaction.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete GCS object %s: %w", id, err)
	}
	return nil
}

// ScanSizes implements stats.BlobScanner by listing every evidence object
// and yielding its stored size.
func (s *BlobStore) ScanSizes(ctx context.Context, fn func(id string, size int64) error) error {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: objectPrefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("list GCS objects: %w", err)
		}
		id := strings.TrimPrefix(attrs.Name, objectPrefix)
		if err := fn(id, attrs.Size); err != nil {
			return err
		}
	}
}

var _ transaction.ImageRepository = (*BlobStore)(nil)
var _ stats.BlobScanner = (*BlobStore)(nil)
