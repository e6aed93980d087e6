package firestore

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dvloznov/registration-tracker/internal/transaction"
)

const colTransactionImages = "transaction_images"

// payloadFields are the historical field names a stored image may use.
// New writes always use the first; reads fall back through the rest.
var payloadFields = []string{"base64", "imageData", "data", "image"}

// ImageRepo implements transaction.ImageRepository over the
// transaction_images collection, one document per transaction id.
type ImageRepo struct {
	client *firestore.Client
}

// NewImageRepo wraps an existing Firestore client.
func NewImageRepo(client *firestore.Client) *ImageRepo {
	return &ImageRepo{client: client}
}

func (r *ImageRepo) doc(id string) *firestore.DocumentRef {
	return r.client.Collection(colTransactionImages).Doc(id)
}

// Put implements transaction.ImageRepository. Payloads are stored as raw
// bytes; Firestore encodes them for the wire.
func (r *ImageRepo) Put(ctx context.Context, id string, payload []byte) error {
	_, err := r.doc(id).Set(ctx, map[string]any{payloadFields[0]: payload})
	if err != nil {
		return fmt.Errorf("put image %s: %w", id, err)
	}
	return nil
}

// Get implements transaction.ImageRepository, checking every historical
// payload field name.
func (r *ImageRepo) Get(ctx context.Context, id string) ([]byte, error) {
	snap, err := r.doc(id).Get(ctx)
	if isNotFound(err) {
		return nil, transaction.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get image %s: %w", id, err)
	}

	data := snap.Data()
	for _, field := range payloadFields {
		switch v := data[field].(type) {
		case []byte:
			if len(v) > 0 {
				return v, nil
			}
		case string:
			// Oldest records stored base64 text instead of bytes, sometimes
			// with a data URL prefix. Decoded so callers always receive raw
			// image bytes.
			if v != "" {
				decoded, err := decodeLegacyPayload(v)
				if err != nil {
					return nil, fmt.Errorf("get image %s: decode %s payload: %w", id, field, err)
				}
				return decoded, nil
			}
		}
	}
	return nil, transaction.ErrNotFound
}

// decodeLegacyPayload converts base64 text, with or without a data URL
// prefix, into raw bytes.
func decodeLegacyPayload(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}

// Delete implements transaction.ImageRepository.
func (r *ImageRepo) Delete(ctx context.Context, id string) error {
	_, err := r.doc(id).Delete(ctx, firestore.Exists)
	if isNotFound(err) || status.Code(err) == codes.FailedPrecondition {
		return transaction.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete image %s: %w", id, err)
	}
	return nil
}

var _ transaction.ImageRepository = (*ImageRepo)(nil)
