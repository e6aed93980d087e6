package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/registration-tracker/internal/program"
)

const (
	colPrograms       = "programs"
	fieldDisplayOrder = "displayOrder"
)

// ProgramRepo implements program.Directory and program.Reorderer over the
// programs collection.
type ProgramRepo struct {
	client *firestore.Client
}

// NewProgramRepo wraps an existing Firestore client.
func NewProgramRepo(client *firestore.Client) *ProgramRepo {
	return &ProgramRepo{client: client}
}

func (r *ProgramRepo) doc(id string) *firestore.DocumentRef {
	return r.client.Collection(colPrograms).Doc(id)
}

// Put inserts or replaces a program reference.
func (r *ProgramRepo) Put(ctx context.Context, ref *program.Reference) error {
	if _, err := r.doc(ref.ID).Set(ctx, ref); err != nil {
		return fmt.Errorf("put program %s: %w", ref.ID, err)
	}
	return nil
}

// Delete removes a program reference.
func (r *ProgramRepo) Delete(ctx context.Context, id string) error {
	_, err := r.doc(id).Delete(ctx, firestore.Exists)
	if isNotFound(err) {
		return program.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete program %s: %w", id, err)
	}
	return nil
}

// GetByID implements program.Directory.
func (r *ProgramRepo) GetByID(ctx context.Context, id string) (*program.Reference, error) {
	snap, err := r.doc(id).Get(ctx)
	if isNotFound(err) {
		return nil, program.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get program %s: %w", id, err)
	}
	var ref program.Reference
	if err := snap.DataTo(&ref); err != nil {
		return nil, fmt.Errorf("decode program %s: %w", id, err)
	}
	ref.ID = snap.Ref.ID
	return &ref, nil
}

// List implements program.Directory, ordered for display.
func (r *ProgramRepo) List(ctx context.Context) ([]*program.Reference, error) {
	it := r.client.Collection(colPrograms).OrderBy(fieldDisplayOrder, firestore.Asc).Documents(ctx)
	defer it.Stop()

	var out []*program.Reference
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("iterate programs: %w", err)
		}
		var ref program.Reference
		if err := snap.DataTo(&ref); err != nil {
			continue
		}
		ref.ID = snap.Ref.ID
		out = append(out, &ref)
	}
}

// Reorder implements program.Reorderer. Both display-order writes happen in
// one Firestore transaction, so a concurrent reorder sees either ordering
// but never a half-applied swap.
func (r *ProgramRepo) Reorder(ctx context.Context, idA, idB string) error {
	err := r.client.RunTransaction(ctx, func(ctx context.Context, t *firestore.Transaction) error {
		snapA, err := t.Get(r.doc(idA))
		if err != nil {
			return err
		}
		snapB, err := t.Get(r.doc(idB))
		if err != nil {
			return err
		}

		orderA, err := snapA.DataAt(fieldDisplayOrder)
		if err != nil {
			return err
		}
		orderB, err := snapB.DataAt(fieldDisplayOrder)
		if err != nil {
			return err
		}

		if err := t.Update(snapA.Ref, []firestore.Update{{Path: fieldDisplayOrder, Value: orderB}}); err != nil {
			return err
		}
		return t.Update(snapB.Ref, []firestore.Update{{Path: fieldDisplayOrder, Value: orderA}})
	})
	if isNotFound(err) {
		return program.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reorder programs %s/%s: %w", idA, idB, err)
	}
	return nil
}

var _ program.Directory = (*ProgramRepo)(nil)
var _ program.Reorderer = (*ProgramRepo)(nil)
