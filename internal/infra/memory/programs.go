package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/dvloznov/registration-tracker/internal/program"
)

// ProgramRepo is an in-memory program directory with reordering. The single
// mutex makes the display-order swap atomic; a concurrent reorder observes
// either the old or the new ordering, never a half-applied one.
type ProgramRepo struct {
	mu   sync.RWMutex
	refs map[string]*program.Reference
}

// NewProgramRepo creates an empty directory.
func NewProgramRepo() *ProgramRepo {
	return &ProgramRepo{refs: make(map[string]*program.Reference)}
}

// Put inserts or replaces a program reference.
func (r *ProgramRepo) Put(ctx context.Context, ref *program.Reference) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *ref
	r.refs[ref.ID] = &cp
	return nil
}

// Delete removes a program reference.
func (r *ProgramRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.refs[id]; !ok {
		return program.ErrNotFound
	}
	delete(r.refs, id)
	return nil
}

// GetByID implements program.Directory.
func (r *ProgramRepo) GetByID(ctx context.Context, id string) (*program.Reference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.refs[id]
	if !ok {
		return nil, program.ErrNotFound
	}
	cp := *ref
	return &cp, nil
}

// List implements program.Directory, ordered by display order then id.
func (r *ProgramRepo) List(ctx context.Context) ([]*program.Reference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*program.Reference, 0, len(r.refs))
	for _, ref := range r.refs {
		cp := *ref
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Reorder implements program.Reorderer by swapping both display orders under
// one lock.
func (r *ProgramRepo) Reorder(ctx context.Context, idA, idB string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.refs[idA]
	if !ok {
		return program.ErrNotFound
	}
	b, ok := r.refs[idB]
	if !ok {
		return program.ErrNotFound
	}
	a.DisplayOrder, b.DisplayOrder = b.DisplayOrder, a.DisplayOrder
	return nil
}

// removeAll deletes every program reference, returning the number removed.
func (r *ProgramRepo) removeAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.refs)
	r.refs = make(map[string]*program.Reference)
	return n
}

var _ program.Directory = (*ProgramRepo)(nil)
var _ program.Reorderer = (*ProgramRepo)(nil)
