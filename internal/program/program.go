package program

import (
	"context"
	"errors"

	"github.com/dvloznov/registration-tracker/internal/registration"
)

// ErrNotFound is returned when no program matches a lookup.
var ErrNotFound = errors.New("program not found")

// Reference is read-only event metadata consulted, but not owned, by the
// reconciliation core: fee schedule, date and city for one scheduled
// program.
type Reference struct {
	ID           string  `json:"id" firestore:"id"`
	ProgramName  string  `json:"programName" firestore:"programName"`
	ProgramDate  string  `json:"programDate" firestore:"programDate"`
	ProgramCity  string  `json:"programCity" firestore:"programCity"`
	ProgramFee   float64 `json:"programFee" firestore:"programFee"`
	RoomFee      float64 `json:"roomFee" firestore:"roomFee"`
	DormFee      float64 `json:"dormFee" firestore:"dormFee"`
	DisplayOrder int     `json:"displayOrder" firestore:"displayOrder"`
}

// Fees returns the fee schedule used when totalling a registration draft.
func (r *Reference) Fees() registration.FeeSchedule {
	return registration.FeeSchedule{
		ProgramFee: r.ProgramFee,
		DormFee:    r.DormFee,
		RoomFee:    r.RoomFee,
	}
}

// Directory is the read-only program lookup used by review logic and fee
// calculation.
type Directory interface {
	// GetByID returns ErrNotFound when the id is unknown.
	GetByID(ctx context.Context, id string) (*Reference, error)
	List(ctx context.Context) ([]*Reference, error)
}

// Reorderer swaps the display order of two sibling programs. The swap must
// be a single atomic multi-key write (or run under one lock): two
// independent updates can interleave with a concurrent reorder and corrupt
// the ordering.
type Reorderer interface {
	Reorder(ctx context.Context, idA, idB string) error
}
