package transaction

import (
	"errors"
	"fmt"
)

// Status is the adjudication state of a submitted transaction. Transitions
// are administrator-driven only; the submitting participant never moves a
// transaction between states.
type Status string

const (
	// StatusPending is the initial state and the default for any
	// unrecognized or legacy status string.
	StatusPending Status = "PENDING"
	// StatusHold parks a transaction for later review.
	StatusHold Status = "HOLD"
	// StatusRegistered marks the registration as approved by an admin.
	StatusRegistered Status = "REGISTERED"
	// StatusBnkVerified marks the payment as confirmed against the bank
	// account. Terminal, apart from an explicit revert.
	StatusBnkVerified Status = "BNK_VERIFIED"
	// StatusRejected is defined but currently unreachable through
	// Transition; rejected submissions are deleted outright instead. Kept
	// so legacy records carrying it still classify correctly.
	StatusRejected Status = "REJECTED"
)

// knownStatuses is the closed set of recognized status values.
var knownStatuses = map[Status]bool{
	StatusPending:     true,
	StatusHold:        true,
	StatusRegistered:  true,
	StatusBnkVerified: true,
	StatusRejected:    true,
}

// ParseStatus normalizes a stored status string. Anything outside the known
// set, including empty strings on legacy records, maps to PENDING.
func ParseStatus(raw string) Status {
	s := Status(raw)
	if knownStatuses[s] {
		return s
	}
	return StatusPending
}

// transitions is the full reachability table of the status state machine.
var transitions = map[Status]map[Status]bool{
	StatusPending:     {StatusRegistered: true, StatusHold: true},
	StatusHold:        {StatusRegistered: true, StatusPending: true},
	StatusRegistered:  {StatusBnkVerified: true, StatusPending: true, StatusHold: true},
	StatusBnkVerified: {StatusRegistered: true},
	StatusRejected:    {},
}

// CanTransition reports whether the state machine permits moving from one
// status to another.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// ErrInvalidTransition is the sentinel matched by errors.Is for any rejected
// status transition.
var ErrInvalidTransition = errors.New("invalid status transition")

// InvalidTransitionError describes a transition the state machine rejects.
// It is returned before any write occurs.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}
