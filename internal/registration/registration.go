package registration

import (
	"fmt"
	"strings"
)

// Gender of a participant.
type Gender string

const (
	Male   Gender = "Male"
	Female Gender = "Female"
)

// Accommodation is the per-participant lodging choice.
type Accommodation string

const (
	Dorm Accommodation = "Dorm"
	Room Accommodation = "Room"
)

const (
	// MinParticipants and MaxParticipants bound the size of a draft.
	MinParticipants = 1
	MaxParticipants = 20
)

// Participant is one person on a registration draft. The same shape is
// snapshotted into the durable transaction record on submission.
type Participant struct {
	Name          string        `json:"name" firestore:"name"`
	Gender        Gender        `json:"gender" firestore:"gender"`
	Age           int           `json:"age" firestore:"age"`
	Mobile        string        `json:"mobile" firestore:"mobile"`
	Accommodation Accommodation `json:"accommodation" firestore:"accommodation"`
}

func defaultParticipant() Participant {
	return Participant{Gender: Male, Accommodation: Dorm}
}

// FeeSchedule is the per-program fee table consulted when totalling a draft.
type FeeSchedule struct {
	ProgramFee float64 `json:"programFee"`
	DormFee    float64 `json:"dormFee"`
	RoomFee    float64 `json:"roomFee"`
}

// Draft is an ephemeral, client-owned registration session. It lives only in
// memory (and the last-used cache) until submission, then is discarded.
type Draft struct {
	Participants []Participant `json:"participants"`
	Place        string        `json:"place"`
	PrimaryIndex int           `json:"primaryIndex"`
}

// NewDraft creates a draft with a single default participant.
func NewDraft() *Draft {
	return &Draft{Participants: []Participant{defaultParticipant()}}
}

// SetParticipantCount resizes the participant list, padding with default
// records or truncating. Counts are clamped to the allowed range. The
// primary index is pulled back in range if truncation orphans it.
func (d *Draft) SetParticipantCount(n int) {
	if n < MinParticipants {
		n = MinParticipants
	}
	if n > MaxParticipants {
		n = MaxParticipants
	}

	for len(d.Participants) < n {
		d.Participants = append(d.Participants, defaultParticipant())
	}
	if len(d.Participants) > n {
		d.Participants = d.Participants[:n]
	}
	if d.PrimaryIndex >= n {
		d.PrimaryIndex = 0
	}
}

// UpdateParticipant replaces the participant at index i.
func (d *Draft) UpdateParticipant(i int, p Participant) error {
	if i < 0 || i >= len(d.Participants) {
		return fmt.Errorf("participant index %d out of range", i)
	}
	d.Participants[i] = p
	return nil
}

// Primary returns the contact participant.
func (d *Draft) Primary() Participant {
	if d.PrimaryIndex < 0 || d.PrimaryIndex >= len(d.Participants) {
		return Participant{}
	}
	return d.Participants[d.PrimaryIndex]
}

// ComputeTotal sums, per participant, the program fee plus the fee for the
// chosen accommodation.
func (d *Draft) ComputeTotal(fees FeeSchedule) float64 {
	var total float64
	for _, p := range d.Participants {
		total += fees.ProgramFee
		switch p.Accommodation {
		case Room:
			total += fees.RoomFee
		default:
			total += fees.DormFee
		}
	}
	return total
}

// ValidationError reports the first submission requirement a draft fails.
// It is fully recoverable: the caller corrects the field and resubmits.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid registration: %s: %s", e.Field, e.Reason)
}

// Validate checks the draft against the submission requirements: a place of
// origin, complete details for every participant, and a reachable primary
// applicant.
func (d *Draft) Validate() error {
	if strings.TrimSpace(d.Place) == "" {
		return &ValidationError{Field: "place", Reason: "place is required"}
	}
	if len(d.Participants) == 0 {
		return &ValidationError{Field: "participants", Reason: "at least one participant is required"}
	}

	for i, p := range d.Participants {
		field := fmt.Sprintf("participants[%d]", i)
		if strings.TrimSpace(p.Name) == "" {
			return &ValidationError{Field: field + ".name", Reason: "name is required"}
		}
		if p.Age <= 0 {
			return &ValidationError{Field: field + ".age", Reason: "age is required"}
		}
		if strings.TrimSpace(p.Mobile) == "" {
			return &ValidationError{Field: field + ".mobile", Reason: "mobile is required"}
		}
	}

	if strings.TrimSpace(d.Primary().Mobile) == "" {
		return &ValidationError{Field: "primaryIndex", Reason: "primary applicant must have a mobile number"}
	}
	return nil
}
