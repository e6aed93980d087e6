package transaction

import (
	"time"

	"github.com/dvloznov/registration-tracker/internal/evidence"
	"github.com/dvloznov/registration-tracker/internal/registration"
)

// Transaction is the durable record pairing a registration claim with its
// payment evidence and adjudication status. Field names mirror the stored
// document so legacy records load without translation.
type Transaction struct {
	ID        string    `json:"id" firestore:"id"`
	ItemName  string    `json:"itemName" firestore:"itemName"`
	Amount    float64   `json:"amount" firestore:"amount"`
	Status    string    `json:"status" firestore:"status"`
	Timestamp time.Time `json:"timestamp" firestore:"timestamp"`

	HasImage     bool     `json:"hasImage" firestore:"hasImage"`
	OCRText      string   `json:"ocrText,omitempty" firestore:"ocrText"`
	ParsedAmount *float64 `json:"parsedAmount,omitempty" firestore:"parsedAmount"`

	ParticipantCount int                        `json:"participantCount" firestore:"participantCount"`
	Participants     []registration.Participant `json:"participants" firestore:"participants"`
	PrimaryApplicant registration.Participant   `json:"primaryApplicant" firestore:"primaryApplicant"`
	Place            string                     `json:"place" firestore:"place"`

	// Denormalized program reference; absent on legacy records, which is
	// why review resolution falls back to date/city and name matching.
	ProgramID   string `json:"programId,omitempty" firestore:"programId"`
	ProgramDate string `json:"programDate,omitempty" firestore:"programDate"`
	ProgramCity string `json:"programCity,omitempty" firestore:"programCity"`

	DeviceID string `json:"deviceId" firestore:"deviceId"`
	Comments string `json:"comments,omitempty" firestore:"comments"`
}

// CurrentStatus returns the normalized status of the record.
func (t *Transaction) CurrentStatus() Status {
	return ParseStatus(t.Status)
}

// SubmitRequest carries everything needed to create a transaction: the
// validated draft, the quoted total, the evidence extraction, the optional
// program reference and the raw evidence image.
type SubmitRequest struct {
	ItemName    string
	Amount      float64
	Draft       *registration.Draft
	Extraction  evidence.Extraction
	ProgramID   string
	ProgramDate string
	ProgramCity string
	DeviceToken string
	Image       []byte
}
