package auth

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Role identifies what a session is allowed to do.
type Role string

const (
	// RoleParticipant can submit registrations and read its own transactions.
	RoleParticipant Role = "participant"
	// RoleAdmin can review, transition and delete any transaction.
	RoleAdmin Role = "admin"
)

// ErrPermissionDenied is returned when a session lacks the required role.
var ErrPermissionDenied = errors.New("permission denied")

// Session is the explicit per-request identity passed into store and review
// operations. It is constructed once at the API boundary and never read from
// ambient global state.
type Session struct {
	// Subject is the opaque caller identity: a device token for
	// participants, an operator name for administrators.
	Subject string
	Role    Role
}

// Participant builds a participant session scoped to a device token.
func Participant(deviceToken string) Session {
	return Session{Subject: deviceToken, Role: RoleParticipant}
}

// Admin builds an administrator session.
func Admin(operator string) Session {
	return Session{Subject: operator, Role: RoleAdmin}
}

// RequireAdmin returns ErrPermissionDenied unless the session is an admin.
func (s Session) RequireAdmin() error {
	if s.Role != RoleAdmin {
		return fmt.Errorf("role %q: %w", s.Role, ErrPermissionDenied)
	}
	return nil
}

// NewDeviceToken issues an opaque client identity token. It is explicitly
// generated and handed to the client rather than read from local storage, so
// its scope and lifetime are visible in the API surface. It is not a
// security credential.
func NewDeviceToken() string {
	return "dev_" + uuid.NewString()
}
