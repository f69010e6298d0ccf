// Package policy holds the participant-role rules shared by the session
// store's write path and the HTTP boundary. It is stateless; every check
// works on the caller's view of the participant map.
package policy

import (
	"errors"

	"github.com/remsfal/remsfal-backend-sub003/internal/domain"
)

var (
	ErrInvalidRole        = errors.New("invalid participant role")
	ErrAlreadyParticipant = errors.New("user is already a participant")
	ErrDuplicateInitiator = errors.New("session already has an initiator")
)

// IsValidRole reports whether name is one of the known roles.
func IsValidRole(role domain.ParticipantRole) bool {
	switch role {
	case domain.RoleInitiator, domain.RoleHandler, domain.RoleObserver:
		return true
	}
	return false
}

// EnsureValidRole fails with ErrInvalidRole for unknown role names.
func EnsureValidRole(role domain.ParticipantRole) error {
	if !IsValidRole(role) {
		return ErrInvalidRole
	}
	return nil
}

// EnsureNotAlreadyMember fails with ErrAlreadyParticipant if userID is
// already present in the participant map.
func EnsureNotAlreadyMember(participants map[string]domain.ParticipantRole, userID string) error {
	if _, ok := participants[userID]; ok {
		return ErrAlreadyParticipant
	}
	return nil
}

// EnsureNoDuplicateInitiator fails with ErrDuplicateInitiator if any
// participant other than userID already holds the INITIATOR role. Passing
// the candidate's own ID allows an initiator to keep their role on a
// role-change that re-assigns INITIATOR to them.
func EnsureNoDuplicateInitiator(participants map[string]domain.ParticipantRole, userID string) error {
	for id, role := range participants {
		if id != userID && role == domain.RoleInitiator {
			return ErrDuplicateInitiator
		}
	}
	return nil
}
