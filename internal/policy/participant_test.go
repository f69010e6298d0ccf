package policy

import (
	"testing"

	"github.com/remsfal/remsfal-backend-sub003/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestIsValidRole(t *testing.T) {
	assert.True(t, IsValidRole(domain.RoleInitiator))
	assert.True(t, IsValidRole(domain.RoleHandler))
	assert.True(t, IsValidRole(domain.RoleObserver))

	assert.False(t, IsValidRole(""))
	assert.False(t, IsValidRole("ADMIN"))
	assert.False(t, IsValidRole("initiator")) // role names are case-sensitive
}

func TestEnsureValidRole(t *testing.T) {
	assert.NoError(t, EnsureValidRole(domain.RoleHandler))
	assert.ErrorIs(t, EnsureValidRole("MODERATOR"), ErrInvalidRole)
}

func TestEnsureNotAlreadyMember(t *testing.T) {
	participants := map[string]domain.ParticipantRole{
		"u1": domain.RoleInitiator,
	}

	assert.NoError(t, EnsureNotAlreadyMember(participants, "u2"))
	assert.ErrorIs(t, EnsureNotAlreadyMember(participants, "u1"), ErrAlreadyParticipant)
}

func TestEnsureNoDuplicateInitiator(t *testing.T) {
	participants := map[string]domain.ParticipantRole{
		"u1": domain.RoleInitiator,
		"u2": domain.RoleObserver,
	}

	assert.ErrorIs(t, EnsureNoDuplicateInitiator(participants, "u3"), ErrDuplicateInitiator)

	// The existing initiator may re-assert their own role.
	assert.NoError(t, EnsureNoDuplicateInitiator(participants, "u1"))

	noInitiator := map[string]domain.ParticipantRole{
		"u2": domain.RoleHandler,
	}
	assert.NoError(t, EnsureNoDuplicateInitiator(noInitiator, "u3"))
}
