package domain

import "time"

// ParticipantRole represents a user's role within a chat session.
type ParticipantRole string

const (
	RoleInitiator ParticipantRole = "INITIATOR"
	RoleHandler   ParticipantRole = "HANDLER"
	RoleObserver  ParticipantRole = "OBSERVER"
)

// KnownRoles is the closed set of valid participant roles.
var KnownRoles = []ParticipantRole{RoleInitiator, RoleHandler, RoleObserver}

// ChatSession is a chat conversation scoped to one issue. The composite key
// (project_id, issue_id, session_id) is immutable once created. The
// participant map holds each member's role; a user appears at most once and
// at most one participant holds RoleInitiator.
type ChatSession struct {
	ProjectID    string                     `json:"project_id"`
	IssueID      string                     `json:"issue_id"`
	SessionID    string                     `json:"session_id"`
	Participants map[string]ParticipantRole `json:"participants"`
	CreatedAt    time.Time                  `json:"created_at"`
	ModifiedAt   time.Time                  `json:"modified_at"`
}

// AddParticipantRequest is the body for adding a participant. Role defaults
// to OBSERVER when omitted (a user joining an existing session).
type AddParticipantRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Role   string `json:"role"`
}

// ChangeRoleRequest is the body for changing a participant's role.
type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// ParticipantsResponse maps user IDs to role names.
type ParticipantsResponse struct {
	Participants map[string]ParticipantRole `json:"participants"`
}
