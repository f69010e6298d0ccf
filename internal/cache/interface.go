package cache

import (
	"context"
	"errors"
	"time"

	"github.com/remsfal/remsfal-backend-sub003/internal/domain"
)

// ErrCacheMiss is returned by Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// ParticipantCache caches a session's participant map. Every participant
// mutation invalidates the entry; stale reads are bounded by the TTL.
type ParticipantCache interface {
	Get(ctx context.Context, projectID, issueID, sessionID string) (map[string]domain.ParticipantRole, error)
	Set(ctx context.Context, projectID, issueID, sessionID string, participants map[string]domain.ParticipantRole, ttl time.Duration) error
	Invalidate(ctx context.Context, projectID, issueID, sessionID string) error
}
