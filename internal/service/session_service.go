package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/remsfal/remsfal-backend-sub003/internal/cache"
	"github.com/remsfal/remsfal-backend-sub003/internal/domain"
	"github.com/remsfal/remsfal-backend-sub003/internal/policy"
	"github.com/remsfal/remsfal-backend-sub003/internal/repository"
	"github.com/remsfal/remsfal-backend-sub003/pkg/log"
	"golang.org/x/sync/singleflight"
)

var (
	ErrSessionNotFound     = errors.New("chat session not found")
	ErrParticipantNotFound = errors.New("participant not found")

	// ErrConcurrentUpdate is returned when a participant mutation keeps
	// losing the compare-and-swap against other writers.
	ErrConcurrentUpdate = errors.New("participant update conflicted repeatedly, try again")
)

// casRetries bounds the read-validate-swap loop. Conflicts only occur when
// several callers mutate the same session at once, so a handful of retries
// is plenty.
const casRetries = 5

type sessionServiceImpl struct {
	repo     repository.SessionRepository
	messages repository.MessageRepository
	cache    cache.ParticipantCache
	cacheTTL time.Duration
	sf       singleflight.Group
}

// NewSessionService creates a new session service. cache may be nil to
// disable participant-map caching.
func NewSessionService(
	repo repository.SessionRepository,
	messages repository.MessageRepository,
	participantCache cache.ParticipantCache,
	cacheTTL time.Duration,
) SessionService {
	return &sessionServiceImpl{
		repo:     repo,
		messages: messages,
		cache:    participantCache,
		cacheTTL: cacheTTL,
	}
}

// CreateSession allocates a new session with the creator as sole INITIATOR.
func (s *sessionServiceImpl) CreateSession(ctx context.Context, projectID, issueID, creatorID string) (*domain.ChatSession, error) {
	now := time.Now().UTC()
	session := &domain.ChatSession{
		ProjectID: projectID,
		IssueID:   issueID,
		SessionID: uuid.New().String(),
		Participants: map[string]domain.ParticipantRole{
			creatorID: domain.RoleInitiator,
		},
		CreatedAt:  now,
		ModifiedAt: now,
	}

	if err := s.repo.Insert(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

func (s *sessionServiceImpl) GetSession(ctx context.Context, projectID, issueID, sessionID string) (*domain.ChatSession, error) {
	session, _, err := s.repo.Get(ctx, projectID, issueID, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

// DeleteSession removes a session and its message log. Deleting an absent
// session succeeds, which keeps client retries simple.
func (s *sessionServiceImpl) DeleteSession(ctx context.Context, projectID, issueID, sessionID string) error {
	if err := s.repo.Delete(ctx, projectID, issueID, sessionID); err != nil {
		return err
	}
	if err := s.messages.DeleteBySession(ctx, sessionID); err != nil {
		return err
	}
	s.invalidateCache(ctx, projectID, issueID, sessionID)
	return nil
}

func (s *sessionServiceImpl) GetParticipants(ctx context.Context, projectID, issueID, sessionID string) (map[string]domain.ParticipantRole, error) {
	if s.cache == nil {
		session, err := s.GetSession(ctx, projectID, issueID, sessionID)
		if err != nil {
			return nil, err
		}
		return session.Participants, nil
	}

	cacheKey := projectID + ":" + issueID + ":" + sessionID

	// Coalesce concurrent cache-miss reads for the same session.
	result, err, _ := s.sf.Do(cacheKey, func() (interface{}, error) {
		cached, err := s.cache.Get(ctx, projectID, issueID, sessionID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Msg("participant cache get error")
		}

		session, err := s.GetSession(ctx, projectID, issueID, sessionID)
		if err != nil {
			return nil, err
		}

		// Fill the cache off the request path.
		participants := session.Participants
		go func() {
			cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := s.cache.Set(cacheCtx, projectID, issueID, sessionID, participants, s.cacheTTL); err != nil {
				logger := log.L()
				logger.Warn().Err(err).Msg("participant cache set error")
			}
		}()

		return participants, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(map[string]domain.ParticipantRole), nil
}

func (s *sessionServiceImpl) AddParticipant(ctx context.Context, projectID, issueID, sessionID, userID string, role domain.ParticipantRole) error {
	if err := policy.EnsureValidRole(role); err != nil {
		return err
	}

	return s.mutateParticipants(ctx, projectID, issueID, sessionID, func(participants map[string]domain.ParticipantRole) error {
		if err := policy.EnsureNotAlreadyMember(participants, userID); err != nil {
			return err
		}
		if role == domain.RoleInitiator {
			if err := policy.EnsureNoDuplicateInitiator(participants, userID); err != nil {
				return err
			}
		}
		participants[userID] = role
		return nil
	})
}

func (s *sessionServiceImpl) ChangeParticipantRole(ctx context.Context, projectID, issueID, sessionID, userID string, newRole domain.ParticipantRole) error {
	if err := policy.EnsureValidRole(newRole); err != nil {
		return err
	}

	return s.mutateParticipants(ctx, projectID, issueID, sessionID, func(participants map[string]domain.ParticipantRole) error {
		if _, ok := participants[userID]; !ok {
			return ErrParticipantNotFound
		}
		if newRole == domain.RoleInitiator {
			if err := policy.EnsureNoDuplicateInitiator(participants, userID); err != nil {
				return err
			}
		}
		participants[userID] = newRole
		return nil
	})
}

func (s *sessionServiceImpl) RemoveParticipant(ctx context.Context, projectID, issueID, sessionID, userID string) error {
	return s.mutateParticipants(ctx, projectID, issueID, sessionID, func(participants map[string]domain.ParticipantRole) error {
		if _, ok := participants[userID]; !ok {
			return ErrParticipantNotFound
		}
		delete(participants, userID)
		return nil
	})
}

// mutateParticipants runs the read-validate-swap protocol: read the current
// map and its version, apply the mutation to a copy, and write the copy back
// with a compare-and-swap on the version. A conflict means another writer
// got in between; re-read and retry. This is what turns two concurrent
// joins into two surviving participants instead of a lost update.
func (s *sessionServiceImpl) mutateParticipants(
	ctx context.Context,
	projectID, issueID, sessionID string,
	mutate func(map[string]domain.ParticipantRole) error,
) error {
	for attempt := 0; attempt < casRetries; attempt++ {
		session, version, err := s.repo.Get(ctx, projectID, issueID, sessionID)
		if err != nil {
			if errors.Is(err, repository.ErrSessionNotFound) {
				return ErrSessionNotFound
			}
			return err
		}

		participants := make(map[string]domain.ParticipantRole, len(session.Participants)+1)
		for id, role := range session.Participants {
			participants[id] = role
		}

		if err := mutate(participants); err != nil {
			return err
		}

		err = s.repo.CompareAndSwapParticipants(ctx, projectID, issueID, sessionID, participants, time.Now().UTC(), version)
		if err == nil {
			s.invalidateCache(ctx, projectID, issueID, sessionID)
			return nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}

		logger := log.Ctx(ctx)
		logger.Debug().
			Int("attempt", attempt+1).
			Str(log.FieldSessionID, sessionID).
			Msg("participant swap conflicted, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 10 * time.Millisecond):
		}
	}

	return fmt.Errorf("%w: session %s", ErrConcurrentUpdate, sessionID)
}

func (s *sessionServiceImpl) invalidateCache(ctx context.Context, projectID, issueID, sessionID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, projectID, issueID, sessionID); err != nil {
		logger := log.Ctx(ctx)
		logger.Warn().Err(err).Msg("participant cache invalidate error")
	}
}
