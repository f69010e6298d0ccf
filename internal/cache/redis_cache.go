package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/remsfal/remsfal-backend-sub003/internal/config"
	"github.com/remsfal/remsfal-backend-sub003/internal/domain"
)

// RedisParticipantCache implements ParticipantCache on Redis.
type RedisParticipantCache struct {
	client *redis.Client
	prefix string
}

// NewRedisParticipantCache creates a Redis-backed participant cache and
// verifies connectivity.
func NewRedisParticipantCache(cfg config.RedisConfig, prefix string) (*RedisParticipantCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisParticipantCache{client: client, prefix: prefix}, nil
}

func (c *RedisParticipantCache) key(projectID, issueID, sessionID string) string {
	return fmt.Sprintf("%s:participants:%s:%s:%s", c.prefix, projectID, issueID, sessionID)
}

func (c *RedisParticipantCache) Get(ctx context.Context, projectID, issueID, sessionID string) (map[string]domain.ParticipantRole, error) {
	data, err := c.client.Get(ctx, c.key(projectID, issueID, sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}

	var participants map[string]domain.ParticipantRole
	if err := json.Unmarshal(data, &participants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached participants: %w", err)
	}

	return participants, nil
}

func (c *RedisParticipantCache) Set(ctx context.Context, projectID, issueID, sessionID string, participants map[string]domain.ParticipantRole, ttl time.Duration) error {
	data, err := json.Marshal(participants)
	if err != nil {
		return fmt.Errorf("failed to marshal participants: %w", err)
	}

	if err := c.client.Set(ctx, c.key(projectID, issueID, sessionID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	return nil
}

func (c *RedisParticipantCache) Invalidate(ctx context.Context, projectID, issueID, sessionID string) error {
	if err := c.client.Del(ctx, c.key(projectID, issueID, sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (c *RedisParticipantCache) Close() error {
	return c.client.Close()
}
