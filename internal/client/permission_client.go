package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ErrForbidden is returned when the platform denies write access to an issue.
var ErrForbidden = errors.New("write access to issue denied")

// PermissionClient resolves an issue to its project and checks the caller's
// write permission via the platform's issue service. The core trusts its
// answer.
type PermissionClient struct {
	baseURL    string
	httpClient *http.Client
	cache      map[string]*cachedGrant
	cacheTTL   time.Duration
	mu         sync.RWMutex
}

type cachedGrant struct {
	projectID string
	expiresAt time.Time
}

type permissionResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		ProjectID string `json:"project_id"`
		Writable  bool   `json:"writable"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// NewPermissionClient creates a new issue-service permission client.
func NewPermissionClient(baseURL string, cacheTTL time.Duration) *PermissionClient {
	return &PermissionClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		cache:    make(map[string]*cachedGrant),
		cacheTTL: cacheTTL,
	}
}

// CheckWritePermissions returns the project ID owning issueID if userID may
// write to it, ErrForbidden otherwise.
func (c *PermissionClient) CheckWritePermissions(ctx context.Context, userID, issueID string) (string, error) {
	cacheKey := userID + ":" + issueID
	if projectID, ok := c.getFromCache(cacheKey); ok {
		return projectID, nil
	}

	url := fmt.Sprintf("%s/api/v1/issues/%s/permissions?user_id=%s", c.baseURL, issueID, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call issue service: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden, http.StatusNotFound:
		return "", ErrForbidden
	default:
		return "", fmt.Errorf("issue service returned status %d", resp.StatusCode)
	}

	var body permissionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode permission response: %w", err)
	}

	if body.Data == nil || !body.Data.Writable {
		return "", ErrForbidden
	}

	c.putInCache(cacheKey, body.Data.ProjectID)
	return body.Data.ProjectID, nil
}

func (c *PermissionClient) getFromCache(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	grant, ok := c.cache[key]
	if !ok || time.Now().After(grant.expiresAt) {
		return "", false
	}
	return grant.projectID, true
}

func (c *PermissionClient) putInCache(key, projectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[key] = &cachedGrant{
		projectID: projectID,
		expiresAt: time.Now().Add(c.cacheTTL),
	}
}
