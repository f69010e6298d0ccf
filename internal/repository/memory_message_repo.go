package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/remsfal/remsfal-backend-sub003/internal/domain"
)

// MemoryMessageRepository is an in-memory MessageRepository for development
// and tests.
type MemoryMessageRepository struct {
	mu       sync.Mutex
	messages map[string]map[string]domain.ChatMessage // sessionID → messageID → message
}

// NewMemoryMessageRepository creates an empty MemoryMessageRepository.
func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{
		messages: make(map[string]map[string]domain.ChatMessage),
	}
}

func (r *MemoryMessageRepository) Insert(ctx context.Context, msg *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byID, ok := r.messages[msg.SessionID]
	if !ok {
		byID = make(map[string]domain.ChatMessage)
		r.messages[msg.SessionID] = byID
	}
	byID[msg.MessageID] = *msg
	return nil
}

func (r *MemoryMessageRepository) Get(ctx context.Context, sessionID, messageID string) (*domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.messages[sessionID][messageID]
	if !ok {
		return nil, ErrMessageNotFound
	}
	return &msg, nil
}

func (r *MemoryMessageRepository) UpdateContent(ctx context.Context, sessionID, messageID, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Unconditional overwrite, matching the column-store behaviour. An
	// update of an absent row creates nothing and reports nothing.
	msg, ok := r.messages[sessionID][messageID]
	if !ok {
		return nil
	}
	msg.Content = content
	r.messages[sessionID][messageID] = msg
	return nil
}

func (r *MemoryMessageRepository) Delete(ctx context.Context, sessionID, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.messages[sessionID], messageID)
	return nil
}

func (r *MemoryMessageRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.messages, sessionID)
	return nil
}

func (r *MemoryMessageRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var messages []domain.ChatMessage
	for _, msg := range r.messages[sessionID] {
		messages = append(messages, msg)
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	return messages, nil
}
