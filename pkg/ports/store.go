package ports

import (
	"context"

	"github.com/pichlex/debitor/pkg/domain"
)

// CheckpointStore persists conversation state between turns.
// Implementations must make Save atomic per conversation id: a reader sees
// either the previous snapshot or the new one, never a partial write.
type CheckpointStore interface {
	// Save persists the state for a given conversation id.
	Save(ctx context.Context, conversationID string, state *domain.ConversationState) error

	// Load retrieves the state for a given conversation id.
	// Returns domain.ErrSessionNotFound if the conversation does not exist.
	Load(ctx context.Context, conversationID string) (*domain.ConversationState, error)

	// Delete removes the state for a given conversation id.
	Delete(ctx context.Context, conversationID string) error

	// List returns the ids of all stored conversations.
	List(ctx context.Context) ([]string, error)
}
