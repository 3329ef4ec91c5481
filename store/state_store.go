package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallnest/medrouter/conversation"
)

// StateStore is the router-facing facade over a ConversationStore. Load never
// fails on a missing conversation: it returns a freshly initialized state
// instead, so a new conversation needs no explicit creation step.
type StateStore struct {
	backend ConversationStore
}

// NewStateStore wraps a checkpoint backend.
func NewStateStore(backend ConversationStore) *StateStore {
	return &StateStore{backend: backend}
}

// Load returns the state from the most recent checkpoint of the conversation,
// or a fresh empty state if none exists. Any backend failure other than a
// missing conversation is reported as ErrStorageUnavailable.
func (s *StateStore) Load(ctx context.Context, conversationID string) (*conversation.State, error) {
	cp, err := s.backend.Latest(ctx, conversationID)
	if err != nil {
		if errors.Is(err, ErrCheckpointNotFound) {
			return conversation.NewState(conversationID), nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	// Work on a copy so in-turn mutations never alias the stored snapshot.
	state, err := cp.State.Clone()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return state, nil
}

// Save appends a new checkpoint for the state and returns its id.
func (s *StateStore) Save(ctx context.Context, state *conversation.State) (string, error) {
	cp, err := s.backend.Save(ctx, state)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return cp.ID, nil
}
