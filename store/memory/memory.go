package memory

import (
	"context"
	"sync"
	"time"

	"github.com/smallnest/medrouter/conversation"
	"github.com/smallnest/medrouter/store"
)

// MemoryStore is an in-memory ConversationStore for tests and examples.
type MemoryStore struct {
	mu             sync.RWMutex
	byConversation map[string][]*store.Checkpoint
	byID           map[string]*store.Checkpoint
}

var _ store.ConversationStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byConversation: make(map[string][]*store.Checkpoint),
		byID:           make(map[string]*store.Checkpoint),
	}
}

// Save appends a checkpoint holding a deep copy of state, so later mutations
// of the caller's state never reach the stored snapshot.
func (m *MemoryStore) Save(ctx context.Context, state *conversation.State) (*store.Checkpoint, error) {
	snapshot, err := state.Clone()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.byConversation[state.ConversationID]
	cp := &store.Checkpoint{
		ID:             store.NewCheckpointID(),
		ConversationID: state.ConversationID,
		Version:        len(existing) + 1,
		State:          snapshot,
		CreatedAt:      time.Now(),
	}

	m.byConversation[state.ConversationID] = append(existing, cp)
	m.byID[cp.ID] = cp
	return cp, nil
}

// Latest returns the most recent checkpoint for the conversation.
func (m *MemoryStore) Latest(ctx context.Context, conversationID string) (*store.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cps := m.byConversation[conversationID]
	if len(cps) == 0 {
		return nil, store.ErrCheckpointNotFound
	}
	return cps[len(cps)-1], nil
}

// Load retrieves a checkpoint by id.
func (m *MemoryStore) Load(ctx context.Context, checkpointID string) (*store.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp, ok := m.byID[checkpointID]
	if !ok {
		return nil, store.ErrCheckpointNotFound
	}
	return cp, nil
}

// List returns all checkpoints for a conversation in version order.
func (m *MemoryStore) List(ctx context.Context, conversationID string) ([]*store.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cps := m.byConversation[conversationID]
	out := make([]*store.Checkpoint, len(cps))
	copy(out, cps)
	return out, nil
}
