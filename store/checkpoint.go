package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smallnest/medrouter/conversation"
)

var (
	// ErrCheckpointNotFound is returned when no checkpoint exists for the
	// requested id or conversation.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrStorageUnavailable is returned when the backing store cannot be
	// reached. It is fatal for the current turn.
	ErrStorageUnavailable = errors.New("checkpoint store unavailable")
)

// Checkpoint is a persisted, immutable snapshot of a conversation's state.
// New checkpoints are appended, never overwritten; Version is strictly
// increasing within a conversation.
type Checkpoint struct {
	ID             string              `json:"id"`
	ConversationID string              `json:"conversation_id"`
	Version        int                 `json:"version"`
	State          *conversation.State `json:"state"`
	CreatedAt      time.Time           `json:"created_at"`
}

// ConversationStore defines checkpoint persistence. Implementations must be
// append-only per conversation: Save never mutates or deletes a prior
// checkpoint, and assigns each new checkpoint a version strictly greater than
// any existing one for the same conversation.
//
// Callers are expected to serialize Save calls per conversation (one
// in-flight turn at a time); the store does not coordinate concurrent writers
// of the same conversation.
type ConversationStore interface {
	// Save appends a new checkpoint for state.ConversationID and returns the
	// stored checkpoint.
	Save(ctx context.Context, state *conversation.State) (*Checkpoint, error)

	// Latest returns the most recent checkpoint for the conversation.
	// Returns ErrCheckpointNotFound if the conversation has never been saved.
	Latest(ctx context.Context, conversationID string) (*Checkpoint, error)

	// Load retrieves a checkpoint by id.
	Load(ctx context.Context, checkpointID string) (*Checkpoint, error)

	// List returns all checkpoints for a conversation in version order.
	List(ctx context.Context, conversationID string) ([]*Checkpoint, error)
}

// NewCheckpointID generates a unique checkpoint identifier.
func NewCheckpointID() string {
	return fmt.Sprintf("ckpt_%s", uuid.New().String())
}
