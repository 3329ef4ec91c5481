package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smallnest/medrouter/conversation"
	"github.com/smallnest/medrouter/store"
)

// RedisStore implements store.ConversationStore using Redis. Each checkpoint
// is a JSON value; a per-conversation sorted set scored by version keeps the
// append order, and a per-conversation counter assigns versions atomically.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ store.ConversationStore = (*RedisStore)(nil)

// RedisOptions configuration for Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "medrouter:"
	TTL      time.Duration // Expiration for checkpoints, default 0 (no expiration)
}

// NewRedisStore creates a new Redis checkpoint store
func NewRedisStore(opts RedisOptions) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "medrouter:"
	}

	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    opts.TTL,
	}
}

func (s *RedisStore) checkpointKey(id string) string {
	return fmt.Sprintf("%scheckpoint:%s", s.prefix, id)
}

func (s *RedisStore) indexKey(conversationID string) string {
	return fmt.Sprintf("%sconversation:%s:checkpoints", s.prefix, conversationID)
}

func (s *RedisStore) seqKey(conversationID string) string {
	return fmt.Sprintf("%sconversation:%s:seq", s.prefix, conversationID)
}

// Save appends a new checkpoint for the state's conversation.
func (s *RedisStore) Save(ctx context.Context, state *conversation.State) (*store.Checkpoint, error) {
	version, err := s.client.Incr(ctx, s.seqKey(state.ConversationID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate checkpoint version: %w", err)
	}

	cp := &store.Checkpoint{
		ID:             store.NewCheckpointID(),
		ConversationID: state.ConversationID,
		Version:        int(version),
		State:          state,
		CreatedAt:      time.Now(),
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.checkpointKey(cp.ID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(state.ConversationID), redis.Z{
		Score:  float64(cp.Version),
		Member: cp.ID,
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, s.indexKey(state.ConversationID), s.ttl)
		pipe.Expire(ctx, s.seqKey(state.ConversationID), s.ttl)
	}

	if _, err = pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to save checkpoint to redis: %w", err)
	}

	return cp, nil
}

// Latest returns the most recent checkpoint for the conversation.
func (s *RedisStore) Latest(ctx context.Context, conversationID string) (*store.Checkpoint, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(conversationID), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint index: %w", err)
	}
	if len(ids) == 0 {
		return nil, store.ErrCheckpointNotFound
	}
	return s.Load(ctx, ids[0])
}

// Load retrieves a checkpoint by id.
func (s *RedisStore) Load(ctx context.Context, checkpointID string) (*store.Checkpoint, error) {
	data, err := s.client.Get(ctx, s.checkpointKey(checkpointID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("failed to load checkpoint from redis: %w", err)
	}

	var cp store.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}

	return &cp, nil
}

// List returns all checkpoints for a conversation in version order.
func (s *RedisStore) List(ctx context.Context, conversationID string) ([]*store.Checkpoint, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(conversationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints for conversation %s: %w", conversationID, err)
	}

	if len(ids) == 0 {
		return []*store.Checkpoint{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.checkpointKey(id)
	}

	// MGet returns nil for keys that expired; those entries are skipped.
	results, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch checkpoints: %w", err)
	}

	var checkpoints []*store.Checkpoint
	for _, result := range results {
		strData, ok := result.(string)
		if !ok {
			continue
		}

		var cp store.Checkpoint
		if err := json.Unmarshal([]byte(strData), &cp); err != nil {
			continue
		}
		checkpoints = append(checkpoints, &cp)
	}

	return checkpoints, nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
