package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smallnest/medrouter/conversation"
	"github.com/smallnest/medrouter/store"
)

// DBPool defines the interface for database connection pool
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements store.ConversationStore using PostgreSQL.
// Checkpoints are append-only rows; version ordering per conversation is
// derived from the existing max version at save time, which relies on the
// documented precondition that turns for one conversation are serialized by
// the caller.
type PostgresStore struct {
	pool      DBPool
	tableName string
}

var _ store.ConversationStore = (*PostgresStore)(nil)

// PostgresOptions configuration for Postgres connection
type PostgresOptions struct {
	ConnString string
	TableName  string // Default "conversation_checkpoints"
}

// NewPostgresStore creates a new Postgres checkpoint store
func NewPostgresStore(ctx context.Context, opts PostgresOptions) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "conversation_checkpoints"
	}

	return &PostgresStore{
		pool:      pool,
		tableName: tableName,
	}, nil
}

// NewPostgresStoreWithPool creates a new Postgres checkpoint store with an
// existing pool. Useful for testing with mocks.
func NewPostgresStoreWithPool(pool DBPool, tableName string) *PostgresStore {
	if tableName == "" {
		tableName = "conversation_checkpoints"
	}
	return &PostgresStore{
		pool:      pool,
		tableName: tableName,
	}
}

// InitSchema creates the necessary table if it doesn't exist
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			state JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (conversation_id, version)
		);
		CREATE INDEX IF NOT EXISTS idx_%s_conversation_version ON %s (conversation_id, version DESC);
	`, s.tableName, s.tableName, s.tableName)

	_, err := s.pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Save appends a new checkpoint for the state's conversation.
func (s *PostgresStore) Save(ctx context.Context, state *conversation.State) (*store.Checkpoint, error) {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}

	var version int
	maxQuery := fmt.Sprintf(
		"SELECT COALESCE(MAX(version), 0) FROM %s WHERE conversation_id = $1",
		s.tableName,
	)
	if err := s.pool.QueryRow(ctx, maxQuery, state.ConversationID).Scan(&version); err != nil {
		return nil, fmt.Errorf("failed to determine next version: %w", err)
	}

	cp := &store.Checkpoint{
		ID:             store.NewCheckpointID(),
		ConversationID: state.ConversationID,
		Version:        version + 1,
	}

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (id, conversation_id, version, state, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, s.tableName)

	_, err = s.pool.Exec(ctx, insertQuery,
		cp.ID,
		cp.ConversationID,
		cp.Version,
		stateJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save checkpoint: %w", err)
	}

	cp.State = state
	return cp, nil
}

// Latest returns the most recent checkpoint for the conversation.
func (s *PostgresStore) Latest(ctx context.Context, conversationID string) (*store.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT id, conversation_id, version, state, created_at
		FROM %s
		WHERE conversation_id = $1
		ORDER BY version DESC
		LIMIT 1
	`, s.tableName)

	return s.scanOne(s.pool.QueryRow(ctx, query, conversationID))
}

// Load retrieves a checkpoint by id.
func (s *PostgresStore) Load(ctx context.Context, checkpointID string) (*store.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT id, conversation_id, version, state, created_at
		FROM %s
		WHERE id = $1
	`, s.tableName)

	return s.scanOne(s.pool.QueryRow(ctx, query, checkpointID))
}

// List returns all checkpoints for a conversation in version order.
func (s *PostgresStore) List(ctx context.Context, conversationID string) ([]*store.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT id, conversation_id, version, state, created_at
		FROM %s
		WHERE conversation_id = $1
		ORDER BY version ASC
	`, s.tableName)

	rows, err := s.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*store.Checkpoint
	for rows.Next() {
		var cp store.Checkpoint
		var stateJSON []byte

		err := rows.Scan(&cp.ID, &cp.ConversationID, &cp.Version, &stateJSON, &cp.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint row: %w", err)
		}

		if err := json.Unmarshal(stateJSON, &cp.State); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state: %w", err)
		}

		checkpoints = append(checkpoints, &cp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checkpoint rows: %w", err)
	}

	return checkpoints, nil
}

func (s *PostgresStore) scanOne(row pgx.Row) (*store.Checkpoint, error) {
	var cp store.Checkpoint
	var stateJSON []byte

	err := row.Scan(&cp.ID, &cp.ConversationID, &cp.Version, &stateJSON, &cp.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	if err := json.Unmarshal(stateJSON, &cp.State); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return &cp, nil
}
