package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/smallnest/medrouter/conversation"
	"github.com/smallnest/medrouter/store"
)

// SqliteStore implements store.ConversationStore using SQLite. Useful for
// single-process deployments and local development.
type SqliteStore struct {
	db        *sql.DB
	tableName string
}

var _ store.ConversationStore = (*SqliteStore)(nil)

// SqliteOptions configuration for SQLite connection
type SqliteOptions struct {
	Path      string
	TableName string // Default "conversation_checkpoints"
}

// NewSqliteStore creates a new SQLite checkpoint store
func NewSqliteStore(opts SqliteOptions) (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "conversation_checkpoints"
	}

	s := &SqliteStore{
		db:        db,
		tableName: tableName,
	}

	if err := s.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// InitSchema creates the necessary table if it doesn't exist
func (s *SqliteStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			state TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (conversation_id, version)
		);
		CREATE INDEX IF NOT EXISTS idx_%s_conversation_version ON %s (conversation_id, version DESC);
	`, s.tableName, s.tableName, s.tableName)

	_, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

// Save appends a new checkpoint for the state's conversation.
func (s *SqliteStore) Save(ctx context.Context, state *conversation.State) (*store.Checkpoint, error) {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}

	var version int
	maxQuery := fmt.Sprintf(
		"SELECT COALESCE(MAX(version), 0) FROM %s WHERE conversation_id = ?",
		s.tableName,
	)
	if err := s.db.QueryRowContext(ctx, maxQuery, state.ConversationID).Scan(&version); err != nil {
		return nil, fmt.Errorf("failed to determine next version: %w", err)
	}

	cp := &store.Checkpoint{
		ID:             store.NewCheckpointID(),
		ConversationID: state.ConversationID,
		Version:        version + 1,
		State:          state,
	}

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (id, conversation_id, version, state)
		VALUES (?, ?, ?, ?)
	`, s.tableName)

	_, err = s.db.ExecContext(ctx, insertQuery,
		cp.ID,
		cp.ConversationID,
		cp.Version,
		string(stateJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save checkpoint: %w", err)
	}

	return cp, nil
}

// Latest returns the most recent checkpoint for the conversation.
func (s *SqliteStore) Latest(ctx context.Context, conversationID string) (*store.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT id, conversation_id, version, state, created_at
		FROM %s
		WHERE conversation_id = ?
		ORDER BY version DESC
		LIMIT 1
	`, s.tableName)

	return s.scanOne(s.db.QueryRowContext(ctx, query, conversationID))
}

// Load retrieves a checkpoint by id.
func (s *SqliteStore) Load(ctx context.Context, checkpointID string) (*store.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT id, conversation_id, version, state, created_at
		FROM %s
		WHERE id = ?
	`, s.tableName)

	return s.scanOne(s.db.QueryRowContext(ctx, query, checkpointID))
}

// List returns all checkpoints for a conversation in version order.
func (s *SqliteStore) List(ctx context.Context, conversationID string) ([]*store.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT id, conversation_id, version, state, created_at
		FROM %s
		WHERE conversation_id = ?
		ORDER BY version ASC
	`, s.tableName)

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*store.Checkpoint
	for rows.Next() {
		var cp store.Checkpoint
		var stateJSON string

		err := rows.Scan(&cp.ID, &cp.ConversationID, &cp.Version, &stateJSON, &cp.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint row: %w", err)
		}

		if err := json.Unmarshal([]byte(stateJSON), &cp.State); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state: %w", err)
		}

		checkpoints = append(checkpoints, &cp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checkpoint rows: %w", err)
	}

	return checkpoints, nil
}

func (s *SqliteStore) scanOne(row *sql.Row) (*store.Checkpoint, error) {
	var cp store.Checkpoint
	var stateJSON string

	err := row.Scan(&cp.ID, &cp.ConversationID, &cp.Version, &stateJSON, &cp.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	if err := json.Unmarshal([]byte(stateJSON), &cp.State); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return &cp, nil
}
