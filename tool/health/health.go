// Package health provides the health-metric domain tools: recording and
// querying blood pressure readings, backed by PostgreSQL.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smallnest/medrouter/tool"
)

// Physiological acceptance ranges for a blood pressure reading, in mmHg.
const (
	MinSystolic  = 50
	MaxSystolic  = 300
	MinDiastolic = 30
	MaxDiastolic = 200
)

const defaultQueryLimit = 10

// DBPool defines the interface for database connection pool
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Reading is one stored blood pressure measurement.
type Reading struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Systolic   int       `json:"systolic"`
	Diastolic  int       `json:"diastolic"`
	Pulse      int       `json:"pulse,omitempty"`
	MeasuredAt time.Time `json:"measured_at"`
}

// Category flags a reading worth following up on: high above 140/90, low
// below 90/60, normal otherwise. A typical 120/80 reading is normal.
func (r Reading) Category() string {
	switch {
	case r.Systolic > 140 || r.Diastolic > 90:
		return "high"
	case r.Systolic < 90 || r.Diastolic < 60:
		return "low"
	default:
		return "normal"
	}
}

// Service stores and retrieves blood pressure readings.
type Service struct {
	pool      DBPool
	tableName string
}

// ServiceOptions configuration for the health metric service
type ServiceOptions struct {
	ConnString string
	TableName  string // Default "blood_pressure_readings"
}

// NewService connects to PostgreSQL and prepares the readings table.
func NewService(ctx context.Context, opts ServiceOptions) (*Service, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "blood_pressure_readings"
	}

	s := &Service{pool: pool, tableName: tableName}
	if err := s.createTableIfNotExists(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewServiceWithPool creates a service over an existing pool. The table must
// already exist.
func NewServiceWithPool(pool DBPool, tableName string) *Service {
	if tableName == "" {
		tableName = "blood_pressure_readings"
	}
	return &Service{pool: pool, tableName: tableName}
}

func (s *Service) createTableIfNotExists(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			systolic INTEGER NOT NULL,
			diastolic INTEGER NOT NULL,
			pulse INTEGER NOT NULL DEFAULT 0,
			measured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_%s_user_time
		ON %s(user_id, measured_at DESC);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create readings table: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func (s *Service) Close() {
	s.pool.Close()
}

// ValidateReading checks a reading against the physiological acceptance
// ranges before anything is stored.
func ValidateReading(systolic, diastolic int) *tool.Error {
	if systolic < MinSystolic || systolic > MaxSystolic {
		return tool.ValidationError("systolic %d is out of range [%d, %d]", systolic, MinSystolic, MaxSystolic)
	}
	if diastolic < MinDiastolic || diastolic > MaxDiastolic {
		return tool.ValidationError("diastolic %d is out of range [%d, %d]", diastolic, MinDiastolic, MaxDiastolic)
	}
	if systolic <= diastolic {
		return tool.ValidationError("systolic %d must be greater than diastolic %d", systolic, diastolic)
	}
	return nil
}

// Record validates and stores a reading for a user.
func (s *Service) Record(ctx context.Context, userID string, systolic, diastolic, pulse int) (*Reading, error) {
	if userID == "" {
		return nil, tool.ValidationError("user id is required")
	}
	if err := ValidateReading(systolic, diastolic); err != nil {
		return nil, err
	}

	reading := &Reading{
		ID:         "bp_" + uuid.New().String(),
		UserID:     userID,
		Systolic:   systolic,
		Diastolic:  diastolic,
		Pulse:      pulse,
		MeasuredAt: time.Now().UTC(),
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, systolic, diastolic, pulse, measured_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.tableName)

	_, err := s.pool.Exec(ctx, query,
		reading.ID, reading.UserID, reading.Systolic, reading.Diastolic, reading.Pulse, reading.MeasuredAt)
	if err != nil {
		return nil, tool.UpstreamError("failed to store reading: %v", err)
	}

	return reading, nil
}

// Recent returns the most recent readings for a user, newest first.
func (s *Service) Recent(ctx context.Context, userID string, limit int) ([]Reading, error) {
	if userID == "" {
		return nil, tool.ValidationError("user id is required")
	}
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, systolic, diastolic, pulse, measured_at
		FROM %s
		WHERE user_id = $1
		ORDER BY measured_at DESC
		LIMIT $2
	`, s.tableName)

	rows, err := s.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, tool.UpstreamError("failed to query readings: %v", err)
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		var r Reading
		if err := rows.Scan(&r.ID, &r.UserID, &r.Systolic, &r.Diastolic, &r.Pulse, &r.MeasuredAt); err != nil {
			return nil, tool.UpstreamError("failed to scan reading: %v", err)
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, tool.UpstreamError("failed to read rows: %v", err)
	}

	return readings, nil
}

type recordArgs struct {
	Systolic  int `json:"systolic"`
	Diastolic int `json:"diastolic"`
	Pulse     int `json:"pulse"`
}

type queryArgs struct {
	Limit int `json:"limit"`
}

// Tools returns the health-metric tools scoped to one user. The user id is
// bound server-side so the model cannot read another user's data.
func (s *Service) Tools(userID string) []tool.Tool {
	return []tool.Tool{
		{
			Name: "record_blood_pressure",
			Description: "Record a blood pressure reading for the current user. " +
				"systolic and diastolic are in mmHg, pulse is optional beats per minute.",
			Schema: tool.ObjectSchema(map[string]any{
				"systolic":  map[string]any{"type": "integer", "description": "Systolic pressure in mmHg"},
				"diastolic": map[string]any{"type": "integer", "description": "Diastolic pressure in mmHg"},
				"pulse":     map[string]any{"type": "integer", "description": "Pulse in beats per minute, optional"},
			}, "systolic", "diastolic"),
			Call: func(ctx context.Context, arguments string) (string, error) {
				var args recordArgs
				if err := json.Unmarshal([]byte(arguments), &args); err != nil {
					return "", tool.ValidationError("invalid arguments: %v", err)
				}
				reading, err := s.Record(ctx, userID, args.Systolic, args.Diastolic, args.Pulse)
				if err != nil {
					return "", err
				}
				return marshalJSON(map[string]any{
					"status":   "recorded",
					"reading":  reading,
					"category": reading.Category(),
				})
			},
		},
		{
			Name: "query_blood_pressure",
			Description: "Return the current user's most recent blood pressure readings, " +
				"newest first. limit defaults to 10.",
			Schema: tool.ObjectSchema(map[string]any{
				"limit": map[string]any{"type": "integer", "description": "Maximum number of readings to return"},
			}),
			Call: func(ctx context.Context, arguments string) (string, error) {
				var args queryArgs
				if arguments != "" {
					if err := json.Unmarshal([]byte(arguments), &args); err != nil {
						return "", tool.ValidationError("invalid arguments: %v", err)
					}
				}
				readings, err := s.Recent(ctx, userID, args.Limit)
				if err != nil {
					return "", err
				}
				if len(readings) == 0 {
					return marshalJSON(map[string]any{"readings": []Reading{}, "note": "no readings recorded yet"})
				}
				return marshalJSON(map[string]any{"readings": readings})
			},
		},
	}
}

func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", errors.New("failed to encode tool result")
	}
	return string(data), nil
}
