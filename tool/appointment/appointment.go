// Package appointment provides the appointment domain tools: booking,
// listing and cancelling follow-up appointments, backed by PostgreSQL.
package appointment

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

// Appointment statuses.
const (
	StatusBooked    = "booked"
	StatusCancelled = "cancelled"
)

// DateLayout is the wire format for appointment dates.
const DateLayout = "2006-01-02"

// DBPool defines the interface for database connection pool
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Appointment is one stored booking.
type Appointment struct {
	ID     string    `json:"id"`
	UserID string    `json:"user_id"`
	Date   time.Time `json:"date"`
	Reason string    `json:"reason,omitempty"`
	Status string    `json:"status"`
}

// Service stores and manages appointments.
type Service struct {
	pool      DBPool
	tableName string
	now       func() time.Time
}

// ServiceOptions configuration for the appointment service
type ServiceOptions struct {
	ConnString string
	TableName  string // Default "appointments"
}

// NewService connects to PostgreSQL and prepares the appointments table.
func NewService(ctx context.Context, opts ServiceOptions) (*Service, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "appointments"
	}

	s := &Service{pool: pool, tableName: tableName, now: time.Now}
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
		tableName = "appointments"
	}
	return &Service{pool: pool, tableName: tableName, now: time.Now}
}

func (s *Service) createTableIfNotExists(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			date DATE NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'booked'
		);
		CREATE INDEX IF NOT EXISTS idx_%s_user_date
		ON %s(user_id, date);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create appointments table: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func (s *Service) Close() {
	s.pool.Close()
}

// parseDate validates the wire format and rejects dates in the past.
func (s *Service) parseDate(raw string) (time.Time, *tool.Error) {
	date, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, tool.ValidationError("date %q is not in YYYY-MM-DD format", raw)
	}
	today := s.now().UTC().Truncate(24 * time.Hour)
	if date.Before(today) {
		return time.Time{}, tool.ValidationError("date %s is in the past", raw)
	}
	return date, nil
}

// Book validates and stores a new appointment.
func (s *Service) Book(ctx context.Context, userID, rawDate, reason string) (*Appointment, error) {
	if userID == "" {
		return nil, tool.ValidationError("user id is required")
	}
	date, verr := s.parseDate(rawDate)
	if verr != nil {
		return nil, verr
	}

	apt := &Appointment{
		ID:     "apt_" + uuid.New().String(),
		UserID: userID,
		Date:   date,
		Reason: reason,
		Status: StatusBooked,
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, date, reason, status)
		VALUES ($1, $2, $3, $4, $5)
	`, s.tableName)

	_, err := s.pool.Exec(ctx, query, apt.ID, apt.UserID, apt.Date, apt.Reason, apt.Status)
	if err != nil {
		return nil, tool.UpstreamError("failed to store appointment: %v", err)
	}

	return apt, nil
}

// Upcoming returns a user's booked appointments from today onward, soonest
// first.
func (s *Service) Upcoming(ctx context.Context, userID string) ([]Appointment, error) {
	if userID == "" {
		return nil, tool.ValidationError("user id is required")
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, date, reason, status
		FROM %s
		WHERE user_id = $1 AND status = $2 AND date >= $3
		ORDER BY date ASC
	`, s.tableName)

	today := s.now().UTC().Truncate(24 * time.Hour)
	rows, err := s.pool.Query(ctx, query, userID, StatusBooked, today)
	if err != nil {
		return nil, tool.UpstreamError("failed to query appointments: %v", err)
	}
	defer rows.Close()

	var appointments []Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.UserID, &a.Date, &a.Reason, &a.Status); err != nil {
			return nil, tool.UpstreamError("failed to scan appointment: %v", err)
		}
		appointments = append(appointments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, tool.UpstreamError("failed to read rows: %v", err)
	}

	return appointments, nil
}

// Cancel marks a user's booked appointment as cancelled.
func (s *Service) Cancel(ctx context.Context, userID, appointmentID string) error {
	if userID == "" {
		return tool.ValidationError("user id is required")
	}
	if appointmentID == "" {
		return tool.ValidationError("appointment id is required")
	}

	query := fmt.Sprintf(`
		UPDATE %s SET status = $1
		WHERE id = $2 AND user_id = $3 AND status = $4
	`, s.tableName)

	tag, err := s.pool.Exec(ctx, query, StatusCancelled, appointmentID, userID, StatusBooked)
	if err != nil {
		return tool.UpstreamError("failed to cancel appointment: %v", err)
	}
	if tag.RowsAffected() == 0 {
		return tool.NotFoundError("no booked appointment %s for this user", appointmentID)
	}
	return nil
}

type bookArgs struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

type cancelArgs struct {
	AppointmentID string `json:"appointment_id"`
}

// Tools returns the appointment tools scoped to one user.
func (s *Service) Tools(userID string) []tool.Tool {
	return []tool.Tool{
		{
			Name: "book_appointment",
			Description: "Book a follow-up appointment for the current user. " +
				"date must be YYYY-MM-DD and must not be in the past.",
			Schema: tool.ObjectSchema(map[string]any{
				"date":   map[string]any{"type": "string", "description": "Appointment date in YYYY-MM-DD format"},
				"reason": map[string]any{"type": "string", "description": "Reason for the visit, optional"},
			}, "date"),
			Call: func(ctx context.Context, arguments string) (string, error) {
				var args bookArgs
				if err := json.Unmarshal([]byte(arguments), &args); err != nil {
					return "", tool.ValidationError("invalid arguments: %v", err)
				}
				apt, err := s.Book(ctx, userID, args.Date, args.Reason)
				if err != nil {
					return "", err
				}
				return marshalJSON(map[string]any{"status": "booked", "appointment": apt})
			},
		},
		{
			Name:        "query_appointments",
			Description: "List the current user's upcoming booked appointments, soonest first.",
			Schema:      tool.ObjectSchema(map[string]any{}),
			Call: func(ctx context.Context, arguments string) (string, error) {
				appointments, err := s.Upcoming(ctx, userID)
				if err != nil {
					return "", err
				}
				if len(appointments) == 0 {
					return marshalJSON(map[string]any{"appointments": []Appointment{}, "note": "no upcoming appointments"})
				}
				return marshalJSON(map[string]any{"appointments": appointments})
			},
		},
		{
			Name:        "cancel_appointment",
			Description: "Cancel one of the current user's booked appointments by id.",
			Schema: tool.ObjectSchema(map[string]any{
				"appointment_id": map[string]any{"type": "string", "description": "The id of the appointment to cancel"},
			}, "appointment_id"),
			Call: func(ctx context.Context, arguments string) (string, error) {
				var args cancelArgs
				if err := json.Unmarshal([]byte(arguments), &args); err != nil {
					return "", tool.ValidationError("invalid arguments: %v", err)
				}
				if err := s.Cancel(ctx, userID, args.AppointmentID); err != nil {
					return "", err
				}
				return marshalJSON(map[string]any{"status": "cancelled", "appointment_id": args.AppointmentID})
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
