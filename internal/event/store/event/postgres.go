package event

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"agenda/internal/event/models"
	id "agenda/pkg/domain"
	"agenda/pkg/platform/sentinel"
	txcontext "agenda/pkg/platform/tx"
)

const eventColumns = `id, tenant_id, organizer_id, title, description, start_time, end_time, visibility, created_at, updated_at`

// PostgresStore persists events in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed event store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a new event.
func (s *PostgresStore) Create(ctx context.Context, e *models.Event) error {
	if e == nil {
		return fmt.Errorf("event is required")
	}
	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(e.ID),
		uuid.UUID(e.TenantID),
		uuid.UUID(e.OrganizerID),
		e.Title,
		e.Description,
		e.StartTime,
		e.EndTime,
		string(e.Visibility),
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// FindByID loads an event within a tenant. Events of other tenants are reported as not found.
func (s *PostgresStore) FindByID(ctx context.Context, tenantID id.TenantID, eventID id.EventID) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE tenant_id = $1 AND id = $2`
	e, err := scanEvent(txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(tenantID), uuid.UUID(eventID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find event by id: %w", err)
	}
	return e, nil
}

// ListByTenant returns the tenant's events ordered by start time.
func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE tenant_id = $1 ORDER BY start_time, id`
	return s.query(ctx, "list events", query, uuid.UUID(tenantID))
}

// ListByIDs returns the tenant's events among ids, ordered by start time.
func (s *PostgresStore) ListByIDs(ctx context.Context, tenantID id.TenantID, ids []id.EventID) ([]*models.Event, error) {
	if len(ids) == 0 {
		return []*models.Event{}, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, uuid.UUID(tenantID))
	for _, eventID := range ids {
		args = append(args, uuid.UUID(eventID))
	}
	query := `SELECT ` + eventColumns + ` FROM events WHERE tenant_id = $1 AND id IN (` + placeholders(2, len(ids)) + `) ORDER BY start_time, id`
	return s.query(ctx, "list events by ids", query, args...)
}

// Update persists changed event fields.
func (s *PostgresStore) Update(ctx context.Context, e *models.Event) error {
	if e == nil {
		return fmt.Errorf("event is required")
	}
	query := `
		UPDATE events
		SET title = $3, description = $4, start_time = $5, end_time = $6, visibility = $7, updated_at = $8
		WHERE tenant_id = $1 AND id = $2
	`
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(e.TenantID),
		uuid.UUID(e.ID),
		e.Title,
		e.Description,
		e.StartTime,
		e.EndTime,
		string(e.Visibility),
		e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return requireAffected(res, "update event")
}

// Delete removes an event. Participations and chat messages cascade in the schema.
func (s *PostgresStore) Delete(ctx context.Context, tenantID id.TenantID, eventID id.EventID) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM events WHERE tenant_id = $1 AND id = $2`,
		uuid.UUID(tenantID), uuid.UUID(eventID),
	)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return requireAffected(res, "delete event")
}

// ListExpiredIDs returns ids of events, across all tenants, that ended before cutoff.
func (s *PostgresStore) ListExpiredIDs(ctx context.Context, cutoff time.Time) ([]id.EventID, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `SELECT id FROM events WHERE end_time < $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list expired events: %w", err)
	}
	defer rows.Close()

	var ids []id.EventID
	for rows.Next() {
		var raw uuid.UUID
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan expired event: %w", err)
		}
		ids = append(ids, id.EventID(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired events: %w", err)
	}
	return ids, nil
}

// DeleteByIDs removes events regardless of tenant and returns the number deleted.
func (s *PostgresStore) DeleteByIDs(ctx context.Context, ids []id.EventID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids))
	for _, eventID := range ids {
		args = append(args, uuid.UUID(eventID))
	}
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM events WHERE id IN (`+placeholders(1, len(ids))+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete events rows: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) query(ctx context.Context, op, query string, args ...any) ([]*models.Event, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	events := []*models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return events, nil
}

type eventRow interface {
	Scan(dest ...any) error
}

func scanEvent(row eventRow) (*models.Event, error) {
	var e models.Event
	var eventID, tenantID, organizerID uuid.UUID
	var visibility string
	if err := row.Scan(
		&eventID, &tenantID, &organizerID,
		&e.Title, &e.Description,
		&e.StartTime, &e.EndTime,
		&visibility,
		&e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	e.ID = id.EventID(eventID)
	e.TenantID = id.TenantID(tenantID)
	e.OrganizerID = id.UserID(organizerID)
	e.Visibility = models.Visibility(visibility)
	return &e, nil
}

func requireAffected(res sql.Result, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// placeholders renders "$start, $start+1, ..." for n arguments.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range n {
		parts[i] = "$" + strconv.Itoa(start+i)
	}
	return strings.Join(parts, ", ")
}
