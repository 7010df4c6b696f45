package participation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"agenda/internal/event/models"
	id "agenda/pkg/domain"
	"agenda/pkg/platform/sentinel"
	txcontext "agenda/pkg/platform/tx"
)

const participationColumns = `id, tenant_id, event_id, user_id, status, created_at, updated_at`

// PostgresStore persists participations in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed participation store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Upsert inserts the participation or overwrites the status of the existing
// row for the same (event, user). p is refreshed with the stored id and
// creation time.
func (s *PostgresStore) Upsert(ctx context.Context, p *models.Participation) error {
	if p == nil {
		return fmt.Errorf("participation is required")
	}
	query := `
		INSERT INTO participations (` + participationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id, user_id) DO UPDATE
		SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`
	var storedID uuid.UUID
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(p.ID),
		uuid.UUID(p.TenantID),
		uuid.UUID(p.EventID),
		uuid.UUID(p.UserID),
		string(p.Status),
		p.CreatedAt,
		p.UpdatedAt,
	).Scan(&storedID, &p.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("event no longer exists: %w", sentinel.ErrNotFound)
		}
		return fmt.Errorf("upsert participation: %w", err)
	}
	p.ID = id.ParticipationID(storedID)
	return nil
}

// UpsertInvited writes an invited row for every user in one statement.
// Existing rows for the same (event, user) are reset to invited.
func (s *PostgresStore) UpsertInvited(ctx context.Context, tenantID id.TenantID, eventID id.EventID, userIDs []id.UserID, now time.Time) error {
	if len(userIDs) == 0 {
		return nil
	}
	values := make([]string, 0, len(userIDs))
	args := make([]any, 0, 4+len(userIDs)*2)
	args = append(args, uuid.UUID(tenantID), uuid.UUID(eventID), string(models.StatusInvited), now)
	for i, userID := range userIDs {
		idArg := 5 + i*2
		values = append(values, fmt.Sprintf("($%d, $1, $2, $%d, $3, $4, $4)", idArg, idArg+1))
		args = append(args, uuid.UUID(id.NewParticipationID()), uuid.UUID(userID))
	}
	query := `
		INSERT INTO participations (` + participationColumns + `)
		VALUES ` + strings.Join(values, ", ") + `
		ON CONFLICT (event_id, user_id) DO UPDATE
		SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
	`
	if _, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query, args...); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("event no longer exists: %w", sentinel.ErrNotFound)
		}
		return fmt.Errorf("upsert invitations: %w", err)
	}
	return nil
}

// FindByID loads a participation within a tenant.
func (s *PostgresStore) FindByID(ctx context.Context, tenantID id.TenantID, participationID id.ParticipationID) (*models.Participation, error) {
	query := `SELECT ` + participationColumns + ` FROM participations WHERE tenant_id = $1 AND id = $2`
	return s.queryOne(ctx, "find participation by id", query, uuid.UUID(tenantID), uuid.UUID(participationID))
}

// FindByEventAndUser loads the user's participation in an event within a tenant.
func (s *PostgresStore) FindByEventAndUser(ctx context.Context, tenantID id.TenantID, eventID id.EventID, userID id.UserID) (*models.Participation, error) {
	query := `SELECT ` + participationColumns + ` FROM participations WHERE tenant_id = $1 AND event_id = $2 AND user_id = $3`
	return s.queryOne(ctx, "find participation", query, uuid.UUID(tenantID), uuid.UUID(eventID), uuid.UUID(userID))
}

// UpdateStatus persists a status change on an existing row.
func (s *PostgresStore) UpdateStatus(ctx context.Context, p *models.Participation) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`UPDATE participations SET status = $3, updated_at = $4 WHERE tenant_id = $1 AND id = $2`,
		uuid.UUID(p.TenantID), uuid.UUID(p.ID), string(p.Status), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update participation: %w", err)
	}
	return requireAffected(res, "update participation")
}

// ListByEvent returns an event's participants ordered by status then id.
func (s *PostgresStore) ListByEvent(ctx context.Context, tenantID id.TenantID, eventID id.EventID) ([]*models.Participation, error) {
	query := `SELECT ` + participationColumns + ` FROM participations WHERE tenant_id = $1 AND event_id = $2 ORDER BY status, id`
	return s.query(ctx, "list participants", query, uuid.UUID(tenantID), uuid.UUID(eventID))
}

// ListByUserAndStatus returns the user's participations with the given status.
func (s *PostgresStore) ListByUserAndStatus(ctx context.Context, tenantID id.TenantID, userID id.UserID, status models.ParticipationStatus) ([]*models.Participation, error) {
	query := `SELECT ` + participationColumns + ` FROM participations WHERE tenant_id = $1 AND user_id = $2 AND status = $3 ORDER BY created_at, id`
	return s.query(ctx, "list user participations", query, uuid.UUID(tenantID), uuid.UUID(userID), string(status))
}

// Delete removes a user's participation in an event.
func (s *PostgresStore) Delete(ctx context.Context, tenantID id.TenantID, eventID id.EventID, userID id.UserID) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM participations WHERE tenant_id = $1 AND event_id = $2 AND user_id = $3`,
		uuid.UUID(tenantID), uuid.UUID(eventID), uuid.UUID(userID),
	)
	if err != nil {
		return fmt.Errorf("delete participation: %w", err)
	}
	return requireAffected(res, "delete participation")
}

// DeleteByEvent removes every participation of an event.
func (s *PostgresStore) DeleteByEvent(ctx context.Context, tenantID id.TenantID, eventID id.EventID) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM participations WHERE tenant_id = $1 AND event_id = $2`,
		uuid.UUID(tenantID), uuid.UUID(eventID),
	)
	if err != nil {
		return fmt.Errorf("delete event participations: %w", err)
	}
	return nil
}

// DeleteByEventIDs removes participations of the given events across tenants.
func (s *PostgresStore) DeleteByEventIDs(ctx context.Context, eventIDs []id.EventID) (int64, error) {
	if len(eventIDs) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(eventIDs))
	marks := make([]string, 0, len(eventIDs))
	for i, eventID := range eventIDs {
		args = append(args, uuid.UUID(eventID))
		marks = append(marks, "$"+strconv.Itoa(i+1))
	}
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM participations WHERE event_id IN (`+strings.Join(marks, ", ")+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete participations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete participations rows: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) queryOne(ctx context.Context, op, query string, args ...any) (*models.Participation, error) {
	p, err := scanParticipation(txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func (s *PostgresStore) query(ctx context.Context, op, query string, args ...any) ([]*models.Participation, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []*models.Participation{}
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

type participationRow interface {
	Scan(dest ...any) error
}

func scanParticipation(row participationRow) (*models.Participation, error) {
	var p models.Participation
	var participationID, tenantID, eventID, userID uuid.UUID
	var status string
	if err := row.Scan(&participationID, &tenantID, &eventID, &userID, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ID = id.ParticipationID(participationID)
	p.TenantID = id.TenantID(tenantID)
	p.EventID = id.EventID(eventID)
	p.UserID = id.UserID(userID)
	p.Status = models.ParticipationStatus(status)
	return &p, nil
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

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
