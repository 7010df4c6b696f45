package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"agenda/internal/notification/models"
	id "agenda/pkg/domain"
	"agenda/pkg/platform/sentinel"
	txcontext "agenda/pkg/platform/tx"
)

// PostgresStore persists notifications in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed notification store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Upsert stores n, replacing the message and timestamp of an existing
// notification with the same (tenant, user, event, type). n.ID is set to
// the stored id.
func (s *PostgresStore) Upsert(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (id, tenant_id, user_id, event_id, type, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, user_id, event_id, type) DO UPDATE
		SET message = EXCLUDED.message, created_at = EXCLUDED.created_at
		RETURNING id
	`
	var stored uuid.UUID
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(n.ID),
		uuid.UUID(n.TenantID),
		uuid.UUID(n.UserID),
		uuid.UUID(n.EventID),
		string(n.Type),
		n.Message,
		n.CreatedAt,
	).Scan(&stored)
	if err != nil {
		return fmt.Errorf("upsert notification: %w", err)
	}
	n.ID = id.NotificationID(stored)
	return nil
}

// ListByUser returns the user's notifications, newest first.
func (s *PostgresStore) ListByUser(ctx context.Context, tenantID id.TenantID, userID id.UserID) ([]*models.Notification, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT id, tenant_id, user_id, event_id, type, message, created_at
		FROM notifications
		WHERE tenant_id = $1 AND user_id = $2
		ORDER BY created_at DESC, id DESC
	`, uuid.UUID(tenantID), uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := []*models.Notification{}
	for rows.Next() {
		var n models.Notification
		var nid, tenant, user, event uuid.UUID
		var t string
		if err := rows.Scan(&nid, &tenant, &user, &event, &t, &n.Message, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.ID = id.NotificationID(nid)
		n.TenantID = id.TenantID(tenant)
		n.UserID = id.UserID(user)
		n.EventID = id.EventID(event)
		n.Type = models.Type(t)
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

// Delete removes one of the user's notifications.
func (s *PostgresStore) Delete(ctx context.Context, tenantID id.TenantID, userID id.UserID, notificationID id.NotificationID) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM notifications WHERE tenant_id = $1 AND user_id = $2 AND id = $3`,
		uuid.UUID(tenantID), uuid.UUID(userID), uuid.UUID(notificationID),
	)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete notification rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
