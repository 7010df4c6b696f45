package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"agenda/internal/chat/models"
	id "agenda/pkg/domain"
	"agenda/pkg/platform/sentinel"
	txcontext "agenda/pkg/platform/tx"
)

// PostgresStore persists chat messages in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed message store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append inserts a message. A missing event is reported as not found.
func (s *PostgresStore) Append(ctx context.Context, m *models.Message) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`INSERT INTO chat_messages (id, tenant_id, event_id, sender_id, body, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID.String(), uuid.UUID(m.TenantID), uuid.UUID(m.EventID), uuid.UUID(m.SenderID), m.Text, m.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("event no longer exists: %w", sentinel.ErrNotFound)
		}
		return fmt.Errorf("append chat message: %w", err)
	}
	return nil
}

// ListByEvent returns an event's messages in append order.
func (s *PostgresStore) ListByEvent(ctx context.Context, tenantID id.TenantID, eventID id.EventID) ([]*models.Message, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx,
		`SELECT id, tenant_id, event_id, sender_id, body, created_at FROM chat_messages WHERE tenant_id = $1 AND event_id = $2 ORDER BY id`,
		uuid.UUID(tenantID), uuid.UUID(eventID),
	)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	out := []*models.Message{}
	for rows.Next() {
		var m models.Message
		var messageID string
		var tenant, event, sender uuid.UUID
		if err := rows.Scan(&messageID, &tenant, &event, &sender, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		m.ID = id.MessageID(strings.TrimSpace(messageID))
		m.TenantID = id.TenantID(tenant)
		m.EventID = id.EventID(event)
		m.SenderID = id.UserID(sender)
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}
	return out, nil
}

// HasSent reports whether the user ever posted in the event's room.
func (s *PostgresStore) HasSent(ctx context.Context, tenantID id.TenantID, eventID id.EventID, userID id.UserID) (bool, error) {
	var exists bool
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM chat_messages WHERE tenant_id = $1 AND event_id = $2 AND sender_id = $3)`,
		uuid.UUID(tenantID), uuid.UUID(eventID), uuid.UUID(userID),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check chat sender: %w", err)
	}
	return exists, nil
}

// DeleteByEvent removes an event's chat history.
func (s *PostgresStore) DeleteByEvent(ctx context.Context, tenantID id.TenantID, eventID id.EventID) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM chat_messages WHERE tenant_id = $1 AND event_id = $2`,
		uuid.UUID(tenantID), uuid.UUID(eventID),
	)
	if err != nil {
		return fmt.Errorf("delete chat messages: %w", err)
	}
	return nil
}

// DeleteByEventIDs removes chat history of the given events across tenants.
func (s *PostgresStore) DeleteByEventIDs(ctx context.Context, eventIDs []id.EventID) (int64, error) {
	if len(eventIDs) == 0 {
		return 0, nil
	}
	marks := make([]string, len(eventIDs))
	args := make([]any, len(eventIDs))
	for i, eventID := range eventIDs {
		marks[i] = "$" + strconv.Itoa(i+1)
		args[i] = uuid.UUID(eventID)
	}
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM chat_messages WHERE event_id IN (`+strings.Join(marks, ", ")+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete chat messages: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete chat messages rows: %w", err)
	}
	return n, nil
}
