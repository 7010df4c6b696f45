package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenda/internal/chat/models"
	id "agenda/pkg/domain"
	"agenda/pkg/platform/sentinel"
	"agenda/pkg/testutil"
)

var ts = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func message(src *models.IDSource, eventID id.EventID, sender id.UserID, text string) *models.Message {
	return &models.Message{
		ID:        src.Next(ts),
		TenantID:  testutil.TestIDs.TenantA,
		EventID:   eventID,
		SenderID:  sender,
		Text:      text,
		CreatedAt: ts,
	}
}

func TestInMemoryHistory(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	src := models.NewIDSource()
	eventID := id.NewEventID()

	first := message(src, eventID, testutil.TestIDs.Alice, "first")
	second := message(src, eventID, testutil.TestIDs.Bob, "second")
	require.NoError(t, store.Append(ctx, first))
	require.NoError(t, store.Append(ctx, second))

	history, err := store.ListByEvent(ctx, testutil.TestIDs.TenantA, eventID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "first", history[0].Text)
	assert.Equal(t, "second", history[1].Text)

	foreign, err := store.ListByEvent(ctx, testutil.TestIDs.TenantB, eventID)
	require.NoError(t, err)
	assert.Empty(t, foreign)

	sent, err := store.HasSent(ctx, testutil.TestIDs.TenantA, eventID, testutil.TestIDs.Bob)
	require.NoError(t, err)
	assert.True(t, sent)
	sent, err = store.HasSent(ctx, testutil.TestIDs.TenantA, eventID, testutil.TestIDs.Carol)
	require.NoError(t, err)
	assert.False(t, sent)

	n, err := store.DeleteByEventIDs(ctx, []id.EventID{eventID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestInMemoryDeleteByEventIsTenantScoped(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	src := models.NewIDSource()
	eventID := id.NewEventID()
	require.NoError(t, store.Append(ctx, message(src, eventID, testutil.TestIDs.Alice, "hi")))

	require.NoError(t, store.DeleteByEvent(ctx, testutil.TestIDs.TenantB, eventID))
	history, err := store.ListByEvent(ctx, testutil.TestIDs.TenantA, eventID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	require.NoError(t, store.DeleteByEvent(ctx, testutil.TestIDs.TenantA, eventID))
	history, err = store.ListByEvent(ctx, testutil.TestIDs.TenantA, eventID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestInMemoryRefusesPurgedEvents(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	src := models.NewIDSource()
	deleted, expired := id.NewEventID(), id.NewEventID()

	require.NoError(t, store.DeleteByEvent(ctx, testutil.TestIDs.TenantA, deleted))
	_, err := store.DeleteByEventIDs(ctx, []id.EventID{expired})
	require.NoError(t, err)

	assert.ErrorIs(t, store.Append(ctx, message(src, deleted, testutil.TestIDs.Alice, "late")), sentinel.ErrNotFound)
	assert.ErrorIs(t, store.Append(ctx, message(src, expired, testutil.TestIDs.Alice, "late")), sentinel.ErrNotFound)

	other := message(src, deleted, testutil.TestIDs.Mallory, "other tenant")
	other.TenantID = testutil.TestIDs.TenantB
	assert.NoError(t, store.Append(ctx, other), "a purge in one tenant does not reach another")
}

func TestPostgresAppendAndList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgres(db)
	src := models.NewIDSource()
	eventID := id.NewEventID()
	m := message(src, eventID, testutil.TestIDs.Alice, "hello")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO chat_messages")).
		WithArgs(m.ID.String(), m.TenantID.String(), eventID.String(), m.SenderID.String(), "hello", ts).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY id")).
		WithArgs(m.TenantID.String(), eventID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "event_id", "sender_id", "body", "created_at"}).
			AddRow(m.ID.String(), m.TenantID.String(), eventID.String(), m.SenderID.String(), "hello", ts))

	require.NoError(t, store.Append(context.Background(), m))
	history, err := store.ListByEvent(context.Background(), m.TenantID, eventID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, *m, *history[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppendToDeletedEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO chat_messages")).WillReturnError(&pgconn.PgError{Code: "23503"})

	err = NewPostgres(db).Append(context.Background(), message(models.NewIDSource(), id.NewEventID(), testutil.TestIDs.Alice, "late"))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresHasSent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	sent, err := NewPostgres(db).HasSent(context.Background(), testutil.TestIDs.TenantA, id.NewEventID(), testutil.TestIDs.Bob)
	require.NoError(t, err)
	assert.True(t, sent)
}
