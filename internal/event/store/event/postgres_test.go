package event

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenda/internal/event/models"
	id "agenda/pkg/domain"
	"agenda/pkg/platform/sentinel"
	txcontext "agenda/pkg/platform/tx"
	"agenda/pkg/testutil"
)

var columns = []string{"id", "tenant_id", "organizer_id", "title", "description", "start_time", "end_time", "visibility", "created_at", "updated_at"}

func newMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgres(db), mock
}

func sampleEvent() *models.Event {
	start := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	return &models.Event{
		ID:          id.NewEventID(),
		TenantID:    testutil.TestIDs.TenantA,
		OrganizerID: testutil.TestIDs.Alice,
		Title:       "Standup",
		StartTime:   start,
		EndTime:     start.Add(30 * time.Minute),
		Visibility:  models.VisibilityPublic,
		CreatedAt:   start.Add(-time.Hour),
		UpdatedAt:   start.Add(-time.Hour),
	}
}

func eventRowValues(e *models.Event) []driver.Value {
	return []driver.Value{e.ID.String(), e.TenantID.String(), e.OrganizerID.String(), e.Title, e.Description,
		e.StartTime, e.EndTime, string(e.Visibility), e.CreatedAt, e.UpdatedAt}
}

func TestPostgresCreate(t *testing.T) {
	store, mock := newMock(t)
	e := sampleEvent()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO events")).
		WithArgs(e.ID.String(), e.TenantID.String(), e.OrganizerID.String(), e.Title, e.Description,
			e.StartTime, e.EndTime, "public", e.CreatedAt, e.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Create(context.Background(), e))
}

func TestPostgresCreateJoinsContextTransaction(t *testing.T) {
	store, mock := newMock(t)
	e := sampleEvent()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO events")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	sqlTx, err := store.db.Begin()
	require.NoError(t, err)
	ctx := txcontext.WithTx(context.Background(), sqlTx)
	require.NoError(t, store.Create(ctx, e))
	require.NoError(t, sqlTx.Rollback())
}

func TestPostgresFindByID(t *testing.T) {
	e := sampleEvent()
	query := regexp.QuoteMeta("FROM events WHERE tenant_id = $1 AND id = $2")

	t.Run("found", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectQuery(query).
			WithArgs(e.TenantID.String(), e.ID.String()).
			WillReturnRows(sqlmock.NewRows(columns).AddRow(eventRowValues(e)...))

		found, err := store.FindByID(context.Background(), e.TenantID, e.ID)
		require.NoError(t, err)
		assert.Equal(t, e, found)
	})

	t.Run("other tenant is not found", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectQuery(query).
			WithArgs(testutil.TestIDs.TenantB.String(), e.ID.String()).
			WillReturnError(sql.ErrNoRows)

		_, err := store.FindByID(context.Background(), testutil.TestIDs.TenantB, e.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("driver error is wrapped", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectQuery(query).WillReturnError(errors.New("conn reset"))

		_, err := store.FindByID(context.Background(), e.TenantID, e.ID)
		require.Error(t, err)
		assert.NotErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestPostgresListByTenant(t *testing.T) {
	store, mock := newMock(t)
	first, second := sampleEvent(), sampleEvent()
	second.StartTime = second.StartTime.Add(time.Hour)
	second.EndTime = second.EndTime.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE tenant_id = $1 ORDER BY start_time, id")).
		WithArgs(first.TenantID.String()).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(eventRowValues(first)...).
			AddRow(eventRowValues(second)...))

	events, err := store.ListByTenant(context.Background(), first.TenantID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, first.ID, events[0].ID)
	assert.Equal(t, second.ID, events[1].ID)
}

func TestPostgresListByIDs(t *testing.T) {
	store, mock := newMock(t)
	e := sampleEvent()
	other := id.NewEventID()

	mock.ExpectQuery(regexp.QuoteMeta("AND id IN ($2, $3) ORDER BY start_time, id")).
		WithArgs(e.TenantID.String(), e.ID.String(), other.String()).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(eventRowValues(e)...))

	events, err := store.ListByIDs(context.Background(), e.TenantID, []id.EventID{e.ID, other})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	none, err := store.ListByIDs(context.Background(), e.TenantID, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPostgresUpdate(t *testing.T) {
	e := sampleEvent()

	t.Run("updates row", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE events")).
			WithArgs(e.TenantID.String(), e.ID.String(), e.Title, e.Description, e.StartTime, e.EndTime, "public", e.UpdatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, store.Update(context.Background(), e))
	})

	t.Run("missing row", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE events")).WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, store.Update(context.Background(), e), sentinel.ErrNotFound)
	})
}

func TestPostgresDelete(t *testing.T) {
	store, mock := newMock(t)
	e := sampleEvent()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM events WHERE tenant_id = $1 AND id = $2")).
		WithArgs(e.TenantID.String(), e.ID.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, store.Delete(context.Background(), e.TenantID, e.ID), sentinel.ErrNotFound)
}

func TestPostgresExpiry(t *testing.T) {
	store, mock := newMock(t)
	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a, b := id.NewEventID(), id.NewEventID()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM events WHERE end_time < $1")).
		WithArgs(cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(a.String()).AddRow(b.String()))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM events WHERE id IN ($1, $2)")).
		WithArgs(a.String(), b.String()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	ids, err := store.ListExpiredIDs(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, []id.EventID{a, b}, ids)

	n, err := store.DeleteByIDs(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1", placeholders(1, 1))
	assert.Equal(t, "$3, $4, $5", placeholders(3, 3))
}
