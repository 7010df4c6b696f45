//go:build integration

package participation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"agenda/internal/event/models"
	eventstore "agenda/internal/event/store/event"
	"agenda/internal/event/store/participation"
	id "agenda/pkg/domain"
	"agenda/pkg/platform/sentinel"
	"agenda/pkg/testutil"
	"agenda/pkg/testutil/containers"
)

type PostgresSuite struct {
	suite.Suite
	pg             *containers.PostgresContainer
	events         *eventstore.PostgresStore
	participations *participation.PostgresStore
}

func TestPostgresSuite(t *testing.T) {
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	s.pg = containers.Postgres(s.T())
	s.events = eventstore.NewPostgres(s.pg.DB)
	s.participations = participation.NewPostgres(s.pg.DB)
}

func (s *PostgresSuite) SetupTest() {
	s.pg.Reset(context.Background(), s.T())
}

func (s *PostgresSuite) createEvent(end time.Time) *models.Event {
	now := time.Now().UTC().Truncate(time.Microsecond)
	e, err := models.NewEvent(testutil.TestIDs.TenantA, testutil.TestIDs.Alice, models.EventDraft{
		Title:     "Retro",
		StartTime: end.Add(-time.Hour),
		EndTime:   end,
	}, now)
	s.Require().NoError(err)
	s.Require().NoError(s.events.Create(context.Background(), e))
	return e
}

func (s *PostgresSuite) TestReinviteKeepsSingleRow() {
	ctx := context.Background()
	e := s.createEvent(time.Now().Add(48 * time.Hour))
	invitees := []id.UserID{testutil.TestIDs.Bob, testutil.TestIDs.Carol}

	s.Require().NoError(s.participations.UpsertInvited(ctx, e.TenantID, e.ID, invitees, time.Now()))
	s.Require().NoError(s.participations.UpsertInvited(ctx, e.TenantID, e.ID, invitees, time.Now()))

	rows, err := s.participations.ListByEvent(ctx, e.TenantID, e.ID)
	s.Require().NoError(err)
	s.Len(rows, 2)
}

func (s *PostgresSuite) TestInviteForDeletedEventIsNotFound() {
	err := s.participations.UpsertInvited(context.Background(), testutil.TestIDs.TenantA, id.NewEventID(),
		[]id.UserID{testutil.TestIDs.Bob}, time.Now())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresSuite) TestEventDeleteCascades() {
	ctx := context.Background()
	e := s.createEvent(time.Now().Add(-60 * 24 * time.Hour))
	s.Require().NoError(s.participations.UpsertInvited(ctx, e.TenantID, e.ID, []id.UserID{testutil.TestIDs.Bob}, time.Now()))

	expired, err := s.events.ListExpiredIDs(ctx, time.Now().Add(-30*24*time.Hour))
	s.Require().NoError(err)
	s.Require().Equal([]id.EventID{e.ID}, expired)

	n, err := s.events.DeleteByIDs(ctx, expired)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	_, err = s.participations.FindByEventAndUser(ctx, e.TenantID, e.ID, testutil.TestIDs.Bob)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
