package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "agenda/pkg/domain"
	dErrors "agenda/pkg/domain-errors"
	"agenda/pkg/testutil"
)

var now = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func validDraft() EventDraft {
	return EventDraft{
		Title:      "Quarterly planning",
		StartTime:  now.Add(24 * time.Hour),
		EndTime:    now.Add(26 * time.Hour),
		Visibility: VisibilityPrivate,
	}
}

func TestNewEvent(t *testing.T) {
	ids := testutil.TestIDs

	t.Run("valid draft", func(t *testing.T) {
		e, err := NewEvent(ids.TenantA, ids.Alice, validDraft(), now)
		require.NoError(t, err)
		assert.False(t, e.ID.IsNil())
		assert.Equal(t, ids.Alice, e.OrganizerID)
		assert.True(t, e.IsOrganizer(ids.Alice))
		assert.True(t, e.IsPrivate())
		assert.Equal(t, now, e.CreatedAt)
	})

	t.Run("visibility defaults to public", func(t *testing.T) {
		draft := validDraft()
		draft.Visibility = ""
		e, err := NewEvent(ids.TenantA, ids.Alice, draft, now)
		require.NoError(t, err)
		assert.Equal(t, VisibilityPublic, e.Visibility)
	})

	tests := []struct {
		name   string
		mutate func(d *EventDraft)
		want   string
	}{
		{"blank title", func(d *EventDraft) { d.Title = "   " }, "title is required"},
		{"title too long", func(d *EventDraft) { d.Title = strings.Repeat("é", 201) }, "title exceeds max length"},
		{"description too long", func(d *EventDraft) { d.Description = strings.Repeat("x", 2001) }, "description exceeds max length"},
		{"end before start", func(d *EventDraft) { d.EndTime = d.StartTime.Add(-time.Minute) }, "start_time must be before end_time"},
		{"zero length", func(d *EventDraft) { d.EndTime = d.StartTime }, "start_time must be before end_time"},
		{"unknown visibility", func(d *EventDraft) { d.Visibility = "secret" }, "visibility must be"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := validDraft()
			tt.mutate(&draft)
			_, err := NewEvent(ids.TenantA, ids.Alice, draft, now)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEventApply(t *testing.T) {
	ids := testutil.TestIDs
	later := now.Add(time.Hour)

	t.Run("partial update keeps other fields", func(t *testing.T) {
		e, err := NewEvent(ids.TenantA, ids.Alice, validDraft(), now)
		require.NoError(t, err)
		title := "Renamed"

		require.NoError(t, e.Apply(EventUpdate{Title: &title}, later))
		assert.Equal(t, "Renamed", e.Title)
		assert.Equal(t, VisibilityPrivate, e.Visibility)
		assert.Equal(t, later, e.UpdatedAt)
		assert.Equal(t, now, e.CreatedAt)
	})

	t.Run("invalid merge leaves event unchanged", func(t *testing.T) {
		e, err := NewEvent(ids.TenantA, ids.Alice, validDraft(), now)
		require.NoError(t, err)
		before := *e
		end := e.StartTime.Add(-time.Hour)

		err = e.Apply(EventUpdate{EndTime: &end}, later)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Equal(t, before, *e)
	})

	t.Run("empty update", func(t *testing.T) {
		assert.True(t, EventUpdate{}.IsEmpty())
	})
}

func TestParticipationTransitions(t *testing.T) {
	tests := []struct {
		from ParticipationStatus
		to   ParticipationStatus
		ok   bool
	}{
		{StatusInvited, StatusAccepted, true},
		{StatusInvited, StatusDeclined, true},
		{StatusDeclined, StatusAccepted, true},
		{StatusInvited, StatusInvited, false},
		{StatusAccepted, StatusDeclined, false},
		{StatusAccepted, StatusInvited, false},
		{StatusDeclined, StatusInvited, false},
		{StatusDeclined, StatusDeclined, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			p := NewParticipation(testutil.TestIDs.TenantA, id.NewEventID(), testutil.TestIDs.Bob, tt.from, now)
			err := p.TransitionTo(tt.to, now.Add(time.Minute))
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.to, p.Status)
				assert.Equal(t, now.Add(time.Minute), p.UpdatedAt)
				return
			}
			assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
			assert.Equal(t, tt.from, p.Status)
		})
	}

	t.Run("unknown target status is a validation error", func(t *testing.T) {
		p := NewParticipation(testutil.TestIDs.TenantA, id.NewEventID(), testutil.TestIDs.Bob, StatusInvited, now)
		err := p.TransitionTo("maybe", now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestParseParticipationStatus(t *testing.T) {
	s, err := ParseParticipationStatus("declined")
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, s)

	_, err = ParseParticipationStatus("DECLINED")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
