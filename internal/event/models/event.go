package models

import (
	"strings"
	"time"

	id "agenda/pkg/domain"
	dErrors "agenda/pkg/domain-errors"
	"agenda/pkg/platform/validation"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

func (v Visibility) IsValid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Event is a scheduled gathering owned by its organizer within one tenant.
type Event struct {
	ID          id.EventID
	TenantID    id.TenantID
	OrganizerID id.UserID
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Visibility  Visibility
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EventDraft carries the caller-supplied fields of a new event.
type EventDraft struct {
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Visibility  Visibility
}

// NewEvent builds a validated event. Empty visibility defaults to public.
func NewEvent(tenantID id.TenantID, organizerID id.UserID, draft EventDraft, now time.Time) (*Event, error) {
	e := &Event{
		ID:          id.NewEventID(),
		TenantID:    tenantID,
		OrganizerID: organizerID,
		Title:       strings.TrimSpace(draft.Title),
		Description: strings.TrimSpace(draft.Description),
		StartTime:   draft.StartTime.UTC(),
		EndTime:     draft.EndTime.UTC(),
		Visibility:  draft.Visibility,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if e.Visibility == "" {
		e.Visibility = VisibilityPublic
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Event) Validate() error {
	if e.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if err := validation.CheckStringLength("title", e.Title, validation.MaxTitleLength); err != nil {
		return err
	}
	if err := validation.CheckStringLength("description", e.Description, validation.MaxDescriptionLength); err != nil {
		return err
	}
	if e.StartTime.IsZero() || e.EndTime.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "start_time and end_time are required")
	}
	if !e.StartTime.Before(e.EndTime) {
		return dErrors.New(dErrors.CodeValidation, "start_time must be before end_time")
	}
	if !e.Visibility.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "visibility must be public or private")
	}
	return nil
}

func (e *Event) IsOrganizer(userID id.UserID) bool {
	return e.OrganizerID == userID
}

func (e *Event) IsPrivate() bool {
	return e.Visibility == VisibilityPrivate
}

// EventUpdate is a partial update; nil fields are left unchanged.
type EventUpdate struct {
	Title       *string
	Description *string
	StartTime   *time.Time
	EndTime     *time.Time
	Visibility  *Visibility
}

func (u EventUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.StartTime == nil && u.EndTime == nil && u.Visibility == nil
}

// Apply merges the update into the event and re-validates the result.
// The event is left untouched when the merged result is invalid.
func (e *Event) Apply(u EventUpdate, now time.Time) error {
	next := *e
	if u.Title != nil {
		next.Title = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		next.Description = strings.TrimSpace(*u.Description)
	}
	if u.StartTime != nil {
		next.StartTime = u.StartTime.UTC()
	}
	if u.EndTime != nil {
		next.EndTime = u.EndTime.UTC()
	}
	if u.Visibility != nil {
		next.Visibility = *u.Visibility
	}
	if err := next.Validate(); err != nil {
		return err
	}
	next.UpdatedAt = now
	*e = next
	return nil
}
