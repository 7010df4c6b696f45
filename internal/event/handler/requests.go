package handler

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"agenda/internal/event/models"
	id "agenda/pkg/domain"
	dErrors "agenda/pkg/domain-errors"
	"agenda/pkg/platform/validation"
)

type CreateEventRequest struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	Visibility  string    `json:"visibility" validate:"omitempty,oneof=public private"`
}

func (r *CreateEventRequest) Normalize() {
	if r == nil {
		return
	}
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Visibility = strings.ToLower(strings.TrimSpace(r.Visibility))
}

func (r *CreateEventRequest) Validate() error {
	if err := validation.CheckStringLength("title", r.Title, validation.MaxTitleLength); err != nil {
		return err
	}
	return validation.CheckStringLength("description", r.Description, validation.MaxDescriptionLength)
}

func (r *CreateEventRequest) toDraft() models.EventDraft {
	return models.EventDraft{
		Title:       r.Title,
		Description: r.Description,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Visibility:  models.Visibility(r.Visibility),
	}
}

// UpdateEventRequest is a partial update; absent fields keep their value.
type UpdateEventRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Visibility  *string    `json:"visibility" validate:"omitempty,oneof=public private"`
}

func (r *UpdateEventRequest) Normalize() {
	if r == nil {
		return
	}
	if r.Visibility != nil {
		v := strings.ToLower(strings.TrimSpace(*r.Visibility))
		r.Visibility = &v
	}
}

func (r *UpdateEventRequest) toUpdate() models.EventUpdate {
	u := models.EventUpdate{
		Title:       r.Title,
		Description: r.Description,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
	}
	if r.Visibility != nil {
		v := models.Visibility(*r.Visibility)
		u.Visibility = &v
	}
	return u
}

type InviteRequest struct {
	UserIDs []string `json:"user_ids" validate:"required,min=1,dive,uuid"`

	parsed []id.UserID
}

func (r *InviteRequest) Normalize() {
	if r == nil {
		return
	}
	r.UserIDs = lo.Uniq(lo.Map(r.UserIDs, func(s string, _ int) string { return strings.TrimSpace(s) }))
}

func (r *InviteRequest) Validate() error {
	if err := validation.CheckSliceCount("user_ids", len(r.UserIDs), validation.MaxInviteBatch); err != nil {
		return err
	}
	r.parsed = make([]id.UserID, 0, len(r.UserIDs))
	for _, raw := range r.UserIDs {
		userID, err := id.ParseUserID(raw)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "user_ids must contain valid user ids")
		}
		r.parsed = append(r.parsed, userID)
	}
	return nil
}

type RespondRequest struct {
	Status string `json:"status" validate:"required,oneof=invited accepted declined"`
}

func (r *RespondRequest) Normalize() {
	if r == nil {
		return
	}
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
}
