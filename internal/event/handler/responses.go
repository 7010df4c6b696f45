package handler

import (
	"time"

	"github.com/samber/lo"

	"agenda/internal/event/models"
)

type EventResponse struct {
	ID             string            `json:"id"`
	TenantID       string            `json:"tenant_id"`
	OrganizerID    string            `json:"organizer_id"`
	OrganizerEmail string            `json:"organizer_email"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	StartTime      time.Time         `json:"start_time"`
	EndTime        time.Time         `json:"end_time"`
	Visibility     models.Visibility `json:"visibility"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

type ParticipationResponse struct {
	ID        string                     `json:"id"`
	EventID   string                     `json:"event_id"`
	UserID    string                     `json:"user_id"`
	Email     string                     `json:"email,omitempty"`
	Status    models.ParticipationStatus `json:"status"`
	CreatedAt time.Time                  `json:"created_at"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

type InviteResponse struct {
	EventID string `json:"event_id"`
	Invited int    `json:"invited"`
}

type UserEventResponse struct {
	EventResponse
	ParticipationID string                     `json:"participation_id"`
	Status          models.ParticipationStatus `json:"status"`
}

func toEventResponse(e *models.Event, organizerEmail string) *EventResponse {
	return &EventResponse{
		ID:             e.ID.String(),
		TenantID:       e.TenantID.String(),
		OrganizerID:    e.OrganizerID.String(),
		OrganizerEmail: organizerEmail,
		Title:          e.Title,
		Description:    e.Description,
		StartTime:      e.StartTime,
		EndTime:        e.EndTime,
		Visibility:     e.Visibility,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func toEventViewResponse(v *models.EventView) *EventResponse {
	return toEventResponse(&v.Event, v.OrganizerEmail)
}

func toEventList(views []models.EventView) []*EventResponse {
	return lo.Map(views, func(v models.EventView, _ int) *EventResponse { return toEventViewResponse(&v) })
}

func toParticipationResponse(p *models.Participation, email string) *ParticipationResponse {
	return &ParticipationResponse{
		ID:        p.ID.String(),
		EventID:   p.EventID.String(),
		UserID:    p.UserID.String(),
		Email:     email,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func toParticipantList(views []models.ParticipantView) []*ParticipationResponse {
	return lo.Map(views, func(v models.ParticipantView, _ int) *ParticipationResponse {
		return toParticipationResponse(&v.Participation, v.Email)
	})
}

func toUserEventList(items []models.UserEvent) []*UserEventResponse {
	return lo.Map(items, func(u models.UserEvent, _ int) *UserEventResponse {
		return &UserEventResponse{
			EventResponse:   *toEventResponse(&u.Event, ""),
			ParticipationID: u.ParticipationID.String(),
			Status:          u.Status,
		}
	})
}
