package models

import (
	"time"

	id "agenda/pkg/domain"
)

type LifecycleType string

const (
	LifecycleCreated   LifecycleType = "event.created"
	LifecycleUpdated   LifecycleType = "event.updated"
	LifecycleCancelled LifecycleType = "event.cancelled"
)

// LifecycleEvent announces an event change to downstream consumers.
type LifecycleEvent struct {
	Type       LifecycleType `json:"type"`
	TenantID   string        `json:"tenant_id"`
	EventID    string        `json:"event_id"`
	ActorID    string        `json:"actor_id"`
	Title      string        `json:"title"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    time.Time     `json:"end_time"`
	OccurredAt time.Time     `json:"occurred_at"`
	Recipients int           `json:"recipients"`
	Visibility Visibility    `json:"visibility"`
}

func NewLifecycleEvent(t LifecycleType, e *Event, actor id.UserID, recipients int, now time.Time) LifecycleEvent {
	return LifecycleEvent{
		Type:       t,
		TenantID:   e.TenantID.String(),
		EventID:    e.ID.String(),
		ActorID:    actor.String(),
		Title:      e.Title,
		StartTime:  e.StartTime,
		EndTime:    e.EndTime,
		OccurredAt: now,
		Recipients: recipients,
		Visibility: e.Visibility,
	}
}
