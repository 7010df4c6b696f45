package models

import (
	"time"

	id "agenda/pkg/domain"
)

type Type string

const (
	TypeInvite Type = "invite"
	TypeUpdate Type = "update"
	TypeCancel Type = "cancel"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeInvite, TypeUpdate, TypeCancel:
		return true
	}
	return false
}

// Notification is a pending message for one user about one event.
// At most one exists per (tenant, user, event, type).
type Notification struct {
	ID        id.NotificationID
	TenantID  id.TenantID
	UserID    id.UserID
	EventID   id.EventID
	Type      Type
	Message   string
	CreatedAt time.Time
}

// Batch is one notice addressed to several recipients.
type Batch struct {
	TenantID   id.TenantID
	EventID    id.EventID
	Type       Type
	Message    string
	Recipients []id.UserID
}

// For expands the batch into the notification stored for one recipient.
func (b Batch) For(userID id.UserID, now time.Time) *Notification {
	return &Notification{
		ID:        id.NewNotificationID(),
		TenantID:  b.TenantID,
		UserID:    userID,
		EventID:   b.EventID,
		Type:      b.Type,
		Message:   b.Message,
		CreatedAt: now,
	}
}

// FanoutResult counts per-recipient outcomes of a batch.
type FanoutResult struct {
	Stored int
	Failed int
	Pushed int
}
