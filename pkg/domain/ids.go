// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	dErrors "agenda/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing UserID where TenantID is expected.
type (
	TenantID        uuid.UUID
	UserID          uuid.UUID
	EventID         uuid.UUID
	ParticipationID uuid.UUID
	NotificationID  uuid.UUID
)

// MessageID is a ULID so that lexical order equals insertion order.
type MessageID string

// Parse functions - use at trust boundaries (handlers, API inputs, token claims).

func ParseTenantID(s string) (TenantID, error) {
	id, err := parseUUID(s, "tenant ID")
	return TenantID(id), err
}

func ParseUserID(s string) (UserID, error) {
	id, err := parseUUID(s, "user ID")
	return UserID(id), err
}

func ParseEventID(s string) (EventID, error) {
	id, err := parseUUID(s, "event ID")
	return EventID(id), err
}

func ParseParticipationID(s string) (ParticipationID, error) {
	id, err := parseUUID(s, "participation ID")
	return ParticipationID(id), err
}

func ParseNotificationID(s string) (NotificationID, error) {
	id, err := parseUUID(s, "notification ID")
	return NotificationID(id), err
}

func ParseMessageID(s string) (MessageID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "message ID cannot be empty")
	}
	parsed, err := ulid.ParseStrict(s)
	if err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid message ID format")
	}
	return MessageID(parsed.String()), nil
}

// Constructors for fresh identifiers.

func NewEventID() EventID                 { return EventID(uuid.New()) }
func NewParticipationID() ParticipationID { return ParticipationID(uuid.New()) }
func NewNotificationID() NotificationID   { return NotificationID(uuid.New()) }

// String methods - for logging, SQL parameters and JSON views.

func (id TenantID) String() string        { return uuid.UUID(id).String() }
func (id UserID) String() string          { return uuid.UUID(id).String() }
func (id EventID) String() string         { return uuid.UUID(id).String() }
func (id ParticipationID) String() string { return uuid.UUID(id).String() }
func (id NotificationID) String() string  { return uuid.UUID(id).String() }
func (id MessageID) String() string       { return string(id) }

// IsNil checks - used for service-layer validation.

func (id TenantID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id ParticipationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id NotificationID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id MessageID) IsNil() bool       { return id == "" }

func parseUUID(s, label string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return id, nil
}
