package models

import (
	"time"

	id "agenda/pkg/domain"
	dErrors "agenda/pkg/domain-errors"
)

type ParticipationStatus string

const (
	StatusInvited  ParticipationStatus = "invited"
	StatusAccepted ParticipationStatus = "accepted"
	StatusDeclined ParticipationStatus = "declined"
)

func (s ParticipationStatus) IsValid() bool {
	switch s {
	case StatusInvited, StatusAccepted, StatusDeclined:
		return true
	}
	return false
}

// ParseParticipationStatus returns a CodeValidation error for unknown values.
func ParseParticipationStatus(s string) (ParticipationStatus, error) {
	status := ParticipationStatus(s)
	if !status.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "status must be one of invited, accepted, declined")
	}
	return status, nil
}

// transitions lists the status changes an invitee may make on their own row.
// Re-invites, self-joins and removals go through dedicated operations.
var transitions = map[ParticipationStatus][]ParticipationStatus{
	StatusInvited:  {StatusAccepted, StatusDeclined},
	StatusDeclined: {StatusAccepted},
}

func CanTransition(from, to ParticipationStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Participation links a user to an event with an RSVP status.
type Participation struct {
	ID        id.ParticipationID
	TenantID  id.TenantID
	EventID   id.EventID
	UserID    id.UserID
	Status    ParticipationStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewParticipation(tenantID id.TenantID, eventID id.EventID, userID id.UserID, status ParticipationStatus, now time.Time) *Participation {
	return &Participation{
		ID:        id.NewParticipationID(),
		TenantID:  tenantID,
		EventID:   eventID,
		UserID:    userID,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo applies an invitee-driven status change.
func (p *Participation) TransitionTo(to ParticipationStatus, now time.Time) error {
	if !to.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "status must be one of invited, accepted, declined")
	}
	if !CanTransition(p.Status, to) {
		return dErrors.New(dErrors.CodeConflict, "cannot change participation from "+string(p.Status)+" to "+string(to))
	}
	p.Status = to
	p.UpdatedAt = now
	return nil
}

func (p *Participation) IsAccepted() bool { return p.Status == StatusAccepted }
func (p *Participation) IsDeclined() bool { return p.Status == StatusDeclined }
