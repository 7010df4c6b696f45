package models

import id "agenda/pkg/domain"

// EventView is an event enriched with its organizer's display name.
type EventView struct {
	Event
	OrganizerEmail string
}

// ParticipantView is a participation enriched with the participant's display name.
type ParticipantView struct {
	Participation
	Email string
}

// UserEvent pairs an event with the requesting user's participation in it.
type UserEvent struct {
	Event           Event
	ParticipationID id.ParticipationID
	Status          ParticipationStatus
}
