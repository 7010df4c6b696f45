package service

import (
	"context"
	"errors"

	id "agenda/pkg/domain"
	dErrors "agenda/pkg/domain-errors"
	"agenda/pkg/platform/sentinel"
)

// CheckRoomAccess decides whether a user may join an event's chat room:
// the event must exist in the tenant and the user must hold a participation
// that is not declined. It is evaluated on every join.
func (s *Service) CheckRoomAccess(ctx context.Context, tenantID id.TenantID, userID id.UserID, eventID id.EventID) error {
	if _, err := s.loadEvent(ctx, tenantID, eventID); err != nil {
		return err
	}
	part, err := s.participations.FindByEventAndUser(ctx, tenantID, eventID, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeForbidden, "you are not participating in this event")
		}
		return wrapStoreErr(err, "failed to load participation")
	}
	if part.IsDeclined() {
		return dErrors.New(dErrors.CodeForbidden, "you are not participating in this event")
	}
	return nil
}

// CheckHistoryAccess allows chat history reads by the organizer and by
// accepted participants.
func (s *Service) CheckHistoryAccess(ctx context.Context, tenantID id.TenantID, userID id.UserID, eventID id.EventID) error {
	e, err := s.loadEvent(ctx, tenantID, eventID)
	if err != nil {
		return err
	}
	if e.IsOrganizer(userID) {
		return nil
	}
	part, err := s.participations.FindByEventAndUser(ctx, tenantID, eventID, userID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return wrapStoreErr(err, "failed to load participation")
	}
	if part == nil || !part.IsAccepted() {
		return dErrors.New(dErrors.CodeForbidden, "only participants can read the chat history")
	}
	return nil
}
