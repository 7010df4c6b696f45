package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"agenda/internal/event/models"
	notifmodels "agenda/internal/notification/models"
	id "agenda/pkg/domain"
	dErrors "agenda/pkg/domain-errors"
	"agenda/pkg/platform/sentinel"
	"agenda/pkg/platform/validation"
)

// Invite writes an invited participation for every distinct user as the
// organizer. All invitees are resolved before anything is written, so one
// unknown user aborts the whole batch. Re-inviting resets an existing row
// to invited. Returns the number of distinct invitees.
func (s *Service) Invite(ctx context.Context, p id.Principal, eventID id.EventID, userIDs []id.UserID) (int, error) {
	invitees := lo.Uniq(userIDs)
	if len(invitees) == 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "user_ids must not be empty")
	}
	if err := validation.CheckSliceCount("user_ids", len(invitees), validation.MaxInviteBatch); err != nil {
		return 0, err
	}
	if lo.Contains(invitees, p.UserID) {
		return 0, dErrors.New(dErrors.CodeValidation, "the organizer cannot invite themself")
	}

	e, err := s.loadOwnedEvent(ctx, p, eventID, "invite participants")
	if err != nil {
		return 0, err
	}

	users, err := s.directory.ResolveAll(ctx, invitees, p.Credential)
	if err != nil {
		return 0, err
	}
	for _, userID := range invitees {
		if u := users[userID]; u != nil && !u.TenantID.IsNil() && u.TenantID != p.TenantID {
			return 0, dErrors.New(dErrors.CodeNotFound, "user "+userID.String()+" not found")
		}
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.participations.UpsertInvited(txCtx, e.TenantID, e.ID, invitees, s.clock()); err != nil {
			return wrapEventErr(err, "failed to store invitations")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for range invitees {
		s.metrics.IncTransition(string(models.StatusInvited))
	}
	s.logInfo(ctx, "participants invited",
		"event_id", e.ID.String(),
		"count", len(invitees),
	)
	if s.notifier != nil {
		s.notifier.Fanout(ctx, notifmodels.Batch{
			TenantID:   e.TenantID,
			EventID:    e.ID,
			Type:       notifmodels.TypeInvite,
			Message:    fmt.Sprintf("You were invited to the event %q.", e.Title),
			Recipients: invitees,
		})
	}
	return len(invitees), nil
}

// Respond changes the caller's own participation status. Only the invitee
// may respond; other users of the tenant are forbidden.
func (s *Service) Respond(ctx context.Context, p id.Principal, participationID id.ParticipationID, status models.ParticipationStatus) (*models.Participation, error) {
	part, err := s.participations.FindByID(ctx, p.TenantID, participationID)
	if err != nil {
		return nil, wrapParticipationErr(err, "failed to load participation")
	}
	if part.UserID != p.UserID {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the invited user can respond to this invitation")
	}
	if err := part.TransitionTo(status, s.clock()); err != nil {
		return nil, err
	}
	if err := s.participations.UpdateStatus(ctx, part); err != nil {
		return nil, wrapParticipationErr(err, "failed to update participation")
	}

	s.metrics.IncTransition(string(status))
	s.logInfo(ctx, "participation updated",
		"participation_id", part.ID.String(),
		"event_id", part.EventID.String(),
		"status", string(status),
	)
	return part, nil
}

// Join accepts an event directly. Public events need no prior row; private
// events require a pending invitation. Joining twice is a no-op.
func (s *Service) Join(ctx context.Context, p id.Principal, eventID id.EventID) (*models.Participation, error) {
	e, err := s.loadEvent(ctx, p.TenantID, eventID)
	if err != nil {
		return nil, err
	}

	existing, err := s.participations.FindByEventAndUser(ctx, p.TenantID, eventID, p.UserID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, wrapStoreErr(err, "failed to load participation")
	}
	if existing != nil && existing.IsAccepted() {
		return existing, nil
	}
	if e.IsPrivate() && (existing == nil || existing.Status != models.StatusInvited) {
		return nil, dErrors.New(dErrors.CodeForbidden, "invite required")
	}

	part := models.NewParticipation(p.TenantID, eventID, p.UserID, models.StatusAccepted, s.clock())
	if existing != nil {
		part.ID = existing.ID
		part.CreatedAt = existing.CreatedAt
	}
	if err := s.participations.Upsert(ctx, part); err != nil {
		return nil, wrapEventErr(err, "failed to join event")
	}

	s.metrics.IncTransition(string(models.StatusAccepted))
	s.logInfo(ctx, "participant joined",
		"event_id", eventID.String(),
		"user_id", p.UserID.String(),
	)
	return part, nil
}

// Leave removes the caller's accepted participation. The organizer cannot leave.
func (s *Service) Leave(ctx context.Context, p id.Principal, eventID id.EventID) error {
	e, err := s.loadEvent(ctx, p.TenantID, eventID)
	if err != nil {
		return err
	}
	if e.IsOrganizer(p.UserID) {
		return dErrors.New(dErrors.CodeConflict, "the organizer cannot leave their own event")
	}

	part, err := s.participations.FindByEventAndUser(ctx, p.TenantID, eventID, p.UserID)
	if err != nil {
		return wrapParticipationErr(err, "failed to load participation")
	}
	if !part.IsAccepted() {
		return dErrors.New(dErrors.CodeConflict, "only accepted participants can leave")
	}
	if err := s.participations.Delete(ctx, p.TenantID, eventID, p.UserID); err != nil {
		return wrapParticipationErr(err, "failed to leave event")
	}

	s.metrics.IncTransition("left")
	s.logInfo(ctx, "participant left",
		"event_id", eventID.String(),
		"user_id", p.UserID.String(),
	)
	return nil
}

// Evict removes another user's participation as the organizer.
func (s *Service) Evict(ctx context.Context, p id.Principal, eventID id.EventID, userID id.UserID) error {
	if _, err := s.loadOwnedEvent(ctx, p, eventID, "remove participants"); err != nil {
		return err
	}
	if userID == p.UserID {
		return dErrors.New(dErrors.CodeConflict, "the organizer cannot remove themself")
	}
	if err := s.participations.Delete(ctx, p.TenantID, eventID, userID); err != nil {
		return wrapParticipationErr(err, "failed to remove participant")
	}

	s.metrics.IncTransition("evicted")
	s.logInfo(ctx, "participant removed",
		"event_id", eventID.String(),
		"user_id", userID.String(),
	)
	return nil
}

// Participants lists an event's participations ordered by status, each
// with the participant's display name.
func (s *Service) Participants(ctx context.Context, p id.Principal, eventID id.EventID) ([]models.ParticipantView, error) {
	if _, err := s.loadEvent(ctx, p.TenantID, eventID); err != nil {
		return nil, err
	}
	parts, err := s.participations.ListByEvent(ctx, p.TenantID, eventID)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list participants")
	}
	userIDs := lo.Map(parts, func(part *models.Participation, _ int) id.UserID { return part.UserID })
	names := s.directory.DisplayNames(ctx, userIDs, p.Credential)

	return lo.Map(parts, func(part *models.Participation, _ int) models.ParticipantView {
		return models.ParticipantView{Participation: *part, Email: names[part.UserID]}
	}), nil
}

// UserEvents lists the events where userID has the given status. Users may
// list their own; owners may list anyone's in their tenant.
func (s *Service) UserEvents(ctx context.Context, p id.Principal, userID id.UserID, status models.ParticipationStatus) ([]models.UserEvent, error) {
	if !p.CanActFor(userID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "cannot view another user's events")
	}
	parts, err := s.participations.ListByUserAndStatus(ctx, p.TenantID, userID, status)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list participations")
	}
	if len(parts) == 0 {
		return []models.UserEvent{}, nil
	}
	byEvent := lo.KeyBy(parts, func(part *models.Participation) id.EventID { return part.EventID })
	events, err := s.events.ListByIDs(ctx, p.TenantID, lo.Keys(byEvent))
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load events")
	}

	return lo.Map(events, func(e *models.Event, _ int) models.UserEvent {
		part := byEvent[e.ID]
		return models.UserEvent{Event: *e, ParticipationID: part.ID, Status: part.Status}
	}), nil
}
