package service

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"agenda/internal/event/models"
	notifmodels "agenda/internal/notification/models"
	id "agenda/pkg/domain"
	dErrors "agenda/pkg/domain-errors"
)

// CreateEvent validates the draft, confirms the organizer with the
// directory and stores the event together with the organizer's accepted
// participation. A directory failure aborts the write.
func (s *Service) CreateEvent(ctx context.Context, p id.Principal, draft models.EventDraft) (*models.EventView, error) {
	e, err := models.NewEvent(p.TenantID, p.UserID, draft, s.clock())
	if err != nil {
		return nil, err
	}

	organizer, err := s.directory.Resolve(ctx, p.UserID, p.Credential)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.events.Create(txCtx, e); err != nil {
			return wrapStoreErr(err, "failed to create event")
		}
		self := models.NewParticipation(e.TenantID, e.ID, p.UserID, models.StatusAccepted, e.CreatedAt)
		if err := s.participations.Upsert(txCtx, self); err != nil {
			return wrapStoreErr(err, "failed to add organizer")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncLifecycle("create")
	s.logInfo(ctx, "event created",
		"event_id", e.ID.String(),
		"tenant_id", e.TenantID.String(),
		"organizer_id", p.UserID.String(),
	)
	s.publish(ctx, models.LifecycleCreated, e, p.UserID, 0)

	return &models.EventView{Event: *e, OrganizerEmail: organizer.Email}, nil
}

// GetEvent returns an event of the caller's tenant with its organizer's name.
func (s *Service) GetEvent(ctx context.Context, p id.Principal, eventID id.EventID) (*models.EventView, error) {
	e, err := s.loadEvent(ctx, p.TenantID, eventID)
	if err != nil {
		return nil, err
	}
	return &models.EventView{
		Event:          *e,
		OrganizerEmail: s.directory.DisplayName(ctx, e.OrganizerID, p.Credential),
	}, nil
}

// ListEvents returns the tenant's events ordered by start time.
func (s *Service) ListEvents(ctx context.Context, p id.Principal) ([]models.EventView, error) {
	events, err := s.events.ListByTenant(ctx, p.TenantID)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list events")
	}
	organizers := lo.Map(events, func(e *models.Event, _ int) id.UserID { return e.OrganizerID })
	names := s.directory.DisplayNames(ctx, organizers, p.Credential)

	return lo.Map(events, func(e *models.Event, _ int) models.EventView {
		return models.EventView{Event: *e, OrganizerEmail: names[e.OrganizerID]}
	}), nil
}

// UpdateEvent applies a partial update as the organizer and notifies the
// other participants once per update.
func (s *Service) UpdateEvent(ctx context.Context, p id.Principal, eventID id.EventID, update models.EventUpdate) (*models.EventView, error) {
	if update.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one field must be provided")
	}
	e, err := s.loadOwnedEvent(ctx, p, eventID, "modify this event")
	if err != nil {
		return nil, err
	}
	if err := e.Apply(update, s.clock()); err != nil {
		return nil, err
	}

	participants, err := s.participations.ListByEvent(ctx, p.TenantID, eventID)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load participants")
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.events.Update(txCtx, e); err != nil {
			return wrapEventErr(err, "failed to update event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncLifecycle("update")
	s.logInfo(ctx, "event updated",
		"event_id", e.ID.String(),
		"tenant_id", e.TenantID.String(),
	)
	s.notify(ctx, e, p.UserID, notifmodels.TypeUpdate, fmt.Sprintf("The event %q was updated.", e.Title), participants)
	s.publish(ctx, models.LifecycleUpdated, e, p.UserID, len(participants))

	return &models.EventView{
		Event:          *e,
		OrganizerEmail: s.directory.DisplayName(ctx, e.OrganizerID, p.Credential),
	}, nil
}

// DeleteEvent removes an event with its participations and chat history as
// the organizer, then notifies the former participants.
func (s *Service) DeleteEvent(ctx context.Context, p id.Principal, eventID id.EventID) error {
	e, err := s.loadOwnedEvent(ctx, p, eventID, "delete this event")
	if err != nil {
		return err
	}

	participants, err := s.participations.ListByEvent(ctx, p.TenantID, eventID)
	if err != nil {
		return wrapStoreErr(err, "failed to load participants")
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.chat.DeleteByEvent(txCtx, e.TenantID, e.ID); err != nil {
			return wrapStoreErr(err, "failed to delete chat history")
		}
		if err := s.participations.DeleteByEvent(txCtx, e.TenantID, e.ID); err != nil {
			return wrapStoreErr(err, "failed to delete participations")
		}
		if err := s.events.Delete(txCtx, e.TenantID, e.ID); err != nil {
			return wrapEventErr(err, "failed to delete event")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.IncLifecycle("delete")
	s.logInfo(ctx, "event deleted",
		"event_id", e.ID.String(),
		"tenant_id", e.TenantID.String(),
		"participants", len(participants),
	)
	s.notify(ctx, e, p.UserID, notifmodels.TypeCancel, fmt.Sprintf("The event %q was cancelled.", e.Title), participants)
	s.publish(ctx, models.LifecycleCancelled, e, p.UserID, len(participants))
	return nil
}
