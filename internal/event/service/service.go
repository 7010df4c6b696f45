// Package service implements event lifecycle orchestration and the
// participation state machine.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/lo"

	eventmetrics "agenda/internal/event/metrics"
	"agenda/internal/event/models"
	notifmodels "agenda/internal/notification/models"
	id "agenda/pkg/domain"
	dErrors "agenda/pkg/domain-errors"
	"agenda/pkg/platform/sentinel"
	"agenda/pkg/requestcontext"
)

// Service orchestrates events and participations. Every read and write is
// scoped to the caller's tenant; events of other tenants are reported as
// not found.
type Service struct {
	events         EventStore
	participations ParticipationStore
	chat           ChatPurger
	directory      IdentityResolver
	notifier       Notifier
	publisher      LifecyclePublisher
	tx             StoreTx
	logger         *slog.Logger
	metrics        *eventmetrics.Metrics
	now            func() time.Time
}

func New(events EventStore, participations ParticipationStore, chat ChatPurger, directory IdentityResolver, opts ...Option) *Service {
	s := &Service{
		events:         events,
		participations: participations,
		chat:           chat,
		directory:      directory,
		logger:         slog.Default(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = newInMemoryStoreTx()
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// loadEvent fetches an event inside the caller's tenant.
func (s *Service) loadEvent(ctx context.Context, tenantID id.TenantID, eventID id.EventID) (*models.Event, error) {
	e, err := s.events.FindByID(ctx, tenantID, eventID)
	if err != nil {
		return nil, wrapEventErr(err, "failed to load event")
	}
	return e, nil
}

// loadOwnedEvent fetches an event and requires the caller to be its organizer.
func (s *Service) loadOwnedEvent(ctx context.Context, p id.Principal, eventID id.EventID, action string) (*models.Event, error) {
	e, err := s.loadEvent(ctx, p.TenantID, eventID)
	if err != nil {
		return nil, err
	}
	if !e.IsOrganizer(p.UserID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the organizer can "+action)
	}
	return e, nil
}

// notify fans out to every participant except the actor. Failures are
// absorbed by the notifier.
func (s *Service) notify(ctx context.Context, e *models.Event, actor id.UserID, t notifmodels.Type, message string, participants []*models.Participation) {
	if s.notifier == nil {
		return
	}
	recipients := lo.FilterMap(participants, func(p *models.Participation, _ int) (id.UserID, bool) {
		return p.UserID, p.UserID != actor
	})
	if len(recipients) == 0 {
		return
	}
	s.notifier.Fanout(ctx, notifmodels.Batch{
		TenantID:   e.TenantID,
		EventID:    e.ID,
		Type:       t,
		Message:    message,
		Recipients: recipients,
	})
}

// publish announces a lifecycle change. Failures are logged and counted only.
func (s *Service) publish(ctx context.Context, t models.LifecycleType, e *models.Event, actor id.UserID, recipients int) {
	if s.publisher == nil {
		return
	}
	evt := models.NewLifecycleEvent(t, e, actor, recipients, s.clock())
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.metrics.IncPublishFailure()
		s.logger.WarnContext(ctx, "failed to publish lifecycle event",
			"type", string(t),
			"event_id", e.ID.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func (s *Service) logInfo(ctx context.Context, msg string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	s.logger.InfoContext(ctx, msg, attributes...)
}

// wrapEventErr translates store errors exactly once. Domain errors pass through.
func wrapEventErr(err error, action string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "event not found")
	}
	return wrapStoreErr(err, action)
}

func wrapParticipationErr(err error, action string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "participation not found")
	}
	return wrapStoreErr(err, action)
}

func wrapStoreErr(err error, action string) error {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}
