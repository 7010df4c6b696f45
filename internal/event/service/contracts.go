package service

import (
	"context"
	"time"

	"agenda/internal/directory"
	"agenda/internal/event/models"
	notifmodels "agenda/internal/notification/models"
	id "agenda/pkg/domain"
)

type EventStore interface {
	Create(ctx context.Context, e *models.Event) error
	FindByID(ctx context.Context, tenantID id.TenantID, eventID id.EventID) (*models.Event, error)
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Event, error)
	ListByIDs(ctx context.Context, tenantID id.TenantID, ids []id.EventID) ([]*models.Event, error)
	Update(ctx context.Context, e *models.Event) error
	Delete(ctx context.Context, tenantID id.TenantID, eventID id.EventID) error
	ListExpiredIDs(ctx context.Context, cutoff time.Time) ([]id.EventID, error)
	DeleteByIDs(ctx context.Context, ids []id.EventID) (int64, error)
}

type ParticipationStore interface {
	Upsert(ctx context.Context, p *models.Participation) error
	UpsertInvited(ctx context.Context, tenantID id.TenantID, eventID id.EventID, userIDs []id.UserID, now time.Time) error
	FindByID(ctx context.Context, tenantID id.TenantID, participationID id.ParticipationID) (*models.Participation, error)
	FindByEventAndUser(ctx context.Context, tenantID id.TenantID, eventID id.EventID, userID id.UserID) (*models.Participation, error)
	UpdateStatus(ctx context.Context, p *models.Participation) error
	ListByEvent(ctx context.Context, tenantID id.TenantID, eventID id.EventID) ([]*models.Participation, error)
	ListByUserAndStatus(ctx context.Context, tenantID id.TenantID, userID id.UserID, status models.ParticipationStatus) ([]*models.Participation, error)
	Delete(ctx context.Context, tenantID id.TenantID, eventID id.EventID, userID id.UserID) error
	DeleteByEvent(ctx context.Context, tenantID id.TenantID, eventID id.EventID) error
	DeleteByEventIDs(ctx context.Context, eventIDs []id.EventID) (int64, error)
}

// ChatPurger removes chat history together with its event.
type ChatPurger interface {
	DeleteByEvent(ctx context.Context, tenantID id.TenantID, eventID id.EventID) error
	DeleteByEventIDs(ctx context.Context, eventIDs []id.EventID) (int64, error)
}

// IdentityResolver is the directory surface the service depends on.
// Resolve and ResolveAll fail; DisplayName and DisplayNames never do.
type IdentityResolver interface {
	Resolve(ctx context.Context, userID id.UserID, credential string) (*directory.UserSummary, error)
	ResolveAll(ctx context.Context, userIDs []id.UserID, credential string) (map[id.UserID]*directory.UserSummary, error)
	DisplayName(ctx context.Context, userID id.UserID, credential string) string
	DisplayNames(ctx context.Context, userIDs []id.UserID, credential string) map[id.UserID]string
}

// Notifier delivers notices best-effort; it never reports failure.
type Notifier interface {
	Fanout(ctx context.Context, batch notifmodels.Batch) notifmodels.FanoutResult
}

// LifecyclePublisher announces event changes to downstream consumers.
type LifecyclePublisher interface {
	Publish(ctx context.Context, evt models.LifecycleEvent) error
}
