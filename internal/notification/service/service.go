// Package service persists and delivers deduplicated notifications.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	notifmetrics "agenda/internal/notification/metrics"
	"agenda/internal/notification/models"
	id "agenda/pkg/domain"
	dErrors "agenda/pkg/domain-errors"
	"agenda/pkg/platform/sentinel"
)

type Store interface {
	Upsert(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, tenantID id.TenantID, userID id.UserID) ([]*models.Notification, error)
	Delete(ctx context.Context, tenantID id.TenantID, userID id.UserID, notificationID id.NotificationID) error
}

// Pusher delivers a notification message to a user's live connections.
type Pusher interface {
	PushToUser(ctx context.Context, userID id.UserID, message string) error
}

type Service struct {
	store    Store
	pusher   Pusher
	logger   *slog.Logger
	metrics  *notifmetrics.Metrics
	parallel int
	now      func() time.Time
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *notifmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPusher enables realtime delivery after persistence.
func WithPusher(p Pusher) Option {
	return func(s *Service) {
		s.pusher = p
	}
}

// WithParallelism caps concurrent recipient writes. Default is 8.
func WithParallelism(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.parallel = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		logger:   slog.Default(),
		parallel: 8,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fanout stores one notification per distinct recipient and then pushes it.
// Recipients are independent: a failure is logged and counted without
// affecting the others, and nothing is reported to the caller. The batch
// outlives cancellation of ctx.
func (s *Service) Fanout(ctx context.Context, batch models.Batch) models.FanoutResult {
	ctx = context.WithoutCancel(ctx)
	recipients := lo.Uniq(batch.Recipients)
	now := s.now().UTC()

	var (
		mu     sync.Mutex
		result models.FanoutResult
	)
	record := func(fn func(r *models.FanoutResult)) {
		mu.Lock()
		fn(&result)
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(s.parallel)
	for _, userID := range recipients {
		g.Go(func() error {
			n := batch.For(userID, now)
			if err := s.store.Upsert(ctx, n); err != nil {
				s.metrics.IncFailure("store")
				s.logger.WarnContext(ctx, "failed to store notification",
					"user_id", userID.String(),
					"event_id", batch.EventID.String(),
					"type", string(batch.Type),
					"error", err,
				)
				record(func(r *models.FanoutResult) { r.Failed++ })
				return nil
			}
			s.metrics.IncStored(string(batch.Type))
			record(func(r *models.FanoutResult) { r.Stored++ })

			if s.pusher == nil {
				return nil
			}
			if err := s.pusher.PushToUser(ctx, userID, batch.Message); err != nil {
				s.metrics.IncFailure("push")
				s.logger.DebugContext(ctx, "notification push failed",
					"user_id", userID.String(),
					"error", err,
				)
				return nil
			}
			s.metrics.IncPushed()
			record(func(r *models.FanoutResult) { r.Pushed++ })
			return nil
		})
	}
	_ = g.Wait()
	return result
}

// List returns the caller's notifications, newest first.
func (s *Service) List(ctx context.Context, p id.Principal) ([]*models.Notification, error) {
	out, err := s.store.ListByUser(ctx, p.TenantID, p.UserID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notifications")
	}
	return out, nil
}

// MarkRead acknowledges a notification by deleting it. Notifications of
// other users or tenants are reported as not found.
func (s *Service) MarkRead(ctx context.Context, p id.Principal, notificationID id.NotificationID) error {
	if err := s.store.Delete(ctx, p.TenantID, p.UserID, notificationID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "notification not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to acknowledge notification")
	}
	return nil
}
