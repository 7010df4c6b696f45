// Package service implements chat history reads and message persistence.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/lo"

	chatmetrics "agenda/internal/chat/metrics"
	"agenda/internal/chat/models"
	id "agenda/pkg/domain"
	dErrors "agenda/pkg/domain-errors"
	"agenda/pkg/platform/sentinel"
)

type Store interface {
	Append(ctx context.Context, m *models.Message) error
	ListByEvent(ctx context.Context, tenantID id.TenantID, eventID id.EventID) ([]*models.Message, error)
	HasSent(ctx context.Context, tenantID id.TenantID, eventID id.EventID, userID id.UserID) (bool, error)
}

// Access decides who may enter a room and who may read its history.
type Access interface {
	CheckRoomAccess(ctx context.Context, tenantID id.TenantID, userID id.UserID, eventID id.EventID) error
	CheckHistoryAccess(ctx context.Context, tenantID id.TenantID, userID id.UserID, eventID id.EventID) error
}

// Names resolves display names; it never fails.
type Names interface {
	DisplayName(ctx context.Context, userID id.UserID, credential string) string
	DisplayNames(ctx context.Context, userIDs []id.UserID, credential string) map[id.UserID]string
}

type Service struct {
	store   Store
	access  Access
	names   Names
	ids     *models.IDSource
	logger  *slog.Logger
	metrics *chatmetrics.Metrics
	now     func() time.Time
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *chatmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(store Store, access Access, names Names, opts ...Option) *Service {
	s := &Service{
		store:  store,
		access: access,
		names:  names,
		ids:    models.NewIDSource(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// History returns an event's messages in append order, each with its
// sender's display name. Readers are the organizer, accepted participants
// and anyone who posted in the room. Leaving deletes the participation, so a
// previous message is the only trace of a former participant.
func (s *Service) History(ctx context.Context, p id.Principal, eventID id.EventID) ([]models.MessageView, error) {
	if err := s.access.CheckHistoryAccess(ctx, p.TenantID, p.UserID, eventID); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeForbidden) {
			return nil, err
		}
		sent, sentErr := s.store.HasSent(ctx, p.TenantID, eventID, p.UserID)
		if sentErr != nil {
			return nil, dErrors.Wrap(sentErr, dErrors.CodeInternal, "failed to check chat history access")
		}
		if !sent {
			return nil, err
		}
	}

	messages, err := s.store.ListByEvent(ctx, p.TenantID, eventID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load chat history")
	}
	senders := lo.Uniq(lo.Map(messages, func(m *models.Message, _ int) id.UserID { return m.SenderID }))
	names := s.names.DisplayNames(ctx, senders, p.Credential)

	return lo.Map(messages, func(m *models.Message, _ int) models.MessageView {
		return models.MessageView{Message: *m, SenderEmail: names[m.SenderID]}
	}), nil
}

// AuthorizeJoin re-checks room access. It is called on every join.
func (s *Service) AuthorizeJoin(ctx context.Context, p id.Principal, eventID id.EventID) error {
	return s.access.CheckRoomAccess(ctx, p.TenantID, p.UserID, eventID)
}

// SenderName resolves the caller's display name for outgoing messages.
func (s *Service) SenderName(ctx context.Context, p id.Principal) string {
	return s.names.DisplayName(ctx, p.UserID, p.Credential)
}

// Post validates and persists a message. Room access is checked again so a
// deleted event or a declined sender cannot keep writing through an open
// connection. The caller owns ordering: a room calls Post from a single
// goroutine so ids follow delivery order.
func (s *Service) Post(ctx context.Context, p id.Principal, eventID id.EventID, text string) (*models.Message, error) {
	text, err := models.NormalizeText(text)
	if err != nil {
		s.metrics.IncMessage("invalid")
		return nil, err
	}
	if err := s.access.CheckRoomAccess(ctx, p.TenantID, p.UserID, eventID); err != nil {
		s.metrics.IncMessage("rejected")
		return nil, err
	}
	now := s.now().UTC()
	m := &models.Message{
		ID:        s.ids.Next(now),
		TenantID:  p.TenantID,
		EventID:   eventID,
		SenderID:  p.UserID,
		Text:      text,
		CreatedAt: now,
	}
	if err := s.store.Append(ctx, m); err != nil {
		s.metrics.IncMessage("failed")
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		s.logger.ErrorContext(ctx, "failed to store chat message",
			"event_id", eventID.String(),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store message")
	}
	s.metrics.IncMessage("stored")
	return m, nil
}
