package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"agenda/internal/notification/models"
	id "agenda/pkg/domain"
	"agenda/pkg/platform/sentinel"
)

type dedupeKey struct {
	tenant id.TenantID
	user   id.UserID
	event  id.EventID
	kind   models.Type
}

// InMemory stores notifications in memory for local runs and tests.
type InMemory struct {
	mu    sync.RWMutex
	byKey map[dedupeKey]*models.Notification
}

func NewInMemory() *InMemory {
	return &InMemory{byKey: make(map[dedupeKey]*models.Notification)}
}

func (s *InMemory) Upsert(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := dedupeKey{tenant: n.TenantID, user: n.UserID, event: n.EventID, kind: n.Type}
	if existing, ok := s.byKey[key]; ok {
		existing.Message = n.Message
		existing.CreatedAt = n.CreatedAt
		n.ID = existing.ID
		return nil
	}
	stored := *n
	s.byKey[key] = &stored
	return nil
}

func (s *InMemory) ListByUser(_ context.Context, tenantID id.TenantID, userID id.UserID) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Notification{}
	for key, n := range s.byKey {
		if key.tenant == tenantID && key.user == userID {
			copied := *n
			out = append(out, &copied)
		}
	}
	slices.SortFunc(out, func(a, b *models.Notification) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID.String(), a.ID.String())
	})
	return out, nil
}

func (s *InMemory) Delete(_ context.Context, tenantID id.TenantID, userID id.UserID, notificationID id.NotificationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, n := range s.byKey {
		if n.ID == notificationID && key.tenant == tenantID && key.user == userID {
			delete(s.byKey, key)
			return nil
		}
	}
	return sentinel.ErrNotFound
}
