package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"agenda/internal/chat/models"
	id "agenda/pkg/domain"
	"agenda/pkg/platform/sentinel"
)

// InMemory stores chat messages in memory for local runs and tests.
// Purged events refuse further messages, like the foreign key does in Postgres.
type InMemory struct {
	mu       sync.RWMutex
	messages map[id.EventID][]models.Message
	purged   map[id.EventID]map[id.TenantID]bool
	expired  map[id.EventID]bool
}

func NewInMemory() *InMemory {
	return &InMemory{
		messages: make(map[id.EventID][]models.Message),
		purged:   make(map[id.EventID]map[id.TenantID]bool),
		expired:  make(map[id.EventID]bool),
	}
}

func (s *InMemory) Append(_ context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expired[m.EventID] || s.purged[m.EventID][m.TenantID] {
		return fmt.Errorf("event no longer exists: %w", sentinel.ErrNotFound)
	}
	s.messages[m.EventID] = append(s.messages[m.EventID], *m)
	return nil
}

func (s *InMemory) ListByEvent(_ context.Context, tenantID id.TenantID, eventID id.EventID) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Message{}
	for _, m := range s.messages[eventID] {
		if m.TenantID == tenantID {
			copied := m
			out = append(out, &copied)
		}
	}
	slices.SortFunc(out, func(a, b *models.Message) int {
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

func (s *InMemory) HasSent(_ context.Context, tenantID id.TenantID, eventID id.EventID, userID id.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.ContainsFunc(s.messages[eventID], func(m models.Message) bool {
		return m.TenantID == tenantID && m.SenderID == userID
	}), nil
}

func (s *InMemory) DeleteByEvent(_ context.Context, tenantID id.TenantID, eventID id.EventID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[eventID] = slices.DeleteFunc(s.messages[eventID], func(m models.Message) bool {
		return m.TenantID == tenantID
	})
	if len(s.messages[eventID]) == 0 {
		delete(s.messages, eventID)
	}
	if s.purged[eventID] == nil {
		s.purged[eventID] = make(map[id.TenantID]bool)
	}
	s.purged[eventID][tenantID] = true
	return nil
}

func (s *InMemory) DeleteByEventIDs(_ context.Context, eventIDs []id.EventID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, eventID := range eventIDs {
		n += int64(len(s.messages[eventID]))
		delete(s.messages, eventID)
		s.expired[eventID] = true
	}
	return n, nil
}
