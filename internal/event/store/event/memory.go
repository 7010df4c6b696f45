package event

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"agenda/internal/event/models"
	id "agenda/pkg/domain"
	"agenda/pkg/platform/sentinel"
)

// InMemory stores events in memory for local runs and tests.
type InMemory struct {
	mu     sync.RWMutex
	events map[id.EventID]*models.Event
}

func NewInMemory() *InMemory {
	return &InMemory{events: make(map[id.EventID]*models.Event)}
}

func (s *InMemory) Create(_ context.Context, e *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.events[e.ID]; exists {
		return sentinel.ErrAlreadyExists
	}
	stored := *e
	s.events[e.ID] = &stored
	return nil
}

func (s *InMemory) FindByID(_ context.Context, tenantID id.TenantID, eventID id.EventID) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[eventID]
	if !ok || e.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	found := *e
	return &found, nil
}

func (s *InMemory) ListByTenant(_ context.Context, tenantID id.TenantID) ([]*models.Event, error) {
	return s.filter(func(e *models.Event) bool { return e.TenantID == tenantID }), nil
}

func (s *InMemory) ListByIDs(_ context.Context, tenantID id.TenantID, ids []id.EventID) ([]*models.Event, error) {
	return s.filter(func(e *models.Event) bool {
		return e.TenantID == tenantID && slices.Contains(ids, e.ID)
	}), nil
}

func (s *InMemory) Update(_ context.Context, e *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.events[e.ID]
	if !ok || current.TenantID != e.TenantID {
		return sentinel.ErrNotFound
	}
	stored := *e
	s.events[e.ID] = &stored
	return nil
}

func (s *InMemory) Delete(_ context.Context, tenantID id.TenantID, eventID id.EventID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	if !ok || e.TenantID != tenantID {
		return sentinel.ErrNotFound
	}
	delete(s.events, eventID)
	return nil
}

func (s *InMemory) ListExpiredIDs(_ context.Context, cutoff time.Time) ([]id.EventID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []id.EventID
	for eventID, e := range s.events {
		if e.EndTime.Before(cutoff) {
			ids = append(ids, eventID)
		}
	}
	return ids, nil
}

func (s *InMemory) DeleteByIDs(_ context.Context, ids []id.EventID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, eventID := range ids {
		if _, ok := s.events[eventID]; ok {
			delete(s.events, eventID)
			n++
		}
	}
	return n, nil
}

func (s *InMemory) filter(keep func(*models.Event) bool) []*models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Event{}
	for _, e := range s.events {
		if keep(e) {
			copied := *e
			out = append(out, &copied)
		}
	}
	slices.SortFunc(out, func(a, b *models.Event) int {
		if c := a.StartTime.Compare(b.StartTime); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out
}
