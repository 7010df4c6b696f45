package participation

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

type eventUser struct {
	event id.EventID
	user  id.UserID
}

// InMemory stores participations in memory for local runs and tests.
type InMemory struct {
	mu     sync.RWMutex
	byID   map[id.ParticipationID]*models.Participation
	byPair map[eventUser]id.ParticipationID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:   make(map[id.ParticipationID]*models.Participation),
		byPair: make(map[eventUser]id.ParticipationID),
	}
}

func (s *InMemory) Upsert(_ context.Context, p *models.Participation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.upsertLocked(*p)
	p.ID = stored.ID
	p.CreatedAt = stored.CreatedAt
	return nil
}

func (s *InMemory) UpsertInvited(_ context.Context, tenantID id.TenantID, eventID id.EventID, userIDs []id.UserID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, userID := range userIDs {
		s.upsertLocked(*models.NewParticipation(tenantID, eventID, userID, models.StatusInvited, now))
	}
	return nil
}

func (s *InMemory) upsertLocked(p models.Participation) *models.Participation {
	key := eventUser{event: p.EventID, user: p.UserID}
	if existingID, ok := s.byPair[key]; ok {
		existing := s.byID[existingID]
		existing.Status = p.Status
		existing.UpdatedAt = p.UpdatedAt
		return existing
	}
	s.byID[p.ID] = &p
	s.byPair[key] = p.ID
	return &p
}

func (s *InMemory) FindByID(_ context.Context, tenantID id.TenantID, participationID id.ParticipationID) (*models.Participation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[participationID]
	if !ok || p.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	found := *p
	return &found, nil
}

func (s *InMemory) FindByEventAndUser(_ context.Context, tenantID id.TenantID, eventID id.EventID, userID id.UserID) (*models.Participation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pid, ok := s.byPair[eventUser{event: eventID, user: userID}]
	if !ok || s.byID[pid].TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	found := *s.byID[pid]
	return &found, nil
}

func (s *InMemory) UpdateStatus(_ context.Context, p *models.Participation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byID[p.ID]
	if !ok || existing.TenantID != p.TenantID {
		return sentinel.ErrNotFound
	}
	existing.Status = p.Status
	existing.UpdatedAt = p.UpdatedAt
	return nil
}

func (s *InMemory) ListByEvent(_ context.Context, tenantID id.TenantID, eventID id.EventID) ([]*models.Participation, error) {
	out := s.filter(func(p *models.Participation) bool {
		return p.TenantID == tenantID && p.EventID == eventID
	})
	slices.SortFunc(out, func(a, b *models.Participation) int {
		if c := strings.Compare(string(a.Status), string(b.Status)); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

func (s *InMemory) ListByUserAndStatus(_ context.Context, tenantID id.TenantID, userID id.UserID, status models.ParticipationStatus) ([]*models.Participation, error) {
	out := s.filter(func(p *models.Participation) bool {
		return p.TenantID == tenantID && p.UserID == userID && p.Status == status
	})
	slices.SortFunc(out, func(a, b *models.Participation) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

func (s *InMemory) Delete(_ context.Context, tenantID id.TenantID, eventID id.EventID, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := eventUser{event: eventID, user: userID}
	pid, ok := s.byPair[key]
	if !ok || s.byID[pid].TenantID != tenantID {
		return sentinel.ErrNotFound
	}
	delete(s.byPair, key)
	delete(s.byID, pid)
	return nil
}

func (s *InMemory) DeleteByEvent(_ context.Context, tenantID id.TenantID, eventID id.EventID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for pid, p := range s.byID {
		if p.TenantID == tenantID && p.EventID == eventID {
			s.removeLocked(pid, p)
		}
	}
	return nil
}

func (s *InMemory) DeleteByEventIDs(_ context.Context, eventIDs []id.EventID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for pid, p := range s.byID {
		if slices.Contains(eventIDs, p.EventID) {
			s.removeLocked(pid, p)
			n++
		}
	}
	return n, nil
}

func (s *InMemory) removeLocked(pid id.ParticipationID, p *models.Participation) {
	delete(s.byPair, eventUser{event: p.EventID, user: p.UserID})
	delete(s.byID, pid)
}

func (s *InMemory) filter(keep func(*models.Participation) bool) []*models.Participation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Participation{}
	for _, p := range s.byID {
		if keep(p) {
			copied := *p
			out = append(out, &copied)
		}
	}
	return out
}
