package main

import (
	"context"
	"sync"

	notifservice "agenda/internal/notification/service"
	id "agenda/pkg/domain"
)

// lazyPusher lets the notification service be built before the realtime
// hub it pushes through. Pushes before set are dropped.
type lazyPusher struct {
	mu     sync.RWMutex
	target notifservice.Pusher
}

func (p *lazyPusher) set(target notifservice.Pusher) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.target = target
}

func (p *lazyPusher) PushToUser(ctx context.Context, userID id.UserID, message string) error {
	p.mu.RLock()
	target := p.target
	p.mu.RUnlock()
	if target == nil {
		return nil
	}
	return target.PushToUser(ctx, userID, message)
}
