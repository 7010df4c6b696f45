package realtime

import (
	"sync"

	id "agenda/pkg/domain"
)

type postRequest struct {
	from       *conn
	text       string
	senderName string
}

// room serializes the messages of one event. A single goroutine drains the
// inbox, so a message is persisted before it is broadcast and members see
// messages in persistence order.
type room struct {
	eventID id.EventID

	mu      sync.RWMutex
	members map[*conn]struct{}

	inbox chan postRequest
	done  chan struct{}
}

func newRoom(eventID id.EventID, backlog int) *room {
	return &room{
		eventID: eventID,
		members: make(map[*conn]struct{}),
		inbox:   make(chan postRequest, backlog),
		done:    make(chan struct{}),
	}
}

func (r *room) add(c *conn) {
	r.mu.Lock()
	r.members[c] = struct{}{}
	r.mu.Unlock()
}

// remove reports whether the room is now empty.
func (r *room) remove(c *conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, c)
	return len(r.members) == 0
}

func (r *room) snapshot() []*conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*conn, 0, len(r.members))
	for c := range r.members {
		out = append(out, c)
	}
	return out
}

// submit queues a message. It returns false once the room is closed.
func (r *room) submit(req postRequest) bool {
	select {
	case <-r.done:
		return false
	default:
	}
	select {
	case r.inbox <- req:
		return true
	case <-r.done:
		return false
	}
}

func (r *room) close() {
	close(r.done)
}

func (r *room) run(deliver func(r *room, req postRequest)) {
	for {
		select {
		case req := <-r.inbox:
			deliver(r, req)
		case <-r.done:
			return
		}
	}
}
