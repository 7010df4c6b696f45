package realtime

import (
	"slices"
	"sync"
	"time"

	"golang.org/x/net/websocket"
	"golang.org/x/time/rate"

	id "agenda/pkg/domain"
)

// conn is one authenticated websocket connection. Writes are serialized
// because rooms and notification pushes write from other goroutines.
type conn struct {
	ws           *websocket.Conn
	principal    id.Principal
	limiter      *rate.Limiter
	writeTimeout time.Duration

	writeMu sync.Mutex

	roomsMu sync.Mutex
	rooms   []id.EventID
}

func (c *conn) send(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return websocket.JSON.Send(c.ws, f)
}

func (c *conn) fail(reason string) {
	_ = c.send(newFrame(FrameError, errorPayload{Reason: reason}))
}

// addRoom records a join. The most recent join is last.
func (c *conn) addRoom(eventID id.EventID) {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	c.rooms = slices.DeleteFunc(c.rooms, func(e id.EventID) bool { return e == eventID })
	c.rooms = append(c.rooms, eventID)
}

func (c *conn) inRoom(eventID id.EventID) bool {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	return slices.Contains(c.rooms, eventID)
}

func (c *conn) latestRoom() (id.EventID, bool) {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	if len(c.rooms) == 0 {
		return id.EventID{}, false
	}
	return c.rooms[len(c.rooms)-1], true
}

func (c *conn) joinedRooms() []id.EventID {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	return slices.Clone(c.rooms)
}
