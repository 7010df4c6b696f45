// Package realtime serves the websocket channel used for event chat rooms
// and notification pushes.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"
	"golang.org/x/time/rate"

	chatmetrics "agenda/internal/chat/metrics"
	"agenda/internal/chat/models"
	id "agenda/pkg/domain"
	dErrors "agenda/pkg/domain-errors"
	"agenda/pkg/platform/httputil"
	"agenda/pkg/platform/middleware/auth"
)

const maxFrameBytes = 16 * 1024

// ChatService is the chat surface the hub depends on.
type ChatService interface {
	AuthorizeJoin(ctx context.Context, p id.Principal, eventID id.EventID) error
	SenderName(ctx context.Context, p id.Principal) string
	Post(ctx context.Context, p id.Principal, eventID id.EventID, text string) (*models.Message, error)
}

// Hub tracks connections per user and rooms per event on this replica.
type Hub struct {
	chat      ChatService
	validator auth.JWTValidator
	logger    *slog.Logger
	metrics   *chatmetrics.Metrics

	framesPerSecond float64
	burst           int
	writeTimeout    time.Duration
	persistTimeout  time.Duration
	backlog         int

	mu    sync.Mutex
	rooms map[id.EventID]*room
	users map[id.UserID]map[*conn]struct{}
}

type Option func(h *Hub)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

func WithMetrics(m *chatmetrics.Metrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

// WithFrameRate limits inbound frames per connection. Defaults: 5/s, burst 10.
func WithFrameRate(perSecond float64, burst int) Option {
	return func(h *Hub) {
		if perSecond > 0 && burst > 0 {
			h.framesPerSecond = perSecond
			h.burst = burst
		}
	}
}

// WithWriteTimeout bounds each outbound frame write. Default is 5s.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

func NewHub(chat ChatService, validator auth.JWTValidator, opts ...Option) *Hub {
	h := &Hub{
		chat:            chat,
		validator:       validator,
		logger:          slog.Default(),
		framesPerSecond: 5,
		burst:           10,
		writeTimeout:    5 * time.Second,
		persistTimeout:  5 * time.Second,
		backlog:         64,
		rooms:           make(map[id.EventID]*room),
		users:           make(map[id.UserID]map[*conn]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP verifies the token before upgrading. Failures get a plain 401.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.HandshakeToken(r)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing token"))
		return
	}
	p, err := auth.Authenticate(h.validator, token)
	if err != nil {
		h.logger.WarnContext(r.Context(), "realtime handshake rejected", "error", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
		return
	}
	websocket.Server{
		Handler: func(ws *websocket.Conn) { h.serve(ws, p) },
	}.ServeHTTP(w, r)
}

func (h *Hub) serve(ws *websocket.Conn, p id.Principal) {
	ws.MaxPayloadBytes = maxFrameBytes
	c := &conn{
		ws:           ws,
		principal:    p,
		limiter:      rate.NewLimiter(rate.Limit(h.framesPerSecond), h.burst),
		writeTimeout: h.writeTimeout,
	}
	h.register(c)
	defer func() {
		h.unregister(c)
		_ = ws.Close()
	}()

	ctx := ws.Request().Context()
	for {
		var f Frame
		if err := websocket.JSON.Receive(ws, &f); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				h.reject(c, "invalid_frame", "invalid frame")
				continue
			}
			return
		}
		if !c.limiter.Allow() {
			h.reject(c, "rate_limited", "rate limit exceeded")
			continue
		}

		switch f.Type {
		case FrameJoin:
			h.handleJoin(ctx, c, f.Payload)
		case FrameSend:
			h.handleSend(ctx, c, f.Payload)
		default:
			h.reject(c, "unknown_type", "unsupported frame type")
		}
	}
}

func (h *Hub) reject(c *conn, reason, message string) {
	h.metrics.IncRejected(reason)
	c.fail(message)
}

func (h *Hub) handleJoin(ctx context.Context, c *conn, raw json.RawMessage) {
	var payload joinPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.reject(c, "invalid_payload", "invalid join payload")
		return
	}
	eventID, err := id.ParseEventID(payload.EventID)
	if err != nil {
		h.reject(c, "invalid_payload", "event_id must be a valid id")
		return
	}
	if err := h.chat.AuthorizeJoin(ctx, c.principal, eventID); err != nil {
		h.reject(c, "join_denied", reason(err))
		return
	}

	h.join(c, eventID)
	c.addRoom(eventID)
	_ = c.send(newFrame(FrameJoined, joinedPayload{EventID: eventID.String()}))
}

func (h *Hub) handleSend(ctx context.Context, c *conn, raw json.RawMessage) {
	var payload sendPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.reject(c, "invalid_payload", "invalid message payload")
		return
	}

	var eventID id.EventID
	if payload.EventID != "" {
		parsed, err := id.ParseEventID(payload.EventID)
		if err != nil {
			h.reject(c, "invalid_payload", "event_id must be a valid id")
			return
		}
		if !c.inRoom(parsed) {
			h.reject(c, "not_joined", "join the event chat before sending")
			return
		}
		eventID = parsed
	} else {
		latest, ok := c.latestRoom()
		if !ok {
			h.reject(c, "not_joined", "join the event chat before sending")
			return
		}
		eventID = latest
	}
	if _, err := models.NormalizeText(payload.Text); err != nil {
		h.reject(c, "invalid_text", reason(err))
		return
	}

	h.mu.Lock()
	r := h.rooms[eventID]
	h.mu.Unlock()
	req := postRequest{from: c, text: payload.Text, senderName: h.chat.SenderName(ctx, c.principal)}
	if r == nil || !r.submit(req) {
		h.reject(c, "not_joined", "join the event chat before sending")
	}
}

// deliver runs on the room goroutine: persist, then broadcast to every
// current member including the sender.
func (h *Hub) deliver(r *room, req postRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), h.persistTimeout)
	defer cancel()

	msg, err := h.chat.Post(ctx, req.from.principal, r.eventID, req.text)
	if err != nil {
		h.reject(req.from, "persist_failed", reason(err))
		return
	}
	frame := newFrame(FrameMessage, messagePayload{
		ID:          msg.ID.String(),
		EventID:     msg.EventID.String(),
		SenderID:    msg.SenderID.String(),
		SenderEmail: req.senderName,
		Text:        msg.Text,
		Timestamp:   msg.CreatedAt,
	})
	for _, member := range r.snapshot() {
		if err := member.send(frame); err != nil {
			h.logger.Debug("chat broadcast write failed",
				"event_id", r.eventID.String(),
				"user_id", member.principal.UserID.String(),
				"error", err,
			)
		}
	}
}

func (h *Hub) register(c *conn) {
	h.mu.Lock()
	conns, ok := h.users[c.principal.UserID]
	if !ok {
		conns = make(map[*conn]struct{})
		h.users[c.principal.UserID] = conns
	}
	conns[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.AddConnections(1)
}

// unregister drops the connection from its user channel and every room,
// tearing down rooms left empty.
func (h *Hub) unregister(c *conn) {
	h.mu.Lock()
	if conns, ok := h.users[c.principal.UserID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.users, c.principal.UserID)
		}
	}
	closed := 0
	for _, eventID := range c.joinedRooms() {
		r, ok := h.rooms[eventID]
		if !ok {
			continue
		}
		if r.remove(c) {
			delete(h.rooms, eventID)
			r.close()
			closed++
		}
	}
	h.mu.Unlock()
	h.metrics.AddConnections(-1)
	h.metrics.AddRooms(-float64(closed))
}

func (h *Hub) join(c *conn, eventID id.EventID) {
	h.mu.Lock()
	r, ok := h.rooms[eventID]
	if !ok {
		r = newRoom(eventID, h.backlog)
		h.rooms[eventID] = r
		go r.run(h.deliver)
	}
	r.add(c)
	h.mu.Unlock()
	if !ok {
		h.metrics.AddRooms(1)
	}
}

// PushToUser sends a new_notification frame to every connection the user
// has open on this replica. A user without connections is not an error.
func (h *Hub) PushToUser(_ context.Context, userID id.UserID, message string) error {
	h.deliverLocal(userID, message)
	return nil
}

func (h *Hub) deliverLocal(userID id.UserID, message string) int {
	h.mu.Lock()
	conns := make([]*conn, 0, len(h.users[userID]))
	for c := range h.users[userID] {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	frame := newFrame(FrameNotification, notificationPayload{Message: message})
	delivered := 0
	for _, c := range conns {
		if err := c.send(frame); err == nil {
			delivered++
		}
	}
	return delivered
}

// reason exposes domain messages to the client and hides internal detail.
func reason(err error) string {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) && domainErr.Code != dErrors.CodeInternal {
		return domainErr.Error()
	}
	return "internal error"
}
