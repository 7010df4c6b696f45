package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	id "agenda/pkg/domain"
)

// DefaultRelayChannel carries notification pushes between replicas.
const DefaultRelayChannel = "agenda:notifications"

type relayMessage struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// Relay publishes pushes on a Redis channel so that every replica delivers
// them to its own connections.
type Relay struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  *slog.Logger
}

func NewRelay(client *redis.Client, channel string, hub *Hub, logger *slog.Logger) *Relay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{client: client, channel: channel, hub: hub, logger: logger}
}

// PushToUser fans the message out to all replicas, this one included.
func (r *Relay) PushToUser(ctx context.Context, userID id.UserID, message string) error {
	payload, err := json.Marshal(relayMessage{UserID: userID.String(), Message: message})
	if err != nil {
		return fmt.Errorf("encode relay message: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish relay message: %w", err)
	}
	return nil
}

// Run delivers relayed pushes to local connections until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.dispatch(msg.Payload)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Relay) dispatch(payload string) {
	var msg relayMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		r.logger.Warn("dropping malformed relay message", "error", err)
		return
	}
	userID, err := id.ParseUserID(msg.UserID)
	if err != nil {
		r.logger.Warn("dropping relay message with bad user id", "error", err)
		return
	}
	r.hub.deliverLocal(userID, msg.Message)
}
