package realtime

import (
	"encoding/json"
	"time"
)

// Frame types exchanged over the realtime channel.
const (
	FrameJoin         = "join_event_chat"
	FrameSend         = "send_message"
	FrameJoined       = "joined"
	FrameMessage      = "receive_message"
	FrameError        = "chat_error"
	FrameNotification = "new_notification"
)

// Frame is the envelope of every message in both directions.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type joinPayload struct {
	EventID string `json:"event_id"`
}

type sendPayload struct {
	Text    string `json:"text"`
	EventID string `json:"event_id,omitempty"`
}

type joinedPayload struct {
	EventID string `json:"event_id"`
}

type messagePayload struct {
	ID          string    `json:"id"`
	EventID     string    `json:"eventId"`
	SenderID    string    `json:"senderId"`
	SenderEmail string    `json:"senderEmail"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}

type errorPayload struct {
	Reason string `json:"reason"`
}

type notificationPayload struct {
	Message string `json:"message"`
}

func newFrame(frameType string, payload any) Frame {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = nil
	}
	return Frame{Type: frameType, Payload: raw}
}
