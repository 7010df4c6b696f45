package models

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	id "agenda/pkg/domain"
	dErrors "agenda/pkg/domain-errors"
	"agenda/pkg/platform/validation"
)

// Message is one chat line in an event room. Messages are append-only and
// ordered by ID.
type Message struct {
	ID        id.MessageID
	TenantID  id.TenantID
	EventID   id.EventID
	SenderID  id.UserID
	Text      string
	CreatedAt time.Time
}

// MessageView is a message enriched with the sender's display name.
type MessageView struct {
	Message
	SenderEmail string
}

// NormalizeText trims and validates message text.
func NormalizeText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", dErrors.New(dErrors.CodeValidation, "text is required")
	}
	if err := validation.CheckStringLength("text", text, validation.MaxMessageLength); err != nil {
		return "", err
	}
	return text, nil
}

// IDSource issues ULIDs that increase strictly within the process, so id
// order matches append order even inside one millisecond.
type IDSource struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewIDSource() *IDSource {
	return &IDSource{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (s *IDSource) Next(now time.Time) id.MessageID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return id.MessageID(ulid.MustNew(ulid.Timestamp(now), s.entropy).String())
}
