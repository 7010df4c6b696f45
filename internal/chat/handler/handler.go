package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"agenda/internal/chat/models"
	id "agenda/pkg/domain"
	dErrors "agenda/pkg/domain-errors"
	"agenda/pkg/platform/httputil"
	"agenda/pkg/platform/middleware/auth"
	"agenda/pkg/requestcontext"
)

type Service interface {
	History(ctx context.Context, p id.Principal, eventID id.EventID) ([]models.MessageView, error)
}

// MessageResponse mirrors the receive_message frame so clients can render
// history and live messages the same way.
type MessageResponse struct {
	ID          string    `json:"id"`
	EventID     string    `json:"eventId"`
	SenderID    string    `json:"senderId"`
	SenderEmail string    `json:"senderEmail"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/events/{id}/chat/messages", h.HandleHistory)
}

// HandleHistory returns the event's chat history in send order.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := auth.PrincipalFrom(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	eventID, err := id.ParseEventID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid event id"))
		return
	}

	history, err := h.service.History(ctx, p, eventID)
	if err != nil {
		h.logger.WarnContext(ctx, "chat history failed",
			"error", err,
			"event_id", eventID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lo.Map(history, func(m models.MessageView, _ int) *MessageResponse {
		return &MessageResponse{
			ID:          m.ID.String(),
			EventID:     m.EventID.String(),
			SenderID:    m.SenderID.String(),
			SenderEmail: m.SenderEmail,
			Text:        m.Text,
			Timestamp:   m.CreatedAt,
		}
	}))
}
