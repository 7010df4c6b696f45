package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"agenda/internal/notification/models"
	id "agenda/pkg/domain"
	dErrors "agenda/pkg/domain-errors"
	"agenda/pkg/platform/httputil"
	"agenda/pkg/platform/middleware/auth"
	"agenda/pkg/requestcontext"
)

type Service interface {
	List(ctx context.Context, p id.Principal) ([]*models.Notification, error)
	MarkRead(ctx context.Context, p id.Principal, notificationID id.NotificationID) error
}

type NotificationResponse struct {
	ID        string      `json:"id"`
	EventID   string      `json:"event_id"`
	Type      models.Type `json:"type"`
	Message   string      `json:"message"`
	CreatedAt time.Time   `json:"created_at"`
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/notifications", h.HandleList)
	r.Put("/notifications/{id}/read", h.HandleMarkRead)
}

// HandleList returns the caller's pending notifications, newest first.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := auth.PrincipalFrom(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	list, err := h.service.List(ctx, p)
	if err != nil {
		h.logger.ErrorContext(ctx, "list notifications failed", "error", err, "request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lo.Map(list, func(n *models.Notification, _ int) *NotificationResponse {
		return &NotificationResponse{
			ID:        n.ID.String(),
			EventID:   n.EventID.String(),
			Type:      n.Type,
			Message:   n.Message,
			CreatedAt: n.CreatedAt,
		}
	}))
}

// HandleMarkRead acknowledges one notification, removing it.
func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := auth.PrincipalFrom(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	notificationID, err := id.ParseNotificationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid notification id"))
		return
	}

	if err := h.service.MarkRead(ctx, p, notificationID); err != nil {
		h.logger.WarnContext(ctx, "mark notification read failed",
			"error", err,
			"notification_id", notificationID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
