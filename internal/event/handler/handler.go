package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"agenda/internal/event/models"
	id "agenda/pkg/domain"
	dErrors "agenda/pkg/domain-errors"
	"agenda/pkg/platform/httputil"
	"agenda/pkg/platform/middleware/auth"
	"agenda/pkg/requestcontext"
)

// Service defines the event operations exposed over HTTP.
// Every call is scoped by the caller's principal.
type Service interface {
	CreateEvent(ctx context.Context, p id.Principal, draft models.EventDraft) (*models.EventView, error)
	GetEvent(ctx context.Context, p id.Principal, eventID id.EventID) (*models.EventView, error)
	ListEvents(ctx context.Context, p id.Principal) ([]models.EventView, error)
	UpdateEvent(ctx context.Context, p id.Principal, eventID id.EventID, update models.EventUpdate) (*models.EventView, error)
	DeleteEvent(ctx context.Context, p id.Principal, eventID id.EventID) error
	Invite(ctx context.Context, p id.Principal, eventID id.EventID, userIDs []id.UserID) (int, error)
	Respond(ctx context.Context, p id.Principal, participationID id.ParticipationID, status models.ParticipationStatus) (*models.Participation, error)
	Join(ctx context.Context, p id.Principal, eventID id.EventID) (*models.Participation, error)
	Leave(ctx context.Context, p id.Principal, eventID id.EventID) error
	Evict(ctx context.Context, p id.Principal, eventID id.EventID, userID id.UserID) error
	Participants(ctx context.Context, p id.Principal, eventID id.EventID) ([]models.ParticipantView, error)
	UserEvents(ctx context.Context, p id.Principal, userID id.UserID, status models.ParticipationStatus) ([]models.UserEvent, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the routes. The router must already enforce RequireAuth.
func (h *Handler) Register(r chi.Router) {
	r.Post("/events", h.HandleCreateEvent)
	r.Get("/events", h.HandleListEvents)
	r.Get("/events/{id}", h.HandleGetEvent)
	r.Put("/events/{id}", h.HandleUpdateEvent)
	r.Delete("/events/{id}", h.HandleDeleteEvent)
	r.Post("/events/{id}/invite", h.HandleInvite)
	r.Post("/events/{id}/join", h.HandleJoin)
	r.Delete("/events/{id}/leave", h.HandleLeave)
	r.Get("/events/{id}/participants", h.HandleListParticipants)
	r.Delete("/events/{id}/participants/{userId}", h.HandleEvict)
	r.Put("/participations/{id}", h.HandleRespond)
	r.Get("/users/{id}/invites", h.userEvents(models.StatusInvited))
	r.Get("/users/{id}/accepted", h.userEvents(models.StatusAccepted))
}

// caller returns the authenticated principal or writes a 401.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (id.Principal, bool) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.Principal{}, false
	}
	return p, true
}

func (h *Handler) eventID(w http.ResponseWriter, r *http.Request) (id.EventID, bool) {
	eventID, err := id.ParseEventID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid event id"))
		return id.EventID{}, false
	}
	return eventID, true
}

// fail logs at a level matching the error class and writes the response.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error, attrs ...any) {
	attrs = append(attrs, "error", err, "request_id", requestcontext.RequestID(ctx))
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}

// HandleCreateEvent creates an event organized by the caller.
func (h *Handler) HandleCreateEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateEventRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	view, err := h.service.CreateEvent(ctx, p, req.toDraft())
	if err != nil {
		h.fail(ctx, w, "create event failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toEventViewResponse(view))
}

func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.caller(w, r)
	if !ok {
		return
	}
	views, err := h.service.ListEvents(ctx, p)
	if err != nil {
		h.fail(ctx, w, "list events failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEventList(views))
}

func (h *Handler) HandleGetEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.caller(w, r)
	if !ok {
		return
	}
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}
	view, err := h.service.GetEvent(ctx, p, eventID)
	if err != nil {
		h.fail(ctx, w, "get event failed", err, "event_id", eventID.String())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEventViewResponse(view))
}

// HandleUpdateEvent applies a partial update. Only the organizer may call it.
func (h *Handler) HandleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.caller(w, r)
	if !ok {
		return
	}
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateEventRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	view, err := h.service.UpdateEvent(ctx, p, eventID, req.toUpdate())
	if err != nil {
		h.fail(ctx, w, "update event failed", err, "event_id", eventID.String())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEventViewResponse(view))
}

func (h *Handler) HandleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.caller(w, r)
	if !ok {
		return
	}
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteEvent(ctx, p, eventID); err != nil {
		h.fail(ctx, w, "delete event failed", err, "event_id", eventID.String())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.caller(w, r)
	if !ok {
		return
	}
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[InviteRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	n, err := h.service.Invite(ctx, p, eventID, req.parsed)
	if err != nil {
		h.fail(ctx, w, "invite failed", err, "event_id", eventID.String())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &InviteResponse{EventID: eventID.String(), Invited: n})
}

// HandleRespond changes the caller's own participation status.
func (h *Handler) HandleRespond(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.caller(w, r)
	if !ok {
		return
	}
	participationID, err := id.ParseParticipationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid participation id"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[RespondRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	part, err := h.service.Respond(ctx, p, participationID, models.ParticipationStatus(req.Status))
	if err != nil {
		h.fail(ctx, w, "respond to invitation failed", err, "participation_id", participationID.String())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toParticipationResponse(part, ""))
}

func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.caller(w, r)
	if !ok {
		return
	}
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}
	part, err := h.service.Join(ctx, p, eventID)
	if err != nil {
		h.fail(ctx, w, "join event failed", err, "event_id", eventID.String())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toParticipationResponse(part, ""))
}

func (h *Handler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.caller(w, r)
	if !ok {
		return
	}
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}
	if err := h.service.Leave(ctx, p, eventID); err != nil {
		h.fail(ctx, w, "leave event failed", err, "event_id", eventID.String())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleListParticipants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.caller(w, r)
	if !ok {
		return
	}
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}
	views, err := h.service.Participants(ctx, p, eventID)
	if err != nil {
		h.fail(ctx, w, "list participants failed", err, "event_id", eventID.String())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toParticipantList(views))
}

// HandleEvict removes a participant. Only the organizer may call it.
func (h *Handler) HandleEvict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.caller(w, r)
	if !ok {
		return
	}
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}
	userID, err := id.ParseUserID(chi.URLParam(r, "userId"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid user id"))
		return
	}
	if err := h.service.Evict(ctx, p, eventID, userID); err != nil {
		h.fail(ctx, w, "evict participant failed", err, "event_id", eventID.String(), "user_id", userID.String())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) userEvents(status models.ParticipationStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p, ok := h.caller(w, r)
		if !ok {
			return
		}
		userID, err := id.ParseUserID(chi.URLParam(r, "id"))
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid user id"))
			return
		}
		items, err := h.service.UserEvents(ctx, p, userID, status)
		if err != nil {
			h.fail(ctx, w, "list user events failed", err, "user_id", userID.String(), "status", string(status))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, toUserEventList(items))
	}
}
