package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/eventlify-server/internal/service/events"
)

// UserHandlers provides the per-user event listings.
type UserHandlers struct {
	events *events.Service
	log    *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(eventService *events.Service, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		events: eventService,
		log:    logger,
	}
}

// EventsRegistered lists the events the current user registered for.
// GET /api/users/events-registered
func (h *UserHandlers) EventsRegistered(c *gin.Context) {
	uid := currentUserID(c)
	list, err := h.events.Registered(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", uid).Msg("failed to list registered events")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, eventsResponse(list))
}

// EventsCreated lists the events the current user created.
// GET /api/users/events-created
func (h *UserHandlers) EventsCreated(c *gin.Context) {
	uid := currentUserID(c)
	list, err := h.events.Created(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", uid).Msg("failed to list created events")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, eventsResponse(list))
}
