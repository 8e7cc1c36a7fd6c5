package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/eventlify-server/internal/media"
	"github.com/vovakirdan/eventlify-server/internal/service/events"
	"github.com/vovakirdan/eventlify-server/internal/store"
)

const coverField = "coverimage"

// EventHandlers provides HTTP handlers for events and their Q&A boards.
type EventHandlers struct {
	events *events.Service
	log    *zerolog.Logger
}

// NewEventHandlers creates a new event handlers instance.
func NewEventHandlers(eventService *events.Service, logger *zerolog.Logger) *EventHandlers {
	return &EventHandlers{
		events: eventService,
		log:    logger,
	}
}

// EventRequest is the multipart (or JSON) body of create and update calls.
// Absent fields are left unchanged on update.
type EventRequest struct {
	Title       *string `form:"title" json:"title"`
	Description *string `form:"description" json:"description"`
	Date        *string `form:"date" json:"date"`
	Time        *string `form:"time" json:"time"`
	Location    *string `form:"location" json:"location"`
	Category    *string `form:"category" json:"category"`
}

// TextRequest is the body of question and answer posts.
type TextRequest struct {
	Text string `json:"text" binding:"required"`
}

// ListEvents returns all events.
// GET /api/events
func (h *EventHandlers) ListEvents(c *gin.Context) {
	list, err := h.events.List(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list events")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, eventsResponse(list))
}

// GetEvent returns one event.
// GET /api/events/:id
func (h *EventHandlers) GetEvent(c *gin.Context) {
	ev, err := h.events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, eventResponse(ev))
}

// CreateEvent creates an event owned by the current user.
// POST /api/events
func (h *EventHandlers) CreateEvent(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	in := events.Input{
		Title:       deref(req.Title),
		Description: deref(req.Description),
		Time:        deref(req.Time),
		Location:    deref(req.Location),
		Category:    store.Category(deref(req.Category)),
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		in.Date = date
	}

	cover, closeCover, err := coverFile(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid cover image"})
		return
	}
	defer closeCover()

	ev, err := h.events.Create(c.Request.Context(), currentUserID(c), in, cover)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, eventResponse(ev))
}

// UpdateEvent edits an event. Only its creator may do so.
// PUT /api/events/:id
func (h *EventHandlers) UpdateEvent(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	upd := store.EventUpdate{
		Title:       req.Title,
		Description: req.Description,
		Time:        req.Time,
		Location:    req.Location,
	}
	if req.Category != nil {
		category := store.Category(*req.Category)
		upd.Category = &category
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		upd.Date = &date
	}

	cover, closeCover, err := coverFile(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid cover image"})
		return
	}
	defer closeCover()

	ev, err := h.events.Update(c.Request.Context(), currentUserID(c), c.Param("id"), upd, cover)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, eventResponse(ev))
}

// DeleteEvent removes an event. Only its creator may do so.
// DELETE /api/events/:id
func (h *EventHandlers) DeleteEvent(c *gin.Context) {
	if err := h.events.Delete(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "event deleted"})
}

// Register signs the current user up for an event.
// POST /api/events/:id/register
func (h *EventHandlers) Register(c *gin.Context) {
	if err := h.events.Register(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "registered for event"})
}

// Unregister removes the current user from an event.
// POST /api/events/:id/unregister
func (h *EventHandlers) Unregister(c *gin.Context) {
	if err := h.events.Unregister(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "unregistered from event"})
}

// AddQuestion posts a question on the event's board.
// POST /api/events/:id/questions
func (h *EventHandlers) AddQuestion(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "text is required"})
		return
	}

	q, err := h.events.AskQuestion(c.Request.Context(), currentUserID(c), c.Param("id"), req.Text)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, questionResponse(q))
}

// AddAnswer replies to a question.
// POST /api/events/:id/questions/:questionId/answers
func (h *EventHandlers) AddAnswer(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "text is required"})
		return
	}

	q, err := h.events.Answer(c.Request.Context(), currentUserID(c), c.Param("id"), c.Param("questionId"), req.Text)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, questionResponse(q))
}

func (h *EventHandlers) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, events.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "event not found"})
	case errors.Is(err, events.ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "question not found"})
	case errors.Is(err, events.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "author not found"})
	case errors.Is(err, events.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error()})
	case errors.Is(err, events.ErrAlreadyRegistered), errors.Is(err, events.ErrCreatorRegistration):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, events.ErrNotRegistered):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, events.ErrInvalidEvent), errors.Is(err, events.ErrEmptyText):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, media.ErrInvalidImage):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid cover image"})
	case errors.Is(err, media.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "cover image too large"})
	default:
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("event request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

// coverFile opens the optional cover upload. The returned reader is nil when none was sent.
func coverFile(c *gin.Context) (io.Reader, func(), error) {
	noop := func() {}
	header, err := c.FormFile(coverField)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, err
	}
	var f multipart.File
	if f, err = header.Open(); err != nil {
		return nil, noop, err
	}
	return f, func() { _ = f.Close() }, nil
}

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", value)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
