package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/teerapat-ch/eventhub/internal/domain"
	"github.com/teerapat-ch/eventhub/internal/dto"
	"github.com/teerapat-ch/eventhub/internal/service"
	"github.com/teerapat-ch/eventhub/pkg/middleware"
	"github.com/teerapat-ch/eventhub/pkg/response"
	"github.com/teerapat-ch/eventhub/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// EventHandler handles event lifecycle HTTP requests
type EventHandler struct {
	eventService service.EventService
}

// NewEventHandler creates a new event handler
func NewEventHandler(eventService service.EventService) *EventHandler {
	return &EventHandler{eventService: eventService}
}

// principalFromContext reads the authenticated principal set by the auth
// middleware
func principalFromContext(c *gin.Context) *domain.Principal {
	id := c.GetString(middleware.ContextKeyUserID)
	if id == "" {
		return nil
	}
	return &domain.Principal{
		ID:    id,
		Name:  c.GetString(middleware.ContextKeyUserName),
		Email: c.GetString(middleware.ContextKeyUserEmail),
	}
}

// CreateEvent handles POST /api/v1/events
func (h *EventHandler) CreateEvent(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.event.create")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	principal := principalFromContext(c)
	if principal == nil {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "authentication required")
		return
	}

	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request", err.Error())
		return
	}

	span.SetAttributes(
		attribute.String("owner_id", principal.ID),
		attribute.Int("capacity", req.Capacity),
	)

	result, err := h.eventService.CreateEvent(ctx, principal, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("event_id", result.ID))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, result)
}

// GetEvent handles GET /api/v1/events/:id
func (h *EventHandler) GetEvent(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.event.get")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	eventID := c.Param("id")
	span.SetAttributes(attribute.String("event_id", eventID))

	result, err := h.eventService.GetEvent(ctx, eventID)
	if err != nil {
		span.SetStatus(codes.Ok, "")
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// ListEvents handles GET /api/v1/events
func (h *EventHandler) ListEvents(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.event.list")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	result, err := h.eventService.ListEvents(ctx, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// UpdateEvent handles PUT /api/v1/events/:id
func (h *EventHandler) UpdateEvent(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.event.update")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	principal := principalFromContext(c)
	if principal == nil {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "authentication required")
		return
	}

	eventID := c.Param("id")
	span.SetAttributes(attribute.String("event_id", eventID))

	var req dto.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request", err.Error())
		return
	}

	result, err := h.eventService.UpdateEvent(ctx, eventID, principal.ID, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// DeleteEvent handles DELETE /api/v1/events/:id
func (h *EventHandler) DeleteEvent(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.event.delete")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	principal := principalFromContext(c)
	if principal == nil {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "authentication required")
		return
	}

	eventID := c.Param("id")
	span.SetAttributes(attribute.String("event_id", eventID))

	if err := h.eventService.DeleteEvent(ctx, eventID, principal.ID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, gin.H{"message": "event deleted"})
}

// handleError maps domain errors onto the response envelope
func handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrEventNotFound):
		response.Error(c, http.StatusNotFound, "EVENT_NOT_FOUND", err.Error(), "")
	case errors.Is(err, domain.ErrEventFull):
		response.Error(c, http.StatusBadRequest, "EVENT_FULL", err.Error(), "")
	case errors.Is(err, domain.ErrAlreadyMember):
		response.Error(c, http.StatusBadRequest, "ALREADY_MEMBER", err.Error(), "")
	case errors.Is(err, domain.ErrNotMember):
		response.Error(c, http.StatusBadRequest, "NOT_MEMBER", err.Error(), "")
	case errors.Is(err, domain.ErrOwnerCannotLeave):
		response.Error(c, http.StatusBadRequest, "OWNER_CANNOT_LEAVE", err.Error(), "")
	case errors.Is(err, domain.ErrInvalidCapacity):
		response.Error(c, http.StatusBadRequest, "INVALID_CAPACITY", err.Error(), "")
	case errors.Is(err, domain.ErrEventInPast),
		errors.Is(err, domain.ErrInvalidTitle):
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), "")
	case errors.Is(err, domain.ErrNotOwner):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", err.Error(), "")
	case errors.Is(err, domain.ErrStoreUnavailable):
		response.Error(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", domain.ErrStoreUnavailable.Error(), "")
	default:
		response.InternalError(c, err)
	}
}
