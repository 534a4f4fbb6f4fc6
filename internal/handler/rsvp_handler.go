package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/teerapat-ch/eventhub/internal/service"
	"github.com/teerapat-ch/eventhub/pkg/middleware"
	"github.com/teerapat-ch/eventhub/pkg/response"
	"github.com/teerapat-ch/eventhub/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// RSVPHandler handles join, leave and attendance HTTP requests
type RSVPHandler struct {
	admissionService service.AdmissionService
}

// NewRSVPHandler creates a new RSVP handler
func NewRSVPHandler(admissionService service.AdmissionService) *RSVPHandler {
	return &RSVPHandler{admissionService: admissionService}
}

// Join handles POST /api/v1/events/:id/join
func (h *RSVPHandler) Join(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.rsvp.join")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := c.GetString(middleware.ContextKeyUserID)
	if userID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "authentication required")
		return
	}

	eventID := c.Param("id")
	span.SetAttributes(
		attribute.String("event_id", eventID),
		attribute.String("user_id", userID),
	)

	result, err := h.admissionService.Join(ctx, eventID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("attendee_count", result.AttendeeCount))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// Leave handles POST /api/v1/events/:id/leave
func (h *RSVPHandler) Leave(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.rsvp.leave")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := c.GetString(middleware.ContextKeyUserID)
	if userID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "authentication required")
		return
	}

	eventID := c.Param("id")
	span.SetAttributes(
		attribute.String("event_id", eventID),
		attribute.String("user_id", userID),
	)

	result, err := h.admissionService.Leave(ctx, eventID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("attendee_count", result.AttendeeCount))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// Attendees handles GET /api/v1/events/:id/attendees
func (h *RSVPHandler) Attendees(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.rsvp.attendees")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	eventID := c.Param("id")
	span.SetAttributes(attribute.String("event_id", eventID))

	result, err := h.admissionService.Attendance(ctx, eventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("attendee_count", result.AttendeeCount))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}
