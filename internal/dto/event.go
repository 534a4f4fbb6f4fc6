package dto

import (
	"time"

	"github.com/teerapat-ch/eventhub/internal/domain"
)

// CreateEventRequest represents request to create an event
type CreateEventRequest struct {
	Title       string    `json:"title" binding:"required,min=1,max=200"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	StartTime   time.Time `json:"start_time" binding:"required"`
	Capacity    int       `json:"capacity" binding:"required,min=1"`
}

// UpdateEventRequest represents request to update event metadata. Nil fields
// are left unchanged.
type UpdateEventRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Location    *string    `json:"location,omitempty"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	Capacity    *int       `json:"capacity,omitempty"`
}

// EventResponse represents an event in API response
type EventResponse struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Location       string    `json:"location,omitempty"`
	StartTime      time.Time `json:"start_time"`
	Capacity       int       `json:"capacity"`
	OwnerID        string    `json:"owner_id"`
	AttendeeCount  int       `json:"attendee_count"`
	AvailableSpots int       `json:"available_spots"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// EventListResponse represents a paginated list of events
type EventListResponse struct {
	Events []*EventResponse `json:"events"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// EventFromDomain converts a domain Event and its membership snapshot to an
// EventResponse
func EventFromDomain(e *domain.Event, snapshot *domain.EventSnapshot) *EventResponse {
	resp := &EventResponse{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Location:    e.Location,
		StartTime:   e.StartTime,
		Capacity:    e.Capacity,
		OwnerID:     e.OwnerID,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
	if snapshot != nil {
		resp.Capacity = snapshot.Capacity
		resp.AttendeeCount = snapshot.AttendeeCount()
		resp.AvailableSpots = snapshot.AvailableSpots()
	}
	return resp
}
