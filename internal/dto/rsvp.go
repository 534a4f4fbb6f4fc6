package dto

import (
	"time"

	"github.com/teerapat-ch/eventhub/internal/domain"
)

// RSVPResponse represents response after a join or leave
type RSVPResponse struct {
	EventID        string `json:"event_id"`
	Status         string `json:"status"`
	AttendeeCount  int    `json:"attendee_count"`
	Capacity       int    `json:"capacity"`
	AvailableSpots int    `json:"available_spots"`
}

// AttendeeResponse represents a single attendee in API response
type AttendeeResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// AttendanceResponse represents the attendee list of an event
type AttendanceResponse struct {
	EventID        string              `json:"event_id"`
	AttendeeCount  int                 `json:"attendee_count"`
	Capacity       int                 `json:"capacity"`
	AvailableSpots int                 `json:"available_spots"`
	Attendees      []*AttendeeResponse `json:"attendees"`
}

// RSVPEventMessage is the payload published to the rsvp-events topic
type RSVPEventMessage struct {
	EventID       string    `json:"event_id"`
	PrincipalID   string    `json:"principal_id"`
	Action        string    `json:"action"`
	AttendeeCount int       `json:"attendee_count"`
	Capacity      int       `json:"capacity"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// RSVPFromSnapshot builds an RSVPResponse from a membership snapshot
func RSVPFromSnapshot(status string, snapshot *domain.EventSnapshot) *RSVPResponse {
	return &RSVPResponse{
		EventID:        snapshot.EventID,
		Status:         status,
		AttendeeCount:  snapshot.AttendeeCount(),
		Capacity:       snapshot.Capacity,
		AvailableSpots: snapshot.AvailableSpots(),
	}
}

// AttendanceFromDomain builds an AttendanceResponse from domain Attendance
func AttendanceFromDomain(eventID string, a *domain.Attendance) *AttendanceResponse {
	attendees := make([]*AttendeeResponse, 0, len(a.Attendees))
	for _, att := range a.Attendees {
		attendees = append(attendees, &AttendeeResponse{
			ID:    att.ID,
			Name:  att.Name,
			Email: att.Email,
		})
	}
	return &AttendanceResponse{
		EventID:        eventID,
		AttendeeCount:  a.AttendeeCount,
		Capacity:       a.Capacity,
		AvailableSpots: a.AvailableSpots,
		Attendees:      attendees,
	}
}
