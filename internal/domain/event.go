package domain

import (
	"strings"
	"time"
)

// Event is a capacity-bounded gathering owned by the principal who created it.
type Event struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	StartTime   time.Time  `json:"start_time"`
	Capacity    int        `json:"capacity"`
	OwnerID     string     `json:"owner_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Validate validates all event fields
func (e *Event) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return ErrInvalidEventID
	}
	if strings.TrimSpace(e.Title) == "" {
		return ErrInvalidTitle
	}
	if e.Capacity < 1 {
		return ErrInvalidCapacity
	}
	if strings.TrimSpace(e.OwnerID) == "" {
		return ErrInvalidPrincipalID
	}
	return nil
}

// IsDeleted reports whether the event has been tombstoned.
func (e *Event) IsDeleted() bool {
	return e.DeletedAt != nil
}

// EventSnapshot is the membership view of a single event as observed at one
// point in time: capacity, owner and the full attendee set.
type EventSnapshot struct {
	EventID   string   `json:"event_id"`
	Capacity  int      `json:"capacity"`
	OwnerID   string   `json:"owner_id"`
	Attendees []string `json:"attendees"`
}

// AttendeeCount returns the size of the attendee set.
func (s *EventSnapshot) AttendeeCount() int {
	return len(s.Attendees)
}

// AvailableSpots returns the remaining capacity. Never negative while the
// store's invariants hold.
func (s *EventSnapshot) AvailableSpots() int {
	spots := s.Capacity - len(s.Attendees)
	if spots < 0 {
		return 0
	}
	return spots
}

// HasMember reports whether the principal is in the attendee set.
func (s *EventSnapshot) HasMember(principalID string) bool {
	for _, id := range s.Attendees {
		if id == principalID {
			return true
		}
	}
	return false
}

// IsFull reports whether no spots remain.
func (s *EventSnapshot) IsFull() bool {
	return len(s.Attendees) >= s.Capacity
}

// Principal is the verified identity supplied by the auth collaborator.
type Principal struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Attendee is a resolved attendee identity for display.
type Attendee struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Attendance is the read-only occupancy summary of an event.
type Attendance struct {
	AttendeeCount  int        `json:"attendee_count"`
	Capacity       int        `json:"capacity"`
	AvailableSpots int        `json:"available_spots"`
	Attendees      []Attendee `json:"attendees"`
}
