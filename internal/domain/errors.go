package domain

import "errors"

// Domain errors
var (
	// Admission errors
	ErrEventNotFound    = errors.New("event not found")
	ErrEventFull        = errors.New("event is at full capacity")
	ErrAlreadyMember    = errors.New("already attending this event")
	ErrNotMember        = errors.New("not attending this event")
	ErrOwnerCannotLeave = errors.New("event owner cannot leave their own event")

	// Lifecycle errors
	ErrNotOwner        = errors.New("only the event owner may perform this action")
	ErrInvalidCapacity = errors.New("capacity cannot be lower than the current attendee count")
	ErrEventInPast     = errors.New("event start time must be in the future")

	// Validation errors
	ErrInvalidEventID     = errors.New("invalid event id")
	ErrInvalidPrincipalID = errors.New("invalid principal id")
	ErrInvalidTitle       = errors.New("event title is required")

	// Infrastructure errors
	ErrStoreUnavailable = errors.New("membership store unavailable")
)
