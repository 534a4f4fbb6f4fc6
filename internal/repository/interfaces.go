package repository

import (
	"context"

	"github.com/teerapat-ch/eventhub/internal/domain"
)

// MembershipResult is the outcome of a conditional membership mutation.
// Snapshot is the event state observed atomically with the mutation attempt,
// whether or not it applied; callers classify a non-applied result by
// inspecting the snapshot, never by re-reading.
type MembershipResult struct {
	Applied  bool
	Snapshot *domain.EventSnapshot
}

// MembershipStore is the atomic admission primitive. Implementations must
// evaluate each mutation's condition and apply it as a single atomic unit
// (a transaction holding the event's row lock, or a Lua script) so that two
// callers racing for the last spot cannot both succeed. Mutations are applied
// exactly once per call, which makes re-issuing a timed-out join safe.
//
// Missing or deleted events surface as domain.ErrEventNotFound.
type MembershipStore interface {
	// TryAddMember adds principalID to the event's attendee set iff it is
	// not already present and the resulting set stays within capacity.
	// Applied=false with the live snapshot when the condition fails.
	TryAddMember(ctx context.Context, eventID, principalID string) (*MembershipResult, error)

	// TryRemoveMember removes principalID if present. Idempotent: removing
	// an absent member reports Applied=false without error.
	TryRemoveMember(ctx context.Context, eventID, principalID string) (*MembershipResult, error)

	// GetSnapshot returns the current membership view of the event.
	GetSnapshot(ctx context.Context, eventID string) (*domain.EventSnapshot, error)

	// UpdateCapacity sets a new capacity under the same atomic discipline.
	// Fails with domain.ErrNotOwner on owner mismatch and
	// domain.ErrInvalidCapacity when newCapacity is below the current
	// attendee count.
	UpdateCapacity(ctx context.Context, eventID string, newCapacity int, ownerID string) (*domain.EventSnapshot, error)

	// SeedEvent initializes (or repairs) the membership state for an event.
	SeedEvent(ctx context.Context, snapshot *domain.EventSnapshot) error

	// RemoveEvent excludes a deleted event from all further admission.
	RemoveEvent(ctx context.Context, eventID string) error
}

// EventRepository persists event metadata. The metadata system of record is
// PostgreSQL regardless of which membership backend is active.
type EventRepository interface {
	// Create inserts a new event
	Create(ctx context.Context, event *domain.Event) error
	// GetByID retrieves a live event by ID
	GetByID(ctx context.Context, id string) (*domain.Event, error)
	// List lists live events with pagination, soonest first
	List(ctx context.Context, limit, offset int) ([]*domain.Event, int, error)
	// Update updates event metadata (not capacity; see MembershipStore)
	Update(ctx context.Context, event *domain.Event) error
	// SoftDelete tombstones an event by ID
	SoftDelete(ctx context.Context, id string) error
	// ListActiveIDs returns IDs of live events, for reconciliation sweeps
	ListActiveIDs(ctx context.Context, limit, offset int) ([]string, error)
}

// UserRepository resolves principal IDs to display identities.
type UserRepository interface {
	// Upsert records the principal's display identity
	Upsert(ctx context.Context, p *domain.Principal) error
	// GetByIDs resolves attendee identities, preserving input order
	GetByIDs(ctx context.Context, ids []string) ([]domain.Attendee, error)
}
