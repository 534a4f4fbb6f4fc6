package repository

import (
	"context"
	"sync"

	"github.com/teerapat-ch/eventhub/internal/domain"
)

// MemoryMembershipStore implements MembershipStore with per-event mutexes.
// It exists for tests and local development without Postgres or Redis; each
// event's lock gives the same one-writer-at-a-time guarantee the durable
// backends provide.
type MemoryMembershipStore struct {
	mu     sync.RWMutex
	events map[string]*memoryEvent
}

type memoryEvent struct {
	mu       sync.Mutex
	capacity int
	ownerID  string
	members  map[string]struct{}
	order    []string
}

// NewMemoryMembershipStore creates an empty MemoryMembershipStore
func NewMemoryMembershipStore() *MemoryMembershipStore {
	return &MemoryMembershipStore{events: make(map[string]*memoryEvent)}
}

func (s *MemoryMembershipStore) get(eventID string) (*memoryEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[eventID]
	return ev, ok
}

// snapshotLocked builds a snapshot; callers must hold ev.mu
func (ev *memoryEvent) snapshotLocked(eventID string) *domain.EventSnapshot {
	attendees := make([]string, len(ev.order))
	copy(attendees, ev.order)
	return &domain.EventSnapshot{
		EventID:   eventID,
		Capacity:  ev.capacity,
		OwnerID:   ev.ownerID,
		Attendees: attendees,
	}
}

// TryAddMember adds the principal if absent and the set has room
func (s *MemoryMembershipStore) TryAddMember(ctx context.Context, eventID, principalID string) (*MembershipResult, error) {
	ev, ok := s.get(eventID)
	if !ok {
		return nil, domain.ErrEventNotFound
	}

	ev.mu.Lock()
	defer ev.mu.Unlock()

	if _, member := ev.members[principalID]; member {
		return &MembershipResult{Applied: false, Snapshot: ev.snapshotLocked(eventID)}, nil
	}
	if len(ev.members) >= ev.capacity {
		return &MembershipResult{Applied: false, Snapshot: ev.snapshotLocked(eventID)}, nil
	}

	ev.members[principalID] = struct{}{}
	ev.order = append(ev.order, principalID)
	return &MembershipResult{Applied: true, Snapshot: ev.snapshotLocked(eventID)}, nil
}

// TryRemoveMember removes the principal if present
func (s *MemoryMembershipStore) TryRemoveMember(ctx context.Context, eventID, principalID string) (*MembershipResult, error) {
	ev, ok := s.get(eventID)
	if !ok {
		return nil, domain.ErrEventNotFound
	}

	ev.mu.Lock()
	defer ev.mu.Unlock()

	if _, member := ev.members[principalID]; !member {
		return &MembershipResult{Applied: false, Snapshot: ev.snapshotLocked(eventID)}, nil
	}

	delete(ev.members, principalID)
	for i, id := range ev.order {
		if id == principalID {
			ev.order = append(ev.order[:i], ev.order[i+1:]...)
			break
		}
	}
	return &MembershipResult{Applied: true, Snapshot: ev.snapshotLocked(eventID)}, nil
}

// GetSnapshot returns the current membership view
func (s *MemoryMembershipStore) GetSnapshot(ctx context.Context, eventID string) (*domain.EventSnapshot, error) {
	ev, ok := s.get(eventID)
	if !ok {
		return nil, domain.ErrEventNotFound
	}

	ev.mu.Lock()
	defer ev.mu.Unlock()
	return ev.snapshotLocked(eventID), nil
}

// UpdateCapacity changes the capacity under the event lock
func (s *MemoryMembershipStore) UpdateCapacity(ctx context.Context, eventID string, newCapacity int, ownerID string) (*domain.EventSnapshot, error) {
	if newCapacity < 1 {
		return nil, domain.ErrInvalidCapacity
	}

	ev, ok := s.get(eventID)
	if !ok {
		return nil, domain.ErrEventNotFound
	}

	ev.mu.Lock()
	defer ev.mu.Unlock()

	if ev.ownerID != ownerID {
		return nil, domain.ErrNotOwner
	}
	if newCapacity < len(ev.members) {
		return nil, domain.ErrInvalidCapacity
	}

	ev.capacity = newCapacity
	return ev.snapshotLocked(eventID), nil
}

// SeedEvent creates or replaces the event's membership state
func (s *MemoryMembershipStore) SeedEvent(ctx context.Context, snapshot *domain.EventSnapshot) error {
	ev := &memoryEvent{
		capacity: snapshot.Capacity,
		ownerID:  snapshot.OwnerID,
		members:  make(map[string]struct{}, len(snapshot.Attendees)),
	}
	for _, id := range snapshot.Attendees {
		if _, dup := ev.members[id]; dup {
			continue
		}
		ev.members[id] = struct{}{}
		ev.order = append(ev.order, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[snapshot.EventID] = ev
	return nil
}

// RemoveEvent drops the event's membership state
func (s *MemoryMembershipStore) RemoveEvent(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, eventID)
	return nil
}
