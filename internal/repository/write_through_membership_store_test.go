package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/teerapat-ch/eventhub/internal/domain"
)

// faultyStore wraps a MemoryMembershipStore with injectable write failures
type faultyStore struct {
	*MemoryMembershipStore
	addErr    error
	removeErr error
}

func (s *faultyStore) TryAddMember(ctx context.Context, eventID, principalID string) (*MembershipResult, error) {
	if s.addErr != nil {
		return nil, s.addErr
	}
	return s.MemoryMembershipStore.TryAddMember(ctx, eventID, principalID)
}

func (s *faultyStore) TryRemoveMember(ctx context.Context, eventID, principalID string) (*MembershipResult, error) {
	if s.removeErr != nil {
		return nil, s.removeErr
	}
	return s.MemoryMembershipStore.TryRemoveMember(ctx, eventID, principalID)
}

func seedWriteThrough(t *testing.T, capacity int, members ...string) (*WriteThroughMembershipStore, *MemoryMembershipStore, *MemoryMembershipStore) {
	t.Helper()
	serving := NewMemoryMembershipStore()
	durable := NewMemoryMembershipStore()
	store := NewWriteThroughMembershipStore(serving, durable)

	err := store.SeedEvent(context.Background(), &domain.EventSnapshot{
		EventID:   "event-001",
		Capacity:  capacity,
		OwnerID:   "owner",
		Attendees: members,
	})
	if err != nil {
		t.Fatalf("SeedEvent() error = %v", err)
	}
	return store, serving, durable
}

func TestWriteThroughMembershipStore_AddPersistsToDurable(t *testing.T) {
	ctx := context.Background()
	store, serving, durable := seedWriteThrough(t, 5, "owner")

	res, err := store.TryAddMember(ctx, "event-001", "user-001")
	if err != nil || !res.Applied {
		t.Fatalf("TryAddMember() = %+v, %v", res, err)
	}

	for name, backend := range map[string]*MemoryMembershipStore{"serving": serving, "durable": durable} {
		snap, err := backend.GetSnapshot(ctx, "event-001")
		if err != nil {
			t.Fatalf("%s GetSnapshot() error = %v", name, err)
		}
		if !snap.HasMember("user-001") {
			t.Errorf("%s store is missing the admitted member", name)
		}
	}
}

func TestWriteThroughMembershipStore_RemovePersistsToDurable(t *testing.T) {
	ctx := context.Background()
	store, serving, durable := seedWriteThrough(t, 5, "owner", "user-001")

	res, err := store.TryRemoveMember(ctx, "event-001", "user-001")
	if err != nil || !res.Applied {
		t.Fatalf("TryRemoveMember() = %+v, %v", res, err)
	}

	for name, backend := range map[string]*MemoryMembershipStore{"serving": serving, "durable": durable} {
		snap, err := backend.GetSnapshot(ctx, "event-001")
		if err != nil {
			t.Fatalf("%s GetSnapshot() error = %v", name, err)
		}
		if snap.HasMember("user-001") {
			t.Errorf("%s store still has the removed member", name)
		}
	}
}

func TestWriteThroughMembershipStore_RejectionSkipsDurable(t *testing.T) {
	ctx := context.Background()
	store, _, durable := seedWriteThrough(t, 1, "owner")

	res, err := store.TryAddMember(ctx, "event-001", "user-001")
	if err != nil {
		t.Fatalf("TryAddMember() error = %v", err)
	}
	if res.Applied {
		t.Fatal("TryAddMember() applied past capacity")
	}

	snap, err := durable.GetSnapshot(ctx, "event-001")
	if err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if snap.HasMember("user-001") {
		t.Error("rejected member leaked into the durable store")
	}
}

func TestWriteThroughMembershipStore_DurableFailureRollsBackAdd(t *testing.T) {
	ctx := context.Background()
	serving := NewMemoryMembershipStore()
	durable := &faultyStore{
		MemoryMembershipStore: NewMemoryMembershipStore(),
		addErr:                errors.New("connection refused"),
	}
	store := NewWriteThroughMembershipStore(serving, durable)

	seed := &domain.EventSnapshot{
		EventID:   "event-001",
		Capacity:  5,
		OwnerID:   "owner",
		Attendees: []string{"owner"},
	}
	if err := store.SeedEvent(ctx, seed); err != nil {
		t.Fatalf("SeedEvent() error = %v", err)
	}

	if _, err := store.TryAddMember(ctx, "event-001", "user-001"); err == nil {
		t.Fatal("TryAddMember() expected error when the durable write fails")
	}

	snap, err := serving.GetSnapshot(ctx, "event-001")
	if err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if snap.HasMember("user-001") {
		t.Error("failed join left the member in the serving store")
	}
}

func TestWriteThroughMembershipStore_DurableFailureRollsBackRemove(t *testing.T) {
	ctx := context.Background()
	serving := NewMemoryMembershipStore()
	durable := &faultyStore{
		MemoryMembershipStore: NewMemoryMembershipStore(),
		removeErr:             errors.New("connection refused"),
	}
	store := NewWriteThroughMembershipStore(serving, durable)

	seed := &domain.EventSnapshot{
		EventID:   "event-001",
		Capacity:  5,
		OwnerID:   "owner",
		Attendees: []string{"owner", "user-001"},
	}
	if err := store.SeedEvent(ctx, seed); err != nil {
		t.Fatalf("SeedEvent() error = %v", err)
	}

	if _, err := store.TryRemoveMember(ctx, "event-001", "user-001"); err == nil {
		t.Fatal("TryRemoveMember() expected error when the durable write fails")
	}

	snap, err := serving.GetSnapshot(ctx, "event-001")
	if err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if !snap.HasMember("user-001") {
		t.Error("failed leave removed the member from the serving store")
	}
}

func TestWriteThroughMembershipStore_UpdateCapacityPersists(t *testing.T) {
	ctx := context.Background()
	store, _, durable := seedWriteThrough(t, 5, "owner")

	snap, err := store.UpdateCapacity(ctx, "event-001", 10, "owner")
	if err != nil {
		t.Fatalf("UpdateCapacity() error = %v", err)
	}
	if snap.Capacity != 10 {
		t.Errorf("capacity = %d, want 10", snap.Capacity)
	}

	durableSnap, err := durable.GetSnapshot(ctx, "event-001")
	if err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if durableSnap.Capacity != 10 {
		t.Errorf("durable capacity = %d, want 10", durableSnap.Capacity)
	}
}

func TestWriteThroughMembershipStore_RemoveEventDropsBoth(t *testing.T) {
	ctx := context.Background()
	store, serving, durable := seedWriteThrough(t, 5, "owner")

	if err := store.RemoveEvent(ctx, "event-001"); err != nil {
		t.Fatalf("RemoveEvent() error = %v", err)
	}

	if _, err := serving.GetSnapshot(ctx, "event-001"); !errors.Is(err, domain.ErrEventNotFound) {
		t.Errorf("serving GetSnapshot() error = %v, want ErrEventNotFound", err)
	}
	if _, err := durable.GetSnapshot(ctx, "event-001"); !errors.Is(err, domain.ErrEventNotFound) {
		t.Errorf("durable GetSnapshot() error = %v, want ErrEventNotFound", err)
	}
}
