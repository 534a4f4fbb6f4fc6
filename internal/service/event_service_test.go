package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teerapat-ch/eventhub/internal/domain"
	"github.com/teerapat-ch/eventhub/internal/dto"
	"github.com/teerapat-ch/eventhub/internal/repository"
)

// MockEventRepository is a mock implementation of EventRepository
type MockEventRepository struct {
	CreateFunc        func(ctx context.Context, event *domain.Event) error
	GetByIDFunc       func(ctx context.Context, id string) (*domain.Event, error)
	ListFunc          func(ctx context.Context, limit, offset int) ([]*domain.Event, int, error)
	UpdateFunc        func(ctx context.Context, event *domain.Event) error
	SoftDeleteFunc    func(ctx context.Context, id string) error
	ListActiveIDsFunc func(ctx context.Context, limit, offset int) ([]string, error)
}

func (m *MockEventRepository) Create(ctx context.Context, event *domain.Event) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, event)
	}
	return nil
}

func (m *MockEventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, domain.ErrEventNotFound
}

func (m *MockEventRepository) List(ctx context.Context, limit, offset int) ([]*domain.Event, int, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*domain.Event{}, 0, nil
}

func (m *MockEventRepository) Update(ctx context.Context, event *domain.Event) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, event)
	}
	return nil
}

func (m *MockEventRepository) SoftDelete(ctx context.Context, id string) error {
	if m.SoftDeleteFunc != nil {
		return m.SoftDeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockEventRepository) ListActiveIDs(ctx context.Context, limit, offset int) ([]string, error) {
	if m.ListActiveIDsFunc != nil {
		return m.ListActiveIDsFunc(ctx, limit, offset)
	}
	return nil, nil
}

func validCreateRequest() *dto.CreateEventRequest {
	return &dto.CreateEventRequest{
		Title:     "Go Meetup",
		Location:  "Bangkok",
		StartTime: time.Now().Add(48 * time.Hour),
		Capacity:  10,
	}
}

func TestEventService_CreateEvent(t *testing.T) {
	owner := &domain.Principal{ID: "user-001", Name: "Alice"}

	t.Run("owner is auto-admitted", func(t *testing.T) {
		store := repository.NewMemoryMembershipStore()
		svc := NewEventService(&MockEventRepository{}, &MockUserRepository{}, store)

		resp, err := svc.CreateEvent(context.Background(), owner, validCreateRequest())
		if err != nil {
			t.Fatalf("CreateEvent() unexpected error = %v", err)
		}
		if resp.AttendeeCount != 1 {
			t.Errorf("attendee count = %d, want 1", resp.AttendeeCount)
		}

		snapshot, err := store.GetSnapshot(context.Background(), resp.ID)
		if err != nil {
			t.Fatalf("GetSnapshot() error = %v", err)
		}
		if !snapshot.HasMember("user-001") {
			t.Error("owner not admitted to new event")
		}
	})

	t.Run("capacity below one rejected", func(t *testing.T) {
		svc := NewEventService(&MockEventRepository{}, &MockUserRepository{}, repository.NewMemoryMembershipStore())

		req := validCreateRequest()
		req.Capacity = 0
		if _, err := svc.CreateEvent(context.Background(), owner, req); !errors.Is(err, domain.ErrInvalidCapacity) {
			t.Errorf("CreateEvent() error = %v, want ErrInvalidCapacity", err)
		}
	})

	t.Run("past start time rejected", func(t *testing.T) {
		svc := NewEventService(&MockEventRepository{}, &MockUserRepository{}, repository.NewMemoryMembershipStore())

		req := validCreateRequest()
		req.StartTime = time.Now().Add(-time.Hour)
		if _, err := svc.CreateEvent(context.Background(), owner, req); !errors.Is(err, domain.ErrEventInPast) {
			t.Errorf("CreateEvent() error = %v, want ErrEventInPast", err)
		}
	})

	t.Run("empty title rejected", func(t *testing.T) {
		svc := NewEventService(&MockEventRepository{}, &MockUserRepository{}, repository.NewMemoryMembershipStore())

		req := validCreateRequest()
		req.Title = ""
		if _, err := svc.CreateEvent(context.Background(), owner, req); !errors.Is(err, domain.ErrInvalidTitle) {
			t.Errorf("CreateEvent() error = %v, want ErrInvalidTitle", err)
		}
	})
}

func storedEvent(ownerID string) *domain.Event {
	now := time.Now().UTC()
	return &domain.Event{
		ID:        "event-001",
		Title:     "Go Meetup",
		StartTime: now.Add(48 * time.Hour),
		Capacity:  10,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestEventService_UpdateEvent(t *testing.T) {
	t.Run("non-owner is forbidden", func(t *testing.T) {
		events := &MockEventRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*domain.Event, error) {
				return storedEvent("user-001"), nil
			},
		}
		svc := NewEventService(events, &MockUserRepository{}, repository.NewMemoryMembershipStore())

		title := "New title"
		_, err := svc.UpdateEvent(context.Background(), "event-001", "user-999", &dto.UpdateEventRequest{Title: &title})
		if !errors.Is(err, domain.ErrNotOwner) {
			t.Errorf("UpdateEvent() error = %v, want ErrNotOwner", err)
		}
	})

	t.Run("capacity cannot drop below attendee count", func(t *testing.T) {
		events := &MockEventRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*domain.Event, error) {
				return storedEvent("user-001"), nil
			},
		}
		store := repository.NewMemoryMembershipStore()
		seed := &domain.EventSnapshot{
			EventID:   "event-001",
			Capacity:  10,
			OwnerID:   "user-001",
			Attendees: []string{"user-001", "user-002", "user-003"},
		}
		if err := store.SeedEvent(context.Background(), seed); err != nil {
			t.Fatalf("SeedEvent() error = %v", err)
		}

		svc := NewEventService(events, &MockUserRepository{}, store)

		two := 2
		_, err := svc.UpdateEvent(context.Background(), "event-001", "user-001", &dto.UpdateEventRequest{Capacity: &two})
		if !errors.Is(err, domain.ErrInvalidCapacity) {
			t.Errorf("UpdateEvent() error = %v, want ErrInvalidCapacity", err)
		}
	})

	t.Run("capacity change is applied", func(t *testing.T) {
		events := &MockEventRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*domain.Event, error) {
				return storedEvent("user-001"), nil
			},
		}
		store := repository.NewMemoryMembershipStore()
		seed := &domain.EventSnapshot{
			EventID:   "event-001",
			Capacity:  10,
			OwnerID:   "user-001",
			Attendees: []string{"user-001"},
		}
		if err := store.SeedEvent(context.Background(), seed); err != nil {
			t.Fatalf("SeedEvent() error = %v", err)
		}

		svc := NewEventService(events, &MockUserRepository{}, store)

		twenty := 20
		resp, err := svc.UpdateEvent(context.Background(), "event-001", "user-001", &dto.UpdateEventRequest{Capacity: &twenty})
		if err != nil {
			t.Fatalf("UpdateEvent() unexpected error = %v", err)
		}
		if resp.Capacity != 20 {
			t.Errorf("capacity = %d, want 20", resp.Capacity)
		}

		snapshot, err := store.GetSnapshot(context.Background(), "event-001")
		if err != nil {
			t.Fatalf("GetSnapshot() error = %v", err)
		}
		if snapshot.Capacity != 20 {
			t.Errorf("store capacity = %d, want 20", snapshot.Capacity)
		}
	})

	t.Run("rejected capacity edit persists nothing", func(t *testing.T) {
		updates := 0
		events := &MockEventRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*domain.Event, error) {
				return storedEvent("user-001"), nil
			},
			UpdateFunc: func(ctx context.Context, event *domain.Event) error {
				updates++
				return nil
			},
		}
		store := repository.NewMemoryMembershipStore()
		seed := &domain.EventSnapshot{
			EventID:   "event-001",
			Capacity:  10,
			OwnerID:   "user-001",
			Attendees: []string{"user-001", "user-002", "user-003"},
		}
		if err := store.SeedEvent(context.Background(), seed); err != nil {
			t.Fatalf("SeedEvent() error = %v", err)
		}

		svc := NewEventService(events, &MockUserRepository{}, store)

		title := "Renamed"
		two := 2
		_, err := svc.UpdateEvent(context.Background(), "event-001", "user-001", &dto.UpdateEventRequest{Title: &title, Capacity: &two})
		if !errors.Is(err, domain.ErrInvalidCapacity) {
			t.Fatalf("UpdateEvent() error = %v, want ErrInvalidCapacity", err)
		}
		if updates != 0 {
			t.Errorf("event repository updated %d times after rejected edit, want 0", updates)
		}
		snapshot, err := store.GetSnapshot(context.Background(), "event-001")
		if err != nil {
			t.Fatalf("GetSnapshot() error = %v", err)
		}
		if snapshot.Capacity != 10 {
			t.Errorf("store capacity = %d, want 10", snapshot.Capacity)
		}
	})
}

func TestEventService_DeleteEvent(t *testing.T) {
	t.Run("non-owner is forbidden", func(t *testing.T) {
		events := &MockEventRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*domain.Event, error) {
				return storedEvent("user-001"), nil
			},
		}
		svc := NewEventService(events, &MockUserRepository{}, repository.NewMemoryMembershipStore())

		if err := svc.DeleteEvent(context.Background(), "event-001", "user-999"); !errors.Is(err, domain.ErrNotOwner) {
			t.Errorf("DeleteEvent() error = %v, want ErrNotOwner", err)
		}
	})

	t.Run("delete removes membership state", func(t *testing.T) {
		events := &MockEventRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*domain.Event, error) {
				return storedEvent("user-001"), nil
			},
		}
		store := repository.NewMemoryMembershipStore()
		seed := &domain.EventSnapshot{
			EventID:   "event-001",
			Capacity:  10,
			OwnerID:   "user-001",
			Attendees: []string{"user-001"},
		}
		if err := store.SeedEvent(context.Background(), seed); err != nil {
			t.Fatalf("SeedEvent() error = %v", err)
		}

		svc := NewEventService(events, &MockUserRepository{}, store)

		if err := svc.DeleteEvent(context.Background(), "event-001", "user-001"); err != nil {
			t.Fatalf("DeleteEvent() unexpected error = %v", err)
		}
		if _, err := store.GetSnapshot(context.Background(), "event-001"); !errors.Is(err, domain.ErrEventNotFound) {
			t.Errorf("GetSnapshot() after delete error = %v, want ErrEventNotFound", err)
		}
	})
}

func TestEventService_GetEvent(t *testing.T) {
	events := &MockEventRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*domain.Event, error) {
			if id != "event-001" {
				return nil, domain.ErrEventNotFound
			}
			return storedEvent("user-001"), nil
		},
	}
	store := repository.NewMemoryMembershipStore()
	seed := &domain.EventSnapshot{
		EventID:   "event-001",
		Capacity:  10,
		OwnerID:   "user-001",
		Attendees: []string{"user-001", "user-002"},
	}
	if err := store.SeedEvent(context.Background(), seed); err != nil {
		t.Fatalf("SeedEvent() error = %v", err)
	}

	svc := NewEventService(events, &MockUserRepository{}, store)

	resp, err := svc.GetEvent(context.Background(), "event-001")
	if err != nil {
		t.Fatalf("GetEvent() unexpected error = %v", err)
	}
	if resp.AttendeeCount != 2 || resp.AvailableSpots != 8 {
		t.Errorf("GetEvent() occupancy = %d/%d available, want 2/8", resp.AttendeeCount, resp.AvailableSpots)
	}

	if _, err := svc.GetEvent(context.Background(), "missing"); !errors.Is(err, domain.ErrEventNotFound) {
		t.Errorf("GetEvent() error = %v, want ErrEventNotFound", err)
	}
}
