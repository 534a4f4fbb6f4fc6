package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/teerapat-ch/eventhub/internal/domain"
	"github.com/teerapat-ch/eventhub/internal/dto"
	"github.com/teerapat-ch/eventhub/internal/metrics"
	"github.com/teerapat-ch/eventhub/internal/repository"
	"github.com/teerapat-ch/eventhub/pkg/logger"
	"github.com/teerapat-ch/eventhub/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// EventService defines the interface for event lifecycle logic
type EventService interface {
	// CreateEvent creates an event with the owner auto-admitted
	CreateEvent(ctx context.Context, owner *domain.Principal, req *dto.CreateEventRequest) (*dto.EventResponse, error)

	// GetEvent retrieves an event with its live occupancy
	GetEvent(ctx context.Context, id string) (*dto.EventResponse, error)

	// ListEvents lists events with pagination
	ListEvents(ctx context.Context, limit, offset int) (*dto.EventListResponse, error)

	// UpdateEvent updates metadata and, when requested, capacity
	UpdateEvent(ctx context.Context, id, callerID string, req *dto.UpdateEventRequest) (*dto.EventResponse, error)

	// DeleteEvent soft-deletes an event
	DeleteEvent(ctx context.Context, id, callerID string) error
}

// eventService implements EventService
type eventService struct {
	events repository.EventRepository
	users  repository.UserRepository
	store  repository.MembershipStore
}

// NewEventService creates a new event service
func NewEventService(
	events repository.EventRepository,
	users repository.UserRepository,
	store repository.MembershipStore,
) EventService {
	return &eventService{
		events: events,
		users:  users,
		store:  store,
	}
}

// CreateEvent validates and persists the event, then seeds the membership
// state with the owner already admitted
func (s *eventService) CreateEvent(ctx context.Context, owner *domain.Principal, req *dto.CreateEventRequest) (*dto.EventResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.event.create")
	defer span.End()

	span.SetAttributes(attribute.String("owner_id", owner.ID))

	now := time.Now().UTC()
	event := &domain.Event{
		ID:          uuid.New().String(),
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartTime:   req.StartTime,
		Capacity:    req.Capacity,
		OwnerID:     owner.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := event.Validate(); err != nil {
		span.SetStatus(codes.Ok, "invalid")
		return nil, err
	}
	if !event.StartTime.After(now) {
		span.SetStatus(codes.Ok, "invalid")
		return nil, domain.ErrEventInPast
	}

	if err := s.users.Upsert(ctx, owner); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, storeErr(err)
	}

	if err := s.events.Create(ctx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, storeErr(err)
	}

	snapshot := &domain.EventSnapshot{
		EventID:   event.ID,
		Capacity:  event.Capacity,
		OwnerID:   event.OwnerID,
		Attendees: []string{event.OwnerID},
	}
	if err := s.store.SeedEvent(ctx, snapshot); err != nil {
		// The reconcile worker repairs membership state on its next
		// sweep; the event itself is already durable.
		logger.Get().Error("failed to seed membership state",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
	}

	if metrics.EventsCreated != nil {
		metrics.EventsCreated.Inc(ctx)
	}

	span.SetAttributes(attribute.String("event_id", event.ID))
	span.SetStatus(codes.Ok, "")
	return dto.EventFromDomain(event, snapshot), nil
}

// GetEvent combines metadata with the live membership snapshot
func (s *eventService) GetEvent(ctx context.Context, id string) (*dto.EventResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.event.get")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", id))

	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		span.SetStatus(codes.Ok, "")
		return nil, storeErr(err)
	}

	snapshot, err := s.store.GetSnapshot(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrEventNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, storeErr(err)
	}

	span.SetStatus(codes.Ok, "")
	return dto.EventFromDomain(event, snapshot), nil
}

// ListEvents lists events with their occupancy
func (s *eventService) ListEvents(ctx context.Context, limit, offset int) (*dto.EventListResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.event.list")
	defer span.End()

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	events, total, err := s.events.List(ctx, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, storeErr(err)
	}

	responses := make([]*dto.EventResponse, 0, len(events))
	for _, event := range events {
		snapshot, err := s.store.GetSnapshot(ctx, event.ID)
		if err != nil {
			snapshot = nil
		}
		responses = append(responses, dto.EventFromDomain(event, snapshot))
	}

	span.SetAttributes(attribute.Int("count", len(responses)))
	span.SetStatus(codes.Ok, "")
	return &dto.EventListResponse{
		Events: responses,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, nil
}

// UpdateEvent applies metadata changes and routes capacity changes through
// the membership store so they serialize with in-flight admissions
func (s *eventService) UpdateEvent(ctx context.Context, id, callerID string, req *dto.UpdateEventRequest) (*dto.EventResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.event.update")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", id))

	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		span.SetStatus(codes.Ok, "")
		return nil, storeErr(err)
	}
	if event.OwnerID != callerID {
		span.SetStatus(codes.Ok, "not_owner")
		return nil, domain.ErrNotOwner
	}

	if req.Title != nil {
		event.Title = *req.Title
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.Location != nil {
		event.Location = *req.Location
	}
	if req.StartTime != nil {
		event.StartTime = *req.StartTime
	}
	if err := event.Validate(); err != nil {
		span.SetStatus(codes.Ok, "invalid")
		return nil, err
	}

	// The capacity guard goes first: a rejected edit must leave the event
	// untouched, so nothing becomes durable until the store accepts it
	var snapshot *domain.EventSnapshot
	if req.Capacity != nil {
		snapshot, err = s.store.UpdateCapacity(ctx, id, *req.Capacity, callerID)
		if err != nil {
			if errors.Is(err, domain.ErrNotOwner) || errors.Is(err, domain.ErrInvalidCapacity) {
				span.SetStatus(codes.Ok, "capacity_rejected")
				return nil, err
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, storeErr(err)
		}
		event.Capacity = snapshot.Capacity

		if metrics.CapacityChanges != nil {
			metrics.CapacityChanges.Inc(ctx)
		}
	} else {
		snapshot, err = s.store.GetSnapshot(ctx, id)
		if err != nil {
			snapshot = nil
		}
	}

	if err := s.events.Update(ctx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, storeErr(err)
	}

	span.SetStatus(codes.Ok, "")
	return dto.EventFromDomain(event, snapshot), nil
}

// DeleteEvent tombstones the event and drops its membership state from the
// active store
func (s *eventService) DeleteEvent(ctx context.Context, id, callerID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.event.delete")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", id))

	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		span.SetStatus(codes.Ok, "")
		return storeErr(err)
	}
	if event.OwnerID != callerID {
		span.SetStatus(codes.Ok, "not_owner")
		return domain.ErrNotOwner
	}

	if err := s.events.SoftDelete(ctx, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return storeErr(err)
	}

	if err := s.store.RemoveEvent(ctx, id); err != nil {
		logger.Get().Error("failed to remove membership state",
			zap.String("event_id", id),
			zap.Error(err),
		)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
