package service

import (
	"context"
	"errors"
	"fmt"
	"time"

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

// AdmissionService defines the interface for membership admission logic
type AdmissionService interface {
	// Join admits the principal to the event's attendee set
	Join(ctx context.Context, eventID, principalID string) (*dto.RSVPResponse, error)

	// Leave removes the principal from the event's attendee set
	Leave(ctx context.Context, eventID, principalID string) (*dto.RSVPResponse, error)

	// Attendance returns the event's attendee list and occupancy
	Attendance(ctx context.Context, eventID string) (*dto.AttendanceResponse, error)
}

// admissionService implements AdmissionService. It holds no cross-request
// state; the capacity and uniqueness decisions are delegated to the store's
// atomic mutations, so any number of instances can serve the same event.
type admissionService struct {
	store     repository.MembershipStore
	users     repository.UserRepository
	publisher RSVPPublisher
}

// NewAdmissionService creates a new admission service
func NewAdmissionService(
	store repository.MembershipStore,
	users repository.UserRepository,
	publisher RSVPPublisher,
) AdmissionService {
	if publisher == nil {
		publisher = NewNoOpRSVPPublisher()
	}
	return &admissionService{
		store:     store,
		users:     users,
		publisher: publisher,
	}
}

// storeErr passes known domain errors through and classifies everything else
// as a store availability problem
func storeErr(err error) error {
	if errors.Is(err, domain.ErrEventNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}

// Join admits the principal. The snapshot read is advisory only; the store's
// TryAddMember is the authoritative check, and a non-applied result is
// classified from the snapshot taken atomically with that attempt.
func (s *admissionService) Join(ctx context.Context, eventID, principalID string) (*dto.RSVPResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.admission.join")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", eventID),
		attribute.String("principal_id", principalID),
	)

	start := time.Now()
	defer func() {
		if metrics.AdmissionDuration != nil {
			metrics.AdmissionDuration.Record(ctx, time.Since(start).Seconds(),
				attribute.String("operation", "join"))
		}
	}()

	snapshot, err := s.store.GetSnapshot(ctx, eventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, storeErr(err)
	}

	// Fast path for retried joins; the store would catch this too
	if snapshot.HasMember(principalID) {
		span.SetStatus(codes.Ok, "already_member")
		return nil, domain.ErrAlreadyMember
	}

	result, err := s.store.TryAddMember(ctx, eventID, principalID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, storeErr(err)
	}

	if !result.Applied {
		if result.Snapshot.HasMember(principalID) {
			span.SetStatus(codes.Ok, "already_member")
			return nil, domain.ErrAlreadyMember
		}
		if metrics.JoinsRejected != nil {
			metrics.JoinsRejected.Inc(ctx, attribute.String("reason", "full"))
		}
		span.SetStatus(codes.Ok, "full")
		return nil, domain.ErrEventFull
	}

	if metrics.JoinsAccepted != nil {
		metrics.JoinsAccepted.Inc(ctx)
	}

	s.publishChange(ctx, RSVPActionJoined, principalID, result.Snapshot)

	span.SetAttributes(attribute.Int("attendee_count", result.Snapshot.AttendeeCount()))
	span.SetStatus(codes.Ok, "")
	return dto.RSVPFromSnapshot(RSVPActionJoined, result.Snapshot), nil
}

// Leave removes the principal. Losing the removal race to a concurrent leave
// still reports success: the end state matches the caller's intent.
func (s *admissionService) Leave(ctx context.Context, eventID, principalID string) (*dto.RSVPResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.admission.leave")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", eventID),
		attribute.String("principal_id", principalID),
	)

	start := time.Now()
	defer func() {
		if metrics.AdmissionDuration != nil {
			metrics.AdmissionDuration.Record(ctx, time.Since(start).Seconds(),
				attribute.String("operation", "leave"))
		}
	}()

	snapshot, err := s.store.GetSnapshot(ctx, eventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, storeErr(err)
	}

	if snapshot.OwnerID == principalID {
		if metrics.LeavesRejected != nil {
			metrics.LeavesRejected.Inc(ctx, attribute.String("reason", "owner"))
		}
		span.SetStatus(codes.Ok, "owner_cannot_leave")
		return nil, domain.ErrOwnerCannotLeave
	}
	if !snapshot.HasMember(principalID) {
		if metrics.LeavesRejected != nil {
			metrics.LeavesRejected.Inc(ctx, attribute.String("reason", "not_member"))
		}
		span.SetStatus(codes.Ok, "not_member")
		return nil, domain.ErrNotMember
	}

	result, err := s.store.TryRemoveMember(ctx, eventID, principalID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, storeErr(err)
	}

	if result.Applied {
		if metrics.LeavesAccepted != nil {
			metrics.LeavesAccepted.Inc(ctx)
		}
		s.publishChange(ctx, RSVPActionLeft, principalID, result.Snapshot)
	}

	span.SetAttributes(attribute.Int("attendee_count", result.Snapshot.AttendeeCount()))
	span.SetStatus(codes.Ok, "")
	return dto.RSVPFromSnapshot(RSVPActionLeft, result.Snapshot), nil
}

// Attendance returns occupancy and resolved attendee identities
func (s *admissionService) Attendance(ctx context.Context, eventID string) (*dto.AttendanceResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.admission.attendance")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", eventID))

	snapshot, err := s.store.GetSnapshot(ctx, eventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, storeErr(err)
	}

	attendees, err := s.users.GetByIDs(ctx, snapshot.Attendees)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, storeErr(err)
	}

	attendance := &domain.Attendance{
		AttendeeCount:  snapshot.AttendeeCount(),
		Capacity:       snapshot.Capacity,
		AvailableSpots: snapshot.AvailableSpots(),
		Attendees:      attendees,
	}

	span.SetAttributes(attribute.Int("attendee_count", attendance.AttendeeCount))
	span.SetStatus(codes.Ok, "")
	return dto.AttendanceFromDomain(eventID, attendance), nil
}

// publishChange emits the membership change without blocking the caller's
// outcome; delivery failures are logged and dropped
func (s *admissionService) publishChange(ctx context.Context, action, principalID string, snapshot *domain.EventSnapshot) {
	msg := &dto.RSVPEventMessage{
		EventID:       snapshot.EventID,
		PrincipalID:   principalID,
		AttendeeCount: snapshot.AttendeeCount(),
		Capacity:      snapshot.Capacity,
		OccurredAt:    time.Now().UTC(),
	}

	var err error
	switch action {
	case RSVPActionJoined:
		err = s.publisher.PublishJoined(ctx, msg)
	case RSVPActionLeft:
		err = s.publisher.PublishLeft(ctx, msg)
	}
	if err != nil {
		logger.Get().Warn("failed to publish rsvp event",
			zap.String("event_id", snapshot.EventID),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}
