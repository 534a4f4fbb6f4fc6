package repository

import (
	"context"
	"fmt"

	"github.com/teerapat-ch/eventhub/internal/domain"
	"github.com/teerapat-ch/eventhub/pkg/logger"
	"github.com/teerapat-ch/eventhub/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// WriteThroughMembershipStore pairs a fast serving store (Redis or memory)
// with the durable Postgres store. The serving store decides every mutation
// atomically; an applied mutation is then persisted into the durable store
// before the call returns, so the table the reconcile worker treats as truth
// always carries live membership. A failed durable write rolls the serving
// mutation back and fails the call, keeping both stores convergent.
type WriteThroughMembershipStore struct {
	serving MembershipStore
	durable MembershipStore
	log     *logger.Logger
}

// NewWriteThroughMembershipStore creates a write-through store over the given
// serving and durable stores
func NewWriteThroughMembershipStore(serving, durable MembershipStore) *WriteThroughMembershipStore {
	return &WriteThroughMembershipStore{
		serving: serving,
		durable: durable,
		log:     logger.Get(),
	}
}

// TryAddMember admits through the serving store, then persists the admission.
// The durable add is idempotent: a member already present there (from an
// earlier partial failure) does not fail the call.
func (s *WriteThroughMembershipStore) TryAddMember(ctx context.Context, eventID, principalID string) (*MembershipResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "store.writethrough.try_add_member")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", eventID),
		attribute.String("principal_id", principalID),
	)

	result, err := s.serving.TryAddMember(ctx, eventID, principalID)
	if err != nil || !result.Applied {
		return result, err
	}

	if _, err := s.durable.TryAddMember(ctx, eventID, principalID); err != nil {
		s.rollbackAdd(ctx, eventID, principalID)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to persist join: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return result, nil
}

// TryRemoveMember removes through the serving store, then persists the
// removal
func (s *WriteThroughMembershipStore) TryRemoveMember(ctx context.Context, eventID, principalID string) (*MembershipResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "store.writethrough.try_remove_member")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", eventID),
		attribute.String("principal_id", principalID),
	)

	result, err := s.serving.TryRemoveMember(ctx, eventID, principalID)
	if err != nil || !result.Applied {
		return result, err
	}

	if _, err := s.durable.TryRemoveMember(ctx, eventID, principalID); err != nil {
		s.rollbackRemove(ctx, eventID, principalID)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to persist leave: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return result, nil
}

// GetSnapshot reads from the serving store
func (s *WriteThroughMembershipStore) GetSnapshot(ctx context.Context, eventID string) (*domain.EventSnapshot, error) {
	return s.serving.GetSnapshot(ctx, eventID)
}

// UpdateCapacity applies the change in the serving store, which holds the
// authoritative attendee count, then persists it into the events row
func (s *WriteThroughMembershipStore) UpdateCapacity(ctx context.Context, eventID string, newCapacity int, ownerID string) (*domain.EventSnapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, "store.writethrough.update_capacity")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", eventID),
		attribute.Int("new_capacity", newCapacity),
	)

	previous, err := s.serving.GetSnapshot(ctx, eventID)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.serving.UpdateCapacity(ctx, eventID, newCapacity, ownerID)
	if err != nil {
		return nil, err
	}

	if _, err := s.durable.UpdateCapacity(ctx, eventID, newCapacity, ownerID); err != nil {
		if _, rbErr := s.serving.UpdateCapacity(ctx, eventID, previous.Capacity, ownerID); rbErr != nil {
			s.log.Error("failed to roll back capacity change, reconciliation will converge",
				zap.String("event_id", eventID),
				zap.Error(rbErr),
			)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to persist capacity change: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return snapshot, nil
}

// SeedEvent seeds the durable store first so the snapshot survives a serving
// store flush even before the first reconcile sweep
func (s *WriteThroughMembershipStore) SeedEvent(ctx context.Context, snapshot *domain.EventSnapshot) error {
	if err := s.durable.SeedEvent(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to seed durable store: %w", err)
	}
	return s.serving.SeedEvent(ctx, snapshot)
}

// RemoveEvent drops the event from both stores
func (s *WriteThroughMembershipStore) RemoveEvent(ctx context.Context, eventID string) error {
	if err := s.serving.RemoveEvent(ctx, eventID); err != nil {
		return err
	}
	return s.durable.RemoveEvent(ctx, eventID)
}

// rollbackAdd undoes a serving-store admission whose durable write failed.
// Best effort: if the undo also fails, the next reconcile sweep restores the
// serving store from the durable state, which never saw the admission.
func (s *WriteThroughMembershipStore) rollbackAdd(ctx context.Context, eventID, principalID string) {
	if _, err := s.serving.TryRemoveMember(ctx, eventID, principalID); err != nil {
		s.log.Error("failed to roll back admission, reconciliation will converge",
			zap.String("event_id", eventID),
			zap.String("principal_id", principalID),
			zap.Error(err),
		)
	}
}

// rollbackRemove restores a serving-store removal whose durable write failed
func (s *WriteThroughMembershipStore) rollbackRemove(ctx context.Context, eventID, principalID string) {
	if _, err := s.serving.TryAddMember(ctx, eventID, principalID); err != nil {
		s.log.Error("failed to roll back removal, reconciliation will converge",
			zap.String("event_id", eventID),
			zap.String("principal_id", principalID),
			zap.Error(err),
		)
	}
}
