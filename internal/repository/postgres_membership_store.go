package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/teerapat-ch/eventhub/internal/domain"
	"github.com/teerapat-ch/eventhub/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PostgresMembershipStore implements MembershipStore on PostgreSQL. Every
// mutation runs inside a transaction that takes the event row lock with
// SELECT ... FOR UPDATE, so concurrent admissions for the same event are
// serialized and the capacity check and insert happen as one atomic unit.
type PostgresMembershipStore struct {
	pool *pgxpool.Pool
}

// NewPostgresMembershipStore creates a new PostgresMembershipStore
func NewPostgresMembershipStore(pool *pgxpool.Pool) *PostgresMembershipStore {
	return &PostgresMembershipStore{pool: pool}
}

// lockEvent loads the event row under FOR UPDATE together with its current
// attendee set. Returns domain.ErrEventNotFound for missing or deleted events.
func (s *PostgresMembershipStore) lockEvent(ctx context.Context, tx pgx.Tx, eventID string) (*domain.EventSnapshot, error) {
	snapshot := &domain.EventSnapshot{EventID: eventID}

	err := tx.QueryRow(ctx, `
		SELECT capacity, owner_id
		FROM events
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE
	`, eventID).Scan(&snapshot.Capacity, &snapshot.OwnerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock event: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT user_id
		FROM event_attendees
		WHERE event_id = $1
		ORDER BY joined_at
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attendees: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan attendee: %w", err)
		}
		snapshot.Attendees = append(snapshot.Attendees, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read attendees: %w", err)
	}

	return snapshot, nil
}

// TryAddMember adds the principal to the attendee set if there is room and
// they are not already in it
func (s *PostgresMembershipStore) TryAddMember(ctx context.Context, eventID, principalID string) (*MembershipResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "store.postgres.try_add_member")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", eventID),
		attribute.String("principal_id", principalID),
	)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	snapshot, err := s.lockEvent(ctx, tx, eventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if snapshot.HasMember(principalID) || snapshot.IsFull() {
		span.SetAttributes(attribute.Bool("applied", false))
		span.SetStatus(codes.Ok, "")
		return &MembershipResult{Applied: false, Snapshot: snapshot}, nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO event_attendees (event_id, user_id, joined_at)
		VALUES ($1, $2, NOW())
	`, eventID, principalID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to add attendee: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to commit join: %w", err)
	}

	snapshot.Attendees = append(snapshot.Attendees, principalID)
	span.SetAttributes(attribute.Bool("applied", true))
	span.SetStatus(codes.Ok, "")
	return &MembershipResult{Applied: true, Snapshot: snapshot}, nil
}

// TryRemoveMember removes the principal from the attendee set if present
func (s *PostgresMembershipStore) TryRemoveMember(ctx context.Context, eventID, principalID string) (*MembershipResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "store.postgres.try_remove_member")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", eventID),
		attribute.String("principal_id", principalID),
	)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	snapshot, err := s.lockEvent(ctx, tx, eventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if !snapshot.HasMember(principalID) {
		span.SetAttributes(attribute.Bool("applied", false))
		span.SetStatus(codes.Ok, "")
		return &MembershipResult{Applied: false, Snapshot: snapshot}, nil
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM event_attendees
		WHERE event_id = $1 AND user_id = $2
	`, eventID, principalID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to remove attendee: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to commit leave: %w", err)
	}

	remaining := make([]string, 0, len(snapshot.Attendees)-1)
	for _, id := range snapshot.Attendees {
		if id != principalID {
			remaining = append(remaining, id)
		}
	}
	snapshot.Attendees = remaining

	span.SetAttributes(attribute.Bool("applied", true))
	span.SetStatus(codes.Ok, "")
	return &MembershipResult{Applied: true, Snapshot: snapshot}, nil
}

// GetSnapshot returns the current membership view without locking
func (s *PostgresMembershipStore) GetSnapshot(ctx context.Context, eventID string) (*domain.EventSnapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, "store.postgres.get_snapshot")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", eventID))

	snapshot := &domain.EventSnapshot{EventID: eventID}

	err := s.pool.QueryRow(ctx, `
		SELECT capacity, owner_id
		FROM events
		WHERE id = $1 AND deleted_at IS NULL
	`, eventID).Scan(&snapshot.Capacity, &snapshot.OwnerID)
	if errors.Is(err, pgx.ErrNoRows) {
		span.SetStatus(codes.Ok, "")
		return nil, domain.ErrEventNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT user_id
		FROM event_attendees
		WHERE event_id = $1
		ORDER BY joined_at
	`, eventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get attendees: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan attendee: %w", err)
		}
		snapshot.Attendees = append(snapshot.Attendees, userID)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read attendees: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return snapshot, nil
}

// UpdateCapacity changes the capacity under the event row lock so the check
// against the current attendee count cannot race with an admission
func (s *PostgresMembershipStore) UpdateCapacity(ctx context.Context, eventID string, newCapacity int, ownerID string) (*domain.EventSnapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, "store.postgres.update_capacity")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", eventID),
		attribute.Int("new_capacity", newCapacity),
	)

	if newCapacity < 1 {
		return nil, domain.ErrInvalidCapacity
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	snapshot, err := s.lockEvent(ctx, tx, eventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if snapshot.OwnerID != ownerID {
		return nil, domain.ErrNotOwner
	}
	if newCapacity < snapshot.AttendeeCount() {
		return nil, domain.ErrInvalidCapacity
	}

	_, err = tx.Exec(ctx, `
		UPDATE events
		SET capacity = $2, updated_at = NOW()
		WHERE id = $1
	`, eventID, newCapacity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to update capacity: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to commit capacity update: %w", err)
	}

	snapshot.Capacity = newCapacity
	span.SetStatus(codes.Ok, "")
	return snapshot, nil
}

// SeedEvent backfills attendee rows for an event. Existing rows are kept, so
// reseeding after a partial failure is safe.
func (s *PostgresMembershipStore) SeedEvent(ctx context.Context, snapshot *domain.EventSnapshot) error {
	ctx, span := telemetry.StartSpan(ctx, "store.postgres.seed_event")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", snapshot.EventID))

	for _, userID := range snapshot.Attendees {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO event_attendees (event_id, user_id, joined_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (event_id, user_id) DO NOTHING
		`, snapshot.EventID, userID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("failed to seed attendee: %w", err)
		}
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// RemoveEvent is a no-op here. Deleted events carry a deleted_at tombstone on
// the events row, which every membership query already excludes.
func (s *PostgresMembershipStore) RemoveEvent(ctx context.Context, eventID string) error {
	return nil
}
