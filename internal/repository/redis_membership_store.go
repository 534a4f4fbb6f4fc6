package repository

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"

	"github.com/teerapat-ch/eventhub/internal/domain"
	pkgredis "github.com/teerapat-ch/eventhub/pkg/redis"
	"github.com/teerapat-ch/eventhub/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

//go:embed scripts/join_event.lua
var joinEventScript string

//go:embed scripts/leave_event.lua
var leaveEventScript string

//go:embed scripts/set_capacity.lua
var setCapacityScript string

// Script names for caching
const (
	scriptJoinEvent   = "join_event"
	scriptLeaveEvent  = "leave_event"
	scriptSetCapacity = "set_capacity"
)

// Script status codes
const (
	statusOK            = "OK"
	statusNotFound      = "NOT_FOUND"
	statusAlreadyMember = "ALREADY_MEMBER"
	statusFull          = "FULL"
	statusNotMember     = "NOT_MEMBER"
	statusNotOwner      = "NOT_OWNER"
	statusTooSmall      = "TOO_SMALL"
)

// RedisMembershipStore implements MembershipStore on Redis. Each event keeps
// a meta hash (capacity, owner) and a members set, and every mutation runs as
// a Lua script so the condition check and the set update are one atomic step.
// State is seeded from PostgreSQL at event creation and repaired by the
// reconcile worker, so a flushed Redis recovers on the next sweep.
type RedisMembershipStore struct {
	client *pkgredis.Client
}

// NewRedisMembershipStore creates a new RedisMembershipStore
func NewRedisMembershipStore(client *pkgredis.Client) *RedisMembershipStore {
	return &RedisMembershipStore{client: client}
}

// LoadScripts loads all Lua scripts into Redis
func (s *RedisMembershipStore) LoadScripts(ctx context.Context) error {
	scripts := map[string]string{
		scriptJoinEvent:   joinEventScript,
		scriptLeaveEvent:  leaveEventScript,
		scriptSetCapacity: setCapacityScript,
	}

	for name, script := range scripts {
		if _, err := s.client.LoadScript(ctx, name, script); err != nil {
			return fmt.Errorf("failed to load script %s: %w", name, err)
		}
	}

	return nil
}

func metaKey(eventID string) string {
	return fmt.Sprintf("event:meta:%s", eventID)
}

func membersKey(eventID string) string {
	return fmt.Sprintf("event:members:%s", eventID)
}

// parseScriptResult decodes the common {status, capacity, owner, members...}
// shape shared by all three scripts
func parseScriptResult(eventID string, values []interface{}) (string, *domain.EventSnapshot, error) {
	if len(values) < 1 {
		return "", nil, fmt.Errorf("empty script result")
	}

	status, _ := values[0].(string)
	if status == statusNotFound {
		return status, nil, nil
	}
	if len(values) < 3 {
		return "", nil, fmt.Errorf("unexpected script result length: %d", len(values))
	}

	capacity, ok := toInt64(values[1])
	if !ok {
		return "", nil, fmt.Errorf("unexpected capacity in script result: %v", values[1])
	}
	owner, _ := values[2].(string)

	snapshot := &domain.EventSnapshot{
		EventID:  eventID,
		Capacity: int(capacity),
		OwnerID:  owner,
	}
	for _, v := range values[3:] {
		if member, ok := v.(string); ok {
			snapshot.Attendees = append(snapshot.Attendees, member)
		}
	}

	return status, snapshot, nil
}

func (s *RedisMembershipStore) runScript(ctx context.Context, name, script, eventID string, args ...interface{}) (string, *domain.EventSnapshot, error) {
	keys := []string{metaKey(eventID), membersKey(eventID)}

	result := s.client.EvalWithFallback(ctx, name, script, keys, args...)
	if result.Err() != nil {
		return "", nil, fmt.Errorf("failed to execute %s script: %w", name, result.Err())
	}

	values, err := result.Slice()
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse %s script result: %w", name, err)
	}

	return parseScriptResult(eventID, values)
}

// TryAddMember admits the principal via the join_event script
func (s *RedisMembershipStore) TryAddMember(ctx context.Context, eventID, principalID string) (*MembershipResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "store.redis.try_add_member")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", eventID),
		attribute.String("principal_id", principalID),
	)

	status, snapshot, err := s.runScript(ctx, scriptJoinEvent, joinEventScript, eventID, principalID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if status == statusNotFound {
		span.SetStatus(codes.Ok, "")
		return nil, domain.ErrEventNotFound
	}

	span.SetAttributes(attribute.Bool("applied", status == statusOK))
	span.SetStatus(codes.Ok, "")
	return &MembershipResult{Applied: status == statusOK, Snapshot: snapshot}, nil
}

// TryRemoveMember removes the principal via the leave_event script
func (s *RedisMembershipStore) TryRemoveMember(ctx context.Context, eventID, principalID string) (*MembershipResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "store.redis.try_remove_member")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", eventID),
		attribute.String("principal_id", principalID),
	)

	status, snapshot, err := s.runScript(ctx, scriptLeaveEvent, leaveEventScript, eventID, principalID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if status == statusNotFound {
		span.SetStatus(codes.Ok, "")
		return nil, domain.ErrEventNotFound
	}

	span.SetAttributes(attribute.Bool("applied", status == statusOK))
	span.SetStatus(codes.Ok, "")
	return &MembershipResult{Applied: status == statusOK, Snapshot: snapshot}, nil
}

// GetSnapshot reads the meta hash and members set
func (s *RedisMembershipStore) GetSnapshot(ctx context.Context, eventID string) (*domain.EventSnapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, "store.redis.get_snapshot")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", eventID))

	meta, err := s.client.HGetAll(ctx, metaKey(eventID)).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get event meta: %w", err)
	}
	if len(meta) == 0 {
		span.SetStatus(codes.Ok, "")
		return nil, domain.ErrEventNotFound
	}

	capacity, err := strconv.Atoi(meta["capacity"])
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("corrupt capacity for event %s: %w", eventID, err)
	}

	members, err := s.client.SMembers(ctx, membersKey(eventID)).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get event members: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return &domain.EventSnapshot{
		EventID:   eventID,
		Capacity:  capacity,
		OwnerID:   meta["owner"],
		Attendees: members,
	}, nil
}

// UpdateCapacity changes the capacity via the set_capacity script
func (s *RedisMembershipStore) UpdateCapacity(ctx context.Context, eventID string, newCapacity int, ownerID string) (*domain.EventSnapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, "store.redis.update_capacity")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", eventID),
		attribute.Int("new_capacity", newCapacity),
	)

	if newCapacity < 1 {
		return nil, domain.ErrInvalidCapacity
	}

	status, snapshot, err := s.runScript(ctx, scriptSetCapacity, setCapacityScript, eventID, newCapacity, ownerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	switch status {
	case statusNotFound:
		span.SetStatus(codes.Ok, "")
		return nil, domain.ErrEventNotFound
	case statusNotOwner:
		span.SetStatus(codes.Ok, "")
		return nil, domain.ErrNotOwner
	case statusTooSmall:
		span.SetStatus(codes.Ok, "")
		return nil, domain.ErrInvalidCapacity
	}

	span.SetStatus(codes.Ok, "")
	return snapshot, nil
}

// SeedEvent writes the event's meta hash and members set in one pipeline.
// The members set is rebuilt from the snapshot, so seeding doubles as repair.
func (s *RedisMembershipStore) SeedEvent(ctx context.Context, snapshot *domain.EventSnapshot) error {
	ctx, span := telemetry.StartSpan(ctx, "store.redis.seed_event")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", snapshot.EventID))

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, metaKey(snapshot.EventID),
		"capacity", snapshot.Capacity,
		"owner", snapshot.OwnerID,
	)
	pipe.Del(ctx, membersKey(snapshot.EventID))
	if len(snapshot.Attendees) > 0 {
		members := make([]interface{}, len(snapshot.Attendees))
		for i, m := range snapshot.Attendees {
			members[i] = m
		}
		pipe.SAdd(ctx, membersKey(snapshot.EventID), members...)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to seed event %s: %w", snapshot.EventID, err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// RemoveEvent deletes the event's keys so all further admission fails with
// not found
func (s *RedisMembershipStore) RemoveEvent(ctx context.Context, eventID string) error {
	ctx, span := telemetry.StartSpan(ctx, "store.redis.remove_event")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", eventID))

	if err := s.client.Del(ctx, metaKey(eventID), membersKey(eventID)).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to remove event %s: %w", eventID, err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// toInt64 coerces a script result element to int64
func toInt64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case float64:
		return int64(val), true
	case string:
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
