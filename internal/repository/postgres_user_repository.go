package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/teerapat-ch/eventhub/internal/domain"
	"github.com/teerapat-ch/eventhub/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PostgresUserRepository implements UserRepository using PostgreSQL with pgxpool
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository creates a new PostgresUserRepository
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Upsert records the principal's display identity as seen on their token
func (r *PostgresUserRepository) Upsert(ctx context.Context, p *domain.Principal) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.user.upsert")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", p.ID))

	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, updated_at = NOW()
	`, p.ID, p.Name, p.Email)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByIDs resolves attendee identities, preserving the input order. IDs with
// no stored identity still appear in the result with only the ID filled in.
func (r *PostgresUserRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Attendee, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.user.get_by_ids")
	defer span.End()

	span.SetAttributes(attribute.Int("count", len(ids)))

	if len(ids) == 0 {
		span.SetStatus(codes.Ok, "")
		return []domain.Attendee{}, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, email
		FROM users
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.Attendee, len(ids))
	for rows.Next() {
		var a domain.Attendee
		if err := rows.Scan(&a.ID, &a.Name, &a.Email); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		byID[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read users: %w", err)
	}

	attendees := make([]domain.Attendee, 0, len(ids))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			attendees = append(attendees, a)
		} else {
			attendees = append(attendees, domain.Attendee{ID: id})
		}
	}

	span.SetStatus(codes.Ok, "")
	return attendees, nil
}
