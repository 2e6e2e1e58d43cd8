package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/communa-labs/ticketing/internal/domain"
	"github.com/communa-labs/ticketing/pkg/telemetry"
)

// PostgresTicketTypeRepository implements TicketTypeRepository using PostgreSQL
type PostgresTicketTypeRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTicketTypeRepository creates a new PostgresTicketTypeRepository
func NewPostgresTicketTypeRepository(pool *pgxpool.Pool) *PostgresTicketTypeRepository {
	return &PostgresTicketTypeRepository{pool: pool}
}

// Create persists a new ticket type
func (r *PostgresTicketTypeRepository) Create(ctx context.Context, tt *domain.TicketType) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket_type.create")
	defer span.End()

	span.SetAttributes(
		attribute.String("ticket_type_id", tt.ID),
		attribute.String("organizer_id", tt.OrganizerID),
		attribute.Int64("capacity", tt.Capacity),
	)

	query := `
		INSERT INTO ticket_types (
			id, sellable_kind, sellable_id, organizer_id, name,
			price, capacity, sold, sale_start, sale_end,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12
		)
	`

	_, err := r.pool.Exec(ctx, query,
		tt.ID,
		string(tt.Sellable.Kind),
		tt.Sellable.ID,
		tt.OrganizerID,
		tt.Name,
		tt.Price,
		tt.Capacity,
		tt.Sold,
		tt.SaleStart,
		tt.SaleEnd,
		tt.CreatedAt,
		tt.UpdatedAt,
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create ticket type: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByID retrieves a ticket type by ID, excluding archived types
func (r *PostgresTicketTypeRepository) GetByID(ctx context.Context, id string) (*domain.TicketType, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket_type.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("ticket_type_id", id))

	query := `
		SELECT
			id, sellable_kind, sellable_id, organizer_id, name,
			price, capacity, sold, sale_start, sale_end,
			created_at, updated_at, deleted_at
		FROM ticket_types
		WHERE id = $1 AND deleted_at IS NULL
	`

	tt := &domain.TicketType{}
	var sellableKind string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&tt.ID,
		&sellableKind,
		&tt.Sellable.ID,
		&tt.OrganizerID,
		&tt.Name,
		&tt.Price,
		&tt.Capacity,
		&tt.Sold,
		&tt.SaleStart,
		&tt.SaleEnd,
		&tt.CreatedAt,
		&tt.UpdatedAt,
		&tt.DeletedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrTicketTypeNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get ticket type: %w", err)
	}

	tt.Sellable.Kind = domain.SellableKind(sellableKind)
	span.SetStatus(codes.Ok, "")
	return tt, nil
}

// GetByOrganizer retrieves all live ticket types of an organizer
func (r *PostgresTicketTypeRepository) GetByOrganizer(ctx context.Context, organizerID string) ([]*domain.TicketType, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket_type.get_by_organizer")
	defer span.End()

	span.SetAttributes(attribute.String("organizer_id", organizerID))

	query := `
		SELECT
			id, sellable_kind, sellable_id, organizer_id, name,
			price, capacity, sold, sale_start, sale_end,
			created_at, updated_at, deleted_at
		FROM ticket_types
		WHERE organizer_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, organizerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get ticket types: %w", err)
	}
	defer rows.Close()

	var types []*domain.TicketType
	for rows.Next() {
		tt := &domain.TicketType{}
		var sellableKind string
		if err := rows.Scan(
			&tt.ID,
			&sellableKind,
			&tt.Sellable.ID,
			&tt.OrganizerID,
			&tt.Name,
			&tt.Price,
			&tt.Capacity,
			&tt.Sold,
			&tt.SaleStart,
			&tt.SaleEnd,
			&tt.CreatedAt,
			&tt.UpdatedAt,
			&tt.DeletedAt,
		); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan ticket type: %w", err)
		}
		tt.Sellable.Kind = domain.SellableKind(sellableKind)
		types = append(types, tt)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("error iterating ticket types: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(types)))
	span.SetStatus(codes.Ok, "")
	return types, nil
}

// Archive soft deletes a ticket type
func (r *PostgresTicketTypeRepository) Archive(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket_type.archive")
	defer span.End()

	span.SetAttributes(attribute.String("ticket_type_id", id))

	query := `
		UPDATE ticket_types SET
			deleted_at = $2,
			updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, id, time.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to archive ticket type: %w", err)
	}

	if result.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "not found")
		return domain.ErrTicketTypeNotFound
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Ensure PostgresTicketTypeRepository implements TicketTypeRepository
var _ TicketTypeRepository = (*PostgresTicketTypeRepository)(nil)
