package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/communa-labs/ticketing/internal/domain"
	"github.com/communa-labs/ticketing/pkg/telemetry"
)

// PostgresLedger implements Ledger on the ticket_types sold counter.
// A single conditional UPDATE carries the capacity check, so concurrent
// reservations serialize on the row without explicit locking.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger creates a new PostgresLedger
func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

// TryReserve atomically claims qty units of a ticket type
func (l *PostgresLedger) TryReserve(ctx context.Context, ticketTypeID string, qty int64) error {
	ctx, span := telemetry.StartSpan(ctx, "inventory.postgres.try_reserve")
	defer span.End()

	span.SetAttributes(
		attribute.String("ticket_type_id", ticketTypeID),
		attribute.Int64("quantity", qty),
	)

	query := `
		UPDATE ticket_types SET
			sold = sold + $2,
			updated_at = NOW()
		WHERE id = $1
			AND deleted_at IS NULL
			AND sold + $2 <= capacity
	`

	result, err := l.pool.Exec(ctx, query, ticketTypeID, qty)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to reserve inventory: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Distinguish a full pool from a missing ticket type
		var exists bool
		err := l.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM ticket_types WHERE id = $1 AND deleted_at IS NULL)",
			ticketTypeID,
		).Scan(&exists)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("failed to check ticket type existence: %w", err)
		}
		if !exists {
			span.SetStatus(codes.Error, "not found")
			return domain.ErrTicketTypeNotFound
		}
		span.SetStatus(codes.Error, "unavailable")
		return domain.ErrUnavailable
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Release atomically returns qty units to the pool
func (l *PostgresLedger) Release(ctx context.Context, ticketTypeID string, qty int64) error {
	ctx, span := telemetry.StartSpan(ctx, "inventory.postgres.release")
	defer span.End()

	span.SetAttributes(
		attribute.String("ticket_type_id", ticketTypeID),
		attribute.Int64("quantity", qty),
	)

	query := `
		UPDATE ticket_types SET
			sold = GREATEST(sold - $2, 0),
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := l.pool.Exec(ctx, query, ticketTypeID, qty)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to release inventory: %w", err)
	}

	if result.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "not found")
		return domain.ErrTicketTypeNotFound
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// CheckAvailability reports the current counters of a ticket type
func (l *PostgresLedger) CheckAvailability(ctx context.Context, ticketTypeID string) (*Availability, error) {
	ctx, span := telemetry.StartSpan(ctx, "inventory.postgres.check_availability")
	defer span.End()

	span.SetAttributes(attribute.String("ticket_type_id", ticketTypeID))

	query := `
		SELECT capacity, sold FROM ticket_types
		WHERE id = $1 AND deleted_at IS NULL
	`

	avail := &Availability{TicketTypeID: ticketTypeID}
	err := l.pool.QueryRow(ctx, query, ticketTypeID).Scan(&avail.Capacity, &avail.Sold)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrTicketTypeNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to check availability: %w", err)
	}

	avail.Remaining = avail.Capacity - avail.Sold
	if avail.Remaining < 0 {
		avail.Remaining = 0
	}

	span.SetAttributes(attribute.Int64("remaining", avail.Remaining))
	span.SetStatus(codes.Ok, "")
	return avail, nil
}

// Ensure PostgresLedger implements Ledger
var _ Ledger = (*PostgresLedger)(nil)
