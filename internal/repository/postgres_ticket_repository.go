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

const ticketColumns = `
	id, serial, scan_code, ticket_type_id, sellable_kind, sellable_id,
	owner_id, status, status_reason, price, valid_from, valid_until,
	reserved_at, hold_expires_at, paid_at, payment_ref,
	redeemed_at, redeemed_by, cancelled_at, created_at, updated_at
`

// PostgresTicketRepository implements TicketRepository using PostgreSQL with pgxpool
type PostgresTicketRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTicketRepository creates a new PostgresTicketRepository
func NewPostgresTicketRepository(pool *pgxpool.Pool) *PostgresTicketRepository {
	return &PostgresTicketRepository{pool: pool}
}

// Create persists a new ticket
func (r *PostgresTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.create")
	defer span.End()

	span.SetAttributes(
		attribute.String("ticket_id", ticket.ID),
		attribute.String("ticket_type_id", ticket.TicketTypeID),
		attribute.String("owner_id", ticket.OwnerID),
	)

	query := `
		INSERT INTO tickets (
			id, serial, scan_code, ticket_type_id, sellable_kind, sellable_id,
			owner_id, status, status_reason, price, valid_from, valid_until,
			reserved_at, hold_expires_at, payment_ref, redeemed_by,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16,
			$17, $18
		)
	`

	_, err := r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.Serial,
		ticket.ScanCode,
		ticket.TicketTypeID,
		string(ticket.Sellable.Kind),
		ticket.Sellable.ID,
		ticket.OwnerID,
		ticket.Status.String(),
		nullString(ticket.StatusReason),
		ticket.Price,
		ticket.ValidFrom,
		ticket.ValidUntil,
		ticket.ReservedAt,
		ticket.HoldExpiresAt,
		nullString(ticket.PaymentRef),
		nullString(ticket.RedeemedBy),
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create ticket: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByID retrieves a ticket by its internal ID
func (r *PostgresTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("ticket_id", id))

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1 AND deleted_at IS NULL`

	ticket, err := r.queryOne(ctx, query, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return ticket, nil
}

// GetBySerial retrieves a ticket by its public serial
func (r *PostgresTicketRepository) GetBySerial(ctx context.Context, serial string) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.get_by_serial")
	defer span.End()

	span.SetAttributes(attribute.String("serial", serial))

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE serial = $1 AND deleted_at IS NULL`

	ticket, err := r.queryOne(ctx, query, serial)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return ticket, nil
}

func (r *PostgresTicketRepository) queryOne(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticket: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to query ticket: %w", err)
		}
		return nil, domain.ErrTicketNotFound
	}
	return scanTicket(rows)
}

// GetByOwner retrieves a page of tickets belonging to a user
func (r *PostgresTicketRepository) GetByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.get_by_owner")
	defer span.End()

	span.SetAttributes(
		attribute.String("owner_id", ownerID),
		attribute.Int("limit", limit),
		attribute.Int("offset", offset),
	)

	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE owner_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get tickets by owner: %w", err)
	}
	defer rows.Close()

	var tickets []*domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		tickets = append(tickets, ticket)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("error iterating tickets: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(tickets)))
	span.SetStatus(codes.Ok, "")
	return tickets, nil
}

// ConfirmPayment transitions reserved -> paid while the hold is live
func (r *PostgresTicketRepository) ConfirmPayment(ctx context.Context, id, paymentRef string) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.confirm_payment")
	defer span.End()

	span.SetAttributes(
		attribute.String("ticket_id", id),
		attribute.String("payment_ref", paymentRef),
	)

	query := `
		UPDATE tickets SET
			status = $2,
			payment_ref = $3,
			paid_at = $4,
			updated_at = $4
		WHERE id = $1 AND status = 'reserved' AND hold_expires_at > $4
	`

	now := time.Now()
	result, err := r.pool.Exec(ctx, query, id, domain.TicketStatusPaid.String(), paymentRef, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to confirm payment: %w", err)
	}

	if result.RowsAffected() == 0 {
		err := r.classifyTransitionConflict(ctx, id, domain.TicketStatusPaid)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Cancel transitions the ticket from the observed status to cancelled
func (r *PostgresTicketRepository) Cancel(ctx context.Context, id string, from domain.TicketStatus, reason string) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.cancel")
	defer span.End()

	span.SetAttributes(
		attribute.String("ticket_id", id),
		attribute.String("from_status", from.String()),
	)

	query := `
		UPDATE tickets SET
			status = $3,
			status_reason = $4,
			cancelled_at = $5,
			updated_at = $5
		WHERE id = $1 AND status = $2
	`

	now := time.Now()
	result, err := r.pool.Exec(ctx, query, id, from.String(), domain.TicketStatusCancelled.String(), nullString(reason), now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to cancel ticket: %w", err)
	}

	if result.RowsAffected() == 0 {
		err := r.classifyTransitionConflict(ctx, id, domain.TicketStatusCancelled)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Redeem transitions paid -> used and records the scanning operator
func (r *PostgresTicketRepository) Redeem(ctx context.Context, id, operatorID string) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.redeem")
	defer span.End()

	span.SetAttributes(
		attribute.String("ticket_id", id),
		attribute.String("operator_id", operatorID),
	)

	query := `
		UPDATE tickets SET
			status = $2,
			redeemed_at = $3,
			redeemed_by = $4,
			updated_at = $3
		WHERE id = $1 AND status = 'paid'
	`

	now := time.Now()
	result, err := r.pool.Exec(ctx, query, id, domain.TicketStatusUsed.String(), now, operatorID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to redeem ticket: %w", err)
	}

	if result.RowsAffected() == 0 {
		err := r.classifyTransitionConflict(ctx, id, domain.TicketStatusUsed)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// MarkExpired transitions reserved -> expired once the hold has lapsed.
// The status condition makes the sweep idempotent: a ticket that was
// paid or cancelled between the scan and this update is left alone.
func (r *PostgresTicketRepository) MarkExpired(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.mark_expired")
	defer span.End()

	span.SetAttributes(attribute.String("ticket_id", id))

	query := `
		UPDATE tickets SET
			status = $2,
			status_reason = $3,
			updated_at = $4
		WHERE id = $1 AND status = 'reserved' AND hold_expires_at < $4
	`

	now := time.Now()
	result, err := r.pool.Exec(ctx, query,
		id,
		domain.TicketStatusExpired.String(),
		"reservation hold expired",
		now,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to mark ticket as expired: %w", err)
	}

	if result.RowsAffected() == 0 {
		err := r.classifyTransitionConflict(ctx, id, domain.TicketStatusExpired)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetStaleReservations lists reserved tickets whose hold has lapsed
func (r *PostgresTicketRepository) GetStaleReservations(ctx context.Context, limit int) ([]*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.get_stale")
	defer span.End()

	span.SetAttributes(attribute.Int("limit", limit))

	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE status = 'reserved'
			AND hold_expires_at < $1
			AND deleted_at IS NULL
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, time.Now(), limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get stale reservations: %w", err)
	}
	defer rows.Close()

	var tickets []*domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		tickets = append(tickets, ticket)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("error iterating tickets: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(tickets)))
	span.SetStatus(codes.Ok, "")
	return tickets, nil
}

// classifyTransitionConflict turns a zero-row conditional update into a
// typed error by re-reading the ticket's current state.
func (r *PostgresTicketRepository) classifyTransitionConflict(ctx context.Context, id string, target domain.TicketStatus) error {
	var status string
	var holdExpiresAt time.Time
	err := r.pool.QueryRow(ctx,
		"SELECT status, hold_expires_at FROM tickets WHERE id = $1 AND deleted_at IS NULL",
		id,
	).Scan(&status, &holdExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTicketNotFound
		}
		return fmt.Errorf("failed to check ticket status: %w", err)
	}

	switch domain.TicketStatus(status) {
	case domain.TicketStatusUsed:
		return domain.ErrAlreadyRedeemed
	case domain.TicketStatusCancelled:
		return domain.ErrAlreadyCancelled
	case domain.TicketStatusExpired:
		return domain.ErrTicketExpired
	case domain.TicketStatusPaid:
		if target == domain.TicketStatusPaid {
			return domain.ErrAlreadyPaid
		}
		return domain.ErrInvalidTransition
	case domain.TicketStatusReserved:
		if time.Now().After(holdExpiresAt) {
			return domain.ErrTicketExpired
		}
		return domain.ErrInvalidTransition
	default:
		return domain.ErrInvalidStatus
	}
}

// scanTicket scans a row into a Ticket struct
func scanTicket(rows pgx.Rows) (*domain.Ticket, error) {
	ticket := &domain.Ticket{}
	var (
		status       string
		sellableKind string
		statusReason *string
		paidAt       *time.Time
		paymentRef   *string
		redeemedAt   *time.Time
		redeemedBy   *string
		cancelledAt  *time.Time
	)

	err := rows.Scan(
		&ticket.ID,
		&ticket.Serial,
		&ticket.ScanCode,
		&ticket.TicketTypeID,
		&sellableKind,
		&ticket.Sellable.ID,
		&ticket.OwnerID,
		&status,
		&statusReason,
		&ticket.Price,
		&ticket.ValidFrom,
		&ticket.ValidUntil,
		&ticket.ReservedAt,
		&ticket.HoldExpiresAt,
		&paidAt,
		&paymentRef,
		&redeemedAt,
		&redeemedBy,
		&cancelledAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to scan ticket: %w", err)
	}

	ticket.Status = domain.TicketStatus(status)
	ticket.Sellable.Kind = domain.SellableKind(sellableKind)
	if statusReason != nil {
		ticket.StatusReason = *statusReason
	}
	ticket.PaidAt = paidAt
	if paymentRef != nil {
		ticket.PaymentRef = *paymentRef
	}
	ticket.RedeemedAt = redeemedAt
	if redeemedBy != nil {
		ticket.RedeemedBy = *redeemedBy
	}
	ticket.CancelledAt = cancelledAt

	return ticket, nil
}

// Helper function to convert empty string to nil pointer
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Ensure PostgresTicketRepository implements TicketRepository
var _ TicketRepository = (*PostgresTicketRepository)(nil)
