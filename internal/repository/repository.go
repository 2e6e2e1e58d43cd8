package repository

import (
	"context"

	"github.com/communa-labs/ticketing/internal/domain"
)

// TicketRepository defines persistence operations for tickets.
// Transition methods are conditional on the current status: they affect
// zero rows when the ticket is no longer in the expected state, and the
// implementation reports the actual state through a typed error.
type TicketRepository interface {
	// Create persists a new ticket in reserved status
	Create(ctx context.Context, ticket *domain.Ticket) error

	// GetByID retrieves a ticket by its internal ID
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)

	// GetBySerial retrieves a ticket by its public serial
	GetBySerial(ctx context.Context, serial string) (*domain.Ticket, error)

	// GetByOwner retrieves a page of tickets belonging to a user
	GetByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Ticket, error)

	// ConfirmPayment transitions reserved -> paid while the hold is live
	ConfirmPayment(ctx context.Context, id, paymentRef string) error

	// Cancel transitions the ticket from the observed status to cancelled
	Cancel(ctx context.Context, id string, from domain.TicketStatus, reason string) error

	// Redeem transitions paid -> used and records the scanning operator
	Redeem(ctx context.Context, id, operatorID string) error

	// MarkExpired transitions reserved -> expired once the hold has lapsed
	MarkExpired(ctx context.Context, id string) error

	// GetStaleReservations lists reserved tickets whose hold has lapsed
	GetStaleReservations(ctx context.Context, limit int) ([]*domain.Ticket, error)
}

// TicketTypeRepository defines persistence operations for ticket types
type TicketTypeRepository interface {
	// Create persists a new ticket type
	Create(ctx context.Context, tt *domain.TicketType) error

	// GetByID retrieves a ticket type by ID, excluding archived types
	GetByID(ctx context.Context, id string) (*domain.TicketType, error)

	// GetByOrganizer retrieves all live ticket types of an organizer
	GetByOrganizer(ctx context.Context, organizerID string) ([]*domain.TicketType, error)

	// Archive soft deletes a ticket type
	Archive(ctx context.Context, id string) error
}
