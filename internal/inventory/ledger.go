package inventory

import "context"

// Availability is a point-in-time snapshot of a ticket type's counters
type Availability struct {
	TicketTypeID string `json:"ticket_type_id"`
	Capacity     int64  `json:"capacity"`
	Sold         int64  `json:"sold"`
	Remaining    int64  `json:"remaining"`
}

// Ledger tracks sold counts against fixed capacities. TryReserve and
// Release must be atomic with respect to concurrent callers: the sold
// count never exceeds capacity and never drops below zero.
type Ledger interface {
	// TryReserve atomically claims qty units. Returns domain.ErrUnavailable
	// when fewer than qty units remain, domain.ErrTicketTypeNotFound when
	// the ticket type does not exist.
	TryReserve(ctx context.Context, ticketTypeID string, qty int64) error

	// Release atomically returns qty units to the pool, clamped at zero.
	Release(ctx context.Context, ticketTypeID string, qty int64) error

	// CheckAvailability reports the current counters. The snapshot is
	// advisory: it may be stale by the time the caller acts on it.
	CheckAvailability(ctx context.Context, ticketTypeID string) (*Availability, error)
}
