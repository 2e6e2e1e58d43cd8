package inventory

import (
	"context"
	"sync"

	"github.com/communa-labs/ticketing/internal/domain"
)

type memoryCounter struct {
	capacity int64
	sold     int64
}

// MemoryLedger implements Ledger with an in-process mutex. Used by tests
// and single-node deployments where the database ledger is overkill.
type MemoryLedger struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
}

// NewMemoryLedger creates an empty in-memory ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{counters: make(map[string]*memoryCounter)}
}

// Register adds a ticket type with the given capacity and sold count
func (l *MemoryLedger) Register(ticketTypeID string, capacity, sold int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counters[ticketTypeID] = &memoryCounter{capacity: capacity, sold: sold}
}

// TryReserve atomically claims qty units of a ticket type
func (l *MemoryLedger) TryReserve(ctx context.Context, ticketTypeID string, qty int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[ticketTypeID]
	if !ok {
		return domain.ErrTicketTypeNotFound
	}
	if c.sold+qty > c.capacity {
		return domain.ErrUnavailable
	}
	c.sold += qty
	return nil
}

// Release atomically returns qty units to the pool
func (l *MemoryLedger) Release(ctx context.Context, ticketTypeID string, qty int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[ticketTypeID]
	if !ok {
		return domain.ErrTicketTypeNotFound
	}
	c.sold -= qty
	if c.sold < 0 {
		c.sold = 0
	}
	return nil
}

// CheckAvailability reports the current counters of a ticket type
func (l *MemoryLedger) CheckAvailability(ctx context.Context, ticketTypeID string) (*Availability, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[ticketTypeID]
	if !ok {
		return nil, domain.ErrTicketTypeNotFound
	}
	remaining := c.capacity - c.sold
	if remaining < 0 {
		remaining = 0
	}
	return &Availability{
		TicketTypeID: ticketTypeID,
		Capacity:     c.capacity,
		Sold:         c.sold,
		Remaining:    remaining,
	}, nil
}

// Ensure MemoryLedger implements Ledger
var _ Ledger = (*MemoryLedger)(nil)
