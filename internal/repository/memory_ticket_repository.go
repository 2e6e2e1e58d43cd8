package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/communa-labs/ticketing/internal/domain"
)

// MemoryTicketRepository implements TicketRepository in memory with the
// same conditional-transition semantics as the Postgres implementation.
// Intended for tests and local development.
type MemoryTicketRepository struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
}

// NewMemoryTicketRepository creates an empty in-memory repository
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: make(map[string]*domain.Ticket)}
}

// Create persists a new ticket
func (r *MemoryTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *ticket
	r.tickets[ticket.ID] = &clone
	return nil
}

// GetByID retrieves a ticket by its internal ID
func (r *MemoryTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tickets[id]
	if !ok || t.DeletedAt != nil {
		return nil, domain.ErrTicketNotFound
	}
	clone := *t
	return &clone, nil
}

// GetBySerial retrieves a ticket by its public serial
func (r *MemoryTicketRepository) GetBySerial(ctx context.Context, serial string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tickets {
		if t.Serial == serial && t.DeletedAt == nil {
			clone := *t
			return &clone, nil
		}
	}
	return nil, domain.ErrTicketNotFound
}

// GetByOwner retrieves a page of tickets belonging to a user
func (r *MemoryTicketRepository) GetByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var owned []*domain.Ticket
	for _, t := range r.tickets {
		if t.OwnerID == ownerID && t.DeletedAt == nil {
			clone := *t
			owned = append(owned, &clone)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})

	if offset >= len(owned) {
		return nil, nil
	}
	owned = owned[offset:]
	if limit < len(owned) {
		owned = owned[:limit]
	}
	return owned, nil
}

// ConfirmPayment transitions reserved -> paid while the hold is live
func (r *MemoryTicketRepository) ConfirmPayment(ctx context.Context, id, paymentRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tickets[id]
	if !ok {
		return domain.ErrTicketNotFound
	}
	now := time.Now()
	if t.Status != domain.TicketStatusReserved || now.After(t.HoldExpiresAt) {
		return classifyConflict(t, domain.TicketStatusPaid)
	}
	t.Status = domain.TicketStatusPaid
	t.PaymentRef = paymentRef
	t.PaidAt = &now
	t.UpdatedAt = now
	return nil
}

// Cancel transitions the ticket from the observed status to cancelled
func (r *MemoryTicketRepository) Cancel(ctx context.Context, id string, from domain.TicketStatus, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tickets[id]
	if !ok {
		return domain.ErrTicketNotFound
	}
	if t.Status != from {
		return classifyConflict(t, domain.TicketStatusCancelled)
	}
	now := time.Now()
	t.Status = domain.TicketStatusCancelled
	t.StatusReason = reason
	t.CancelledAt = &now
	t.UpdatedAt = now
	return nil
}

// Redeem transitions paid -> used and records the scanning operator
func (r *MemoryTicketRepository) Redeem(ctx context.Context, id, operatorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tickets[id]
	if !ok {
		return domain.ErrTicketNotFound
	}
	if t.Status != domain.TicketStatusPaid {
		return classifyConflict(t, domain.TicketStatusUsed)
	}
	now := time.Now()
	t.Status = domain.TicketStatusUsed
	t.RedeemedAt = &now
	t.RedeemedBy = operatorID
	t.UpdatedAt = now
	return nil
}

// MarkExpired transitions reserved -> expired once the hold has lapsed
func (r *MemoryTicketRepository) MarkExpired(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tickets[id]
	if !ok {
		return domain.ErrTicketNotFound
	}
	now := time.Now()
	if t.Status != domain.TicketStatusReserved || now.Before(t.HoldExpiresAt) {
		return classifyConflict(t, domain.TicketStatusExpired)
	}
	t.Status = domain.TicketStatusExpired
	t.StatusReason = "reservation hold expired"
	t.UpdatedAt = now
	return nil
}

// GetStaleReservations lists reserved tickets whose hold has lapsed
func (r *MemoryTicketRepository) GetStaleReservations(ctx context.Context, limit int) ([]*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var stale []*domain.Ticket
	for _, t := range r.tickets {
		if t.Status == domain.TicketStatusReserved && now.After(t.HoldExpiresAt) && t.DeletedAt == nil {
			clone := *t
			stale = append(stale, &clone)
			if len(stale) == limit {
				break
			}
		}
	}
	return stale, nil
}

func classifyConflict(t *domain.Ticket, target domain.TicketStatus) error {
	switch t.Status {
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
		if time.Now().After(t.HoldExpiresAt) {
			return domain.ErrTicketExpired
		}
		return domain.ErrInvalidTransition
	default:
		return domain.ErrInvalidStatus
	}
}

// Ensure MemoryTicketRepository implements TicketRepository
var _ TicketRepository = (*MemoryTicketRepository)(nil)
