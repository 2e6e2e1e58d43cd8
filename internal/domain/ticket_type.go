package domain

import (
	"strings"
	"time"
)

// SellableKind discriminates what a ticket type admits to
type SellableKind string

const (
	SellableKindEvent    SellableKind = "event"
	SellableKindWorkshop SellableKind = "workshop"
)

// IsValid checks if the kind is a known SellableKind
func (k SellableKind) IsValid() bool {
	return k == SellableKindEvent || k == SellableKindWorkshop
}

// Sellable is a tagged reference to the event or workshop being sold
type Sellable struct {
	Kind SellableKind `json:"kind"`
	ID   string       `json:"id"`
}

// Validate validates the sellable reference
func (s Sellable) Validate() error {
	if !s.Kind.IsValid() || strings.TrimSpace(s.ID) == "" {
		return ErrInvalidSellable
	}
	return nil
}

// TicketType represents a sellable admission class with bounded capacity
type TicketType struct {
	ID          string     `json:"id"`
	Sellable    Sellable   `json:"sellable"`
	OrganizerID string     `json:"organizer_id"`
	Name        string     `json:"name"`
	Price       float64    `json:"price"`
	Capacity    int64      `json:"capacity"`
	Sold        int64      `json:"sold"`
	SaleStart   time.Time  `json:"sale_start"`
	SaleEnd     time.Time  `json:"sale_end"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Validate validates all ticket type fields
func (tt *TicketType) Validate() error {
	if strings.TrimSpace(tt.ID) == "" {
		return ErrInvalidTicketTypeID
	}
	if err := tt.Sellable.Validate(); err != nil {
		return err
	}
	if tt.Capacity <= 0 {
		return ErrInvalidCapacity
	}
	if tt.Price < 0 {
		return ErrInvalidPrice
	}
	if !tt.SaleStart.Before(tt.SaleEnd) {
		return ErrInvalidSaleWindow
	}
	return nil
}

// Remaining returns the number of unsold units
func (tt *TicketType) Remaining() int64 {
	remaining := tt.Capacity - tt.Sold
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsArchived checks if the ticket type has been soft deleted
func (tt *TicketType) IsArchived() bool {
	return tt.DeletedAt != nil
}

// OnSaleAt checks the sale window against a point in time
func (tt *TicketType) OnSaleAt(at time.Time) bool {
	return !at.Before(tt.SaleStart) && at.Before(tt.SaleEnd)
}
