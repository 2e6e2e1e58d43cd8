package dto

import (
	"time"

	"github.com/communa-labs/ticketing/internal/domain"
)

// CreateTicketTypeRequest represents a request to create a ticket type
type CreateTicketTypeRequest struct {
	SellableKind string    `json:"sellable_kind" binding:"required,oneof=event workshop"`
	SellableID   string    `json:"sellable_id" binding:"required"`
	Name         string    `json:"name" binding:"required"`
	Price        float64   `json:"price"`
	Capacity     int64     `json:"capacity" binding:"required,min=1"`
	SaleStart    time.Time `json:"sale_start" binding:"required"`
	SaleEnd      time.Time `json:"sale_end" binding:"required"`
}

// TicketTypeResponse represents a ticket type in API responses
type TicketTypeResponse struct {
	ID          string          `json:"id"`
	Sellable    domain.Sellable `json:"sellable"`
	OrganizerID string          `json:"organizer_id"`
	Name        string          `json:"name"`
	Price       float64         `json:"price"`
	Capacity    int64           `json:"capacity"`
	Sold        int64           `json:"sold"`
	Remaining   int64           `json:"remaining"`
	SaleStart   time.Time       `json:"sale_start"`
	SaleEnd     time.Time       `json:"sale_end"`
	CreatedAt   time.Time       `json:"created_at"`
}

// AvailabilityResponse reports the advisory availability snapshot
type AvailabilityResponse struct {
	TicketTypeID string `json:"ticket_type_id"`
	Capacity     int64  `json:"capacity"`
	Sold         int64  `json:"sold"`
	Remaining    int64  `json:"remaining"`
}

// TicketTypeFromDomain converts a domain TicketType to a response
func TicketTypeFromDomain(tt *domain.TicketType) *TicketTypeResponse {
	return &TicketTypeResponse{
		ID:          tt.ID,
		Sellable:    tt.Sellable,
		OrganizerID: tt.OrganizerID,
		Name:        tt.Name,
		Price:       tt.Price,
		Capacity:    tt.Capacity,
		Sold:        tt.Sold,
		Remaining:   tt.Remaining(),
		SaleStart:   tt.SaleStart,
		SaleEnd:     tt.SaleEnd,
		CreatedAt:   tt.CreatedAt,
	}
}
