package dto

import (
	"time"

	"github.com/communa-labs/ticketing/internal/domain"
)

// ReserveTicketRequest represents a request to reserve a ticket
type ReserveTicketRequest struct {
	TicketTypeID string `json:"ticket_type_id" binding:"required"`
}

// ReserveTicketResponse represents the response after reserving a ticket
type ReserveTicketResponse struct {
	TicketID      string    `json:"ticket_id"`
	Serial        string    `json:"serial"`
	ScanCode      string    `json:"scan_code"`
	Status        string    `json:"status"`
	Price         float64   `json:"price"`
	HoldExpiresAt time.Time `json:"hold_expires_at"`
}

// ConfirmPaymentRequest represents a payment confirmation callback
type ConfirmPaymentRequest struct {
	PaymentRef string `json:"payment_ref,omitempty"`
}

// ConfirmPaymentResponse represents the response after payment confirmation
type ConfirmPaymentResponse struct {
	TicketID string    `json:"ticket_id"`
	Status   string    `json:"status"`
	PaidAt   time.Time `json:"paid_at"`
}

// CancelTicketRequest represents a cancellation request
type CancelTicketRequest struct {
	Reason string `json:"reason,omitempty"`
}

// CancelTicketResponse represents the response after cancellation
type CancelTicketResponse struct {
	TicketID string `json:"ticket_id"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

// TicketResponse represents a ticket in API responses
type TicketResponse struct {
	ID            string          `json:"id"`
	Serial        string          `json:"serial"`
	TicketTypeID  string          `json:"ticket_type_id"`
	Sellable      domain.Sellable `json:"sellable"`
	OwnerID       string          `json:"owner_id"`
	Status        string          `json:"status"`
	Price         float64         `json:"price"`
	ValidFrom     time.Time       `json:"valid_from"`
	ValidUntil    time.Time       `json:"valid_until"`
	ReservedAt    time.Time       `json:"reserved_at"`
	HoldExpiresAt time.Time       `json:"hold_expires_at"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	RedeemedAt    *time.Time      `json:"redeemed_at,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
}

// PaginatedTicketsResponse represents a page of tickets
type PaginatedTicketsResponse struct {
	Data     []*TicketResponse `json:"data"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	HasMore  bool              `json:"has_more"`
}

// FromDomain converts a domain Ticket to a TicketResponse.
// The scan code is deliberately omitted: it is returned once at
// reservation time and never echoed back afterwards.
func FromDomain(t *domain.Ticket) *TicketResponse {
	return &TicketResponse{
		ID:            t.ID,
		Serial:        t.Serial,
		TicketTypeID:  t.TicketTypeID,
		Sellable:      t.Sellable,
		OwnerID:       t.OwnerID,
		Status:        string(t.Status),
		Price:         t.Price,
		ValidFrom:     t.ValidFrom,
		ValidUntil:    t.ValidUntil,
		ReservedAt:    t.ReservedAt,
		HoldExpiresAt: t.HoldExpiresAt,
		PaidAt:        t.PaidAt,
		RedeemedAt:    t.RedeemedAt,
		CancelledAt:   t.CancelledAt,
	}
}

// ErrorResponse represents an API error payload
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}
