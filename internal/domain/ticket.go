package domain

import (
	"strings"
	"time"
)

// TicketStatus represents the lifecycle state of a ticket
type TicketStatus string

const (
	TicketStatusReserved  TicketStatus = "reserved"
	TicketStatusPaid      TicketStatus = "paid"
	TicketStatusUsed      TicketStatus = "used"
	TicketStatusCancelled TicketStatus = "cancelled"
	TicketStatusExpired   TicketStatus = "expired"
)

// IsValid checks if the status is a valid TicketStatus
func (s TicketStatus) IsValid() bool {
	switch s {
	case TicketStatusReserved, TicketStatusPaid, TicketStatusUsed, TicketStatusCancelled, TicketStatusExpired:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition may leave this status
func (s TicketStatus) IsTerminal() bool {
	switch s {
	case TicketStatusUsed, TicketStatusCancelled, TicketStatusExpired:
		return true
	}
	return false
}

// String returns the string representation of TicketStatus
func (s TicketStatus) String() string {
	return string(s)
}

// Ticket represents a single admission ticket
type Ticket struct {
	ID            string       `json:"id"`
	Serial        string       `json:"serial"`
	ScanCode      string       `json:"scan_code,omitempty"`
	TicketTypeID  string       `json:"ticket_type_id"`
	Sellable      Sellable     `json:"sellable"`
	OwnerID       string       `json:"owner_id"`
	Status        TicketStatus `json:"status"`
	StatusReason  string       `json:"status_reason,omitempty"`
	Price         float64      `json:"price"`
	ValidFrom     time.Time    `json:"valid_from"`
	ValidUntil    time.Time    `json:"valid_until"`
	ReservedAt    time.Time    `json:"reserved_at"`
	HoldExpiresAt time.Time    `json:"hold_expires_at"`
	PaidAt        *time.Time   `json:"paid_at,omitempty"`
	PaymentRef    string       `json:"payment_ref,omitempty"`
	RedeemedAt    *time.Time   `json:"redeemed_at,omitempty"`
	RedeemedBy    string       `json:"redeemed_by,omitempty"`
	CancelledAt   *time.Time   `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	DeletedAt     *time.Time   `json:"deleted_at,omitempty"`
}

// Validate validates all ticket fields
func (t *Ticket) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrInvalidTicketID
	}
	if strings.TrimSpace(t.TicketTypeID) == "" {
		return ErrInvalidTicketTypeID
	}
	if strings.TrimSpace(t.OwnerID) == "" {
		return ErrInvalidOwnerID
	}
	if err := t.Sellable.Validate(); err != nil {
		return err
	}
	if t.Price < 0 {
		return ErrInvalidPrice
	}
	if !t.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}

// IsHoldExpired checks if the reservation hold has lapsed
func (t *Ticket) IsHoldExpired() bool {
	return t.Status == TicketStatusReserved && time.Now().After(t.HoldExpiresAt)
}

// IsReserved checks if the ticket is in reserved status
func (t *Ticket) IsReserved() bool {
	return t.Status == TicketStatusReserved
}

// IsPaid checks if the ticket is in paid status
func (t *Ticket) IsPaid() bool {
	return t.Status == TicketStatusPaid
}

// IsUsed checks if the ticket has been redeemed
func (t *Ticket) IsUsed() bool {
	return t.Status == TicketStatusUsed
}

// IsCancelled checks if the ticket is cancelled
func (t *Ticket) IsCancelled() bool {
	return t.Status == TicketStatusCancelled
}

// CountsAgainstCapacity reports whether the ticket holds an inventory unit
func (t *Ticket) CountsAgainstCapacity() bool {
	switch t.Status {
	case TicketStatusReserved, TicketStatusPaid, TicketStatusUsed:
		return true
	}
	return false
}

// CanConfirm checks if payment can be recorded against the ticket
func (t *Ticket) CanConfirm() bool {
	return t.Status == TicketStatusReserved && !t.IsHoldExpired()
}

// CanCancel checks if the ticket can be cancelled
func (t *Ticket) CanCancel() bool {
	return t.Status == TicketStatusReserved || t.Status == TicketStatusPaid
}

// CanRedeem checks if the ticket can be redeemed for admission
func (t *Ticket) CanRedeem() bool {
	return t.Status == TicketStatusPaid
}

// WithinValidity checks the validity window against a point in time
func (t *Ticket) WithinValidity(at time.Time) bool {
	return t.AdmissibleAt(at) == nil
}

// AdmissibleAt reports whether the validity window covers the instant,
// with the reason when it does not
func (t *Ticket) AdmissibleAt(at time.Time) error {
	if at.Before(t.ValidFrom) {
		return ErrTicketNotYetValid
	}
	if !at.Before(t.ValidUntil) {
		return ErrTicketWindowPassed
	}
	return nil
}

// ConfirmPayment marks the ticket as paid
func (t *Ticket) ConfirmPayment(paymentRef string) error {
	if !t.CanConfirm() {
		switch {
		case t.Status == TicketStatusPaid:
			return ErrAlreadyPaid
		case t.Status == TicketStatusCancelled:
			return ErrAlreadyCancelled
		case t.IsHoldExpired() || t.Status == TicketStatusExpired:
			return ErrTicketExpired
		default:
			return ErrInvalidTransition
		}
	}
	now := time.Now()
	t.Status = TicketStatusPaid
	t.PaymentRef = paymentRef
	t.PaidAt = &now
	t.UpdatedAt = now
	return nil
}

// Cancel marks the ticket as cancelled
func (t *Ticket) Cancel(reason string) error {
	if !t.CanCancel() {
		switch t.Status {
		case TicketStatusUsed:
			return ErrAlreadyRedeemed
		case TicketStatusCancelled:
			return ErrAlreadyCancelled
		case TicketStatusExpired:
			return ErrTicketExpired
		default:
			return ErrInvalidTransition
		}
	}
	now := time.Now()
	t.Status = TicketStatusCancelled
	t.StatusReason = reason
	t.CancelledAt = &now
	t.UpdatedAt = now
	return nil
}

// Redeem marks the ticket as used
func (t *Ticket) Redeem(operatorID string) error {
	if !t.CanRedeem() {
		switch t.Status {
		case TicketStatusUsed:
			return ErrAlreadyRedeemed
		case TicketStatusCancelled:
			return ErrAlreadyCancelled
		case TicketStatusExpired:
			return ErrTicketExpired
		default:
			return ErrInvalidTransition
		}
	}
	now := time.Now()
	t.Status = TicketStatusUsed
	t.RedeemedAt = &now
	t.RedeemedBy = operatorID
	t.UpdatedAt = now
	return nil
}

// Expire marks a stale reserved ticket as expired
func (t *Ticket) Expire() error {
	if t.Status != TicketStatusReserved {
		return ErrInvalidTransition
	}
	t.Status = TicketStatusExpired
	t.StatusReason = "reservation hold expired"
	t.UpdatedAt = time.Now()
	return nil
}

// BelongsTo checks if the ticket belongs to the specified user
func (t *Ticket) BelongsTo(userID string) bool {
	return t.OwnerID == userID
}
