package domain

import "errors"

// Domain errors
var (
	// Ticket errors
	ErrTicketNotFound     = errors.New("ticket not found")
	ErrTicketExpired      = errors.New("ticket hold has expired")
	ErrAlreadyRedeemed    = errors.New("ticket already redeemed")
	ErrAlreadyCancelled   = errors.New("ticket already cancelled")
	ErrAlreadyPaid        = errors.New("ticket already paid")
	ErrInvalidTransition  = errors.New("invalid ticket state transition")
	ErrTicketNotYetValid  = errors.New("ticket is not yet valid for admission")
	ErrTicketWindowPassed = errors.New("ticket validity window has passed")

	// Ticket type errors
	ErrTicketTypeNotFound = errors.New("ticket type not found")
	ErrTicketTypeArchived = errors.New("ticket type is archived")
	ErrSaleWindowClosed   = errors.New("ticket type is not on sale")

	// Inventory errors
	ErrUnavailable = errors.New("insufficient capacity available")

	// Scan code errors
	ErrInvalidScanCode = errors.New("invalid scan code")

	// Access errors
	ErrPermissionDenied = errors.New("permission denied")

	// Validation errors
	ErrInvalidTicketID     = errors.New("invalid ticket id")
	ErrInvalidTicketTypeID = errors.New("invalid ticket type id")
	ErrInvalidOwnerID      = errors.New("invalid owner id")
	ErrInvalidSellable     = errors.New("invalid sellable reference")
	ErrInvalidCapacity     = errors.New("capacity must be greater than zero")
	ErrInvalidPrice        = errors.New("price cannot be negative")
	ErrInvalidSaleWindow   = errors.New("sale window start must precede end")
	ErrInvalidStatus       = errors.New("invalid ticket status")
)

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrTicketNotFound) ||
		errors.Is(err, ErrTicketTypeNotFound)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidTicketID) ||
		errors.Is(err, ErrInvalidTicketTypeID) ||
		errors.Is(err, ErrInvalidOwnerID) ||
		errors.Is(err, ErrInvalidSellable) ||
		errors.Is(err, ErrInvalidCapacity) ||
		errors.Is(err, ErrInvalidPrice) ||
		errors.Is(err, ErrInvalidSaleWindow) ||
		errors.Is(err, ErrInvalidStatus)
}

// IsConflictError checks if the error is a conflict error
func IsConflictError(err error) bool {
	return errors.Is(err, ErrAlreadyRedeemed) ||
		errors.Is(err, ErrAlreadyCancelled) ||
		errors.Is(err, ErrAlreadyPaid) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrUnavailable)
}

// IsExpiredError checks if the error is an expiration error
func IsExpiredError(err error) bool {
	return errors.Is(err, ErrTicketExpired) ||
		errors.Is(err, ErrTicketWindowPassed)
}
