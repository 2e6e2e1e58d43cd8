package dto

import "time"

// Scan outcomes reported to the gate device
const (
	ScanResultAdmitted    = "admitted"
	ScanResultAlreadyUsed = "already_used"
	ScanResultNotYetValid = "not_yet_valid"
	ScanResultExpired     = "expired"
	ScanResultInvalid     = "invalid"
)

// ScanRequest represents a raw code scanned at the gate
type ScanRequest struct {
	Code string `json:"code" binding:"required"`
}

// ScanResponse represents the structured outcome of a scan attempt
type ScanResponse struct {
	Result     string     `json:"result"`
	Serial     string     `json:"serial,omitempty"`
	TicketID   string     `json:"ticket_id,omitempty"`
	RedeemedAt *time.Time `json:"redeemed_at,omitempty"`
	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
	Message    string     `json:"message,omitempty"`
}
