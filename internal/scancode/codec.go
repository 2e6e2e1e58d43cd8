package scancode

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/communa-labs/ticketing/internal/domain"
)

const admissionPurpose = "admission"

// AdmissionClaims represents the claims carried inside a scan code
type AdmissionClaims struct {
	Serial   string `json:"serial"`
	TicketID string `json:"ticket_id"`
	Purpose  string `json:"purpose"`
	jwt.RegisteredClaims
}

// Codec encodes and decodes printable admission tokens. The token is an
// HS256-signed JWT over the ticket serial; it proves the code was issued
// by this service but carries no authorization on its own.
type Codec struct {
	secret []byte
	issuer string
}

// New creates a codec with the given signing secret
func New(secret, issuer string) *Codec {
	if issuer == "" {
		issuer = "ticketing"
	}
	return &Codec{secret: []byte(secret), issuer: issuer}
}

// Encode produces the scan code for a ticket. The token has no expiry
// claim: the validity window is enforced against the stored ticket at
// redemption time, not baked into the code.
func (c *Codec) Encode(ticketID, serial string, issuedAt time.Time) (string, error) {
	claims := AdmissionClaims{
		Serial:   serial,
		TicketID: ticketID,
		Purpose:  admissionPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(issuedAt),
			Issuer:   c.issuer,
			Subject:  serial,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Decode verifies a scanned string and returns the embedded claims.
// Any malformed, tampered or foreign token yields domain.ErrInvalidScanCode.
func (c *Codec) Decode(raw string) (*AdmissionClaims, error) {
	if raw == "" {
		return nil, domain.ErrInvalidScanCode
	}

	claims := &AdmissionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidScanCode
		}
		return c.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, domain.ErrInvalidScanCode
	}

	if claims.Purpose != admissionPurpose || claims.Serial == "" {
		return nil, domain.ErrInvalidScanCode
	}
	if claims.Issuer != c.issuer {
		return nil, domain.ErrInvalidScanCode
	}

	return claims, nil
}
