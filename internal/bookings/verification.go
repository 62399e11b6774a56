package bookings

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const verificationTokenType = "checkin"

var ErrInvalidVerification = errors.New("invalid verification payload")

// VerificationPayload is the content of a booking's QR code.
type VerificationPayload struct {
	BookingID        string `json:"bookingId"`
	BookingReference string `json:"bookingReference"`
	EventID          string `json:"eventId"`
	UserID           string `json:"userId"`
}

type verificationClaims struct {
	VerificationPayload
	jwt.RegisteredClaims
}

// VerificationSigner signs and checks verification payloads as compact
// HS256 tokens, so a gate scanner can trust a QR code without a lookup.
type VerificationSigner struct {
	secret []byte
	issuer string
}

func NewVerificationSigner(secret, issuer string) *VerificationSigner {
	return &VerificationSigner{secret: []byte(secret), issuer: issuer}
}

// Sign encodes p. The token stops verifying after expiresAt.
func (s *VerificationSigner) Sign(p VerificationPayload, issuedAt, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, verificationClaims{
		VerificationPayload: p,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   p.BookingID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	token.Header["typ"] = verificationTokenType
	return token.SignedString(s.secret)
}

// Parse verifies a signed payload and returns its content. Expiry is
// checked against now so callers share one clock with Sign.
func (s *VerificationSigner) Parse(tokenString string, now time.Time) (*VerificationPayload, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, err := parser.ParseWithClaims(tokenString, &verificationClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidVerification
		}
		if typ, _ := token.Header["typ"].(string); typ != verificationTokenType {
			return nil, ErrInvalidVerification
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidVerification
	}

	claims, ok := token.Claims.(*verificationClaims)
	if !ok || !token.Valid || claims.BookingReference == "" {
		return nil, ErrInvalidVerification
	}
	if !claims.VerifyExpiresAt(now, true) {
		return nil, ErrInvalidVerification
	}
	return &claims.VerificationPayload, nil
}
