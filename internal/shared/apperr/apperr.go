package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable, machine-readable category of an error.
type Kind string

const (
	KindNotFound                  Kind = "NOT_FOUND"
	KindForbidden                 Kind = "FORBIDDEN"
	KindUnauthorized              Kind = "UNAUTHORIZED"
	KindSeatConflict              Kind = "SEAT_CONFLICT"
	KindSeatUnavailable           Kind = "SEAT_UNAVAILABLE"
	KindInvalidState              Kind = "INVALID_STATE"
	KindAlreadyCancelled          Kind = "ALREADY_CANCELLED"
	KindAlreadyCheckedIn          Kind = "ALREADY_CHECKED_IN"
	KindValidation                Kind = "VALIDATION_ERROR"
	KindReferenceGenerationFailed Kind = "REFERENCE_GENERATION_FAILED"
	KindPaymentFailed             Kind = "PAYMENT_FAILED"
	KindInternal                  Kind = "INTERNAL"
)

// Error carries a Kind, a human message and optional details for the client.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind, so sentinel
// comparisons like errors.Is(err, apperr.New(apperr.KindNotFound, "")) work.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// WithDetail returns the error with key set in its details.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to a lower-level cause.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NotFound(format string, args ...interface{}) *Error {
	return Newf(KindNotFound, format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return Newf(KindForbidden, format, args...)
}

func Unauthorized(format string, args ...interface{}) *Error {
	return Newf(KindUnauthorized, format, args...)
}

func Validation(format string, args ...interface{}) *Error {
	return Newf(KindValidation, format, args...)
}

func InvalidState(format string, args ...interface{}) *Error {
	return Newf(KindInvalidState, format, args...)
}

// SeatConflict names the first seat that blocked a ledger batch.
func SeatConflict(seatID, seatNumber, reason string) *Error {
	return Newf(KindSeatConflict, "seat %s is %s", seatNumber, reason).
		WithDetail("seat_id", seatID).
		WithDetail("seat_number", seatNumber)
}

// SeatUnavailable is the booking-facing form of a seat conflict.
func SeatUnavailable(seatID, seatNumber string) *Error {
	return Newf(KindSeatUnavailable, "seat %s is no longer available", seatNumber).
		WithDetail("seat_id", seatID).
		WithDetail("seat_number", seatNumber)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// HTTPStatus maps a kind to the status code used by the HTTP layer.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindSeatConflict, KindSeatUnavailable, KindInvalidState,
		KindAlreadyCancelled, KindAlreadyCheckedIn:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindReferenceGenerationFailed:
		return http.StatusServiceUnavailable
	case KindPaymentFailed:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}
