package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOfWrappedError(t *testing.T) {
	base := NotFound("booking %s not found", "abc")
	wrapped := fmt.Errorf("cancel booking: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindNotFound))
	assert.False(t, IsKind(wrapped, KindForbidden))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, IsKind(nil, KindInternal))
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", InvalidState("booking is %s", "pending"))

	assert.True(t, errors.Is(err, New(KindInvalidState, "")))
	assert.False(t, errors.Is(err, New(KindNotFound, "")))
}

func TestSeatConflictDetails(t *testing.T) {
	err := SeatConflict("seat-1", "A1", "booked")

	require.Equal(t, KindSeatConflict, err.Kind)
	assert.Equal(t, "seat A1 is booked", err.Message)
	assert.Equal(t, "seat-1", err.Details["seat_id"])
	assert.Equal(t, "A1", err.Details["seat_number"])
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Wrap(KindReferenceGenerationFailed, cause, "could not allocate reference")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "duplicate key")
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindNotFound:                  http.StatusNotFound,
		KindForbidden:                 http.StatusForbidden,
		KindSeatConflict:              http.StatusConflict,
		KindAlreadyCheckedIn:          http.StatusConflict,
		KindValidation:                http.StatusBadRequest,
		KindReferenceGenerationFailed: http.StatusServiceUnavailable,
		KindPaymentFailed:             http.StatusPaymentRequired,
		KindInternal:                  http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, HTTPStatus(kind), kind)
	}
}
