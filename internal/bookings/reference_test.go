package bookings

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferenceFormat(t *testing.T) {
	at := time.UnixMilli(1767225600000)
	gen := &timeRandomReferences{
		now:    func() time.Time { return at },
		random: bytes.NewReader(bytes.Repeat([]byte{0x00, 0x01, 0x02, 0x03}, 64)),
	}

	ref, err := gen.NewReference()
	require.NoError(t, err)

	parts := strings.Split(ref, "-")
	require.Len(t, parts, 3)
	assert.Equal(t, "BK", parts[0])
	assert.Equal(t, strings.ToUpper(strconv.FormatInt(at.UnixMilli(), 36)), parts[1])
	assert.Len(t, parts[2], referenceRandomSize)
	assert.True(t, IsReference(ref))
}

func TestReferencesDiffer(t *testing.T) {
	gen := NewReferenceGenerator()
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		ref, err := gen.NewReference()
		require.NoError(t, err)
		assert.False(t, seen[ref], "duplicate reference %s", ref)
		seen[ref] = true
	}
}

func TestReferenceRandomFailure(t *testing.T) {
	gen := &timeRandomReferences{now: time.Now, random: failingReader{}}
	_, err := gen.NewReference()
	assert.Error(t, err)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestIsReference(t *testing.T) {
	valid := []string{"BK-MJ0X9K2A-7QZ2LM", "BK-1-000000"}
	invalid := []string{
		"",
		"BK-MJ0X9K2A",
		"XX-MJ0X9K2A-7QZ2LM",
		"BK--7QZ2LM",
		"BK-MJ0X9K2A-7QZ2L",
		"BK-mj0x9k2a-7qz2lm",
		"BK-MJ0X9K2A-7QZ2LM-1",
	}
	for _, s := range valid {
		assert.True(t, IsReference(s), s)
	}
	for _, s := range invalid {
		assert.False(t, IsReference(s), s)
	}
}

func TestVerificationRoundTrip(t *testing.T) {
	signer := NewVerificationSigner("test-secret", "eventix")
	now := time.Now()
	payload := VerificationPayload{
		BookingID:        "b-1",
		BookingReference: "BK-1-000000",
		EventID:          "e-1",
		UserID:           "u-1",
	}

	token, err := signer.Sign(payload, now, now.Add(time.Hour))
	require.NoError(t, err)

	got, err := signer.Parse(token, now)
	require.NoError(t, err)
	assert.Equal(t, payload, *got)
}

func TestVerificationRejectsTampering(t *testing.T) {
	signer := NewVerificationSigner("test-secret", "eventix")
	now := time.Now()
	payload := VerificationPayload{BookingID: "b-1", BookingReference: "BK-1-000000"}

	token, err := signer.Sign(payload, now, now.Add(time.Hour))
	require.NoError(t, err)

	_, err = NewVerificationSigner("other-secret", "eventix").Parse(token, now)
	assert.ErrorIs(t, err, ErrInvalidVerification)

	expired, err := signer.Sign(payload, now.Add(-2*time.Hour), now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = signer.Parse(expired, now)
	assert.ErrorIs(t, err, ErrInvalidVerification)

	// Expiry follows the caller's clock, not the wall clock
	got, err := signer.Parse(expired, now.Add(-90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "BK-1-000000", got.BookingReference)

	_, err = signer.Parse("BK-1-000000", now)
	assert.ErrorIs(t, err, ErrInvalidVerification)

	empty, err := signer.Sign(VerificationPayload{BookingID: "b-1"}, now, now.Add(time.Hour))
	require.NoError(t, err)
	_, err = signer.Parse(empty, now)
	assert.ErrorIs(t, err, ErrInvalidVerification)
}

func TestRenderQRCode(t *testing.T) {
	png, err := RenderQRCode(&Booking{BookingReference: "BK-1-000000"}, 0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}
