package bookings

import (
	qrcode "github.com/skip2/go-qrcode"
)

const (
	minQRSize     = 128
	maxQRSize     = 1024
	defaultQRSize = 256
)

// RenderQRCode renders the booking's verification payload as a PNG.
func RenderQRCode(booking *Booking, size int) ([]byte, error) {
	if size < minQRSize || size > maxQRSize {
		size = defaultQRSize
	}
	content := booking.VerificationToken
	if content == "" {
		content = booking.BookingReference
	}
	return qrcode.Encode(content, qrcode.Medium, size)
}
