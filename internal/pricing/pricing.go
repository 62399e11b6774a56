// Package pricing computes booking charges and cancellation refunds.
//
// All arithmetic is exact decimal arithmetic; values are rounded to cents
// only when rendered.
package pricing

import (
	"time"

	"eventix/internal/shared/apperr"

	"github.com/shopspring/decimal"
)

var (
	FeeRate    = decimal.RequireFromString("0.05")
	TaxRate    = decimal.RequireFromString("0.10")
	RefundRate = decimal.RequireFromString("0.80")
)

// RefundWindow is the minimum lead time before the event for a refund.
const RefundWindow = 48 * time.Hour

// Breakdown is the charge for a set of seats.
type Breakdown struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Fee      decimal.Decimal `json:"fee"`
	Tax      decimal.Decimal `json:"tax"`
	Discount decimal.Decimal `json:"discount"`
	Final    decimal.Decimal `json:"final"`
}

// Price sums the seat prices and applies the booking fee and tax.
func Price(seatPrices []decimal.Decimal) (Breakdown, error) {
	subtotal := decimal.Zero
	for i, p := range seatPrices {
		if p.IsNegative() {
			return Breakdown{}, apperr.Validation("seat price at position %d is negative", i)
		}
		subtotal = subtotal.Add(p)
	}

	fee := subtotal.Mul(FeeRate)
	tax := subtotal.Mul(TaxRate)
	discount := decimal.Zero

	return Breakdown{
		Subtotal: subtotal,
		Fee:      fee,
		Tax:      tax,
		Discount: discount,
		Final:    subtotal.Add(fee).Add(tax).Sub(discount),
	}, nil
}

// Refund returns the refundable part of finalAmount given the lead time in
// hours. The 48 hour boundary is inclusive.
func Refund(finalAmount decimal.Decimal, hoursUntilEvent decimal.Decimal) decimal.Decimal {
	if hoursUntilEvent.LessThan(decimal.NewFromInt(int64(RefundWindow / time.Hour))) {
		return decimal.Zero
	}
	return finalAmount.Mul(RefundRate)
}

// HoursUntil is the exact number of hours from now until eventDate.
// It is negative once the event has started.
func HoursUntil(eventDate, now time.Time) decimal.Decimal {
	d := eventDate.Sub(now)
	return decimal.NewFromInt(int64(d)).Div(decimal.NewFromInt(int64(time.Hour)))
}

// Display renders an amount with two decimal places.
func Display(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
