package pricing

import (
	"testing"
	"time"

	"eventix/internal/shared/apperr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPriceTwoSeats(t *testing.T) {
	b, err := Price([]decimal.Decimal{dec("100"), dec("200")})
	require.NoError(t, err)

	assert.True(t, b.Subtotal.Equal(dec("300")))
	assert.True(t, b.Fee.Equal(dec("15")))
	assert.True(t, b.Tax.Equal(dec("30")))
	assert.True(t, b.Discount.IsZero())
	assert.Equal(t, "345.00", Display(b.Final))
}

func TestPriceFinalIsExactMultiple(t *testing.T) {
	inputs := [][]string{
		{},
		{"0"},
		{"0.10", "0.20"},
		{"19.99", "19.99", "19.99"},
		{"1234.56", "0.01"},
		{"33.33", "66.67", "0.005"},
	}
	factor := dec("1.15")

	for _, in := range inputs {
		prices := make([]decimal.Decimal, len(in))
		for i, s := range in {
			prices[i] = dec(s)
		}
		b, err := Price(prices)
		require.NoError(t, err)
		assert.True(t, b.Final.Equal(b.Subtotal.Mul(factor)), "prices %v: final %s subtotal %s", in, b.Final, b.Subtotal)
		assert.True(t, b.Final.Equal(b.Subtotal.Add(b.Fee).Add(b.Tax).Sub(b.Discount)))
	}
}

func TestPriceKeepsSubCentParts(t *testing.T) {
	b, err := Price([]decimal.Decimal{dec("1.15")})
	require.NoError(t, err)

	assert.Equal(t, "0.0575", b.Fee.String())
	assert.Equal(t, "0.115", b.Tax.String())
	assert.Equal(t, "1.3225", b.Final.String())
	assert.True(t, b.Final.Equal(b.Subtotal.Add(b.Fee).Add(b.Tax)))
	assert.Equal(t, "1.32", Display(b.Final))
}

func TestPriceRejectsNegative(t *testing.T) {
	_, err := Price([]decimal.Decimal{dec("10"), dec("-1")})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestRefundBoundary(t *testing.T) {
	final := dec("345")

	assert.Equal(t, "276.00", Display(Refund(final, dec("72"))))
	assert.Equal(t, "276.00", Display(Refund(final, dec("48"))))
	assert.True(t, Refund(final, dec("47.999")).IsZero())
	assert.True(t, Refund(final, dec("10")).IsZero())
	assert.True(t, Refund(final, dec("-5")).IsZero())
}

func TestHoursUntil(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, HoursUntil(now.Add(48*time.Hour), now).Equal(dec("48")))
	assert.True(t, HoursUntil(now.Add(90*time.Minute), now).Equal(dec("1.5")))
	assert.True(t, HoursUntil(now.Add(-time.Hour), now).Equal(dec("-1")))
}
