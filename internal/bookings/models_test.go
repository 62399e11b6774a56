package bookings_test

import (
	"sync"
	"testing"

	"eventix/internal/bookings"
	"eventix/internal/events"
	"eventix/internal/pricing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

// Amounts derived from the fee and tax rates carry sub-cent digits, so
// their columns must not round them away.
func TestDerivedAmountColumnsAreUnscaled(t *testing.T) {
	cache := &sync.Map{}

	bookingSchema, err := schema.Parse(&bookings.Booking{}, cache, schema.NamingStrategy{})
	require.NoError(t, err)
	for _, name := range []string{"Subtotal", "BookingFee", "Tax", "Discount", "FinalAmount", "RefundAmount"} {
		field := bookingSchema.LookUpField(name)
		require.NotNil(t, field, name)
		assert.Equal(t, "numeric", field.TagSettings["TYPE"], name)
	}

	eventSchema, err := schema.Parse(&events.Event{}, cache, schema.NamingStrategy{})
	require.NoError(t, err)
	field := eventSchema.LookUpField("TotalRevenue")
	require.NotNil(t, field)
	assert.Equal(t, "numeric", field.TagSettings["TYPE"])
}

func TestBreakdownAddsUpForSubCentPrices(t *testing.T) {
	b, err := pricing.Price([]decimal.Decimal{decimal.RequireFromString("1.15")})
	require.NoError(t, err)

	booking := bookings.Booking{
		Subtotal:    b.Subtotal,
		BookingFee:  b.Fee,
		Tax:         b.Tax,
		Discount:    b.Discount,
		FinalAmount: b.Final,
	}
	sum := booking.Subtotal.Add(booking.BookingFee).Add(booking.Tax).Sub(booking.Discount)
	assert.True(t, booking.FinalAmount.Equal(sum), "final %s, parts add to %s", booking.FinalAmount, sum)
}
