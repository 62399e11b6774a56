package seats

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var layoutRows = []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}

// DefaultSeatPrice is used when the price table has neither the seat's type
// nor a Standard price.
var DefaultSeatPrice = decimal.NewFromInt(100)

// GenerateLayout builds the seat map for a new event: rows A to J, front
// rows VIP and Premium, back rows Economy, Standard in between.
func GenerateLayout(eventID uuid.UUID, capacity int, prices PriceTable) []Seat {
	if capacity <= 0 {
		return nil
	}
	seatsPerRow := (capacity + len(layoutRows) - 1) / len(layoutRows)

	out := make([]Seat, 0, capacity)
	for i, row := range layoutRows {
		for j := 1; j <= seatsPerRow && len(out) < capacity; j++ {
			seatType := rowType(i)
			out = append(out, Seat{
				ID:         uuid.New(),
				EventID:    eventID,
				SeatNumber: fmt.Sprintf("%s%d", row, j),
				Row:        row,
				Section:    rowSection(i),
				Position:   j,
				Type:       seatType,
				Price:      prices.PriceFor(seatType),
				Status:     StatusAvailable,
			})
		}
	}
	return out
}

func rowType(i int) SeatType {
	switch {
	case i < 2:
		return SeatTypeVIP
	case i < 4:
		return SeatTypePremium
	case i > 7:
		return SeatTypeEconomy
	default:
		return SeatTypeStandard
	}
}

func rowSection(i int) string {
	if i < 5 {
		return "Front"
	}
	return "Back"
}

// PriceFor falls back to the Standard price, then DefaultSeatPrice.
func (p PriceTable) PriceFor(t SeatType) decimal.Decimal {
	if price, ok := p[t]; ok {
		return price
	}
	if price, ok := p[SeatTypeStandard]; ok {
		return price
	}
	return DefaultSeatPrice
}
