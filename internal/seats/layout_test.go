package seats

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestGenerateLayoutRowsAndTypes(t *testing.T) {
	eventID := uuid.New()
	prices := PriceTable{
		SeatTypeVIP:      decimal.NewFromInt(200),
		SeatTypeStandard: decimal.NewFromInt(80),
	}

	layout := GenerateLayout(eventID, 95, prices)
	assert.Len(t, layout, 95)

	assert.Equal(t, "A1", layout[0].SeatNumber)
	assert.Equal(t, SeatTypeVIP, layout[0].Type)
	assert.True(t, layout[0].Price.Equal(decimal.NewFromInt(200)))

	last := layout[len(layout)-1]
	assert.Equal(t, "J5", last.SeatNumber)
	assert.Equal(t, SeatTypeEconomy, last.Type)
	// No Economy price, falls back to Standard
	assert.True(t, last.Price.Equal(decimal.NewFromInt(80)))

	seen := make(map[string]bool, len(layout))
	for _, seat := range layout {
		assert.Equal(t, eventID, seat.EventID)
		assert.Equal(t, StatusAvailable, seat.Status)
		assert.False(t, seen[seat.SeatNumber], "duplicate seat %s", seat.SeatNumber)
		seen[seat.SeatNumber] = true
	}
}

func TestGenerateLayoutEmpty(t *testing.T) {
	assert.Empty(t, GenerateLayout(uuid.New(), 0, nil))
}

func TestPriceForDefault(t *testing.T) {
	assert.True(t, PriceTable(nil).PriceFor(SeatTypePremium).Equal(DefaultSeatPrice))
}

func TestEffectiveStatus(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	holder := uuid.New()
	future := now.Add(time.Minute)

	cases := []struct {
		name string
		seat Seat
		want Status
	}{
		{"available", Seat{Status: StatusAvailable}, StatusAvailable},
		{"selection is advisory", Seat{Status: StatusSelected}, StatusAvailable},
		{"live lock", Seat{Status: StatusLocked, HolderID: &holder, LockedUntil: &future}, StatusLocked},
		{"lock expiring now", Seat{Status: StatusLocked, HolderID: &holder, LockedUntil: &now}, StatusAvailable},
		{"lock without deadline", Seat{Status: StatusLocked, HolderID: &holder}, StatusAvailable},
		{"booked", Seat{Status: StatusBooked}, StatusBooked},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.seat.EffectiveStatus(now))
		})
	}
}

func TestPlanLockExpectsObservedState(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	other := uuid.New()
	expired := now.Add(-time.Second)
	snapshot := []Seat{
		{ID: uuid.New(), SeatNumber: "A1", Status: StatusAvailable},
		{ID: uuid.New(), SeatNumber: "A2", Status: StatusLocked, HolderID: &other, LockedUntil: &expired},
	}

	transitions, err := planLock(snapshot, uuid.New(), now, now.Add(time.Minute))
	assert.NoError(t, err)
	assert.Len(t, transitions, 2)
	assert.Nil(t, transitions[0].Expect.ExpiredBy)

	// Taking over a lapsed lock is conditional on it still being lapsed
	assert.Equal(t, &other, transitions[1].Expect.HolderID)
	assert.Equal(t, now, *transitions[1].Expect.ExpiredBy)
	assert.True(t, transitions[1].Expect.Matches(&snapshot[1]))
}
