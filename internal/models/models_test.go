package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingRange(t *testing.T) {
	b := Booking{StartDate: "2024-01-01", EndDate: "2024-01-05"}

	start, end, err := b.Range()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", start.Format(DateLayout))
	assert.Equal(t, "2024-01-05", end.Format(DateLayout))

	b.EndDate = "bad-date"
	_, _, err = b.Range()
	assert.Error(t, err)
}

func TestBookingActive(t *testing.T) {
	assert.True(t, Booking{Status: StatusPending}.Active())
	assert.True(t, Booking{Status: StatusConfirmed}.Active())
	assert.True(t, Booking{Status: StatusCompleted}.Active())
	assert.False(t, Booking{Status: StatusCancelled}.Active())
}

func TestBookingTotalPriceIsOpaque(t *testing.T) {
	for _, raw := range []string{`4500`, `"$1,200.50"`, `"free"`} {
		var b Booking
		require.NoError(t, json.Unmarshal([]byte(`{"totalPrice":`+raw+`}`), &b))

		out, err := json.Marshal(b)
		require.NoError(t, err)
		assert.Contains(t, string(out), raw)
	}
}
