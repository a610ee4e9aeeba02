package models

import (
	"encoding/json"
	"time"
)

// DateLayout is the wire format for booking dates. Date-only, no time of day.
const DateLayout = "2006-01-02"

type Booking struct {
	ID            string          `json:"id"`
	ItemID        string          `json:"itemId"`
	CustomerName  string          `json:"customerName"`
	CustomerEmail string          `json:"customerEmail"`
	CustomerPhone string          `json:"customerPhone"`
	StartDate     string          `json:"startDate"`
	EndDate       string          `json:"endDate"`
	TotalPrice    json.RawMessage `json:"totalPrice,omitempty"` // opaque, never recomputed
	Status        string          `json:"status"`               // pending, confirmed, cancelled, completed
	CreatedAt     time.Time       `json:"createdAt"`
}

// Range parses the booking's start and end dates.
func (b Booking) Range() (start, end time.Time, err error) {
	start, err = time.Parse(DateLayout, b.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err = time.Parse(DateLayout, b.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// Active reports whether the booking participates in overlap checks.
func (b Booking) Active() bool {
	return b.Status != StatusCancelled
}
