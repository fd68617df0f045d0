package models

import "time"

// Booking is the aggregate root of the purchase pipeline.
type Booking struct {
	ID        int64      `json:"id"`
	Reference string     `json:"reference"`
	EventDate time.Time  `json:"event_date"`
	Counts    PassCounts `json:"requested_counts"`
	State     string     `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Version   int64      `json:"-"`
}

// Attendee holds the buyer identity attached to a booking. One per
// booking; tickets embed these fields in their payload.
type Attendee struct {
	ID        int64     `json:"id"`
	BookingID int64     `json:"booking_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}
