package models

// Booking lifecycle states. Transitions are enforced with conditional
// updates in the database layer; see database.TransitionBookingState.
const (
	StatePending   = "pending"
	StatePaid      = "paid"
	StateFulfilled = "fulfilled"
	StateAbandoned = "abandoned"
)

// Payment order statuses.
const (
	OrderStatusCreated  = "created"
	OrderStatusVerified = "verified"
	OrderStatusFailed   = "failed"
)

// Currency is the only settlement currency the gateway adapter supports.
const Currency = "INR"

// DefaultVenueTimezone is used when venue.timezone is absent from config.
const DefaultVenueTimezone = "Asia/Kolkata"
