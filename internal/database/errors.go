package database

import "errors"

var (
	ErrBookingNotFound  = errors.New("booking not found")
	ErrAttendeeNotFound = errors.New("attendee not found")
	ErrAttendeeExists   = errors.New("attendee already attached")
	ErrOrderNotFound    = errors.New("payment order not found")
	ErrOrderVerified    = errors.New("payment order already verified")
	ErrTicketNotFound   = errors.New("ticket not found")
	ErrTicketsExist     = errors.New("tickets already issued")
	ErrTicketUsed       = errors.New("ticket already used")
	ErrTicketExpired    = errors.New("ticket expired")

	// ErrInvalidTransition is returned when a conditional state update
	// matched zero rows: the row is not in the expected source state.
	ErrInvalidTransition = errors.New("invalid state transition")
)
