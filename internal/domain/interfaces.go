package domain

import (
	"context"
	"time"

	"gatepass/internal/gateway"
	"gatepass/internal/models"
)

// Store is the persistence surface the services depend on. *database.DB
// is the production implementation.
type Store interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	TransitionBookingState(ctx context.Context, id int64, from, to string) error
	GetBookingsByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*models.Booking, error)

	CreateAttendee(ctx context.Context, attendee *models.Attendee) error
	GetAttendee(ctx context.Context, bookingID int64) (*models.Attendee, error)

	CreatePaymentOrder(ctx context.Context, order *models.PaymentOrder) error
	GetActiveOrderByBooking(ctx context.Context, bookingID int64) (*models.PaymentOrder, error)
	GetOrderByGatewayID(ctx context.Context, gatewayOrderID string) (*models.PaymentOrder, error)
	MarkOrderVerified(ctx context.Context, gatewayOrderID, paymentID string) error

	IssueTickets(ctx context.Context, bookingID int64, tickets []*models.Ticket) error
	GetTicket(ctx context.Context, bookingID int64, ticketNumber int) (*models.Ticket, error)
	ListTickets(ctx context.Context, bookingID int64) ([]*models.Ticket, error)
	RedeemTicket(ctx context.Context, bookingID int64, ticketNumber int, now time.Time) (*models.Ticket, error)
}

// PaymentGateway creates orders and verifies confirmation signatures.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.OrderRef, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

// EventPublisher pushes domain events to in-process subscribers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// NotifyQueue accepts a notification task for a fulfilled booking.
type NotifyQueue interface {
	EnqueueIssued(ctx context.Context, bookingID int64) error
}
