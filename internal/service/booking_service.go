package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gatepass/internal/database"
	"gatepass/internal/domain"
	"gatepass/internal/events"
	"gatepass/internal/gateway"
	"gatepass/internal/metrics"
	"gatepass/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrEventDatePast     = errors.New("event date is in the past")
	ErrBookingNotPending = errors.New("booking is not pending")
	ErrInvalidAttendee   = errors.New("attendee name, email and phone are required")
)

// BookingService drives the purchase pipeline: create booking, attach
// attendee, create gateway order, confirm payment and issue tickets.
type BookingService struct {
	store   domain.Store
	gateway domain.PaymentGateway
	queue   domain.NotifyQueue
	bus     domain.EventPublisher
	venueTZ *time.Location
	logger  zerolog.Logger
	now     func() time.Time
}

func NewBookingService(
	store domain.Store,
	gw domain.PaymentGateway,
	queue domain.NotifyQueue,
	bus domain.EventPublisher,
	venueTZ *time.Location,
	logger *zerolog.Logger,
) *BookingService {
	if venueTZ == nil {
		venueTZ = time.UTC
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "booking_service").Logger()
	}
	return &BookingService{
		store:   store,
		gateway: gw,
		queue:   queue,
		bus:     bus,
		venueTZ: venueTZ,
		logger:  l,
		now:     time.Now,
	}
}

// CreateBooking validates the requested counts and opens a pending
// booking for the event date.
func (s *BookingService) CreateBooking(ctx context.Context, eventDate time.Time, counts models.PassCounts) (*models.Booking, error) {
	if err := counts.Validate(); err != nil {
		return nil, err
	}

	now := s.now().In(s.venueTZ)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.venueTZ)
	eventDay := time.Date(eventDate.Year(), eventDate.Month(), eventDate.Day(), 0, 0, 0, 0, s.venueTZ)
	if eventDay.Before(today) {
		return nil, ErrEventDatePast
	}

	booking := &models.Booking{
		Reference: uuid.NewString(),
		EventDate: eventDay,
		Counts:    counts,
	}
	if err := s.store.CreateBooking(ctx, booking); err != nil {
		return nil, err
	}

	s.publishBookingEvent(events.EventBookingCreated, booking)
	s.logger.Info().
		Int64("booking_id", booking.ID).
		Str("reference", booking.Reference).
		Int("total_tickets", counts.Total()).
		Msg("booking created")

	return booking, nil
}

// AttachAttendee records the buyer identity on a pending booking. One
// attendee per booking; a second attempt returns ErrAttendeeExists.
func (s *BookingService) AttachAttendee(ctx context.Context, bookingID int64, name, email, phone string) (*models.Attendee, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	phone = strings.TrimSpace(phone)
	if name == "" || email == "" || phone == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidAttendee
	}

	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.State != models.StatePending {
		return nil, ErrBookingNotPending
	}

	attendee := &models.Attendee{
		BookingID: bookingID,
		Name:      name,
		Email:     email,
		Phone:     phone,
	}
	if err := s.store.CreateAttendee(ctx, attendee); err != nil {
		return nil, err
	}
	return attendee, nil
}

// CreateOrder reprices the booking server-side and registers a gateway
// order. Calling it again while an order is still open returns the
// existing order instead of creating a duplicate.
func (s *BookingService) CreateOrder(ctx context.Context, bookingID int64) (*models.PaymentOrder, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.State != models.StatePending {
		return nil, ErrBookingNotPending
	}
	if _, err := s.store.GetAttendee(ctx, bookingID); err != nil {
		return nil, err
	}

	existing, err := s.store.GetActiveOrderByBooking(ctx, bookingID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, database.ErrOrderNotFound) {
		return nil, err
	}

	amount := booking.Counts.AmountPaise()
	ref, err := s.gateway.CreateOrder(ctx, gateway.OrderRequest{
		AmountPaise: amount,
		Currency:    models.Currency,
		Receipt:     "receipt_" + booking.Reference,
	})
	if err != nil {
		return nil, err
	}

	order := &models.PaymentOrder{
		BookingID:      bookingID,
		GatewayOrderID: ref.ID,
		AmountPaise:    amount,
		Currency:       models.Currency,
		Receipt:        "receipt_" + booking.Reference,
	}
	if err := s.store.CreatePaymentOrder(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("booking_id", bookingID).
		Str("gateway_order_id", order.GatewayOrderID).
		Int64("amount_paise", amount).
		Msg("payment order created")

	return order, nil
}

// ConfirmRequest carries a payment confirmation from the gateway or
// the client callback.
type ConfirmRequest struct {
	BookingID      int64
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

// Confirm verifies the confirmation signature, marks the booking paid
// and issues its tickets. The whole method is idempotent: replayed
// confirmations verify again, find every step already done and return
// the fulfilled booking. A bad signature changes nothing.
func (s *BookingService) Confirm(ctx context.Context, req ConfirmRequest) (*models.Booking, error) {
	order, err := s.store.GetOrderByGatewayID(ctx, req.GatewayOrderID)
	if err != nil {
		return nil, err
	}
	if order.BookingID != req.BookingID {
		return nil, database.ErrOrderNotFound
	}

	if !s.gateway.VerifySignature(req.GatewayOrderID, req.PaymentID, req.Signature) {
		metrics.IncPaymentFailed()
		s.logger.Warn().
			Int64("booking_id", req.BookingID).
			Str("gateway_order_id", req.GatewayOrderID).
			Msg("payment signature verification failed")
		return nil, gateway.ErrVerificationFailed
	}
	metrics.IncPaymentVerified()

	err = s.store.MarkOrderVerified(ctx, req.GatewayOrderID, req.PaymentID)
	if err != nil && !errors.Is(err, database.ErrOrderVerified) {
		return nil, err
	}

	err = s.store.TransitionBookingState(ctx, order.BookingID, models.StatePending, models.StatePaid)
	if err != nil && !errors.Is(err, database.ErrInvalidTransition) {
		return nil, err
	}
	if err == nil {
		s.logger.Info().Int64("booking_id", order.BookingID).Msg("booking paid")
	}

	booking, err := s.store.GetBooking(ctx, order.BookingID)
	if err != nil {
		return nil, err
	}
	switch booking.State {
	case models.StatePaid:
		if err := s.issueTickets(ctx, booking); err != nil {
			return nil, err
		}
		booking.State = models.StateFulfilled
	case models.StateFulfilled:
		// Replay after a completed confirmation; nothing left to do.
	default:
		return nil, fmt.Errorf("%w: booking %d is %s", database.ErrInvalidTransition, booking.ID, booking.State)
	}

	return booking, nil
}

func (s *BookingService) issueTickets(ctx context.Context, booking *models.Booking) error {
	attendee, err := s.store.GetAttendee(ctx, booking.ID)
	if err != nil {
		return err
	}

	tickets, err := s.buildTickets(booking, attendee)
	if err != nil {
		return err
	}

	err = s.store.IssueTickets(ctx, booking.ID, tickets)
	if errors.Is(err, database.ErrTicketsExist) {
		// A concurrent or earlier confirmation already issued them.
		return nil
	}
	if err != nil {
		return err
	}

	metrics.AddTicketsIssued(len(tickets))
	s.publishBookingEvent(events.EventBookingPaid, booking)
	if s.bus != nil {
		_ = s.bus.PublishJSON(events.EventTicketsIssued, events.BookingEventPayload{
			BookingID:    booking.ID,
			Reference:    booking.Reference,
			State:        models.StateFulfilled,
			EventDate:    booking.EventDate,
			TotalTickets: len(tickets),
		})
	}
	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int("tickets", len(tickets)).
		Msg("tickets issued")

	if s.queue != nil {
		if err := s.queue.EnqueueIssued(ctx, booking.ID); err != nil {
			// Notification delivery must never fail the confirmation.
			s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("enqueue notification")
		}
	}
	return nil
}

// buildTickets produces the deterministic ticket set: kinds walked in
// canonical order, numbers 1..N across the whole booking, one shared
// expiry at end of event day venue-local.
func (s *BookingService) buildTickets(booking *models.Booking, attendee *models.Attendee) ([]*models.Ticket, error) {
	total := booking.Counts.Total()
	expiry := s.expiryFor(booking.EventDate)
	issuedAt := s.now()

	tickets := make([]*models.Ticket, 0, total)
	number := 0
	for _, kind := range models.KindOrder {
		for i := 0; i < booking.Counts[kind]; i++ {
			number++
			payload := models.QRPayload{
				BookingID:    booking.ID,
				Reference:    booking.Reference,
				TicketNumber: number,
				TotalTickets: total,
				PassKind:     kind,
				Name:         attendee.Name,
				Email:        attendee.Email,
				Phone:        attendee.Phone,
				EventDate:    booking.EventDate.Format("2006-01-02"),
				IssuedAt:     issuedAt.Format(time.RFC3339),
			}
			raw, err := payload.Encode()
			if err != nil {
				return nil, err
			}
			tickets = append(tickets, &models.Ticket{
				BookingID:    booking.ID,
				TicketNumber: number,
				TotalTickets: total,
				PassKind:     kind,
				QRPayload:    raw,
				Expiry:       expiry,
			})
		}
	}
	return tickets, nil
}

// expiryFor returns the last valid instant of the event day in the
// venue timezone.
func (s *BookingService) expiryFor(eventDate time.Time) time.Time {
	return time.Date(
		eventDate.Year(), eventDate.Month(), eventDate.Day(),
		23, 59, 59, 999_000_000, s.venueTZ,
	)
}

func (s *BookingService) publishBookingEvent(eventType string, booking *models.Booking) {
	if s.bus == nil {
		return
	}
	_ = s.bus.PublishJSON(eventType, events.BookingEventPayload{
		BookingID: booking.ID,
		Reference: booking.Reference,
		State:     booking.State,
		EventDate: booking.EventDate,
	})
}
