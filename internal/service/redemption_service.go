package service

import (
	"context"
	"errors"
	"time"

	"gatepass/internal/database"
	"gatepass/internal/domain"
	"gatepass/internal/events"
	"gatepass/internal/metrics"
	"gatepass/internal/models"

	"github.com/rs/zerolog"
)

var ErrInvalidPayload = errors.New("invalid qr payload")

// LookupResult is what the gate scanner sees before committing: the
// ticket plus the attendee identity from the booking.
type LookupResult struct {
	Ticket   *models.Ticket   `json:"ticket"`
	Attendee *models.Attendee `json:"attendee"`
}

// RedemptionService serves the gate: preview a scanned credential, then
// consume it atomically.
type RedemptionService struct {
	store  domain.Store
	bus    domain.EventPublisher
	logger zerolog.Logger
	now    func() time.Time
}

func NewRedemptionService(store domain.Store, bus domain.EventPublisher, logger *zerolog.Logger) *RedemptionService {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "redemption_service").Logger()
	}
	return &RedemptionService{
		store:  store,
		bus:    bus,
		logger: l,
		now:    time.Now,
	}
}

// Lookup decodes a scanned payload and returns the ticket with its
// attendee. It never mutates anything. A ticket past expiry that was
// never redeemed reports ErrTicketExpired; a redeemed ticket is
// returned as-is so the guard sees who used it and when.
func (s *RedemptionService) Lookup(ctx context.Context, rawPayload string) (*LookupResult, error) {
	payload, err := models.DecodeQRPayload(rawPayload)
	if err != nil || payload.BookingID == 0 || payload.TicketNumber == 0 {
		return nil, ErrInvalidPayload
	}

	ticket, err := s.store.GetTicket(ctx, payload.BookingID, payload.TicketNumber)
	if err != nil {
		return nil, err
	}
	if ticket.Expiry.Before(s.now()) && ticket.UsedAt == nil {
		return nil, database.ErrTicketExpired
	}

	attendee, err := s.store.GetAttendee(ctx, payload.BookingID)
	if err != nil {
		return nil, err
	}

	return &LookupResult{Ticket: ticket, Attendee: attendee}, nil
}

// Redeem consumes a ticket. The store performs the compare-and-set, so
// exactly one of any number of concurrent attempts succeeds.
func (s *RedemptionService) Redeem(ctx context.Context, bookingID int64, ticketNumber int) (*models.Ticket, error) {
	ticket, err := s.store.RedeemTicket(ctx, bookingID, ticketNumber, s.now())
	switch {
	case err == nil:
		metrics.IncRedemption("ok")
	case errors.Is(err, database.ErrTicketExpired):
		metrics.IncRedemption("expired")
	case errors.Is(err, database.ErrTicketUsed):
		metrics.IncRedemption("already_used")
	case errors.Is(err, database.ErrTicketNotFound):
		metrics.IncRedemption("not_found")
	}
	if err != nil {
		return nil, err
	}

	if s.bus != nil {
		_ = s.bus.PublishJSON(events.EventTicketRedeemed, events.BookingEventPayload{
			BookingID:    bookingID,
			TicketNumber: ticketNumber,
		})
	}
	s.logger.Info().
		Int64("booking_id", bookingID).
		Int("ticket_number", ticketNumber).
		Msg("ticket redeemed")

	return ticket, nil
}
