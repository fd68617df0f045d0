package worker

import (
	"context"

	"gatepass/internal/models"
	"gatepass/internal/render"

	"github.com/rs/zerolog"
)

// LogNotifier records delivery instead of sending it. Used when no
// delivery channel is configured; the rendered batch is still produced
// and the task completes, so the queue drains.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "log_notifier").Logger()
	}
	return &LogNotifier{logger: l}
}

func (n *LogNotifier) SendTickets(ctx context.Context, booking *models.Booking, attendee *models.Attendee, attachments []render.Attachment) error {
	n.logger.Info().
		Int64("booking_id", booking.ID).
		Str("email", attendee.Email).
		Int("attachments", len(attachments)).
		Msg("ticket batch ready for delivery")
	return nil
}
