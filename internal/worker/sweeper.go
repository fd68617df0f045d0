package worker

import (
	"context"
	"time"

	"gatepass/internal/database"
	"gatepass/internal/metrics"

	"github.com/rs/zerolog"
)

// Sweeper periodically invalidates expired tickets and abandons stale
// pending bookings. Both passes are single conditional updates, so they
// are safe to run concurrently with live redemptions.
type Sweeper struct {
	db           *database.DB
	interval     time.Duration
	abandonAfter time.Duration
	logger       zerolog.Logger
	now          func() time.Time
}

func NewSweeper(db *database.DB, interval, abandonAfter time.Duration, logger *zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "sweeper").Logger()
	}
	return &Sweeper{
		db:           db,
		interval:     interval,
		abandonAfter: abandonAfter,
		logger:       l,
		now:          time.Now,
	}
}

// Start runs the sweep loop until ctx is done. The first sweep happens
// immediately so a restart catches up right away.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("sweeper started")
	defer s.logger.Info().Msg("sweeper stopped")

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	now := s.now()

	expired, err := s.db.ExpireTickets(ctx, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("expire tickets")
	} else if expired > 0 {
		metrics.AddTicketsExpired(expired)
		s.logger.Info().Int64("count", expired).Msg("tickets expired")
	}

	if s.abandonAfter <= 0 {
		return
	}
	abandoned, err := s.db.AbandonStalePending(ctx, now.Add(-s.abandonAfter))
	if err != nil {
		s.logger.Error().Err(err).Msg("abandon stale bookings")
	} else if abandoned > 0 {
		metrics.AddBookingsAbandoned(abandoned)
		s.logger.Info().Int64("count", abandoned).Msg("stale bookings abandoned")
	}
}
