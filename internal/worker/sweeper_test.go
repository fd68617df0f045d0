package worker

import (
	"context"
	"testing"
	"time"

	"gatepass/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepExpiresTickets(t *testing.T) {
	db := newWorkerDB(t)
	ctx := context.Background()

	booking := seedFulfilledBooking(t, db, 2)
	// Backdate the expiry so the sweep catches both tickets.
	_, err := db.ExecContext(ctx,
		`UPDATE tickets SET expiry = ? WHERE booking_id = ?`,
		time.Now().Add(-time.Hour).UTC(), booking.ID)
	require.NoError(t, err)

	s := NewSweeper(db, time.Minute, 24*time.Hour, nil)
	s.sweep(ctx)

	tickets, err := db.ListTickets(ctx, booking.ID)
	require.NoError(t, err)
	for _, ticket := range tickets {
		assert.True(t, ticket.IsUsed)
		assert.Nil(t, ticket.UsedAt)
	}
}

func TestSweepAbandonsStaleBookings(t *testing.T) {
	db := newWorkerDB(t)
	ctx := context.Background()

	stale := &models.Booking{
		Reference: uuid.NewString(),
		EventDate: time.Now().AddDate(0, 0, 7),
		Counts:    models.PassCounts{models.PassCouple: 1},
	}
	require.NoError(t, db.CreateBooking(ctx, stale))
	_, err := db.ExecContext(ctx,
		`UPDATE bookings SET created_at = ? WHERE id = ?`,
		time.Now().Add(-48*time.Hour), stale.ID)
	require.NoError(t, err)

	fresh := &models.Booking{
		Reference: uuid.NewString(),
		EventDate: time.Now().AddDate(0, 0, 7),
		Counts:    models.PassCounts{models.PassCouple: 1},
	}
	require.NoError(t, db.CreateBooking(ctx, fresh))

	s := NewSweeper(db, time.Minute, 24*time.Hour, nil)
	s.sweep(ctx)

	got, err := db.GetBooking(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateAbandoned, got.State)

	got, err = db.GetBooking(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatePending, got.State)
}

func TestSweepRacesRedemptionSafely(t *testing.T) {
	db := newWorkerDB(t)
	ctx := context.Background()

	booking := seedFulfilledBooking(t, db, 1)

	// Redeem first, then sweep with a clock past expiry: the redeemed
	// ticket keeps its used_at.
	redeemed, err := db.RedeemTicket(ctx, booking.ID, 1, time.Now())
	require.NoError(t, err)
	require.NotNil(t, redeemed.UsedAt)

	s := NewSweeper(db, time.Minute, 0, nil)
	s.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	s.sweep(ctx)

	got, err := db.GetTicket(ctx, booking.ID, 1)
	require.NoError(t, err)
	assert.True(t, got.IsUsed)
	assert.NotNil(t, got.UsedAt)
}

func TestRetryPolicyNextDelay(t *testing.T) {
	p := RetryPolicy{InitialDelay: time.Second, MaxDelay: 10 * time.Second, BackoffFactor: 2}

	assert.Equal(t, time.Second, p.NextDelay(1))
	assert.Equal(t, 2*time.Second, p.NextDelay(2))
	assert.Equal(t, 4*time.Second, p.NextDelay(3))
	// Clamped at max.
	assert.Equal(t, 10*time.Second, p.NextDelay(10))
	// Attempt below 1 is treated as the first.
	assert.Equal(t, time.Second, p.NextDelay(0))
}
