package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gatepass/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createTestBooking(t *testing.T, db *DB, counts models.PassCounts) *models.Booking {
	t.Helper()
	booking := &models.Booking{
		Reference: uuid.NewString(),
		EventDate: time.Now().AddDate(0, 0, 7),
		Counts:    counts,
	}
	require.NoError(t, db.CreateBooking(context.Background(), booking))
	return booking
}

func TestCreateAndGetBooking(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	booking := createTestBooking(t, db, models.PassCounts{
		models.PassCouple: 1,
		models.PassGirls:  2,
	})
	assert.NotZero(t, booking.ID)
	assert.Equal(t, models.StatePending, booking.State)
	assert.Equal(t, int64(1), booking.Version)

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.Reference, got.Reference)
	assert.Equal(t, models.StatePending, got.State)
	assert.Equal(t, 1, got.Counts[models.PassCouple])
	assert.Equal(t, 2, got.Counts[models.PassGirls])
	assert.Equal(t, 3, got.Counts.Total())
	assert.Equal(t, booking.EventDate.Format("2006-01-02"), got.EventDate.Format("2006-01-02"))
}

func TestGetBookingNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetBooking(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestTransitionBookingState(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	booking := createTestBooking(t, db, models.PassCounts{models.PassGirls: 1})

	require.NoError(t, db.TransitionBookingState(ctx, booking.ID, models.StatePending, models.StatePaid))

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatePaid, got.State)
	assert.Equal(t, int64(2), got.Version)

	// Repeating the same transition must fail: the source state is gone.
	err = db.TransitionBookingState(ctx, booking.ID, models.StatePending, models.StatePaid)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Skipping paid straight from pending to fulfilled also fails.
	err = db.TransitionBookingState(ctx, booking.ID, models.StatePending, models.StateFulfilled)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAbandonStalePending(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	stale := createTestBooking(t, db, models.PassCounts{models.PassCouple: 1})
	fresh := createTestBooking(t, db, models.PassCounts{models.PassCouple: 1})
	paid := createTestBooking(t, db, models.PassCounts{models.PassCouple: 1})
	require.NoError(t, db.TransitionBookingState(ctx, paid.ID, models.StatePending, models.StatePaid))

	// Backdate the stale booking and the paid one.
	old := time.Now().Add(-48 * time.Hour)
	_, err := db.ExecContext(ctx, `UPDATE bookings SET created_at = ? WHERE id IN (?, ?)`, old, stale.ID, paid.ID)
	require.NoError(t, err)

	moved, err := db.AbandonStalePending(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), moved)

	got, err := db.GetBooking(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateAbandoned, got.State)

	got, err = db.GetBooking(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatePending, got.State)

	// Paid bookings are never abandoned no matter how old.
	got, err = db.GetBooking(ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatePaid, got.State)
}

func TestCreateAttendeeUnique(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	booking := createTestBooking(t, db, models.PassCounts{models.PassCouple: 1})

	attendee := &models.Attendee{
		BookingID: booking.ID,
		Name:      "Asha",
		Email:     "asha@example.com",
		Phone:     "+911234567890",
	}
	require.NoError(t, db.CreateAttendee(ctx, attendee))
	assert.NotZero(t, attendee.ID)

	dup := &models.Attendee{
		BookingID: booking.ID,
		Name:      "Other",
		Email:     "other@example.com",
		Phone:     "+919999999999",
	}
	err := db.CreateAttendee(ctx, dup)
	assert.ErrorIs(t, err, ErrAttendeeExists)

	got, err := db.GetAttendee(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha", got.Name)
}

func TestGetAttendeeNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetAttendee(context.Background(), 12345)
	assert.ErrorIs(t, err, ErrAttendeeNotFound)
}

func TestGetBookingsByDateRange(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	inRange := &models.Booking{
		Reference: uuid.NewString(),
		EventDate: time.Date(2026, 12, 30, 0, 0, 0, 0, time.UTC),
		Counts:    models.PassCounts{models.PassGirls: 2},
	}
	require.NoError(t, db.CreateBooking(ctx, inRange))

	outOfRange := &models.Booking{
		Reference: uuid.NewString(),
		EventDate: time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC),
		Counts:    models.PassCounts{models.PassCouple: 1},
	}
	require.NoError(t, db.CreateBooking(ctx, outOfRange))

	bookings, err := db.GetBookingsByDateRange(ctx,
		time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, inRange.ID, bookings[0].ID)
}
