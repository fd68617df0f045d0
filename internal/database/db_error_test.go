package database

import (
	"context"
	"testing"
	"time"

	"gatepass/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	mock, mockCtl, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mock.Close() })
	return &DB{DB: mock, logger: zerolog.Nop()}, mockCtl
}

func TestGetBookingQueryError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT id, reference").WillReturnError(assert.AnError)

	_, err := db.GetBooking(context.Background(), 1)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrBookingNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkOrderVerifiedExecError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("UPDATE payment_orders").WillReturnError(assert.AnError)

	err := db.MarkOrderVerified(context.Background(), "order_x", "pay_x")
	assert.ErrorContains(t, err, "failed to mark order verified")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpireTicketsExecError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("UPDATE tickets SET is_used = 1").WillReturnError(assert.AnError)

	_, err := db.ExpireTickets(context.Background(), time.Now())
	assert.ErrorContains(t, err, "failed to expire tickets")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingExecError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO bookings").WillReturnError(assert.AnError)

	booking := &models.Booking{
		Reference: "ref",
		EventDate: time.Now(),
		Counts:    models.PassCounts{models.PassCouple: 1},
	}
	err := db.CreateBooking(context.Background(), booking)
	assert.ErrorContains(t, err, "failed to create booking")
	assert.NoError(t, mock.ExpectationsWereMet())
}
