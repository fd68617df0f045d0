package export

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gatepass/internal/database"
	"gatepass/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestBuildReport(t *testing.T) {
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()

	eventDate := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	booking := &models.Booking{
		Reference: uuid.NewString(),
		EventDate: eventDate,
		Counts:    models.PassCounts{models.PassGirls: 2},
	}
	require.NoError(t, db.CreateBooking(ctx, booking))
	require.NoError(t, db.CreateAttendee(ctx, &models.Attendee{
		BookingID: booking.ID,
		Name:      "Asha",
		Email:     "asha@example.com",
		Phone:     "+91123",
	}))
	require.NoError(t, db.TransitionBookingState(ctx, booking.ID, models.StatePending, models.StatePaid))
	require.NoError(t, db.IssueTickets(ctx, booking.ID, []*models.Ticket{
		{BookingID: booking.ID, TicketNumber: 1, TotalTickets: 2, PassKind: models.PassGirls, QRPayload: "{}", Expiry: eventDate.Add(24 * time.Hour)},
		{BookingID: booking.ID, TicketNumber: 2, TotalTickets: 2, PassKind: models.PassGirls, QRPayload: "{}", Expiry: eventDate.Add(24 * time.Hour)},
	}))
	_, err = db.RedeemTicket(ctx, booking.ID, 1, time.Now())
	require.NoError(t, err)

	exporter := NewExporter(db)
	buf, err := exporter.Build(ctx,
		time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Booking ID", rows[0][0])
	assert.Equal(t, booking.Reference, rows[1][1])
	assert.Equal(t, "2026-12-31", rows[1][2])
	assert.Equal(t, models.StateFulfilled, rows[1][3])
	assert.Equal(t, "Asha", rows[1][8])
	assert.Equal(t, "2", rows[1][11]) // issued
	assert.Equal(t, "1", rows[1][12]) // redeemed
}

func TestBuildReportEmptyRange(t *testing.T) {
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	exporter := NewExporter(db)
	buf, err := exporter.Build(context.Background(),
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1) // header only
}
