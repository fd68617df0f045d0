package render

import (
	"bytes"
	"testing"
	"time"

	"gatepass/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketPDF(t *testing.T) {
	ticket := &models.Ticket{
		BookingID:    7,
		TicketNumber: 2,
		TotalTickets: 3,
		PassKind:     models.PassGirls,
		QRPayload:    `{"booking_id":7,"ticket_number":2}`,
		Expiry:       time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC),
	}
	attendee := &models.Attendee{
		Name:  "Asha Rao",
		Email: "asha@example.com",
		Phone: "+911234567890",
	}

	att, err := TicketPDF(ticket, attendee)
	require.NoError(t, err)

	assert.Equal(t, "Ticket_2.pdf", att.Filename)
	assert.True(t, bytes.HasPrefix(att.Data, []byte("%PDF")))
	assert.Greater(t, len(att.Data), 500)
}

func TestTicketPDFUniqueFilenames(t *testing.T) {
	attendee := &models.Attendee{Name: "Asha", Email: "a@b.c", Phone: "+91123"}
	for i := 1; i <= 3; i++ {
		ticket := &models.Ticket{
			TicketNumber: i,
			TotalTickets: 3,
			PassKind:     models.PassCouple,
			QRPayload:    "{}",
			Expiry:       time.Now(),
		}
		att, err := TicketPDF(ticket, attendee)
		require.NoError(t, err)
		assert.Contains(t, att.Filename, "Ticket_")
	}
}
