package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"gatepass/internal/database"
	"gatepass/internal/models"

	"github.com/xuri/excelize/v2"
)

// Exporter builds the staff-facing XLSX report of bookings and
// redemption status for a date range.
type Exporter struct {
	db *database.DB
}

func NewExporter(db *database.DB) *Exporter {
	return &Exporter{db: db}
}

const sheetName = "Bookings"

var header = []string{
	"Booking ID", "Reference", "Event Date", "State",
	"Couple", "Girls", "Boys", "Total",
	"Attendee", "Email", "Phone",
	"Issued", "Redeemed", "Expired",
}

// Build produces the report as an in-memory XLSX file.
func (e *Exporter) Build(ctx context.Context, from, to time.Time) (*bytes.Buffer, error) {
	bookings, err := e.db.GetBookingsByDateRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for i, title := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, title); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, b := range bookings {
		row, err := e.bookingRow(ctx, b)
		if err != nil {
			return nil, err
		}
		for colIdx, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, fmt.Errorf("write row %d: %w", rowIdx+2, err)
			}
		}
	}

	_ = f.SetColWidth(sheetName, "B", "B", 38)
	_ = f.SetColWidth(sheetName, "I", "K", 24)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf, nil
}

func (e *Exporter) bookingRow(ctx context.Context, b *models.Booking) ([]interface{}, error) {
	attendeeName, attendeeEmail, attendeePhone := "", "", ""
	attendee, err := e.db.GetAttendee(ctx, b.ID)
	if err == nil {
		attendeeName, attendeeEmail, attendeePhone = attendee.Name, attendee.Email, attendee.Phone
	} else if !errors.Is(err, database.ErrAttendeeNotFound) {
		return nil, fmt.Errorf("load attendee for booking %d: %w", b.ID, err)
	}

	tickets, err := e.db.ListTickets(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("load tickets for booking %d: %w", b.ID, err)
	}

	redeemed, expired := 0, 0
	for _, t := range tickets {
		switch {
		case t.IsUsed && t.UsedAt != nil:
			redeemed++
		case t.IsUsed:
			expired++
		}
	}

	return []interface{}{
		b.ID,
		b.Reference,
		b.EventDate.Format("2006-01-02"),
		b.State,
		b.Counts[models.PassCouple],
		b.Counts[models.PassGirls],
		b.Counts[models.PassBoys],
		b.Counts.Total(),
		attendeeName,
		attendeeEmail,
		attendeePhone,
		len(tickets),
		redeemed,
		expired,
	}, nil
}
