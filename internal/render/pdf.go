package render

import (
	"bytes"
	"fmt"

	"gatepass/internal/models"

	"github.com/phpdave11/gofpdf"
)

// Attachment is a rendered file ready for the notification dispatcher.
type Attachment struct {
	Filename string
	Data     []byte
}

// TicketPDF renders a single ticket as a one-page PDF: the pass
// details, the attendee identity and the raw QR payload text for
// offline re-encoding.
func TicketPDF(t *models.Ticket, a *models.Attendee) (Attachment, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, "Event Pass", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 12)
	rows := [][2]string{
		{"Ticket", fmt.Sprintf("%d of %d", t.TicketNumber, t.TotalTickets)},
		{"Pass kind", string(t.PassKind)},
		{"Name", a.Name},
		{"Email", a.Email},
		{"Phone", a.Phone},
		{"Valid until", t.Expiry.Format("2006-01-02 15:04 MST")},
	}
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(40, 8, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 12)
		pdf.CellFormat(0, 8, row[1], "", 1, "L", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Scan payload", "", 1, "L", false, 0, "")
	pdf.SetFont("Courier", "", 9)
	pdf.MultiCell(0, 5, t.QRPayload, "1", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return Attachment{}, fmt.Errorf("render ticket pdf: %w", err)
	}

	return Attachment{
		Filename: fmt.Sprintf("Ticket_%d.pdf", t.TicketNumber),
		Data:     buf.Bytes(),
	}, nil
}
