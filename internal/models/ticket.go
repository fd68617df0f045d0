package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Ticket is an issued entry credential. (BookingID, TicketNumber) is the
// natural key used at the gate; TicketNumber runs 1..TotalTickets across
// the whole booking in canonical kind order.
type Ticket struct {
	ID           int64      `json:"id"`
	BookingID    int64      `json:"booking_id"`
	TicketNumber int        `json:"ticket_number"`
	TotalTickets int        `json:"total_tickets"`
	PassKind     PassKind   `json:"pass_kind"`
	QRPayload    string     `json:"qr_payload"`
	Expiry       time.Time  `json:"expiry"`
	IsUsed       bool       `json:"is_used"`
	UsedAt       *time.Time `json:"used_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// QRPayload is the JSON document embedded in each ticket's QR code.
// The scanner posts it back verbatim for lookup.
type QRPayload struct {
	BookingID    int64    `json:"booking_id"`
	Reference    string   `json:"reference"`
	TicketNumber int      `json:"ticket_number"`
	TotalTickets int      `json:"total_tickets"`
	PassKind     PassKind `json:"pass_kind"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Phone        string   `json:"phone"`
	EventDate    string   `json:"event_date"`
	IssuedAt     string   `json:"issued_at"`
}

// Encode serializes the payload to the canonical JSON form stored on the
// ticket row.
func (p QRPayload) Encode() (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode qr payload: %w", err)
	}
	return string(raw), nil
}

// DecodeQRPayload parses a scanned payload.
func DecodeQRPayload(raw string) (QRPayload, error) {
	var p QRPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return QRPayload{}, fmt.Errorf("decode qr payload: %w", err)
	}
	return p, nil
}
