package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gatepass/internal/models"
)

// IssueTickets inserts the full ticket set for a booking and claims the
// paid -> fulfilled transition, all inside one transaction. If any
// tickets already exist the whole call is a no-op returning
// ErrTicketsExist, which makes issuance exactly-once under retried
// confirmations.
func (db *DB) IssueTickets(ctx context.Context, bookingID int64, tickets []*models.Ticket) error {
	if len(tickets) == 0 {
		return errors.New("no tickets to issue")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var existing int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tickets WHERE booking_id = ?`, bookingID).Scan(&existing)
	if err != nil {
		return fmt.Errorf("failed to count existing tickets: %w", err)
	}
	if existing > 0 {
		return ErrTicketsExist
	}

	now := time.Now()
	insert := `INSERT INTO tickets (
				booking_id, ticket_number, total_tickets, pass_kind,
				qr_payload, expiry, is_used, used_at, created_at
			) VALUES (?, ?, ?, ?, ?, ?, 0, NULL, ?)`
	for _, t := range tickets {
		result, err := tx.ExecContext(ctx, insert,
			t.BookingID, t.TicketNumber, t.TotalTickets, t.PassKind,
			t.QRPayload, t.Expiry.UTC(), now)
		if err != nil {
			return fmt.Errorf("failed to insert ticket %d: %w", t.TicketNumber, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		t.ID = id
		t.CreatedAt = now
	}

	claim := `UPDATE bookings SET state = ?, version = version + 1, updated_at = ?
	          WHERE id = ? AND state = ?`
	result, err := tx.ExecContext(ctx, claim,
		models.StateFulfilled, now, bookingID, models.StatePaid)
	if err != nil {
		return fmt.Errorf("failed to claim fulfillment: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrInvalidTransition
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ticket issuance: %w", err)
	}
	return nil
}

func (db *DB) GetTicket(ctx context.Context, bookingID int64, ticketNumber int) (*models.Ticket, error) {
	query := `SELECT id, booking_id, ticket_number, total_tickets, pass_kind,
	                 qr_payload, expiry, is_used, used_at, created_at
	          FROM tickets WHERE booking_id = ? AND ticket_number = ?`
	return scanTicket(db.QueryRowContext(ctx, query, bookingID, ticketNumber))
}

func (db *DB) ListTickets(ctx context.Context, bookingID int64) ([]*models.Ticket, error) {
	query := `SELECT id, booking_id, ticket_number, total_tickets, pass_kind,
	                 qr_payload, expiry, is_used, used_at, created_at
	          FROM tickets WHERE booking_id = ? ORDER BY ticket_number ASC`
	rows, err := db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*models.Ticket
	for rows.Next() {
		t := &models.Ticket{}
		var usedAt sql.NullTime
		err := rows.Scan(
			&t.ID, &t.BookingID, &t.TicketNumber, &t.TotalTickets, &t.PassKind,
			&t.QRPayload, &t.Expiry, &t.IsUsed, &usedAt, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		if usedAt.Valid {
			used := usedAt.Time
			t.UsedAt = &used
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tickets: %w", err)
	}
	return tickets, nil
}

func scanTicket(row *sql.Row) (*models.Ticket, error) {
	t := &models.Ticket{}
	var usedAt sql.NullTime
	err := row.Scan(
		&t.ID, &t.BookingID, &t.TicketNumber, &t.TotalTickets, &t.PassKind,
		&t.QRPayload, &t.Expiry, &t.IsUsed, &usedAt, &t.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	if usedAt.Valid {
		used := usedAt.Time
		t.UsedAt = &used
	}
	return t, nil
}

// RedeemTicket consumes a ticket with a single compare-and-set: the
// update only matches when the ticket is unused and unexpired. On zero
// rows the ticket is re-read to classify the failure, checking expiry
// before use so a swept ticket (is_used flipped, used_at NULL) and a
// never-scanned expired ticket both report as expired.
func (db *DB) RedeemTicket(ctx context.Context, bookingID int64, ticketNumber int, now time.Time) (*models.Ticket, error) {
	query := `UPDATE tickets SET is_used = 1, used_at = ?
	          WHERE booking_id = ? AND ticket_number = ? AND is_used = 0 AND expiry >= ?`
	result, err := db.ExecContext(ctx, query, now.UTC(), bookingID, ticketNumber, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to redeem ticket: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows > 0 {
		return db.GetTicket(ctx, bookingID, ticketNumber)
	}

	ticket, err := db.GetTicket(ctx, bookingID, ticketNumber)
	if err != nil {
		return nil, err
	}
	if ticket.Expiry.Before(now) {
		return nil, ErrTicketExpired
	}
	return nil, ErrTicketUsed
}

// ExpireTickets marks every unused ticket past its expiry as used,
// leaving used_at NULL to distinguish expiry from redemption. Returns
// the number of tickets swept.
func (db *DB) ExpireTickets(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE tickets SET is_used = 1 WHERE is_used = 0 AND expiry < ?`
	result, err := db.ExecContext(ctx, query, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to expire tickets: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}
