package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gatepass/internal/models"
)

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	query := `INSERT INTO bookings (
				reference, event_date, couple_count, girls_count, boys_count,
				state, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		booking.Reference,
		booking.EventDate.Format("2006-01-02"),
		booking.Counts[models.PassCouple],
		booking.Counts[models.PassGirls],
		booking.Counts[models.PassBoys],
		models.StatePending,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.State = models.StatePending
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1

	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT id, reference, event_date, couple_count, girls_count, boys_count,
	                 state, created_at, updated_at, version
	          FROM bookings WHERE id = ?`
	return db.scanBooking(db.QueryRowContext(ctx, query, id))
}

func (db *DB) GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error) {
	query := `SELECT id, reference, event_date, couple_count, girls_count, boys_count,
	                 state, created_at, updated_at, version
	          FROM bookings WHERE reference = ?`
	return db.scanBooking(db.QueryRowContext(ctx, query, reference))
}

func (db *DB) scanBooking(row *sql.Row) (*models.Booking, error) {
	var b models.Booking
	var dateStr string
	var couple, girls, boys int
	err := row.Scan(
		&b.ID, &b.Reference, &dateStr, &couple, &girls, &boys,
		&b.State, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	b.EventDate, err = time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse booking date %s: %w", dateStr, err)
	}
	b.Counts = models.PassCounts{}
	if couple > 0 {
		b.Counts[models.PassCouple] = couple
	}
	if girls > 0 {
		b.Counts[models.PassGirls] = girls
	}
	if boys > 0 {
		b.Counts[models.PassBoys] = boys
	}
	return &b, nil
}

// TransitionBookingState moves a booking from one state to another with
// a single conditional update. Zero rows affected means the booking is
// not in the expected source state (or does not exist).
func (db *DB) TransitionBookingState(ctx context.Context, id int64, from, to string) error {
	query := `UPDATE bookings SET state = ?, version = version + 1, updated_at = ?
	          WHERE id = ? AND state = ?`
	result, err := db.ExecContext(ctx, query, to, time.Now(), id, from)
	if err != nil {
		return fmt.Errorf("failed to transition booking state: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// AbandonStalePending moves pending bookings created before the cutoff
// to the abandoned terminal state. Returns the number of rows moved.
func (db *DB) AbandonStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `UPDATE bookings SET state = ?, version = version + 1, updated_at = ?
	          WHERE state = ? AND created_at < ?`
	result, err := db.ExecContext(ctx, query, models.StateAbandoned, time.Now(), models.StatePending, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to abandon stale bookings: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

func (db *DB) GetBookingsByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*models.Booking, error) {
	query := `SELECT id, reference, event_date, couple_count, girls_count, boys_count,
	                 state, created_at, updated_at, version
	          FROM bookings WHERE event_date >= ? AND event_date <= ?
	          ORDER BY event_date ASC, id ASC`
	rows, err := db.QueryContext(ctx, query,
		startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by date range: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b := &models.Booking{}
		var dateStr string
		var couple, girls, boys int
		err := rows.Scan(
			&b.ID, &b.Reference, &dateStr, &couple, &girls, &boys,
			&b.State, &b.CreatedAt, &b.UpdatedAt, &b.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		b.EventDate, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse booking date %s: %w", dateStr, err)
		}
		b.Counts = models.PassCounts{}
		if couple > 0 {
			b.Counts[models.PassCouple] = couple
		}
		if girls > 0 {
			b.Counts[models.PassGirls] = girls
		}
		if boys > 0 {
			b.Counts[models.PassBoys] = boys
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

func (db *DB) CreateAttendee(ctx context.Context, attendee *models.Attendee) error {
	query := `INSERT INTO attendees (booking_id, name, email, phone, created_at)
	          VALUES (?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		attendee.BookingID, attendee.Name, attendee.Email, attendee.Phone, now)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAttendeeExists
		}
		return fmt.Errorf("failed to create attendee: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	attendee.ID = id
	attendee.CreatedAt = now
	return nil
}

func (db *DB) GetAttendee(ctx context.Context, bookingID int64) (*models.Attendee, error) {
	query := `SELECT id, booking_id, name, email, phone, created_at
	          FROM attendees WHERE booking_id = ?`
	var a models.Attendee
	err := db.QueryRowContext(ctx, query, bookingID).Scan(
		&a.ID, &a.BookingID, &a.Name, &a.Email, &a.Phone, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAttendeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attendee: %w", err)
	}
	return &a, nil
}
