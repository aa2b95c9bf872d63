package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	availabilityColumns = `id, professor_name, date, start_time, end_time, meeting_link, is_booked`
	bookingColumns      = `id, availability_id, student_name, student_email, topic, questions, professor_name, date, start_time, end_time, meeting_link`
)

// --- Availabilities ---

func (s *Store) InsertAvailability(ctx context.Context, a Availability) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO availabilities (`+availabilityColumns+`, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ProfessorName, a.Date, a.StartTime, a.EndTime, a.MeetingLink, a.IsBooked,
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting availability %s: %w", a.ID, err)
	}
	return nil
}

func (s *Store) GetAvailability(ctx context.Context, id string) (Availability, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+availabilityColumns+` FROM availabilities WHERE id = ?`, id)
	a, err := scanAvailability(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Availability{}, ErrNotFound
	}
	return a, err
}

// ListAvailability returns slots in creation order. An empty professor
// returns every slot.
func (s *Store) ListAvailability(ctx context.Context, professor string) ([]Availability, error) {
	query := `SELECT ` + availabilityColumns + ` FROM availabilities`
	var args []any
	if professor != "" {
		query += ` WHERE professor_name = ?`
		args = append(args, professor)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Availability{}
	for rows.Next() {
		a, err := scanAvailability(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) UpdateAvailabilityBooked(ctx context.Context, id string, booked bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE availabilities SET is_booked = ? WHERE id = ?`, booked, id)
	return expectOneRow(res, err)
}

func (s *Store) DeleteAvailability(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM availabilities WHERE id = ?`, id)
	return expectOneRow(res, err)
}

func scanAvailability(sc scanner) (Availability, error) {
	var a Availability
	err := sc.Scan(&a.ID, &a.ProfessorName, &a.Date, &a.StartTime, &a.EndTime, &a.MeetingLink, &a.IsBooked)
	return a, err
}

// --- Bookings ---

// InsertBooking claims the slot named by b.AvailabilityID and stores the
// booking in one transaction. The slot's professor, date, times and link
// are copied onto the returned booking. It fails with ErrNotFound for an
// unknown slot and ErrSlotBooked when the slot is taken.
func (s *Store) InsertBooking(ctx context.Context, b Booking) (Booking, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Booking{}, fmt.Errorf("beginning booking transaction: %w", err)
	}
	defer tx.Rollback()

	slot, err := scanAvailability(tx.QueryRowContext(ctx,
		`SELECT `+availabilityColumns+` FROM availabilities WHERE id = ?`, b.AvailabilityID))
	if errors.Is(err, sql.ErrNoRows) {
		return Booking{}, ErrNotFound
	}
	if err != nil {
		return Booking{}, fmt.Errorf("reading availability: %w", err)
	}
	if slot.IsBooked {
		return Booking{}, ErrSlotBooked
	}

	res, err := tx.ExecContext(ctx, `UPDATE availabilities SET is_booked = 1 WHERE id = ? AND is_booked = 0`, slot.ID)
	if err != nil {
		return Booking{}, fmt.Errorf("claiming availability: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return Booking{}, err
	} else if n != 1 {
		return Booking{}, ErrSlotBooked
	}

	b.ProfessorName = slot.ProfessorName
	b.Date = slot.Date
	b.StartTime = slot.StartTime
	b.EndTime = slot.EndTime
	b.MeetingLink = slot.MeetingLink

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.AvailabilityID, b.StudentName, b.StudentEmail, b.Topic, b.Questions,
		b.ProfessorName, b.Date, b.StartTime, b.EndTime, b.MeetingLink,
		time.Now().UTC().Format(timeLayout),
	); err != nil {
		return Booking{}, fmt.Errorf("inserting booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Booking{}, fmt.Errorf("committing booking: %w", err)
	}
	return b, nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (Booking, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Booking{}, ErrNotFound
	}
	return b, err
}

func (s *Store) ListBookingsByStudent(ctx context.Context, email string) ([]Booking, error) {
	return s.listBookings(ctx, `student_email = ?`, email)
}

func (s *Store) ListBookingsByProfessor(ctx context.Context, professor string) ([]Booking, error) {
	return s.listBookings(ctx, `professor_name = ?`, professor)
}

func (s *Store) listBookings(ctx context.Context, where string, arg any) ([]Booking, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE `+where+` ORDER BY created_at ASC, id ASC`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) DeleteBooking(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	return expectOneRow(res, err)
}

func scanBooking(sc scanner) (Booking, error) {
	var b Booking
	err := sc.Scan(&b.ID, &b.AvailabilityID, &b.StudentName, &b.StudentEmail, &b.Topic, &b.Questions,
		&b.ProfessorName, &b.Date, &b.StartTime, &b.EndTime, &b.MeetingLink)
	return b, err
}

func expectOneRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
