package database

import (
	"context"
	"fmt"
	"time"

	"cabinrent/internal/models"

	"github.com/jmoiron/sqlx"
)

const bookingRequestSelect = `SELECT b.id, b.cabin_id, c.name AS cabin_name, b.first_name, b.last_name, b.email,
		b.phone, b.start_date, b.end_date, b.guests_count, b.message, b.status, b.reservation_id,
		b.decision_note, b.decided_by, b.decided_at, b.created_at
	FROM booking_requests b
	JOIN cabins c ON c.id = b.cabin_id`

func (db *DB) ListBookingRequests(ctx context.Context, status string) ([]*models.BookingRequest, error) {
	query := bookingRequestSelect
	var args []any
	if status != "" {
		query += ` WHERE b.status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY b.created_at DESC, b.id DESC`

	items := []*models.BookingRequest{}
	if err := db.SelectContext(ctx, &items, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list booking requests: %w", err)
	}
	return items, nil
}

func (db *DB) GetBookingRequest(ctx context.Context, id int64) (*models.BookingRequest, error) {
	return db.getBookingRequest(ctx, db.DB, id)
}

func (db *DB) getBookingRequest(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.BookingRequest, error) {
	var br models.BookingRequest
	if err := sqlx.GetContext(ctx, q, &br, db.Rebind(bookingRequestSelect+` WHERE b.id = ?`), id); err != nil {
		return nil, lookupError(err, "booking request", id)
	}
	return &br, nil
}

func (db *DB) CreateBookingRequest(ctx context.Context, br *models.BookingRequest) error {
	now := time.Now()
	br.Status = models.RequestPending
	id, err := db.insertID(ctx, db.DB,
		`INSERT INTO booking_requests (cabin_id, first_name, last_name, email, phone, start_date, end_date,
			guests_count, message, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		br.CabinID, br.FirstName, br.LastName, br.Email, br.Phone, br.StartDate, br.EndDate,
		br.GuestsCount, br.Message, br.Status, now,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("cabin %d: %w", br.CabinID, ErrNotFound)
		}
		return fmt.Errorf("failed to create booking request: %w", err)
	}
	br.ID = id
	br.CreatedAt = now
	return nil
}

func (db *DB) DeleteBookingRequest(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM booking_requests WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete booking request: %w", err)
	}
	return requireAffected(res, "booking request", id)
}

// RejectBookingRequest closes a pending request with a note.
func (db *DB) RejectBookingRequest(ctx context.Context, id, decidedBy int64, note string) (*models.BookingRequest, error) {
	var out *models.BookingRequest
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := db.decide(ctx, tx, id, decidedBy, models.RequestRejected, note, nil); err != nil {
			return err
		}
		var err error
		out, err = db.getBookingRequest(ctx, tx, id)
		return err
	})
	return out, err
}

// ApproveBookingRequest turns a pending request into a reservation. The guest is matched by email
// or created. Request, guest and reservation are written in one transaction.
func (db *DB) ApproveBookingRequest(ctx context.Context, id, decidedBy int64, note string, price PriceFunc) (*models.Reservation, error) {
	var reservation *models.Reservation
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		br, err := db.getBookingRequest(ctx, tx, id)
		if err != nil {
			return err
		}
		if br.Status != models.RequestPending {
			return fmt.Errorf("booking request %d is %s: %w", id, br.Status, ErrNotPending)
		}

		guest, err := db.guestForRequest(ctx, tx, br)
		if err != nil {
			return err
		}

		r := &models.Reservation{
			CabinID:     br.CabinID,
			GuestID:     guest.ID,
			StartDate:   br.StartDate,
			EndDate:     br.EndDate,
			GuestsCount: br.GuestsCount,
			Notes:       br.Message,
			Status:      models.StatusReserved,
		}
		if err := db.createReservation(ctx, tx, r, price); err != nil {
			return err
		}

		if err := db.decide(ctx, tx, id, decidedBy, models.RequestApproved, note, &r.ID); err != nil {
			return err
		}
		reservation = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reservation, nil
}

func (db *DB) guestForRequest(ctx context.Context, tx *sqlx.Tx, br *models.BookingRequest) (*models.Guest, error) {
	if br.Email != "" {
		guest, err := db.getGuestByEmail(ctx, tx, br.Email)
		if err == nil {
			return guest, nil
		}
		if !isNotFound(err) {
			return nil, err
		}
	}
	guest := &models.Guest{
		FirstName: br.FirstName,
		LastName:  br.LastName,
		Email:     br.Email,
		Phone:     br.Phone,
	}
	if err := db.createGuest(ctx, tx, guest); err != nil {
		return nil, err
	}
	return guest, nil
}

func (db *DB) decide(ctx context.Context, tx *sqlx.Tx, id, decidedBy int64, status, note string, reservationID *int64) error {
	var resID any
	if reservationID != nil {
		resID = *reservationID
	}
	res, err := tx.ExecContext(ctx, db.Rebind(
		`UPDATE booking_requests SET status = ?, decision_note = ?, decided_by = ?, decided_at = ?, reservation_id = ?
		 WHERE id = ? AND status = ?`),
		status, note, nullableID(decidedBy), time.Now(), resID, id, models.RequestPending,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking request: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		if _, err := db.getBookingRequest(ctx, tx, id); err != nil {
			return err
		}
		return fmt.Errorf("booking request %d: %w", id, ErrNotPending)
	}
	return nil
}
