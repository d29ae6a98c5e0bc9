package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cabinrent/internal/models"

	"github.com/jmoiron/sqlx"
)

// PriceFunc validates a stay against the locked cabin row and returns its total price.
type PriceFunc func(cabin *models.Cabin, r *models.Reservation) (float64, error)

const reservationSelect = `SELECT r.id, r.cabin_id, c.name AS cabin_name, r.guest_id,
		TRIM(g.first_name || ' ' || g.last_name) AS guest_name,
		r.start_date, r.end_date, r.guests_count, r.total_price, r.status, r.notes, r.version,
		r.created_at, r.updated_at
	FROM reservations r
	JOIN cabins c ON c.id = r.cabin_id
	JOIN guests g ON g.id = r.guest_id`

func reservationWhere(f models.ReservationFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		conds = append(conds, `r.status = ?`)
		args = append(args, f.Status)
	}
	if f.CabinID != 0 {
		conds = append(conds, `r.cabin_id = ?`)
		args = append(args, f.CabinID)
	}
	if f.GuestID != 0 {
		conds = append(conds, `r.guest_id = ?`)
		args = append(args, f.GuestID)
	}
	// window [From, To] keeps stays with at least one night inside it
	if !f.From.IsZero() {
		conds = append(conds, `r.end_date > ?`)
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		conds = append(conds, `r.start_date <= ?`)
		args = append(args, f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(conds, ` AND `), args
}

// ListReservations returns one page of reservations plus the total number of matches.
func (db *DB) ListReservations(ctx context.Context, f models.ReservationFilter) ([]*models.Reservation, int, error) {
	f.Normalize()
	where, args := reservationWhere(f)

	var total int
	if err := db.GetContext(ctx, &total, db.Rebind(`SELECT COUNT(*) FROM reservations r`+where), args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count reservations: %w", err)
	}

	query := reservationSelect + where + ` ORDER BY r.start_date DESC, r.id DESC LIMIT ? OFFSET ?`
	items := []*models.Reservation{}
	if err := db.SelectContext(ctx, &items, db.Rebind(query), append(args, f.PerPage, f.Offset())...); err != nil {
		return nil, 0, fmt.Errorf("failed to list reservations: %w", err)
	}
	return items, total, nil
}

// ReservationsInRange returns every non-cancelled reservation with a night inside [from, to], oldest first.
func (db *DB) ReservationsInRange(ctx context.Context, from, to models.Date) ([]*models.Reservation, error) {
	where, args := reservationWhere(models.ReservationFilter{From: from, To: to})
	if where == "" {
		where = ` WHERE r.status <> ?`
	} else {
		where += ` AND r.status <> ?`
	}
	args = append(args, models.StatusCancelled)

	items := []*models.Reservation{}
	err := db.SelectContext(ctx, &items, db.Rebind(reservationSelect+where+` ORDER BY r.start_date, r.id`), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get reservations by date range: %w", err)
	}
	return items, nil
}

// Arrivals lists non-cancelled stays starting on day.
func (db *DB) Arrivals(ctx context.Context, day models.Date) ([]*models.Reservation, error) {
	return db.reservationsOn(ctx, `r.start_date = ? AND r.status <> ?`, day, models.StatusCancelled)
}

// Departures lists non-cancelled stays ending on day.
func (db *DB) Departures(ctx context.Context, day models.Date) ([]*models.Reservation, error) {
	return db.reservationsOn(ctx, `r.end_date = ? AND r.status <> ?`, day, models.StatusCancelled)
}

// InHouse lists checked-in stays covering day.
func (db *DB) InHouse(ctx context.Context, day models.Date) ([]*models.Reservation, error) {
	return db.reservationsOn(ctx, `r.start_date <= ? AND r.end_date >= ? AND r.status = ?`, day, day, models.StatusCheckIn)
}

func (db *DB) reservationsOn(ctx context.Context, cond string, args ...any) ([]*models.Reservation, error) {
	items := []*models.Reservation{}
	query := reservationSelect + ` WHERE ` + cond + ` ORDER BY c.name, r.id`
	if err := db.SelectContext(ctx, &items, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get reservations for day: %w", err)
	}
	return items, nil
}

func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	return db.getReservation(ctx, db.DB, id)
}

func (db *DB) getReservation(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Reservation, error) {
	var r models.Reservation
	if err := sqlx.GetContext(ctx, q, &r, db.Rebind(reservationSelect+` WHERE r.id = ?`), id); err != nil {
		return nil, lookupError(err, "reservation", id)
	}
	return &r, nil
}

// lockReservation reads the bare row under a postgres row lock.
func (db *DB) lockReservation(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Reservation, error) {
	var r models.Reservation
	query := db.forUpdate(`SELECT id, cabin_id, guest_id, start_date, end_date, guests_count, total_price,
		status, notes, version, created_at, updated_at FROM reservations WHERE id = ?`)
	if err := sqlx.GetContext(ctx, q, &r, db.Rebind(query), id); err != nil {
		return nil, lookupError(err, "reservation", id)
	}
	return &r, nil
}

// CountOverlapping counts blocking reservations of a cabin sharing a night with [start, end).
// excludeID skips one reservation (0 skips none).
func (db *DB) CountOverlapping(ctx context.Context, cabinID int64, start, end models.Date, excludeID int64) (int, error) {
	return db.countOverlapping(ctx, db.DB, cabinID, start, end, excludeID)
}

func (db *DB) countOverlapping(ctx context.Context, q sqlx.QueryerContext, cabinID int64, start, end models.Date, excludeID int64) (int, error) {
	query, args, err := sqlx.In(`SELECT COUNT(*) FROM reservations
		WHERE cabin_id = ? AND status IN (?) AND start_date < ? AND end_date > ? AND id <> ?`,
		cabinID, models.BlockingStatuses(), end, start, excludeID)
	if err != nil {
		return 0, fmt.Errorf("failed to build overlap query: %w", err)
	}
	var n int
	if err := sqlx.GetContext(ctx, q, &n, db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("failed to check availability: %w", err)
	}
	return n, nil
}

// CabinCalendar reports per-day availability of a cabin for days starting at from.
func (db *DB) CabinCalendar(ctx context.Context, cabinID int64, from models.Date, days int) ([]*models.Availability, error) {
	to := from.AddDays(days)
	query, args, err := sqlx.In(`SELECT id, start_date, end_date FROM reservations
		WHERE cabin_id = ? AND status IN (?) AND start_date < ? AND end_date > ?
		ORDER BY start_date`,
		cabinID, models.BlockingStatuses(), to, from)
	if err != nil {
		return nil, fmt.Errorf("failed to build calendar query: %w", err)
	}

	var stays []struct {
		ID        int64       `db:"id"`
		StartDate models.Date `db:"start_date"`
		EndDate   models.Date `db:"end_date"`
	}
	if err := db.SelectContext(ctx, &stays, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get cabin calendar: %w", err)
	}

	calendar := make([]*models.Availability, 0, days)
	for i := 0; i < days; i++ {
		day := from.AddDays(i)
		slot := &models.Availability{Date: day, CabinID: cabinID, Available: true}
		for _, s := range stays {
			if !day.Before(s.StartDate) && day.Before(s.EndDate) {
				slot.Available = false
				slot.ReservationID = s.ID
				break
			}
		}
		calendar = append(calendar, slot)
	}
	return calendar, nil
}

// CreateReservation locks the cabin, prices the stay and inserts it if no blocking stay overlaps.
func (db *DB) CreateReservation(ctx context.Context, r *models.Reservation, price PriceFunc) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		return db.createReservation(ctx, tx, r, price)
	})
}

func (db *DB) createReservation(ctx context.Context, tx *sqlx.Tx, r *models.Reservation, price PriceFunc) error {
	cabin, err := db.getCabin(ctx, tx, r.CabinID, true)
	if err != nil {
		return err
	}
	if !cabin.IsActive {
		return fmt.Errorf("cabin %d: %w", cabin.ID, ErrCabinInactive)
	}
	if _, err := db.getGuest(ctx, tx, r.GuestID); err != nil {
		return err
	}

	total, err := price(cabin, r)
	if err != nil {
		return err
	}

	n, err := db.countOverlapping(ctx, tx, r.CabinID, r.StartDate, r.EndDate, 0)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrNotAvailable
	}

	if r.Status == "" {
		r.Status = models.StatusReserved
	}
	now := time.Now()
	id, err := db.insertID(ctx, tx,
		`INSERT INTO reservations (cabin_id, guest_id, start_date, end_date, guests_count, total_price,
			status, notes, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.CabinID, r.GuestID, r.StartDate, r.EndDate, r.GuestsCount, models.RoundMoney(total),
		r.Status, r.Notes, 1, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reservation in tx: %w", err)
	}

	created, err := db.getReservation(ctx, tx, id)
	if err != nil {
		return err
	}
	*r = *created
	return nil
}

// UpdateReservation rewrites cabin, dates, party size and notes of a reserved stay.
// r.Version must match the stored version.
func (db *DB) UpdateReservation(ctx context.Context, r *models.Reservation, price PriceFunc) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		current, err := db.lockReservation(ctx, tx, r.ID)
		if err != nil {
			return err
		}
		if current.Version != r.Version {
			return ErrConcurrentModification
		}
		if current.Status != models.StatusReserved {
			return fmt.Errorf("reservation %d is %s: %w", r.ID, current.Status, ErrNotEditable)
		}

		cabin, err := db.getCabin(ctx, tx, r.CabinID, true)
		if err != nil {
			return err
		}
		if !cabin.IsActive && cabin.ID != current.CabinID {
			return fmt.Errorf("cabin %d: %w", cabin.ID, ErrCabinInactive)
		}

		total, err := price(cabin, r)
		if err != nil {
			return err
		}
		total = models.RoundMoney(total)

		n, err := db.countOverlapping(ctx, tx, r.CabinID, r.StartDate, r.EndDate, r.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrNotAvailable
		}

		paid, err := db.paidAmount(ctx, tx, r.ID)
		if err != nil {
			return err
		}
		if paid > total+moneyEpsilon {
			return fmt.Errorf("paid %.2f, new total %.2f: %w", paid, total, ErrOverpayment)
		}

		res, err := tx.ExecContext(ctx, db.Rebind(
			`UPDATE reservations SET cabin_id = ?, start_date = ?, end_date = ?, guests_count = ?, total_price = ?,
				notes = ?, version = version + 1, updated_at = ?
			 WHERE id = ? AND version = ?`),
			r.CabinID, r.StartDate, r.EndDate, r.GuestsCount, total, r.Notes, time.Now(), r.ID, r.Version,
		)
		if err != nil {
			return fmt.Errorf("failed to update reservation: %w", err)
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return ErrConcurrentModification
		}

		updated, err := db.getReservation(ctx, tx, r.ID)
		if err != nil {
			return err
		}
		*r = *updated
		return nil
	})
}

// UpdateReservationStatusWithVersion moves a reservation to status if nobody changed it since fromVersion.
func (db *DB) UpdateReservationStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error {
	query := `UPDATE reservations SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, db.Rebind(query), status, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update reservation status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// DeleteReservation removes a reservation and its payments. Stays with the guest on site are kept.
// It returns the number of payments removed with it.
func (db *DB) DeleteReservation(ctx context.Context, id int64) (int64, error) {
	var removed int64
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		current, err := db.lockReservation(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status == models.StatusCheckIn || current.Status == models.StatusCleaning {
			return fmt.Errorf("reservation %d is %s: %w", id, current.Status, ErrGuestOnSite)
		}

		res, err := tx.ExecContext(ctx, db.Rebind(`DELETE FROM payments WHERE reservation_id = ?`), id)
		if err != nil {
			return fmt.Errorf("failed to delete reservation payments: %w", err)
		}
		removed, _ = res.RowsAffected()

		if _, err := tx.ExecContext(ctx, db.Rebind(
			`UPDATE booking_requests SET reservation_id = NULL WHERE reservation_id = ?`), id); err != nil {
			return fmt.Errorf("failed to detach booking requests: %w", err)
		}

		res, err = tx.ExecContext(ctx, db.Rebind(`DELETE FROM reservations WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("failed to delete reservation: %w", err)
		}
		return requireAffected(res, "reservation", id)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
