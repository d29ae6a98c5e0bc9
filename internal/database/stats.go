package database

import (
	"context"
	"fmt"

	"cabinrent/internal/models"

	"github.com/jmoiron/sqlx"
)

// Counts gathers the scalar dashboard counters in one round trip per table.
type Counts struct {
	Cabins          int `db:"cabins"`
	ActiveCabins    int `db:"active_cabins"`
	Guests          int `db:"guests"`
	PendingRequests int `db:"pending_requests"`
}

func (db *DB) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := db.GetContext(ctx, &c, db.Rebind(`SELECT
		(SELECT COUNT(*) FROM cabins) AS cabins,
		(SELECT COUNT(*) FROM cabins WHERE is_active = ?) AS active_cabins,
		(SELECT COUNT(*) FROM guests) AS guests,
		(SELECT COUNT(*) FROM booking_requests WHERE status = ?) AS pending_requests`),
		true, models.RequestPending)
	if err != nil {
		return Counts{}, fmt.Errorf("failed to count dashboard totals: %w", err)
	}
	return c, nil
}

func (db *DB) CountReservationsByStatus(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	if err := db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS n FROM reservations GROUP BY status`); err != nil {
		return nil, fmt.Errorf("failed to count reservations by status: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}

// OccupiedNights sums the nights inside [from, to) taken by stays that were not
// cancelled, counting active cabins only so the rate stays within active capacity.
func (db *DB) OccupiedNights(ctx context.Context, from, to models.Date) (int, error) {
	query, args, err := sqlx.In(`SELECT r.start_date, r.end_date FROM reservations r
		JOIN cabins c ON c.id = r.cabin_id AND c.is_active = ?
		WHERE r.status IN (?) AND r.start_date < ? AND r.end_date > ?`,
		true, append(models.BlockingStatuses(), models.StatusCheckOut), to, from)
	if err != nil {
		return 0, fmt.Errorf("failed to build occupancy query: %w", err)
	}

	var stays []struct {
		StartDate models.Date `db:"start_date"`
		EndDate   models.Date `db:"end_date"`
	}
	if err := db.SelectContext(ctx, &stays, db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("failed to get occupied stays: %w", err)
	}

	nights := 0
	for _, s := range stays {
		start, end := s.StartDate, s.EndDate
		if start.Before(from) {
			start = from
		}
		if end.After(to) {
			end = to
		}
		if end.After(start) {
			nights += start.DaysUntil(end)
		}
	}
	return nights, nil
}

// RevenueByMonth sums payments per YYYY-MM with paid_at on or after from. Months without payments are absent.
func (db *DB) RevenueByMonth(ctx context.Context, from models.Date) ([]models.MonthlyRevenue, error) {
	rows := []models.MonthlyRevenue{}
	err := db.SelectContext(ctx, &rows, db.Rebind(`SELECT SUBSTR(CAST(paid_at AS TEXT), 1, 7) AS month,
			COALESCE(SUM(amount), 0) AS amount
		FROM payments
		WHERE paid_at >= ?
		GROUP BY SUBSTR(CAST(paid_at AS TEXT), 1, 7)
		ORDER BY month`), from)
	if err != nil {
		return nil, fmt.Errorf("failed to sum monthly revenue: %w", err)
	}
	return rows, nil
}
