package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cabinrent/internal/models"

	"github.com/jmoiron/sqlx"
)

const paymentSelect = `SELECT p.id, p.reservation_id, TRIM(g.first_name || ' ' || g.last_name) AS guest_name,
		c.name AS cabin_name, p.amount, p.method, p.status, p.reference, p.paid_at, p.created_at
	FROM payments p
	JOIN reservations r ON r.id = p.reservation_id
	JOIN guests g ON g.id = r.guest_id
	JOIN cabins c ON c.id = r.cabin_id`

func (db *DB) ListPayments(ctx context.Context, f models.PaymentFilter) ([]*models.Payment, error) {
	var (
		conds []string
		args  []any
	)
	if f.ReservationID != 0 {
		conds = append(conds, `p.reservation_id = ?`)
		args = append(args, f.ReservationID)
	}
	if f.Method != "" {
		conds = append(conds, `p.method = ?`)
		args = append(args, f.Method)
	}
	if !f.From.IsZero() {
		conds = append(conds, `p.paid_at >= ?`)
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		conds = append(conds, `p.paid_at <= ?`)
		args = append(args, f.To)
	}

	query := paymentSelect
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY p.paid_at, p.id`

	payments := []*models.Payment{}
	if err := db.SelectContext(ctx, &payments, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

func (db *DB) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	var p models.Payment
	if err := db.GetContext(ctx, &p, db.Rebind(paymentSelect+` WHERE p.id = ?`), id); err != nil {
		return nil, lookupError(err, "payment", id)
	}
	return &p, nil
}

// CreatePayment records a payment and derives its status from the cumulative amount paid.
// The reservation row is locked so concurrent payments cannot overshoot the total.
func (db *DB) CreatePayment(ctx context.Context, p *models.Payment) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		r, err := db.lockReservation(ctx, tx, p.ReservationID)
		if err != nil {
			return err
		}
		if r.Status == models.StatusCancelled {
			return fmt.Errorf("reservation %d: %w", r.ID, ErrReservationCancelled)
		}

		paid, err := db.paidAmount(ctx, tx, r.ID)
		if err != nil {
			return err
		}
		amount := models.RoundMoney(p.Amount)
		cumulative := models.RoundMoney(paid + amount)
		if cumulative > r.TotalPrice+moneyEpsilon {
			return fmt.Errorf("due %.2f, payment %.2f: %w", models.RoundMoney(r.TotalPrice-paid), amount, ErrOverpayment)
		}

		p.Amount = amount
		p.Status = models.PaymentSigned
		if cumulative >= r.TotalPrice-moneyEpsilon {
			p.Status = models.PaymentCompleted
		}

		now := time.Now()
		id, err := db.insertID(ctx, tx,
			`INSERT INTO payments (reservation_id, amount, method, status, reference, paid_at, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.ReservationID, p.Amount, p.Method, p.Status, p.Reference, p.PaidAt, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert payment: %w", err)
		}
		p.ID = id
		p.CreatedAt = now
		return nil
	})
}

func (db *DB) DeletePayment(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM payments WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	return requireAffected(res, "payment", id)
}

// Balance compares a reservation total with the sum of its payments.
func (db *DB) Balance(ctx context.Context, reservationID int64) (models.Balance, error) {
	var total float64
	err := db.GetContext(ctx, &total, db.Rebind(`SELECT total_price FROM reservations WHERE id = ?`), reservationID)
	if err != nil {
		return models.Balance{}, lookupError(err, "reservation", reservationID)
	}
	paid, err := db.paidAmount(ctx, db.DB, reservationID)
	if err != nil {
		return models.Balance{}, err
	}
	return models.NewBalance(reservationID, total, paid), nil
}

func (db *DB) paidAmount(ctx context.Context, q sqlx.QueryerContext, reservationID int64) (float64, error) {
	var paid float64
	err := sqlx.GetContext(ctx, q, &paid,
		db.Rebind(`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE reservation_id = ?`), reservationID)
	if err != nil {
		return 0, fmt.Errorf("failed to sum payments: %w", err)
	}
	return models.RoundMoney(paid), nil
}
