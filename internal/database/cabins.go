package database

import (
	"context"
	"fmt"
	"time"

	"cabinrent/internal/models"

	"github.com/jmoiron/sqlx"
)

const cabinColumns = `id, name, description, capacity, price_per_night, is_active, created_at, updated_at`

func (db *DB) ListCabins(ctx context.Context, activeOnly bool) ([]*models.Cabin, error) {
	query := `SELECT ` + cabinColumns + ` FROM cabins`
	var args []any
	if activeOnly {
		query += ` WHERE is_active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY name`

	cabins := []*models.Cabin{}
	if err := db.SelectContext(ctx, &cabins, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list cabins: %w", err)
	}
	return cabins, nil
}

func (db *DB) GetCabin(ctx context.Context, id int64) (*models.Cabin, error) {
	return db.getCabin(ctx, db.DB, id, false)
}

func (db *DB) getCabin(ctx context.Context, q sqlx.QueryerContext, id int64, lock bool) (*models.Cabin, error) {
	query := `SELECT ` + cabinColumns + ` FROM cabins WHERE id = ?`
	if lock {
		query = db.forUpdate(query)
	}
	var cabin models.Cabin
	if err := sqlx.GetContext(ctx, q, &cabin, db.Rebind(query), id); err != nil {
		return nil, lookupError(err, "cabin", id)
	}
	return &cabin, nil
}

func (db *DB) CreateCabin(ctx context.Context, cabin *models.Cabin) error {
	now := time.Now()
	id, err := db.insertID(ctx, db.DB,
		`INSERT INTO cabins (name, description, capacity, price_per_night, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cabin.Name, cabin.Description, cabin.Capacity, cabin.PricePerNight, cabin.IsActive, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("cabin %q: %w", cabin.Name, ErrDuplicate)
		}
		return fmt.Errorf("failed to create cabin: %w", err)
	}
	cabin.ID = id
	cabin.CreatedAt = now
	cabin.UpdatedAt = now
	return nil
}

func (db *DB) UpdateCabin(ctx context.Context, cabin *models.Cabin) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, db.Rebind(
		`UPDATE cabins SET name = ?, description = ?, capacity = ?, price_per_night = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`),
		cabin.Name, cabin.Description, cabin.Capacity, cabin.PricePerNight, cabin.IsActive, now, cabin.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("cabin %q: %w", cabin.Name, ErrDuplicate)
		}
		return fmt.Errorf("failed to update cabin: %w", err)
	}
	if err := requireAffected(res, "cabin", cabin.ID); err != nil {
		return err
	}
	cabin.UpdatedAt = now
	return nil
}

// DeleteCabin removes a cabin that no reservation or booking request points at.
func (db *DB) DeleteCabin(ctx context.Context, id int64) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		var refs int
		err := tx.GetContext(ctx, &refs, db.Rebind(
			`SELECT (SELECT COUNT(*) FROM reservations WHERE cabin_id = ?)
			      + (SELECT COUNT(*) FROM booking_requests WHERE cabin_id = ?)`), id, id)
		if err != nil {
			return fmt.Errorf("failed to count cabin references: %w", err)
		}
		if refs > 0 {
			return fmt.Errorf("cabin %d: %w", id, ErrHasReferences)
		}

		res, err := tx.ExecContext(ctx, db.Rebind(`DELETE FROM cabins WHERE id = ?`), id)
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("cabin %d: %w", id, ErrHasReferences)
			}
			return fmt.Errorf("failed to delete cabin: %w", err)
		}
		return requireAffected(res, "cabin", id)
	})
}

// AvailableCabins returns active cabins that fit guests and have no blocking stay overlapping [start, end).
func (db *DB) AvailableCabins(ctx context.Context, start, end models.Date, guests int) ([]*models.Cabin, error) {
	query, args, err := sqlx.In(`SELECT `+cabinColumns+` FROM cabins c
		WHERE c.is_active = ? AND c.capacity >= ?
		AND NOT EXISTS (
			SELECT 1 FROM reservations r
			WHERE r.cabin_id = c.id AND r.status IN (?) AND r.start_date < ? AND r.end_date > ?
		)
		ORDER BY c.price_per_night, c.name`,
		true, guests, models.BlockingStatuses(), end, start)
	if err != nil {
		return nil, fmt.Errorf("failed to build availability query: %w", err)
	}

	cabins := []*models.Cabin{}
	if err := db.SelectContext(ctx, &cabins, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to search available cabins: %w", err)
	}
	return cabins, nil
}
