package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cabinrent/internal/models"

	"github.com/jmoiron/sqlx"
)

const guestColumns = `id, first_name, last_name, email, phone, document_id, notes, created_at, updated_at`

// ListGuests returns guests ordered by name. A non-empty search matches names, email and phone.
func (db *DB) ListGuests(ctx context.Context, search string) ([]*models.Guest, error) {
	query := `SELECT ` + guestColumns + ` FROM guests`
	var args []any
	if search = strings.TrimSpace(search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query += ` WHERE LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?`
		args = append(args, pattern, pattern, pattern, pattern)
	}
	query += ` ORDER BY last_name, first_name, id`

	guests := []*models.Guest{}
	if err := db.SelectContext(ctx, &guests, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list guests: %w", err)
	}
	return guests, nil
}

func (db *DB) GetGuest(ctx context.Context, id int64) (*models.Guest, error) {
	return db.getGuest(ctx, db.DB, id)
}

func (db *DB) getGuest(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Guest, error) {
	var guest models.Guest
	err := sqlx.GetContext(ctx, q, &guest, db.Rebind(`SELECT `+guestColumns+` FROM guests WHERE id = ?`), id)
	if err != nil {
		return nil, lookupError(err, "guest", id)
	}
	return &guest, nil
}

// GetGuestByEmail matches case-insensitively.
func (db *DB) GetGuestByEmail(ctx context.Context, email string) (*models.Guest, error) {
	return db.getGuestByEmail(ctx, db.DB, email)
}

func (db *DB) getGuestByEmail(ctx context.Context, q sqlx.QueryerContext, email string) (*models.Guest, error) {
	var guest models.Guest
	err := sqlx.GetContext(ctx, q, &guest,
		db.Rebind(`SELECT `+guestColumns+` FROM guests WHERE LOWER(email) = LOWER(?)`), email)
	if err != nil {
		return nil, lookupError(err, "guest", email)
	}
	return &guest, nil
}

func (db *DB) CreateGuest(ctx context.Context, guest *models.Guest) error {
	return db.createGuest(ctx, db.DB, guest)
}

func (db *DB) createGuest(ctx context.Context, q sqlx.QueryerContext, guest *models.Guest) error {
	now := time.Now()
	id, err := db.insertID(ctx, q,
		`INSERT INTO guests (first_name, last_name, email, phone, document_id, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		guest.FirstName, guest.LastName, guest.Email, guest.Phone, guest.DocumentID, guest.Notes, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("guest email %q: %w", guest.Email, ErrDuplicate)
		}
		return fmt.Errorf("failed to create guest: %w", err)
	}
	guest.ID = id
	guest.CreatedAt = now
	guest.UpdatedAt = now
	return nil
}

func (db *DB) UpdateGuest(ctx context.Context, guest *models.Guest) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, db.Rebind(
		`UPDATE guests SET first_name = ?, last_name = ?, email = ?, phone = ?, document_id = ?, notes = ?, updated_at = ?
		 WHERE id = ?`),
		guest.FirstName, guest.LastName, guest.Email, guest.Phone, guest.DocumentID, guest.Notes, now, guest.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("guest email %q: %w", guest.Email, ErrDuplicate)
		}
		return fmt.Errorf("failed to update guest: %w", err)
	}
	if err := requireAffected(res, "guest", guest.ID); err != nil {
		return err
	}
	guest.UpdatedAt = now
	return nil
}

// DeleteGuest removes a guest without reservations.
func (db *DB) DeleteGuest(ctx context.Context, id int64) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		var refs int
		if err := tx.GetContext(ctx, &refs, db.Rebind(`SELECT COUNT(*) FROM reservations WHERE guest_id = ?`), id); err != nil {
			return fmt.Errorf("failed to count guest reservations: %w", err)
		}
		if refs > 0 {
			return fmt.Errorf("guest %d: %w", id, ErrHasReferences)
		}

		res, err := tx.ExecContext(ctx, db.Rebind(`DELETE FROM guests WHERE id = ?`), id)
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("guest %d: %w", id, ErrHasReferences)
			}
			return fmt.Errorf("failed to delete guest: %w", err)
		}
		return requireAffected(res, "guest", id)
	})
}
