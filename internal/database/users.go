package database

import (
	"context"
	"fmt"
	"time"

	"cabinrent/internal/models"

	"github.com/jmoiron/sqlx"
)

const userColumns = `id, username, full_name, role, password_hash, last_login_at, created_at, updated_at`

func (db *DB) ListUsers(ctx context.Context) ([]*models.User, error) {
	users := []*models.User{}
	if err := db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY username`); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return db.queryUser(ctx, db.DB, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return db.queryUser(ctx, db.DB, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (db *DB) queryUser(ctx context.Context, q sqlx.QueryerContext, query string, key any) (*models.User, error) {
	var u models.User
	if err := sqlx.GetContext(ctx, q, &u, db.Rebind(query), key); err != nil {
		return nil, lookupError(err, "user", key)
	}
	return &u, nil
}

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now()
	id, err := db.insertID(ctx, db.DB,
		`INSERT INTO users (username, full_name, role, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.Username, user.FullName, user.Role, user.PasswordHash, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("username %q: %w", user.Username, ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// UpdateUser stores full name, role and password hash. Demoting the last admin is refused.
func (db *DB) UpdateUser(ctx context.Context, user *models.User) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		admins, err := db.lockAdmins(ctx, tx)
		if err != nil {
			return err
		}
		current, err := db.queryUser(ctx, tx, db.forUpdate(`SELECT `+userColumns+` FROM users WHERE id = ?`), user.ID)
		if err != nil {
			return err
		}
		if current.IsAdmin() && user.Role != models.RoleAdmin {
			if err := ensureOtherAdmin(admins, user.ID); err != nil {
				return err
			}
		}

		now := time.Now()
		_, err = tx.ExecContext(ctx, db.Rebind(
			`UPDATE users SET full_name = ?, role = ?, password_hash = ?, updated_at = ? WHERE id = ?`),
			user.FullName, user.Role, user.PasswordHash, now, user.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		user.Username = current.Username
		user.CreatedAt = current.CreatedAt
		user.LastLoginAt = current.LastLoginAt
		user.UpdatedAt = now
		return nil
	})
}

// DeleteUser removes a user unless it is the last admin.
func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		admins, err := db.lockAdmins(ctx, tx)
		if err != nil {
			return err
		}
		current, err := db.queryUser(ctx, tx, db.forUpdate(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
		if err != nil {
			return err
		}
		if current.IsAdmin() {
			if err := ensureOtherAdmin(admins, id); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, db.Rebind(`DELETE FROM users WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return requireAffected(res, "user", id)
	})
}

// lockAdmins returns the admin ids. On postgres the rows stay locked until the
// transaction ends, so concurrent demotions cannot both pass the last-admin check.
func (db *DB) lockAdmins(ctx context.Context, tx *sqlx.Tx) ([]int64, error) {
	var ids []int64
	err := tx.SelectContext(ctx, &ids, db.Rebind(db.forUpdate(`SELECT id FROM users WHERE role = ? ORDER BY id`)),
		models.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to lock admins: %w", err)
	}
	return ids, nil
}

func ensureOtherAdmin(admins []int64, exceptID int64) error {
	for _, id := range admins {
		if id != exceptID {
			return nil
		}
	}
	return ErrLastAdmin
}

func (db *DB) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

func (db *DB) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := db.ExecContext(ctx, db.Rebind(`UPDATE users SET last_login_at = ? WHERE id = ?`), at, id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}
