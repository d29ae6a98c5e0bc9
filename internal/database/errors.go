package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrDuplicate              = errors.New("already exists")
	ErrHasReferences          = errors.New("still referenced by other records")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrNotAvailable           = errors.New("cabin is not available for the selected dates")
	ErrCabinInactive          = errors.New("cabin is inactive")
	ErrNotEditable            = errors.New("reservation can only be edited while reserved")
	ErrGuestOnSite            = errors.New("reservation is in progress")
	ErrOverpayment            = errors.New("payments exceed reservation total")
	ErrReservationCancelled   = errors.New("reservation is cancelled")
	ErrNotPending             = errors.New("booking request is already decided")
	ErrLastAdmin              = errors.New("at least one admin must remain")
)

// moneyEpsilon absorbs float noise when comparing sums of cents.
const moneyEpsilon = 0.005

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	return false
}

// lookupError turns sql.ErrNoRows into ErrNotFound and wraps anything else.
func lookupError(err error, entity string, key any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", entity, key, ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", entity, err)
}

func requireAffected(res sql.Result, entity string, id int64) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
	}
	return nil
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
