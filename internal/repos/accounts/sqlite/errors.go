package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/fastprodman/casinoledger/internal/repos/accounts"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

func classify(err error) error {
	if err == nil || accounts.IsPermanent(err) || accounts.IsTransient(err) {
		return err
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %w", accounts.ErrDuplicateTransaction, err)
	}
	if isBusy(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", accounts.ErrTransient, err)
	}

	return err
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

func isBusy(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		// extended codes keep the primary code in the low byte
		switch sqliteErr.Code() & 0xff {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return true
		}
	}
	return false
}
