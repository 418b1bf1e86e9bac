package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/fastprodman/casinoledger/internal/repos/accounts"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeTooManyConnections   = "53300"
	codeAdminShutdown        = "57P01"
	codeCrashShutdown        = "57P02"
	codeCannotConnectNow     = "57P03"
)

// classify maps driver failures onto the store's error classes. Errors that
// already carry an accounts sentinel pass through untouched.
func classify(err error) error {
	if err == nil || accounts.IsPermanent(err) || accounts.IsTransient(err) {
		return err
	}
	if errors.Is(err, accounts.ErrAccountNotFound) || errors.Is(err, accounts.ErrTransactionNotFound) {
		return err
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %w", accounts.ErrDuplicateTransaction, err)
	}
	if isTransient(err) {
		return fmt.Errorf("%w: %w", accounts.ErrTransient, err)
	}

	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeTooManyConnections,
			codeAdminShutdown, codeCrashShutdown, codeCannotConnectNow:
			return true
		}

		// class 08: connection exception
		return strings.HasPrefix(pgErr.Code, "08")
	}

	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone)
}
