package db

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation     = "23505"
	pgFeatureNotSupported = "0A000"
	pgActiveTransaction   = "25001"
	pgNoActiveTransaction = "25P01"

	mysqlDuplicateEntry    = 1062
	mysqlEngineUnsupported = 1178
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	if code, ok := pgCode(err); ok {
		return code == pgUniqueViolation
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}

	msg := err.Error()
	// PostgreSQL (error code 23505)
	if strings.Contains(msg, "duplicate key value violates unique constraint") {
		return true
	}
	// MySQL (error code 1062)
	if strings.Contains(msg, "Error 1062") {
		return true
	}
	// SQLite (error code 2067)
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return true
	}

	return false
}

// IsTransactionUnsupportedErr reports whether the store refused to open or
// run a multi-statement transaction.
func IsTransactionUnsupportedErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrNotImplemented) {
		return true
	}

	if code, ok := pgCode(err); ok {
		switch code {
		case pgActiveTransaction, pgNoActiveTransaction:
			return true
		case pgFeatureNotSupported:
			return strings.Contains(strings.ToLower(err.Error()), "transaction")
		default:
			return false
		}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlEngineUnsupported
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "cannot start a transaction within a transaction") ||
		strings.Contains(msg, "transactions are not supported") ||
		strings.Contains(msg, "transaction not supported")
}

func pgCode(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), true
	}
	return "", false
}
