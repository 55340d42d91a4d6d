package services

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
	// ErrAccountInactive is returned when the password matches but the account is not active.
	ErrAccountInactive = errors.New("auth: account is not active")
	// ErrAccountLocked is returned while the lockout window is in force.
	ErrAccountLocked = errors.New("auth: account temporarily locked")
	// ErrEmailTaken is returned when registering an address that already exists.
	ErrEmailTaken = errors.New("user: email already registered")
	// ErrNotFound is returned by lookups that match no row.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidStatus is returned for unknown or disallowed status transitions.
	ErrInvalidStatus = errors.New("invalid status")
)

// LockedError carries the remaining lockout time alongside ErrAccountLocked.
type LockedError struct {
	Remaining int64 // seconds
}

func (e *LockedError) Error() string { return ErrAccountLocked.Error() }

func (e *LockedError) Unwrap() error { return ErrAccountLocked }

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") || strings.Contains(lower, "duplicate")
}
