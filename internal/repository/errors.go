// Package repository holds the MySQL and Redis data access code. The
// sentinel errors below let services tell "not there" and "already
// there" apart from infrastructure failures without inspecting driver
// errors themselves.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrEmailExists is returned by UserRepo.Create when the unique email
	// index rejects the insert.
	ErrEmailExists = errors.New("email already exists")
	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrMenuItemNotFound is returned for missing or soft-deleted items.
	ErrMenuItemNotFound = errors.New("menu item not found")
	// ErrCategoryNotFound is returned when an item references a category
	// that does not exist or is inactive.
	ErrCategoryNotFound = errors.New("menu category not found")
)

const (
	mysqlDuplicateEntry  = 1062
	mysqlNoReferencedRow = 1452
)

func isMySQLError(err error, number uint16) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == number
}
