// Package dbtest opens throwaway databases for tests
package dbtest

import (
	"bitwise74/identity-api/config"
	"bitwise74/identity-api/db"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var seq atomic.Int64

// Open returns a migrated in-memory SQLite database private to t. The pool
// is pinned to one connection so concurrent requests queue instead of
// tripping over SQLite table locks.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:dbtest%d?mode=memory&cache=shared", seq.Add(1))

	conn, err := db.New(config.DB{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() { _ = sqlDB.Close() })

	return conn
}
