// Package testdb opens an isolated in-memory SQLite database with the full schema.
// Only _test.go files import it.
package testdb

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/campusflow/campus-flow-api/database"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var counter atomic.Int64

// New returns a migrated database that disappears when the test ends
func New(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:campusflow_%d?mode=memory&cache=shared&_foreign_keys=on", counter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps the shared in-memory database alive and serialises writers
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.NewGORMStore(db).Init())

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}
