// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/homestay-reservation/internal/database"
	"github.com/iliyamo/homestay-reservation/internal/pricing"
)

var seq atomic.Int64

// Open returns a fresh migrated database private to t.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))
	db, err := database.OpenSQLite(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, database.DriverSQLite))
	return db
}

// Fixture identifies rows created by Seed.
type Fixture struct {
	BranchID uint64
	ClassID  uint64
	RoomIDs  []uint64
}

// Seed creates one branch with a 700,000/night, capacity 2 class and the
// given room numbers.
func Seed(t testing.TB, db *sql.DB, rooms ...string) Fixture {
	t.Helper()
	ctx := context.Background()
	res, err := db.ExecContext(ctx, `INSERT INTO branches (code, name) VALUES ('HN01', 'Hanoi Old Quarter')`)
	require.NoError(t, err)
	branchID, err := res.LastInsertId()
	require.NoError(t, err)

	res, err = db.ExecContext(ctx, `INSERT INTO room_classes (name, nightly_rate, capacity) VALUES (?, ?, ?)`,
		"Deluxe Double", pricing.NewFromInt(700000), 2)
	require.NoError(t, err)
	classID, err := res.LastInsertId()
	require.NoError(t, err)

	f := Fixture{BranchID: uint64(branchID), ClassID: uint64(classID)}
	for _, n := range rooms {
		res, err := db.ExecContext(ctx,
			`INSERT INTO rooms (branch_id, room_class_id, number, status, version) VALUES (?, ?, ?, 'available', 0)`,
			branchID, classID, n)
		require.NoError(t, err)
		id, err := res.LastInsertId()
		require.NoError(t, err)
		f.RoomIDs = append(f.RoomIDs, uint64(id))
	}
	return f
}
