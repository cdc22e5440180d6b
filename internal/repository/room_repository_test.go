package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/homestay-reservation/internal/dbtest"
	"github.com/iliyamo/homestay-reservation/internal/model"
	"github.com/iliyamo/homestay-reservation/internal/pricing"
)

var t0 = time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)

func inTx(t *testing.T, db *sql.DB, fn func(tx *sql.Tx)) {
	t.Helper()
	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	fn(tx)
	require.NoError(t, tx.Commit())
}

// insertBooking writes a minimal booking with one line per stay.
func insertBooking(t *testing.T, db *sql.DB, f dbtest.Fixture, code, status string, hold time.Time, stays ...Stay) *model.Booking {
	t.Helper()
	ctx := context.Background()
	b := &model.Booking{
		Code: code, BranchID: f.BranchID, Status: status, PaymentStatus: model.PaymentPending,
		TotalAmount: pricing.NewFromInt(1), HoldExpiresAt: hold, CreatedAt: t0, UpdatedAt: t0,
	}
	inTx(t, db, func(tx *sql.Tx) {
		c, err := NewCustomerRepo(db).ResolveTx(ctx, tx, "Guest", code+"@example.com", "", t0)
		require.NoError(t, err)
		b.CustomerID = c.ID
		repo := NewBookingRepo(db)
		require.NoError(t, repo.CreateTx(ctx, tx, b))
		lines := make([]model.BookingLine, 0, len(stays))
		for _, s := range stays {
			lines = append(lines, model.BookingLine{RoomID: s.RoomID, CheckIn: s.CheckIn, CheckOut: s.CheckOut,
				Adults: 2, Status: model.LineReserved})
		}
		require.NoError(t, repo.CreateLinesTx(ctx, tx, b.ID, lines))
	})
	return b
}

func TestConflictingRoomsOverlap(t *testing.T) {
	db := dbtest.Open(t)
	f := dbtest.Seed(t, db, "101", "102")
	r := NewRoomRepo(db)
	jun10 := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	jun12 := jun10.AddDate(0, 0, 2)
	insertBooking(t, db, f, "BK000001", model.BookingHeld, t0.Add(15*time.Minute),
		Stay{RoomID: f.RoomIDs[0], CheckIn: jun10, CheckOut: jun12})

	tests := []struct {
		name string
		stay Stay
		want []uint64
	}{
		{"same dates", Stay{f.RoomIDs[0], jun10, jun12}, []uint64{f.RoomIDs[0]}},
		{"overlaps tail", Stay{f.RoomIDs[0], jun10.AddDate(0, 0, 1), jun12.AddDate(0, 0, 2)}, []uint64{f.RoomIDs[0]}},
		{"back to back after", Stay{f.RoomIDs[0], jun12, jun12.AddDate(0, 0, 1)}, nil},
		{"back to back before", Stay{f.RoomIDs[0], jun10.AddDate(0, 0, -1), jun10}, nil},
		{"other room", Stay{f.RoomIDs[1], jun10, jun12}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inTx(t, db, func(tx *sql.Tx) {
				got, err := r.ConflictingRoomsTx(context.Background(), tx, []Stay{tt.stay})
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			})
		})
	}
}

func TestConflictingRoomsIgnoresCancelledLines(t *testing.T) {
	db := dbtest.Open(t)
	f := dbtest.Seed(t, db, "101")
	r := NewRoomRepo(db)
	in := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	out := in.AddDate(0, 0, 2)
	b := insertBooking(t, db, f, "BK000001", model.BookingHeld, t0, Stay{f.RoomIDs[0], in, out})
	inTx(t, db, func(tx *sql.Tx) {
		_, err := NewBookingRepo(db).SetLineStatusTx(context.Background(), tx, b.ID, model.LineCancelled, nil, "", t0)
		require.NoError(t, err)
	})
	inTx(t, db, func(tx *sql.Tx) {
		got, err := r.ConflictingRoomsTx(context.Background(), tx, []Stay{{f.RoomIDs[0], in, out}})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestLockRejectsStaleVersion(t *testing.T) {
	db := dbtest.Open(t)
	f := dbtest.Seed(t, db, "101")
	r := NewRoomRepo(db)
	ctx := context.Background()

	var stale uint64
	inTx(t, db, func(tx *sql.Tx) {
		rm, err := r.GetTx(ctx, tx, f.RoomIDs[0])
		require.NoError(t, err)
		stale = rm.Version
		require.NoError(t, r.LockTx(ctx, tx, rm.ID, rm.Version, t0.Add(15*time.Minute)))
	})

	inTx(t, db, func(tx *sql.Tx) {
		err := r.LockTx(ctx, tx, f.RoomIDs[0], stale, t0.Add(30*time.Minute))
		require.ErrorIs(t, err, ErrConflict)
	})

	rm, err := r.Get(ctx, f.RoomIDs[0])
	require.NoError(t, err)
	assert.Equal(t, stale+1, rm.Version)
	require.NotNil(t, rm.LockedUntil)
	assert.True(t, rm.LockedUntil.Equal(t0.Add(15*time.Minute)))
	assert.True(t, rm.LockedAt(t0))
	assert.False(t, rm.LockedAt(t0.Add(15*time.Minute)))
}

func TestReleaseForBookingKeepsNewerLock(t *testing.T) {
	db := dbtest.Open(t)
	f := dbtest.Seed(t, db, "101", "102")
	r := NewRoomRepo(db)
	ctx := context.Background()
	hold := t0.Add(15 * time.Minute)
	in := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	b := insertBooking(t, db, f, "BK000001", model.BookingHeld, hold,
		Stay{f.RoomIDs[0], in, in.AddDate(0, 0, 1)}, Stay{f.RoomIDs[1], in, in.AddDate(0, 0, 1)})

	inTx(t, db, func(tx *sql.Tx) {
		a, err := r.GetTx(ctx, tx, f.RoomIDs[0])
		require.NoError(t, err)
		require.NoError(t, r.LockTx(ctx, tx, a.ID, a.Version, hold))
		// room 102 was re-locked by a later holder
		c, err := r.GetTx(ctx, tx, f.RoomIDs[1])
		require.NoError(t, err)
		require.NoError(t, r.LockTx(ctx, tx, c.ID, c.Version, hold.Add(20*time.Minute)))
	})

	inTx(t, db, func(tx *sql.Tx) {
		n, err := r.ReleaseForBookingTx(ctx, tx, b.ID, hold)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})

	a, err := r.Get(ctx, f.RoomIDs[0])
	require.NoError(t, err)
	assert.Nil(t, a.LockedUntil)
	c, err := r.Get(ctx, f.RoomIDs[1])
	require.NoError(t, err)
	assert.NotNil(t, c.LockedUntil)
}

func TestReleaseExpiredOnlyTouchesPastDeadlines(t *testing.T) {
	db := dbtest.Open(t)
	f := dbtest.Seed(t, db, "101", "102")
	r := NewRoomRepo(db)
	ctx := context.Background()
	inTx(t, db, func(tx *sql.Tx) {
		require.NoError(t, r.LockTx(ctx, tx, f.RoomIDs[0], 0, t0.Add(-time.Minute)))
		require.NoError(t, r.LockTx(ctx, tx, f.RoomIDs[1], 0, t0.Add(time.Minute)))
	})
	inTx(t, db, func(tx *sql.Tx) {
		n, err := r.ReleaseExpiredTx(ctx, tx, t0)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})
	inTx(t, db, func(tx *sql.Tx) {
		n, err := r.ReleaseExpiredTx(ctx, tx, t0)
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)
	})
	rm, err := r.Get(ctx, f.RoomIDs[0])
	require.NoError(t, err)
	assert.Nil(t, rm.LockedUntil)
	assert.EqualValues(t, 2, rm.Version)
}

func TestListAvailable(t *testing.T) {
	db := dbtest.Open(t)
	f := dbtest.Seed(t, db, "101", "102", "103")
	r := NewRoomRepo(db)
	ctx := context.Background()
	in := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	out := in.AddDate(0, 0, 2)
	insertBooking(t, db, f, "BK000001", model.BookingConfirmed, t0, Stay{f.RoomIDs[0], in, out})
	inTx(t, db, func(tx *sql.Tx) {
		require.NoError(t, r.LockTx(ctx, tx, f.RoomIDs[1], 0, t0.Add(10*time.Minute)))
	})

	rooms, err := r.ListAvailable(ctx, AvailabilityFilter{BranchID: f.BranchID, CheckIn: in, CheckOut: out}, t0)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "103", rooms[0].Number)
	assert.Equal(t, "700000", rooms[0].NightlyRate.String())
	assert.Equal(t, 2, rooms[0].Capacity)

	// after the lock lapses room 102 is offered again
	rooms, err = r.ListAvailable(ctx, AvailabilityFilter{CheckIn: in, CheckOut: out}, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, rooms, 2)

	rooms, err = r.ListAvailable(ctx, AvailabilityFilter{CheckIn: in, CheckOut: out, MinCapacity: 3}, t0)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestListAvailableAcrossBranches(t *testing.T) {
	db := dbtest.Open(t)
	f := dbtest.Seed(t, db, "101")
	r := NewRoomRepo(db)
	ctx := context.Background()

	branch, err := NewBranchRepo(db).Create(ctx, "DN01", "Da Nang Beach")
	require.NoError(t, err)
	class, err := r.CreateClass(ctx, "Family Suite", pricing.NewFromInt(1200000), 4)
	require.NoError(t, err)
	suite, err := r.Create(ctx, branch, class, "201")
	require.NoError(t, err)

	in := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	out := in.AddDate(0, 0, 2)
	rooms, err := r.ListAvailable(ctx, AvailabilityFilter{CheckIn: in, CheckOut: out}, t0)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, f.BranchID, rooms[0].BranchID)

	rooms, err = r.ListAvailable(ctx, AvailabilityFilter{BranchID: branch, CheckIn: in, CheckOut: out, MinCapacity: 3}, t0)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, suite, rooms[0].ID)
	assert.Equal(t, "Family Suite", rooms[0].ClassName)
	assert.Equal(t, "1200000", rooms[0].NightlyRate.String())
}
