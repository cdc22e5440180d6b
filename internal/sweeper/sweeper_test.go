package sweeper

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/homestay-reservation/internal/dbtest"
	"github.com/iliyamo/homestay-reservation/internal/pricing"
	"github.com/iliyamo/homestay-reservation/internal/queue"
	"github.com/iliyamo/homestay-reservation/internal/repository"
	"github.com/iliyamo/homestay-reservation/internal/reservation"
)

var t0 = time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)

type codes struct {
	mu   sync.Mutex
	last string
}

func (c *codes) SendVerificationCode(_ context.Context, ev queue.VerificationCodeEvent) error {
	c.mu.Lock()
	c.last = ev.Code
	c.mu.Unlock()
	return nil
}

func (c *codes) NotifyStaff(context.Context, queue.StaffEvent) error { return nil }

type env struct {
	db    *sql.DB
	svc   *reservation.Service
	codes *codes
	now   time.Time
	rooms []uint64
	sw    *Sweeper
}

func setup(t *testing.T) *env {
	t.Helper()
	db := dbtest.Open(t)
	f := dbtest.Seed(t, db, "101", "102", "103")
	e := &env{db: db, codes: &codes{}, now: t0, rooms: f.RoomIDs}
	clock := func() time.Time { return e.now }
	e.svc = reservation.NewService(db, pricing.NewEngine(pricing.DefaultPolicy()), e.codes, reservation.Config{
		PaymentTTL: 30 * time.Minute,
		BcryptCost: bcrypt.MinCost,
		Now:        clock,
	})
	t.Cleanup(e.svc.Wait)
	e.sw = New(db, Config{Now: clock})
	return e
}

func (e *env) hold(t *testing.T, room uint64) uint64 {
	t.Helper()
	in := time.Date(2025, 7, 1, 14, 0, 0, 0, time.UTC)
	b, err := e.svc.CreateBooking(context.Background(), reservation.CreateBookingRequest{
		BranchID: 1,
		Customer: reservation.CustomerContact{FullName: "Tran Thi Binh", Email: "binh@example.com"},
		Lines:    []reservation.LineRequest{{RoomID: room, CheckIn: in, CheckOut: in.AddDate(0, 0, 1), Adults: 1}},
	}, reservation.Actor{})
	require.NoError(t, err)
	e.svc.Wait()
	return b.ID
}

func (e *env) verify(t *testing.T, id uint64) {
	t.Helper()
	e.svc.Wait()
	e.codes.mu.Lock()
	code := e.codes.last
	e.codes.mu.Unlock()
	_, err := e.svc.VerifyCode(context.Background(), id, code)
	require.NoError(t, err)
}

func (e *env) booking(t *testing.T, id uint64) (status, line string) {
	t.Helper()
	b, err := repository.NewBookingRepo(e.db).Get(context.Background(), id)
	require.NoError(t, err)
	return b.Status, b.Lines[0].Status
}

func TestRunOnceAbortsExpiredHolds(t *testing.T) {
	e := setup(t)
	id := e.hold(t, e.rooms[0])

	e.now = t0.Add(10 * time.Minute)
	res, err := e.sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	e.now = t0.Add(15 * time.Minute)
	res, err = e.sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{AbortedHolds: 1}, res)

	status, line := e.booking(t, id)
	assert.Equal(t, "ABORTED", status)
	assert.Equal(t, "cancelled", line)
	rm, err := repository.NewRoomRepo(e.db).Get(context.Background(), e.rooms[0])
	require.NoError(t, err)
	assert.Nil(t, rm.LockedUntil)

	res, err = e.sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res, "second run changes nothing")
}

func TestRunOnceAbortsUnpaidConfirmedBookings(t *testing.T) {
	e := setup(t)
	id := e.hold(t, e.rooms[0])
	e.now = t0.Add(time.Minute)
	e.verify(t, id)

	e.now = t0.Add(20 * time.Minute)
	res, err := e.sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.AbortedHolds+res.AbortedPayments, "verified booking within payment window")

	e.now = t0.Add(31 * time.Minute)
	res, err = e.sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.AbortedPayments)
	status, line := e.booking(t, id)
	assert.Equal(t, "ABORTED", status)
	assert.Equal(t, "cancelled", line)
}

func TestRunOnceLeavesPaidAndSubmittedBookings(t *testing.T) {
	e := setup(t)
	owner := reservation.Actor{Role: reservation.RoleCustomer, Email: "binh@example.com"}

	paid := e.hold(t, e.rooms[0])
	_, err := e.svc.FinalizePayment(context.Background(), paid, reservation.PaymentRequest{
		Amount: pricing.NewFromInt(10_000_000), Method: "cash",
	}, owner)
	require.NoError(t, err)

	submitted := e.hold(t, e.rooms[1])
	e.verify(t, submitted)
	_, err = e.svc.RequestPaymentConfirmation(context.Background(), submitted, owner)
	require.NoError(t, err)

	e.now = t0.Add(24 * time.Hour)
	res, err := e.sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.AbortedHolds)
	assert.Zero(t, res.AbortedPayments)
	// the submitted booking's lock lapsed and is cleared; its line still blocks the dates
	assert.EqualValues(t, 1, res.ReleasedLocks)

	status, _ := e.booking(t, paid)
	assert.Equal(t, "COMPLETED", status)
	status, line := e.booking(t, submitted)
	assert.Equal(t, "CONFIRMED", status)
	assert.Equal(t, "reserved", line)
}

func TestRunOnceReleasesOrphanedLocks(t *testing.T) {
	e := setup(t)
	rooms := repository.NewRoomRepo(e.db)
	tx, err := e.db.Begin()
	require.NoError(t, err)
	require.NoError(t, rooms.LockTx(context.Background(), tx, e.rooms[2], 0, t0.Add(-time.Minute)))
	require.NoError(t, tx.Commit())

	res, err := e.sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{ReleasedLocks: 1}, res)

	rm, err := rooms.Get(context.Background(), e.rooms[2])
	require.NoError(t, err)
	assert.Nil(t, rm.LockedUntil)
	assert.EqualValues(t, 2, rm.Version)
}

func TestStartStopsOnCancel(t *testing.T) {
	e := setup(t)
	e.sw.cfg.Interval = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.sw.Start(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
