package reservation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/homestay-reservation/internal/repository"
)

func TestCheckInAndOut(t *testing.T) {
	h := newHarness(t, "101")
	room := h.fixture.RoomIDs[0]
	id := h.hold(t, room)

	_, err := h.svc.CheckIn(context.Background(), id, staff)
	require.ErrorIs(t, err, ErrInvalidState, "unpaid booking")

	h.verify(t, id)
	_, err = h.svc.FinalizePayment(context.Background(), id, payFull("cash"), staff)
	require.NoError(t, err)

	_, err = h.svc.CheckIn(context.Background(), id, owner)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = h.svc.CheckOut(context.Background(), id, staff)
	require.ErrorIs(t, err, ErrInvalidState, "not checked in yet")

	b, err := h.svc.CheckIn(context.Background(), id, staff)
	require.NoError(t, err)
	assert.Equal(t, "checked_in", b.Lines[0].Status)
	require.NotNil(t, b.Lines[0].CheckedInAt)
	rm, err := repository.NewRoomRepo(h.db).Get(context.Background(), room)
	require.NoError(t, err)
	assert.Equal(t, "booked", rm.Status)

	_, err = h.svc.CheckIn(context.Background(), id, staff)
	require.ErrorIs(t, err, ErrInvalidState, "already checked in")

	b, err = h.svc.CheckOut(context.Background(), id, staff)
	require.NoError(t, err)
	assert.Equal(t, "checked_out", b.Lines[0].Status)
	require.NotNil(t, b.Lines[0].CheckedOutAt)
	rm, err = repository.NewRoomRepo(h.db).Get(context.Background(), room)
	require.NoError(t, err)
	assert.Equal(t, "available", rm.Status)
}

func TestCancelFreesRoom(t *testing.T) {
	h := newHarness(t, "101")
	room := h.fixture.RoomIDs[0]
	id := h.hold(t, room)

	_, err := h.svc.Cancel(context.Background(), id, Actor{Role: RoleCustomer, Email: "eve@example.com"})
	require.ErrorIs(t, err, ErrForbidden)

	b, err := h.svc.Cancel(context.Background(), id, owner)
	require.NoError(t, err)
	assert.Equal(t, "ABORTED", b.Status)
	assert.Equal(t, "cancelled", b.Lines[0].Status)
	assert.Nil(t, h.lockedUntil(t, room))

	_, err = h.svc.Cancel(context.Background(), id, owner)
	require.ErrorIs(t, err, ErrInvalidState)

	// the same dates can be booked again
	h.hold(t, room)
}

func TestCancelRejectsPaidBooking(t *testing.T) {
	h := newHarness(t, "101")
	id := h.hold(t, h.fixture.RoomIDs[0])
	_, err := h.svc.FinalizePayment(context.Background(), id, payFull("cash"), staff)
	require.NoError(t, err)

	_, err = h.svc.Cancel(context.Background(), id, staff)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestHideAndVisibility(t *testing.T) {
	h := newHarness(t, "101")
	id := h.hold(t, h.fixture.RoomIDs[0])

	err := h.svc.Hide(context.Background(), id, owner)
	require.ErrorIs(t, err, ErrInvalidState, "active booking")

	_, err = h.svc.FinalizePayment(context.Background(), id, payFull("cash"), staff)
	require.NoError(t, err)

	require.ErrorIs(t, h.svc.Hide(context.Background(), id, staff), ErrForbidden)
	require.NoError(t, h.svc.Hide(context.Background(), id, owner))
	require.NoError(t, h.svc.Hide(context.Background(), id, owner))

	_, err = h.svc.GetBooking(context.Background(), id, owner)
	require.ErrorIs(t, err, ErrNotFound)
	b, err := h.svc.GetBooking(context.Background(), id, staff)
	require.NoError(t, err)
	assert.True(t, b.Hidden)

	list, err := h.svc.ListMyBookings(context.Background(), owner)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestGetBookingAccess(t *testing.T) {
	h := newHarness(t, "101")
	id := h.hold(t, h.fixture.RoomIDs[0])

	b, err := h.svc.GetBooking(context.Background(), id, Actor{Role: RoleCustomer, Email: " AN@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "BK000001", b.Code)

	_, err = h.svc.GetBooking(context.Background(), id, Actor{})
	require.ErrorIs(t, err, ErrForbidden)

	list, err := h.svc.ListMyBookings(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	_, err = h.svc.ListMyBookings(context.Background(), Actor{})
	require.ErrorIs(t, err, ErrForbidden)
}
