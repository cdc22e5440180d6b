package reservation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/homestay-reservation/internal/model"
	"github.com/iliyamo/homestay-reservation/internal/queue"
	"github.com/iliyamo/homestay-reservation/internal/repository"
)

// GetBooking returns a booking visible to actor. Customers only see their
// own bookings, and not those they have hidden.
func (s *Service) GetBooking(ctx context.Context, id uint64, actor Actor) (*model.Booking, error) {
	b, err := s.bookings.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsStaff() {
		return b, nil
	}
	if !actor.Owns(b) {
		return nil, ErrForbidden
	}
	if b.Hidden {
		return nil, ErrNotFound
	}
	return b, nil
}

// ListMyBookings returns the visible bookings of the signed-in customer.
func (s *Service) ListMyBookings(ctx context.Context, actor Actor) ([]model.Booking, error) {
	if actor.Email == "" {
		return nil, ErrForbidden
	}
	return s.bookings.ListByCustomer(ctx, repository.NormalizeEmail(actor.Email))
}

// CheckIn marks every paid line as checked in and the rooms as booked.
func (s *Service) CheckIn(ctx context.Context, id uint64, actor Actor) (*model.Booking, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	return s.transition(ctx, id, queue.EventBookingCheckedIn, func(tx *sql.Tx, b *model.Booking, now time.Time) error {
		if b.Status != model.BookingCompleted || b.PaymentStatus != model.PaymentPaid {
			return ErrInvalidState
		}
		n, err := s.bookings.SetLineStatusTx(ctx, tx, b.ID, model.LineCheckedIn,
			[]string{model.LinePaid}, "checked_in_at", now)
		if err != nil {
			return fmt.Errorf("lines: %w", err)
		}
		if n == 0 {
			return ErrInvalidState
		}
		return s.rooms.SetStatusForBookingTx(ctx, tx, b.ID, model.RoomBooked)
	})
}

// CheckOut marks every checked-in line as checked out and frees the rooms.
func (s *Service) CheckOut(ctx context.Context, id uint64, actor Actor) (*model.Booking, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	return s.transition(ctx, id, queue.EventBookingCheckedOut, func(tx *sql.Tx, b *model.Booking, now time.Time) error {
		n, err := s.bookings.SetLineStatusTx(ctx, tx, b.ID, model.LineCheckedOut,
			[]string{model.LineCheckedIn}, "checked_out_at", now)
		if err != nil {
			return fmt.Errorf("lines: %w", err)
		}
		if n == 0 {
			return ErrInvalidState
		}
		return s.rooms.SetStatusForBookingTx(ctx, tx, b.ID, model.RoomAvailable)
	})
}

// Cancel aborts an unpaid booking on behalf of staff or its customer. Its
// lines are cancelled and the locks it still owns are released.
func (s *Service) Cancel(ctx context.Context, id uint64, actor Actor) (*model.Booking, error) {
	return s.transition(ctx, id, queue.EventBookingCancelled, func(tx *sql.Tx, b *model.Booking, now time.Time) error {
		if !actor.IsStaff() && !actor.Owns(b) {
			return ErrForbidden
		}
		if b.PaymentStatus == model.PaymentPaid ||
			(b.Status != model.BookingHeld && b.Status != model.BookingConfirmed) {
			return ErrInvalidState
		}
		if err := s.bookings.UpdateStatusTx(ctx, tx, b.ID, b.Version, model.BookingAborted, b.PaymentStatus, now); err != nil {
			return fmt.Errorf("abort: %w", err)
		}
		if _, err := s.bookings.SetLineStatusTx(ctx, tx, b.ID, model.LineCancelled, nil, "", now); err != nil {
			return fmt.Errorf("lines: %w", err)
		}
		_, err := s.rooms.ReleaseForBookingTx(ctx, tx, b.ID, b.LockDeadline())
		return err
	})
}

// Hide removes a finished booking from its customer's listing. Only the
// customer may hide it; staff still see it.
func (s *Service) Hide(ctx context.Context, id uint64, actor Actor) error {
	now := s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		b, err := s.bookings.GetTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if !actor.Owns(b) {
			return ErrForbidden
		}
		if b.Hidden {
			return nil
		}
		if b.Status != model.BookingCompleted && b.Status != model.BookingAborted {
			return ErrInvalidState
		}
		return s.bookings.HideTx(ctx, tx, b.ID, b.Version, now)
	})
}

// transition loads a booking, applies fn in one transaction, reloads it
// and emits a staff event of type ev.
func (s *Service) transition(ctx context.Context, id uint64, ev string,
	fn func(tx *sql.Tx, b *model.Booking, now time.Time) error) (*model.Booking, error) {
	now := s.now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		b, err := s.bookings.GetTx(ctx, tx, id)
		if err != nil {
			return err
		}
		return fn(tx, b, now)
	})
	if err != nil {
		return nil, err
	}
	b, err := s.bookings.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload booking: %w", err)
	}
	s.log.Info("booking updated", "booking_id", b.ID, "event", ev, "status", b.Status)

	se := s.staffEvent(ev, b)
	s.afterCommit("staff_notify", func(ctx context.Context, n Notifier) error {
		return n.NotifyStaff(ctx, se)
	})
	return b, nil
}
