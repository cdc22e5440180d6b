package reservation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/iliyamo/homestay-reservation/internal/model"
	"github.com/iliyamo/homestay-reservation/internal/queue"
	"github.com/iliyamo/homestay-reservation/internal/repository"
)

// FinalizePayment records payment for a booking and completes it. It is
// idempotent: finalizing a paid booking returns the stored booking and
// invoice with AlreadyPaid set and writes nothing.
//
// The payment fields, line statuses, lock release, revenue row and invoice
// are written in one transaction. A missing invoices table is logged and
// the payment still commits. A call that loses the version check to a
// concurrent payment of the same booking is answered as already paid.
func (s *Service) FinalizePayment(ctx context.Context, id uint64, req PaymentRequest, actor Actor) (*Receipt, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	if req.Amount.Sign() <= 0 {
		return nil, invalid("amount", "must be positive")
	}
	ctx = context.WithoutCancel(ctx)
	now := s.now()
	ref := req.Reference
	if ref == "" {
		ref = "PAY-" + uuid.NewString()
	}

	var (
		b           *model.Booking
		inv         *model.Invoice
		alreadyPaid bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		b, err = s.getBookingTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if !actor.IsStaff() && !actor.Owns(b) {
			return ErrForbidden
		}
		if b.PaymentStatus == model.PaymentPaid {
			alreadyPaid = true
			return nil
		}
		if b.Status == model.BookingAborted {
			return ErrInvalidState
		}
		if req.Amount.Cmp(b.TotalAmount) < 0 {
			return invalid("amount", "must be at least the booking total "+b.TotalAmount.String())
		}

		err = s.bookings.MarkPaidTx(ctx, tx, b.ID, b.Version, repository.Payment{
			Amount: req.Amount,
			Method: req.Method,
			Ref:    ref,
			PaidAt: now,
		})
		if err != nil {
			return fmt.Errorf("mark paid: %w", err)
		}
		if _, err := s.bookings.SetLineStatusTx(ctx, tx, b.ID, model.LinePaid,
			[]string{model.LineReserved}, "", now); err != nil {
			return fmt.Errorf("lines: %w", err)
		}
		if _, err := s.rooms.ReleaseForBookingTx(ctx, tx, b.ID, b.LockDeadline()); err != nil {
			return fmt.Errorf("release locks: %w", err)
		}
		if err := s.ledger.CreateRevenueTx(ctx, tx, &model.Revenue{
			BookingID:  b.ID,
			BranchID:   b.BranchID,
			Amount:     b.TotalAmount,
			Method:     req.Method,
			RecordedAt: now,
		}); err != nil {
			return fmt.Errorf("revenue: %w", err)
		}

		inv = &model.Invoice{
			BookingID: b.ID,
			Number:    repository.InvoiceNumber(b.Code),
			Amount:    b.TotalAmount,
			IssuedAt:  now,
		}
		if err := s.ledger.CreateInvoiceTx(ctx, tx, inv); err != nil {
			if !errors.Is(err, repository.ErrInvoiceUnavailable) {
				return fmt.Errorf("invoice: %w", err)
			}
			s.log.Warn("invoice not recorded", "booking_id", b.ID, "err", err)
			inv = nil
		}
		return nil
	})
	if errors.Is(err, repository.ErrConflict) {
		cur, getErr := s.bookings.Get(ctx, id)
		if getErr == nil && cur.PaymentStatus == model.PaymentPaid {
			b, alreadyPaid, err = cur, true, nil
		}
	}
	if err != nil {
		s.metrics.Payment(paymentOutcome(err))
		return nil, err
	}

	if alreadyPaid {
		s.metrics.Payment("already_paid")
		inv, err = s.ledger.InvoiceForBooking(ctx, b.ID)
		if err != nil {
			return nil, fmt.Errorf("load invoice: %w", err)
		}
		return &Receipt{Booking: b, Invoice: inv, AlreadyPaid: true}, nil
	}

	s.metrics.Payment("paid")
	b, err = s.bookings.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload booking: %w", err)
	}
	s.log.Info("payment finalized", "booking_id", b.ID, "code", b.Code,
		"method", req.Method, "amount", req.Amount.String())

	ev := s.staffEvent(queue.EventPaymentCompleted, b)
	s.afterCommit("staff_notify", func(ctx context.Context, n Notifier) error {
		return n.NotifyStaff(ctx, ev)
	})
	return &Receipt{Booking: b, Invoice: inv}, nil
}

func paymentOutcome(err error) string {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return "invalid"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidState):
		return "rejected"
	case errors.Is(err, repository.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

// RequestPaymentConfirmation records that the customer says they have paid
// out of band. The booking moves to waiting_confirmation, which the sweeper
// leaves alone, until staff finalize it. Repeating the request is a no-op.
func (s *Service) RequestPaymentConfirmation(ctx context.Context, id uint64, actor Actor) (*model.Booking, error) {
	now := s.now()
	var (
		b       *model.Booking
		changed bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		b, err = s.bookings.GetTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if !actor.IsStaff() && !actor.Owns(b) {
			return ErrForbidden
		}
		if b.PaymentStatus == model.PaymentWaitingConfirmation {
			return nil
		}
		if b.Status != model.BookingConfirmed || b.PaymentStatus != model.PaymentPending {
			return ErrInvalidState
		}
		if err := s.bookings.UpdateStatusTx(ctx, tx, b.ID, b.Version, model.BookingConfirmed,
			model.PaymentWaitingConfirmation, now); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		b.PaymentStatus = model.PaymentWaitingConfirmation
		b.Version++
		b.UpdatedAt = now
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.log.Info("payment submitted by customer", "booking_id", b.ID)
		ev := s.staffEvent(queue.EventPaymentSubmitted, b)
		s.afterCommit("staff_notify", func(ctx context.Context, n Notifier) error {
			return n.NotifyStaff(ctx, ev)
		})
	}
	return b, nil
}
