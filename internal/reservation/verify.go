package reservation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/homestay-reservation/internal/model"
	"github.com/iliyamo/homestay-reservation/internal/queue"
	"github.com/iliyamo/homestay-reservation/internal/repository"
)

// VerifyCode confirms a HELD booking with its one-time code. Checks run in
// a fixed order: already verified, wrong state, no code, expired, then the
// code itself. A wrong code does not consume it. On success the booking is
// CONFIRMED and the payment countdown starts; room locks are extended to
// the new deadline. If the booking changed between the read and the
// update, the outcome is decided from its committed state.
func (s *Service) VerifyCode(ctx context.Context, id uint64, code string) (*model.Booking, error) {
	now := s.now()
	var b *model.Booking
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		b, err = s.getBookingTx(ctx, tx, id)
		if err != nil {
			return err
		}
		switch {
		case b.Verified:
			return ErrAlreadyVerified
		case b.Status != model.BookingHeld:
			return ErrInvalidState
		case b.CodeHash == nil || b.CodeExpiresAt == nil:
			return ErrNoCode
		case !now.Before(*b.CodeExpiresAt):
			return ErrCodeExpired
		}
		if err := bcrypt.CompareHashAndPassword([]byte(*b.CodeHash), []byte(code)); err != nil {
			if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				return ErrCodeMismatch
			}
			return fmt.Errorf("compare code: %w", err)
		}

		oldDeadline := b.LockDeadline()
		payUntil := now.Add(s.cfg.PaymentTTL)
		if err := s.bookings.MarkVerifiedTx(ctx, tx, b.ID, b.Version, payUntil, now); err != nil {
			return fmt.Errorf("mark verified: %w", err)
		}
		b.Verified = true
		b.Status = model.BookingConfirmed
		b.CodeHash, b.CodeExpiresAt = nil, nil
		b.PaymentExpiresAt = &payUntil
		b.Version++
		b.UpdatedAt = now

		if newDeadline := b.LockDeadline(); newDeadline.After(oldDeadline) {
			if _, err := s.rooms.ExtendForBookingTx(ctx, tx, b.ID, oldDeadline, newDeadline); err != nil {
				return fmt.Errorf("extend locks: %w", err)
			}
		}
		return nil
	})
	if errors.Is(err, repository.ErrConflict) {
		err = s.lostVerify(ctx, id, err)
	}
	s.metrics.Verification(verifyOutcome(err))
	if err != nil {
		return nil, err
	}
	s.log.Info("booking verified", "booking_id", b.ID, "code", b.Code)

	ev := s.staffEvent(queue.EventBookingVerified, b)
	s.afterCommit("staff_notify", func(ctx context.Context, n Notifier) error {
		return n.NotifyStaff(ctx, ev)
	})
	return b, nil
}

// lostVerify maps a verification that lost its version check to the state
// the booking was moved to.
func (s *Service) lostVerify(ctx context.Context, id uint64, err error) error {
	cur, getErr := s.bookings.Get(ctx, id)
	switch {
	case getErr != nil:
		return err
	case cur.Verified:
		return ErrAlreadyVerified
	case cur.Status != model.BookingHeld:
		return ErrInvalidState
	default:
		return err
	}
}

func verifyOutcome(err error) string {
	switch {
	case err == nil:
		return "verified"
	case errors.Is(err, ErrAlreadyVerified):
		return "already_verified"
	case errors.Is(err, ErrCodeExpired):
		return "expired"
	case errors.Is(err, ErrCodeMismatch):
		return "mismatch"
	case errors.Is(err, ErrNoCode), errors.Is(err, ErrInvalidState):
		return "rejected"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// ResendCode replaces the verification code of an unverified HELD booking
// and mails the new one. The previous code stops working immediately.
// Anonymous callers are allowed since the code only ever goes to the
// booking's own email; a signed-in customer must own the booking.
func (s *Service) ResendCode(ctx context.Context, id uint64, actor Actor) error {
	code, hash, err := s.newCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	now := s.now()
	expires := now.Add(s.cfg.CodeTTL)

	var (
		b        *model.Booking
		customer *model.Customer
	)
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		b, err = s.bookings.GetTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if actor.Email != "" && !actor.IsStaff() && !actor.Owns(b) {
			return ErrForbidden
		}
		if b.Verified {
			return ErrAlreadyVerified
		}
		if b.Status != model.BookingHeld {
			return ErrInvalidState
		}
		if err := s.bookings.SetCodeTx(ctx, tx, b.ID, b.Version, hash, expires, now); err != nil {
			return fmt.Errorf("set code: %w", err)
		}
		customer, err = s.customers.GetByEmailTx(ctx, tx, b.CustomerEmail)
		return err
	})
	if err != nil {
		return err
	}
	s.log.Info("verification code reissued", "booking_id", b.ID)

	ev := queue.VerificationCodeEvent{
		BookingID:   b.ID,
		BookingCode: b.Code,
		Email:       customer.Email,
		FullName:    customer.FullName,
		Code:        code,
		ExpiresAt:   expires,
	}
	s.afterCommit("verification_email", func(ctx context.Context, n Notifier) error {
		return n.SendVerificationCode(ctx, ev)
	})
	return nil
}
