package reservation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/homestay-reservation/internal/model"
	"github.com/iliyamo/homestay-reservation/internal/pricing"
	"github.com/iliyamo/homestay-reservation/internal/queue"
	"github.com/iliyamo/homestay-reservation/internal/repository"
)

const bookingSequence = "booking"

// CreateBooking holds every requested room and persists a HELD booking with
// a fresh verification code. Input is validated before any lock is taken.
// Once the transaction starts it runs to commit or full rollback even if
// the caller goes away. A *ConflictError names the rooms that could not be
// held; the caller should search again rather than resubmit.
func (s *Service) CreateBooking(ctx context.Context, req CreateBookingRequest, actor Actor) (*model.Booking, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	if err := checkLines(req.Lines); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	now := s.now()
	code, hash, err := s.newCode()
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}
	holdUntil := now.Add(s.cfg.HoldTTL)
	codeUntil := now.Add(s.cfg.CodeTTL)

	var (
		booking  *model.Booking
		customer *model.Customer
	)
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		// (1) fast fail on overlapping lines
		stays := make([]repository.Stay, 0, len(req.Lines))
		for _, l := range req.Lines {
			stays = append(stays, repository.Stay{RoomID: l.RoomID, CheckIn: l.CheckIn, CheckOut: l.CheckOut})
		}
		taken, err := s.rooms.ConflictingRoomsTx(ctx, tx, stays)
		if err != nil {
			return fmt.Errorf("availability: %w", err)
		}
		if len(taken) > 0 {
			return &ConflictError{RoomIDs: taken, Reason: "dates no longer available"}
		}

		// (2) branch
		branch, err := s.branches.GetTx(ctx, tx, req.BranchID)
		if errors.Is(err, repository.ErrNotFound) {
			return invalid("branch_id", "unknown branch")
		}
		if err != nil {
			return fmt.Errorf("branch: %w", err)
		}

		// (3) lock each room; the first failure aborts the whole hold
		rooms := make([]*model.Room, len(req.Lines))
		for i, l := range req.Lines {
			rm, err := s.rooms.GetTx(ctx, tx, l.RoomID)
			if errors.Is(err, repository.ErrNotFound) {
				return invalid(fmt.Sprintf("lines[%d].room_id", i), "unknown room")
			}
			if err != nil {
				return fmt.Errorf("room %d: %w", l.RoomID, err)
			}
			if s.onRoomRead != nil {
				s.onRoomRead(tx, rm)
			}
			if rm.BranchID != branch.ID {
				return invalid(fmt.Sprintf("lines[%d].room_id", i), "room belongs to another branch")
			}
			if rm.Status != model.RoomAvailable || rm.LockedAt(now) {
				return &ConflictError{RoomIDs: []uint64{rm.ID}, Reason: "room is held or occupied"}
			}
			if err := s.rooms.LockTx(ctx, tx, rm.ID, rm.Version, holdUntil); err != nil {
				if errors.Is(err, repository.ErrConflict) {
					return &ConflictError{RoomIDs: []uint64{rm.ID}, Reason: "room modified concurrently"}
				}
				return fmt.Errorf("lock room %d: %w", rm.ID, err)
			}
			rooms[i] = rm
		}

		// (4) customer
		customer, err = s.customers.ResolveTx(ctx, tx, req.Customer.FullName, req.Customer.Email, req.Customer.Phone, now)
		if err != nil {
			return fmt.Errorf("customer: %w", err)
		}

		// (5) price each line from stored rates only
		promo, err := s.promos.ActiveTx(ctx, tx, req.PromotionCode, now)
		if err != nil {
			return fmt.Errorf("promotion: %w", err)
		}
		var total pricing.Breakdown
		lines := make([]model.BookingLine, 0, len(req.Lines))
		for i, l := range req.Lines {
			bd, err := s.engine.Quote(pricing.Line{
				NightlyRate: rooms[i].NightlyRate,
				Capacity:    rooms[i].Capacity,
				CheckIn:     l.CheckIn,
				CheckOut:    l.CheckOut,
				Adults:      l.Adults,
				Children:    l.Children,
			}, promo)
			if err != nil {
				return invalid(fmt.Sprintf("lines[%d].check_out", i), err.Error())
			}
			total = total.Add(bd)
			lines = append(lines, model.BookingLine{
				RoomID:    l.RoomID,
				CheckIn:   l.CheckIn.UTC(),
				CheckOut:  l.CheckOut.UTC(),
				Adults:    l.Adults,
				Children:  l.Children,
				UnitPrice: rooms[i].NightlyRate,
				LineTotal: bd.Total,
				Status:    model.LineReserved,
			})
		}

		// (6) business identifier
		n, err := s.seqs.NextTx(ctx, tx, bookingSequence)
		if err != nil {
			return fmt.Errorf("booking code: %w", err)
		}

		// (7, 8) persist
		booking = &model.Booking{
			Code:          repository.BookingCode(n),
			BranchID:      branch.ID,
			CustomerID:    customer.ID,
			CustomerEmail: customer.Email,
			Status:        model.BookingHeld,
			PaymentStatus: model.PaymentPending,
			HoldExpiresAt: holdUntil,
			CodeHash:      &hash,
			CodeExpiresAt: &codeUntil,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if actor.IsStaff() && actor.UserID != 0 {
			id := actor.UserID
			booking.StaffID = &id
		}
		if promo != nil {
			booking.PromotionCode = &promo.Code
		}
		booking.SetPrice(total)
		if err := s.bookings.CreateTx(ctx, tx, booking); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		if err := s.bookings.CreateLinesTx(ctx, tx, booking.ID, lines); err != nil {
			return fmt.Errorf("insert lines: %w", err)
		}
		for i := range lines {
			lines[i].BookingID = booking.ID
		}
		booking.Lines = lines
		return nil
	})
	if err != nil {
		s.metrics.Hold(holdOutcome(err))
		return nil, err
	}
	s.metrics.Hold("held")
	s.log.Info("booking held", "booking_id", booking.ID, "code", booking.Code,
		"rooms", booking.RoomIDs(), "total", booking.TotalAmount.String())

	ev := s.staffEvent(queue.EventBookingHeld, booking)
	codeEv := queue.VerificationCodeEvent{
		BookingID:   booking.ID,
		BookingCode: booking.Code,
		Email:       customer.Email,
		FullName:    customer.FullName,
		Code:        code,
		ExpiresAt:   codeUntil,
	}
	s.afterCommit("verification_email", func(ctx context.Context, n Notifier) error {
		return n.SendVerificationCode(ctx, codeEv)
	})
	s.afterCommit("staff_notify", func(ctx context.Context, n Notifier) error {
		return n.NotifyStaff(ctx, ev)
	})
	return booking, nil
}

func holdOutcome(err error) string {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return "invalid"
	case errors.Is(err, repository.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

func (s *Service) staffEvent(typ string, b *model.Booking) queue.StaffEvent {
	return queue.StaffEvent{
		Type:        typ,
		BookingID:   b.ID,
		BookingCode: b.Code,
		BranchID:    b.BranchID,
		Email:       b.CustomerEmail,
		RoomIDs:     b.RoomIDs(),
		Total:       b.TotalAmount,
		OccurredAt:  s.now(),
	}
}

// Quote prices the requested lines with current rates and promotions
// without holding rooms.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	now := s.now()
	promo, err := s.promos.Active(ctx, req.PromotionCode, now)
	if err != nil {
		return nil, fmt.Errorf("promotion: %w", err)
	}
	q := &Quote{Lines: make([]pricing.Breakdown, 0, len(req.Lines))}
	if promo != nil {
		q.PromotionCode = promo.Code
	}
	for i, l := range req.Lines {
		rm, err := s.rooms.Get(ctx, l.RoomID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalid(fmt.Sprintf("lines[%d].room_id", i), "unknown room")
		}
		if err != nil {
			return nil, err
		}
		bd, err := s.engine.Quote(pricing.Line{
			NightlyRate: rm.NightlyRate,
			Capacity:    rm.Capacity,
			CheckIn:     l.CheckIn,
			CheckOut:    l.CheckOut,
			Adults:      l.Adults,
			Children:    l.Children,
		}, promo)
		if err != nil {
			return nil, invalid(fmt.Sprintf("lines[%d].check_out", i), err.Error())
		}
		q.Lines = append(q.Lines, bd)
		q.Total = q.Total.Add(bd)
	}
	return q, nil
}

// ListAvailableRooms returns rooms free for the whole interval.
func (s *Service) ListAvailableRooms(ctx context.Context, q AvailabilityQuery) ([]model.Room, error) {
	if q.CheckIn.IsZero() || q.CheckOut.IsZero() {
		return nil, invalid("check_in", "check_in and check_out are required")
	}
	if !q.CheckOut.After(q.CheckIn) {
		return nil, invalid("check_out", "must be after check_in")
	}
	if q.MinCapacity < 0 {
		return nil, invalid("min_capacity", "must not be negative")
	}
	return s.rooms.ListAvailable(ctx, repository.AvailabilityFilter{
		BranchID:    q.BranchID,
		CheckIn:     q.CheckIn,
		CheckOut:    q.CheckOut,
		MinCapacity: q.MinCapacity,
	}, s.now())
}
