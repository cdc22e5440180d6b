// Package sweeper reclaims bookings and room locks whose deadlines have
// passed. It is the only place deadlines are enforced.
package sweeper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/homestay-reservation/internal/metrics"
	"github.com/iliyamo/homestay-reservation/internal/model"
	"github.com/iliyamo/homestay-reservation/internal/repository"
)

// Pass names used in logs and metrics.
const (
	PassHolds    = "holds"
	PassPayments = "payments"
	PassLocks    = "locks"
)

// Config controls how often the sweeper runs and what it reports to.
type Config struct {
	Interval time.Duration
	Now      func() time.Time
	Logger   *slog.Logger
	Metrics  *metrics.Reservation
}

// Result counts the rows changed by one RunOnce.
type Result struct {
	AbortedHolds    int64
	AbortedPayments int64
	ReleasedLocks   int64
}

// Sweeper aborts lapsed bookings and releases expired room locks.
type Sweeper struct {
	db       *sql.DB
	bookings *repository.BookingRepo
	rooms    *repository.RoomRepo
	cfg      Config
	log      *slog.Logger
}

// New returns a Sweeper over db. Interval defaults to five minutes.
func New(db *sql.DB, cfg Config) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Sweeper{
		db:       db,
		bookings: repository.NewBookingRepo(db),
		rooms:    repository.NewRoomRepo(db),
		cfg:      cfg,
		log:      cfg.Logger.With("component", "sweeper"),
	}
}

// Start runs a sweep immediately and then every Interval until ctx is
// cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.log.Info("sweeper started", "interval", s.cfg.Interval.String())
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("sweep failed", "err", err)
		}
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce executes every pass, each in its own transaction. A failing pass
// does not stop the others; their errors are joined.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	start := time.Now()
	now := s.cfg.Now().UTC().Truncate(time.Second)
	var (
		res  Result
		errs []error
	)

	n, err := s.abortExpired(ctx, PassHolds, model.BookingHeld, now, s.bookings.ExpiredHoldsTx)
	if err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", PassHolds, err))
	}
	res.AbortedHolds = n

	n, err = s.abortExpired(ctx, PassPayments, model.BookingConfirmed, now, s.bookings.ExpiredPaymentsTx)
	if err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", PassPayments, err))
	}
	res.AbortedPayments = n

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		n, err := s.rooms.ReleaseExpiredTx(ctx, tx, now)
		res.ReleasedLocks = n
		return err
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", PassLocks, err))
		res.ReleasedLocks = 0
	}

	s.cfg.Metrics.Swept(PassHolds, res.AbortedHolds)
	s.cfg.Metrics.Swept(PassPayments, res.AbortedPayments)
	s.cfg.Metrics.Swept(PassLocks, res.ReleasedLocks)
	s.cfg.Metrics.SweepDuration(time.Since(start))
	if res != (Result{}) {
		s.log.Info("sweep finished",
			"aborted_holds", res.AbortedHolds,
			"aborted_payments", res.AbortedPayments,
			"released_locks", res.ReleasedLocks)
	}
	return res, errors.Join(errs...)
}

type lister func(ctx context.Context, tx *sql.Tx, now time.Time) ([]repository.Expired, error)

// abortExpired aborts every booking returned by list that is still in
// status and unpaid, cancels its lines and releases the locks it owns.
func (s *Sweeper) abortExpired(ctx context.Context, pass, status string, now time.Time, list lister) (int64, error) {
	var aborted int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		expired, err := list(ctx, tx, now)
		if err != nil {
			return err
		}
		for _, e := range expired {
			ok, err := s.bookings.AbortTx(ctx, tx, e.ID, status, now)
			if err != nil {
				return fmt.Errorf("abort booking %d: %w", e.ID, err)
			}
			if !ok {
				continue
			}
			if _, err := s.bookings.SetLineStatusTx(ctx, tx, e.ID, model.LineCancelled, nil, "", now); err != nil {
				return fmt.Errorf("cancel lines of %d: %w", e.ID, err)
			}
			if _, err := s.rooms.ReleaseForBookingTx(ctx, tx, e.ID, e.LockDeadline); err != nil {
				return fmt.Errorf("release locks of %d: %w", e.ID, err)
			}
			s.log.Debug("booking aborted", "pass", pass, "booking_id", e.ID)
			aborted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return aborted, nil
}

func (s *Sweeper) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
