// Package reservation turns a guest's room and date selection into a held
// booking, verifies the guest with a one-time code and finalizes payment.
//
// Every operation that touches shared state runs in one database
// transaction. Rooms are protected by a compare-and-swap on rooms.version
// rather than in-memory locks, so any number of Service instances may run
// against the same database. Emails and staff notifications are sent after
// commit on a best-effort basis and never affect the booking.
package reservation

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/homestay-reservation/internal/metrics"
	"github.com/iliyamo/homestay-reservation/internal/model"
	"github.com/iliyamo/homestay-reservation/internal/pricing"
	"github.com/iliyamo/homestay-reservation/internal/queue"
	"github.com/iliyamo/homestay-reservation/internal/repository"
)

// Notifier delivers post-commit side effects. Implementations may block;
// they are always called off the request path.
type Notifier interface {
	SendVerificationCode(ctx context.Context, ev queue.VerificationCodeEvent) error
	NotifyStaff(ctx context.Context, ev queue.StaffEvent) error
}

// Config holds the timing and hashing parameters of the service.
type Config struct {
	HoldTTL           time.Duration
	CodeTTL           time.Duration
	PaymentTTL        time.Duration
	BcryptCost        int
	SideEffectTimeout time.Duration
	Now               func() time.Time
	Logger            *slog.Logger
	Metrics           *metrics.Reservation
}

func (c *Config) defaults() {
	if c.HoldTTL <= 0 {
		c.HoldTTL = 15 * time.Minute
	}
	if c.CodeTTL <= 0 {
		c.CodeTTL = 5 * time.Minute
	}
	if c.PaymentTTL <= 0 {
		c.PaymentTTL = 10 * time.Minute
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = bcrypt.DefaultCost
	}
	if c.SideEffectTimeout <= 0 {
		c.SideEffectTimeout = 30 * time.Second
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Service is the reservation orchestrator.
type Service struct {
	db        *sql.DB
	branches  *repository.BranchRepo
	rooms     *repository.RoomRepo
	bookings  *repository.BookingRepo
	customers *repository.CustomerRepo
	promos    *repository.PromotionRepo
	seqs      *repository.SequenceRepo
	ledger    *repository.LedgerRepo
	engine    *pricing.Engine
	notifier  Notifier
	cfg       Config
	log       *slog.Logger
	metrics   *metrics.Reservation

	wg sync.WaitGroup

	// Called on rows read inside a transaction, before any write. Nil
	// outside tests, which use them to interleave a concurrent commit.
	onBookingRead func(b *model.Booking)
	onRoomRead    func(tx *sql.Tx, rm *model.Room)
}

// NewService wires the repositories over db. notifier may be nil, in which
// case side effects are skipped.
func NewService(db *sql.DB, engine *pricing.Engine, notifier Notifier, cfg Config) *Service {
	if db == nil || engine == nil {
		panic("nil dependency passed to reservation.NewService")
	}
	cfg.defaults()
	return &Service{
		db:        db,
		branches:  repository.NewBranchRepo(db),
		rooms:     repository.NewRoomRepo(db),
		bookings:  repository.NewBookingRepo(db),
		customers: repository.NewCustomerRepo(db),
		promos:    repository.NewPromotionRepo(db),
		seqs:      repository.NewSequenceRepo(db),
		ledger:    repository.NewLedgerRepo(db),
		engine:    engine,
		notifier:  notifier,
		cfg:       cfg,
		log:       cfg.Logger.With("component", "reservation"),
		metrics:   cfg.Metrics,
	}
}

// now is truncated to whole seconds so stored and compared timestamps agree
// across drivers.
func (s *Service) now() time.Time { return s.cfg.Now().UTC().Truncate(time.Second) }

// Wait blocks until all pending post-commit side effects have finished.
func (s *Service) Wait() { s.wg.Wait() }

// afterCommit runs fn in the background with its own deadline. Errors and
// panics are logged and dropped.
func (s *Service) afterCommit(effect string, fn func(ctx context.Context, n Notifier) error) {
	if s.notifier == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("post-commit side effect panicked", "effect", effect, "panic", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SideEffectTimeout)
		defer cancel()
		if err := fn(ctx, s.notifier); err != nil {
			s.log.Warn("post-commit side effect failed", "effect", effect, "err", err)
		}
	}()
}

// withTx runs fn in a transaction that is committed only if fn returns nil.
func (s *Service) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// getBookingTx reads a booking inside tx.
func (s *Service) getBookingTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	b, err := s.bookings.GetTx(ctx, tx, id)
	if err == nil && s.onBookingRead != nil {
		s.onBookingRead(b)
	}
	return b, err
}

// newCode returns a 6-digit one-time code and its bcrypt hash.
func (s *Service) newCode() (string, string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", "", err
	}
	code := fmt.Sprintf("%06d", n.Int64())
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cfg.BcryptCost)
	if err != nil {
		return "", "", err
	}
	return code, string(hash), nil
}
