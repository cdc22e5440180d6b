package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/homestay-reservation/internal/model"
	"github.com/iliyamo/homestay-reservation/internal/pricing"
)

// RoomRepo provides data access to rooms and their temporary locks. A lock
// is the locked_until column; every lock, extension and release increments
// rooms.version so that concurrent writers can detect each other. All
// timestamps are UTC and supplied by the caller rather than read from the
// database clock.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo returns a new RoomRepo bound to the provided database.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

const roomSelect = `SELECT r.id, r.branch_id, r.room_class_id, c.name, r.number, r.status,
		c.nightly_rate, c.capacity, r.locked_until, r.version
	FROM rooms r
	JOIN room_classes c ON c.id = r.room_class_id`

func scanRoom(sc interface{ Scan(...any) error }) (model.Room, error) {
	var (
		rm     model.Room
		locked sql.NullTime
	)
	err := sc.Scan(&rm.ID, &rm.BranchID, &rm.ClassID, &rm.ClassName, &rm.Number, &rm.Status,
		&rm.NightlyRate, &rm.Capacity, &locked, &rm.Version)
	if err != nil {
		return rm, err
	}
	if locked.Valid {
		t := locked.Time.UTC()
		rm.LockedUntil = &t
	}
	return rm, nil
}

// GetTx reads a room together with its class rate and capacity. The
// returned Version is the token to pass to LockTx.
func (r *RoomRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Room, error) {
	rm, err := scanRoom(tx.QueryRowContext(ctx, roomSelect+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rm, nil
}

// Get is GetTx outside a transaction.
func (r *RoomRepo) Get(ctx context.Context, id uint64) (*model.Room, error) {
	rm, err := scanRoom(r.db.QueryRowContext(ctx, roomSelect+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rm, nil
}

// Stay is a room and the half-open interval requested for it.
type Stay struct {
	RoomID   uint64
	CheckIn  time.Time
	CheckOut time.Time
}

// ConflictingRoomsTx returns the rooms among stays that already have a
// non-cancelled booking line overlapping the requested interval. Two
// intervals overlap when existing.check_in < requested.check_out and
// existing.check_out > requested.check_in. An empty result means every
// stay is free as of this read; it is a fast pre-filter, not a lock.
func (r *RoomRepo) ConflictingRoomsTx(ctx context.Context, tx *sql.Tx, stays []Stay) ([]uint64, error) {
	if len(stays) == 0 {
		return nil, nil
	}
	conds := make([]string, 0, len(stays))
	args := make([]any, 0, len(stays)*3+1)
	args = append(args, model.LineCancelled)
	for _, s := range stays {
		conds = append(conds, "(room_id = ? AND check_in < ? AND check_out > ?)")
		args = append(args, s.RoomID, s.CheckOut.UTC(), s.CheckIn.UTC())
	}
	q := `SELECT DISTINCT room_id FROM booking_lines WHERE status <> ? AND (` +
		strings.Join(conds, " OR ") + `) ORDER BY room_id`
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for rows.Next() {
		var id uint64
		if scanErr := rows.Scan(&id); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		ids = append(ids, id)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	return ids, rows.Err()
}

// LockTx sets locked_until on a room and increments its version, but only
// if the version still equals the one the caller read. Zero affected rows
// means another transaction changed the room in between and ErrConflict
// is returned; callers must abort rather than retry.
func (r *RoomRepo) LockTx(ctx context.Context, tx *sql.Tx, id, version uint64, until time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE rooms SET locked_until = ?, version = version + 1 WHERE id = ? AND version = ?`,
		until.UTC(), id, version)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

// ExtendForBookingTx moves the locks a booking still owns from its old
// deadline to a later one. Locks taken by a later holder are untouched.
func (r *RoomRepo) ExtendForBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64, from, to time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE rooms SET locked_until = ?, version = version + 1
		 WHERE locked_until IS NOT NULL AND locked_until <= ?
		   AND id IN (SELECT room_id FROM booking_lines WHERE booking_id = ?)`,
		to.UTC(), from.UTC(), bookingID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReleaseForBookingTx clears the locks on a booking's rooms. Only locks not
// later than deadline are cleared, so a room re-locked by another booking
// after this one's lock lapsed keeps its new holder.
func (r *RoomRepo) ReleaseForBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64, deadline time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE rooms SET locked_until = NULL, version = version + 1
		 WHERE locked_until IS NOT NULL AND locked_until <= ?
		   AND id IN (SELECT room_id FROM booking_lines WHERE booking_id = ?)`,
		deadline.UTC(), bookingID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReleaseExpiredTx clears every lock whose deadline has passed regardless
// of owner and returns how many rooms were released.
func (r *RoomRepo) ReleaseExpiredTx(ctx context.Context, tx *sql.Tx, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE rooms SET locked_until = NULL, version = version + 1
		 WHERE locked_until IS NOT NULL AND locked_until <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetStatusForBookingTx sets the status of every room on a booking.
func (r *RoomRepo) SetStatusForBookingTx(ctx context.Context, tx *sql.Tx, bookingID uint64, status string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE rooms SET status = ?, version = version + 1
		 WHERE id IN (SELECT room_id FROM booking_lines WHERE booking_id = ?)`,
		status, bookingID)
	return err
}

// AvailabilityFilter narrows ListAvailable. Zero values mean "any".
type AvailabilityFilter struct {
	BranchID    uint64
	CheckIn     time.Time
	CheckOut    time.Time
	MinCapacity int
}

// ListAvailable returns rooms that are in service, not under a live lock at
// now and have no non-cancelled line overlapping the requested interval.
func (r *RoomRepo) ListAvailable(ctx context.Context, f AvailabilityFilter, now time.Time) ([]model.Room, error) {
	q := roomSelect + ` WHERE r.status = ? AND (r.locked_until IS NULL OR r.locked_until <= ?)`
	args := []any{model.RoomAvailable, now.UTC()}
	if f.BranchID != 0 {
		q += ` AND r.branch_id = ?`
		args = append(args, f.BranchID)
	}
	if f.MinCapacity > 0 {
		q += ` AND c.capacity >= ?`
		args = append(args, f.MinCapacity)
	}
	q += ` AND NOT EXISTS (SELECT 1 FROM booking_lines bl
		WHERE bl.room_id = r.id AND bl.status <> ? AND bl.check_in < ? AND bl.check_out > ?)
		ORDER BY r.branch_id, r.number`
	args = append(args, model.LineCancelled, f.CheckOut.UTC(), f.CheckIn.UTC())

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	rooms := []model.Room{}
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, rm)
	}
	return rooms, rows.Err()
}

// CreateClass inserts a room class and returns its id.
func (r *RoomRepo) CreateClass(ctx context.Context, name string, rate pricing.Decimal, capacity int) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO room_classes (name, nightly_rate, capacity) VALUES (?, ?, ?)`, name, rate, capacity)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return uint64(id), err
}

// Create inserts an available, unlocked room and returns its id.
func (r *RoomRepo) Create(ctx context.Context, branchID, classID uint64, number string) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO rooms (branch_id, room_class_id, number, status, version) VALUES (?, ?, ?, ?, 0)`,
		branchID, classID, number, model.RoomAvailable)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return uint64(id), err
}
