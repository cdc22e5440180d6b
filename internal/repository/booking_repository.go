package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/homestay-reservation/internal/model"
	"github.com/iliyamo/homestay-reservation/internal/pricing"
)

// BookingRepo persists bookings and their lines. Bookings are never
// deleted; every state change is a conditional UPDATE keyed on the row
// version (or on the expected status for sweeper updates) and increments
// the version, so two writers racing on the same booking cannot both win.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingSelect = `SELECT b.id, b.code, b.branch_id, b.staff_id, b.customer_id, c.email,
		b.status, b.payment_status, b.base_price, b.seasonal_surcharge, b.guest_surcharge,
		b.vat_amount, b.discount, b.total_amount, b.promotion_code, b.hold_expires_at,
		b.payment_expires_at, b.verification_code_hash, b.verification_expires_at, b.verified,
		b.payment_method, b.payment_ref, b.paid_amount, b.paid_at, b.hidden, b.version,
		b.created_at, b.updated_at
	FROM bookings b
	JOIN customers c ON c.id = b.customer_id`

func scanBooking(sc interface{ Scan(...any) error }) (*model.Booking, error) {
	var (
		b                            model.Booking
		staffID                      sql.NullInt64
		promo, codeHash, method, ref sql.NullString
		payExp, codeExp, paidAt      sql.NullTime
		paidAmount                   sql.Null[pricing.Decimal]
	)
	err := sc.Scan(&b.ID, &b.Code, &b.BranchID, &staffID, &b.CustomerID, &b.CustomerEmail,
		&b.Status, &b.PaymentStatus, &b.BasePrice, &b.SeasonalSurcharge, &b.GuestSurcharge,
		&b.VATAmount, &b.Discount, &b.TotalAmount, &promo, &b.HoldExpiresAt,
		&payExp, &codeHash, &codeExp, &b.Verified,
		&method, &ref, &paidAmount, &paidAt, &b.Hidden, &b.Version,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if staffID.Valid {
		id := uint64(staffID.Int64)
		b.StaffID = &id
	}
	b.PromotionCode = nullString(promo)
	b.CodeHash = nullString(codeHash)
	b.PaymentMethod = nullString(method)
	b.PaymentRef = nullString(ref)
	b.PaymentExpiresAt = nullTime(payExp)
	b.CodeExpiresAt = nullTime(codeExp)
	b.PaidAt = nullTime(paidAt)
	if paidAmount.Valid {
		v := paidAmount.V
		b.PaidAmount = &v
	}
	b.HoldExpiresAt = b.HoldExpiresAt.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// CreateTx inserts a new booking within the scope of an existing
// transaction and populates the generated ID. Lines are inserted
// separately with CreateLinesTx.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (code, branch_id, staff_id, customer_id, status, payment_status,
		base_price, seasonal_surcharge, guest_surcharge, vat_amount, discount, total_amount,
		promotion_code, hold_expires_at, verification_code_hash, verification_expires_at,
		verified, hidden, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		b.Code, b.BranchID, b.StaffID, b.CustomerID, b.Status, b.PaymentStatus,
		b.BasePrice, b.SeasonalSurcharge, b.GuestSurcharge, b.VATAmount, b.Discount, b.TotalAmount,
		b.PromotionCode, b.HoldExpiresAt.UTC(), b.CodeHash, utcPtr(b.CodeExpiresAt),
		b.Verified, b.Hidden, b.Version, b.CreatedAt.UTC(), b.UpdatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// CreateLinesTx inserts all lines of a booking in a single statement.
// Passing an empty slice has no effect and returns nil.
func (r *BookingRepo) CreateLinesTx(ctx context.Context, tx *sql.Tx, bookingID uint64, lines []model.BookingLine) error {
	if len(lines) == 0 {
		return nil
	}
	query := `INSERT INTO booking_lines (booking_id, room_id, check_in, check_out, adults, children, unit_price, line_total, status) VALUES `
	args := make([]any, 0, len(lines)*9)
	for i, l := range lines {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?, ?, ?, ?)"
		args = append(args, bookingID, l.RoomID, l.CheckIn.UTC(), l.CheckOut.UTC(),
			l.Adults, l.Children, l.UnitPrice, l.LineTotal, l.Status)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// GetTx loads a booking and its lines inside a transaction.
func (r *BookingRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	return r.get(ctx, tx, id)
}

// Get loads a booking and its lines.
func (r *BookingRepo) Get(ctx context.Context, id uint64) (*model.Booking, error) {
	return r.get(ctx, r.db, id)
}

func (r *BookingRepo) get(ctx context.Context, q querier, id uint64) (*model.Booking, error) {
	b, err := scanBooking(q.QueryRowContext(ctx, bookingSelect+` WHERE b.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	lines, err := r.lines(ctx, q, id)
	if err != nil {
		return nil, err
	}
	b.Lines = lines
	return b, nil
}

func (r *BookingRepo) lines(ctx context.Context, q querier, bookingID uint64) ([]model.BookingLine, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, booking_id, room_id, check_in, check_out, adults, children, unit_price,
			line_total, status, checked_in_at, checked_out_at
		 FROM booking_lines WHERE booking_id = ? ORDER BY id`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.BookingLine{}
	for rows.Next() {
		var (
			l           model.BookingLine
			inAt, outAt sql.NullTime
		)
		if err := rows.Scan(&l.ID, &l.BookingID, &l.RoomID, &l.CheckIn, &l.CheckOut, &l.Adults,
			&l.Children, &l.UnitPrice, &l.LineTotal, &l.Status, &inAt, &outAt); err != nil {
			return nil, err
		}
		l.CheckIn = l.CheckIn.UTC()
		l.CheckOut = l.CheckOut.UTC()
		l.CheckedInAt = nullTime(inAt)
		l.CheckedOutAt = nullTime(outAt)
		out = append(out, l)
	}
	return out, rows.Err()
}

// SetCodeTx replaces the verification code hash and expiry of a booking
// still at version.
func (r *BookingRepo) SetCodeTx(ctx context.Context, tx *sql.Tx, id, version uint64, hash string, expires, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET verification_code_hash = ?, verification_expires_at = ?,
			version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		hash, expires.UTC(), now.UTC(), id, version)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

// MarkVerifiedTx moves a HELD booking to CONFIRMED, clears the code and
// starts the payment countdown.
func (r *BookingRepo) MarkVerifiedTx(ctx context.Context, tx *sql.Tx, id, version uint64, paymentExpires, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET verified = ?, status = ?, verification_code_hash = NULL,
			verification_expires_at = NULL, payment_expires_at = ?,
			version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ? AND status = ?`,
		true, model.BookingConfirmed, paymentExpires.UTC(), now.UTC(), id, version, model.BookingHeld)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

// Payment carries the fields recorded when a booking is paid.
type Payment struct {
	Amount pricing.Decimal
	Method string
	Ref    string
	PaidAt time.Time
}

// MarkPaidTx records a payment and completes the booking. The booking must
// still be at version and not already paid.
func (r *BookingRepo) MarkPaidTx(ctx context.Context, tx *sql.Tx, id, version uint64, p Payment) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET payment_status = ?, status = ?, payment_method = ?, payment_ref = ?,
			paid_amount = ?, paid_at = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ? AND payment_status <> ?`,
		model.PaymentPaid, model.BookingCompleted, p.Method, p.Ref, p.Amount, p.PaidAt.UTC(),
		p.PaidAt.UTC(), id, version, model.PaymentPaid)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

// UpdateStatusTx sets status and payment status on a booking still at
// version.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id, version uint64, status, paymentStatus string, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, payment_status = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		status, paymentStatus, now.UTC(), id, version)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

// HideTx soft-deletes a booking from the customer's view.
func (r *BookingRepo) HideTx(ctx context.Context, tx *sql.Tx, id, version uint64, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET hidden = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		true, now.UTC(), id, version)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

// SetLineStatusTx moves every line of a booking whose status is one of from
// to status. stampCol, when set, is filled with now ("checked_in_at" or
// "checked_out_at").
func (r *BookingRepo) SetLineStatusTx(ctx context.Context, tx *sql.Tx, bookingID uint64, status string, from []string, stampCol string, now time.Time) (int64, error) {
	set := `status = ?`
	args := []any{status}
	switch stampCol {
	case "":
	case "checked_in_at", "checked_out_at":
		set += `, ` + stampCol + ` = ?`
		args = append(args, now.UTC())
	default:
		return 0, errors.New("repository: unknown line timestamp column " + stampCol)
	}
	q := `UPDATE booking_lines SET ` + set + ` WHERE booking_id = ?`
	args = append(args, bookingID)
	if len(from) > 0 {
		q += ` AND status IN (` + placeholders(len(from)) + `)`
		for _, s := range from {
			args = append(args, s)
		}
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Expired identifies a booking selected by a sweeper pass.
type Expired struct {
	ID           uint64
	LockDeadline time.Time
}

// ExpiredHoldsTx lists HELD, unpaid bookings whose hold deadline is at or
// before now.
func (r *BookingRepo) ExpiredHoldsTx(ctx context.Context, tx *sql.Tx, now time.Time) ([]Expired, error) {
	return r.expired(ctx, tx,
		`SELECT id, hold_expires_at, payment_expires_at FROM bookings
		 WHERE status = ? AND payment_status = ? AND hold_expires_at <= ? ORDER BY id`,
		model.BookingHeld, model.PaymentPending, now.UTC())
}

// ExpiredPaymentsTx lists CONFIRMED bookings still pending payment whose
// payment countdown is at or before now.
func (r *BookingRepo) ExpiredPaymentsTx(ctx context.Context, tx *sql.Tx, now time.Time) ([]Expired, error) {
	return r.expired(ctx, tx,
		`SELECT id, hold_expires_at, payment_expires_at FROM bookings
		 WHERE status = ? AND payment_status = ? AND payment_expires_at IS NOT NULL
		   AND payment_expires_at <= ? ORDER BY id`,
		model.BookingConfirmed, model.PaymentPending, now.UTC())
}

func (r *BookingRepo) expired(ctx context.Context, tx *sql.Tx, q string, args ...any) ([]Expired, error) {
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var out []Expired
	for rows.Next() {
		var (
			e    Expired
			hold time.Time
			pay  sql.NullTime
		)
		if scanErr := rows.Scan(&e.ID, &hold, &pay); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		e.LockDeadline = hold.UTC()
		if pay.Valid && pay.Time.After(hold) {
			e.LockDeadline = pay.Time.UTC()
		}
		out = append(out, e)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	return out, rows.Err()
}

// AbortTx moves a booking from status to ABORTED provided it is still
// pending payment. It reports whether the row changed, so a booking paid
// or verified concurrently is left alone.
func (r *BookingRepo) AbortTx(ctx context.Context, tx *sql.Tx, id uint64, status string, now time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND status = ? AND payment_status = ?`,
		model.BookingAborted, now.UTC(), id, status, model.PaymentPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListByCustomer returns the visible bookings of a customer, newest first.
func (r *BookingRepo) ListByCustomer(ctx context.Context, email string) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		bookingSelect+` WHERE c.email = ? AND b.hidden = ? ORDER BY b.id DESC`, email, false)
	if err != nil {
		return nil, err
	}
	out := []model.Booking{}
	for rows.Next() {
		b, scanErr := scanBooking(rows)
		if scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		out = append(out, *b)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	for i := range out {
		lines, err := r.lines(ctx, r.db, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Lines = lines
	}
	return out, nil
}
