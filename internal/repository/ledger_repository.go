package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/homestay-reservation/internal/model"
	"github.com/iliyamo/homestay-reservation/internal/pricing"
)

// LedgerRepo writes the append-only revenue and invoice records produced by
// a finalized payment.
type LedgerRepo struct{ db *sql.DB }

func NewLedgerRepo(db *sql.DB) *LedgerRepo { return &LedgerRepo{db: db} }

// CreateRevenueTx records revenue for a booking. The unique booking_id
// column rejects a second row for the same booking with ErrConflict.
func (r *LedgerRepo) CreateRevenueTx(ctx context.Context, tx *sql.Tx, rev *model.Revenue) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO revenues (booking_id, branch_id, amount, method, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		rev.BookingID, rev.BranchID, rev.Amount, rev.Method, rev.RecordedAt.UTC())
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rev.ID = uint64(id)
	return nil
}

// CountRevenue returns how many revenue rows exist for a booking.
func (r *LedgerRepo) CountRevenue(ctx context.Context, bookingID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM revenues WHERE booking_id = ?`, bookingID).Scan(&n)
	return n, err
}

// CreateInvoiceTx writes the invoice for a booking. ErrInvoiceUnavailable
// is returned when the schema has no invoices table.
func (r *LedgerRepo) CreateInvoiceTx(ctx context.Context, tx *sql.Tx, inv *model.Invoice) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO invoices (booking_id, invoice_no, amount, issued_at) VALUES (?, ?, ?, ?)`,
		inv.BookingID, inv.Number, inv.Amount, inv.IssuedAt.UTC())
	if err != nil {
		if isMissingTable(err) {
			return ErrInvoiceUnavailable
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	inv.ID = uint64(id)
	return nil
}

// InvoiceForBooking returns the invoice of a booking, or nil when none was
// written or the invoices table is absent.
func (r *LedgerRepo) InvoiceForBooking(ctx context.Context, bookingID uint64) (*model.Invoice, error) {
	var (
		inv    model.Invoice
		amount pricing.Decimal
		issued time.Time
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, booking_id, invoice_no, amount, issued_at FROM invoices WHERE booking_id = ?`, bookingID).
		Scan(&inv.ID, &inv.BookingID, &inv.Number, &amount, &issued)
	if errors.Is(err, sql.ErrNoRows) || isMissingTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	inv.Amount = amount
	inv.IssuedAt = issued.UTC()
	return &inv, nil
}
