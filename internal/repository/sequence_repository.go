package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// SequenceRepo hands out gap-tolerant, strictly increasing numbers for
// human-readable identifiers. The UPDATE takes a row lock, so concurrent
// transactions serialize on the counter until commit.
type SequenceRepo struct{ db *sql.DB }

func NewSequenceRepo(db *sql.DB) *SequenceRepo { return &SequenceRepo{db: db} }

// NextTx increments and returns the named counter, creating it at 1.
func (r *SequenceRepo) NextTx(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE sequences SET value = value + 1 WHERE name = ?`, name)
	if err != nil {
		return 0, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, err
	} else if n == 0 {
		if _, err := tx.ExecContext(ctx, `INSERT INTO sequences (name, value) VALUES (?, 1)`, name); err != nil {
			return 0, err
		}
		return 1, nil
	}
	var v int64
	if err := tx.QueryRowContext(ctx, `SELECT value FROM sequences WHERE name = ?`, name).Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

// BookingCode formats a booking sequence number, e.g. BK000123.
func BookingCode(n int64) string { return fmt.Sprintf("BK%06d", n) }

// InvoiceNumber formats an invoice number from the booking code.
func InvoiceNumber(bookingCode string) string { return "INV-" + bookingCode }
