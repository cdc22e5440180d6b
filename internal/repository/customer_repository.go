package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/homestay-reservation/internal/model"
)

type CustomerRepo struct{ db *sql.DB }

func NewCustomerRepo(db *sql.DB) *CustomerRepo { return &CustomerRepo{db: db} }

// NormalizeEmail lower-cases and trims an address the way it is stored.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// GetByEmailTx fetches a customer by normalized email.
func (r *CustomerRepo) GetByEmailTx(ctx context.Context, tx *sql.Tx, email string) (*model.Customer, error) {
	var c model.Customer
	err := tx.QueryRowContext(ctx,
		"SELECT id, full_name, email, phone, created_at FROM customers WHERE email = ? LIMIT 1",
		NormalizeEmail(email)).Scan(&c.ID, &c.FullName, &c.Email, &c.Phone, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ResolveTx returns the customer with the given email, creating it when
// absent. Existing name and phone are kept.
func (r *CustomerRepo) ResolveTx(ctx context.Context, tx *sql.Tx, fullName, email, phone string, now time.Time) (*model.Customer, error) {
	c, err := r.GetByEmailTx(ctx, tx, email)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	email = NormalizeEmail(email)
	res, err := tx.ExecContext(ctx,
		"INSERT INTO customers (full_name, email, phone, created_at) VALUES (?,?,?,?)",
		strings.TrimSpace(fullName), email, strings.TrimSpace(phone), now.UTC())
	if err != nil {
		// lost a race with another first booking for the same address
		if isDuplicateKey(err) {
			return r.GetByEmailTx(ctx, tx, email)
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &model.Customer{ID: uint64(id), FullName: strings.TrimSpace(fullName), Email: email,
		Phone: strings.TrimSpace(phone), CreatedAt: now.UTC()}, nil
}
