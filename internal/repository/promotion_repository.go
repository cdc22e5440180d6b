package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/homestay-reservation/internal/pricing"
)

// PromotionRepo looks up discount codes.
type PromotionRepo struct{ db *sql.DB }

func NewPromotionRepo(db *sql.DB) *PromotionRepo { return &PromotionRepo{db: db} }

const promotionActive = `SELECT code, kind, value FROM promotions
	WHERE code = ? AND active = ?
	  AND (valid_from IS NULL OR valid_from <= ?)
	  AND (valid_to IS NULL OR valid_to > ?)`

// ActiveTx returns the promotion for code if it is active at at. Unknown,
// inactive and out-of-window codes yield (nil, nil): they price as no
// discount rather than failing the booking.
func (r *PromotionRepo) ActiveTx(ctx context.Context, tx *sql.Tx, code string, at time.Time) (*pricing.Promotion, error) {
	return r.active(ctx, tx, code, at)
}

// Active is ActiveTx outside a transaction, used for quotes.
func (r *PromotionRepo) Active(ctx context.Context, code string, at time.Time) (*pricing.Promotion, error) {
	return r.active(ctx, r.db, code, at)
}

func (r *PromotionRepo) active(ctx context.Context, q querier, code string, at time.Time) (*pricing.Promotion, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, nil
	}
	var p pricing.Promotion
	err := q.QueryRowContext(ctx, promotionActive, code, true, at.UTC(), at.UTC()).
		Scan(&p.Code, &p.Kind, &p.Value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a promotion. validFrom and validTo may be nil.
func (r *PromotionRepo) Create(ctx context.Context, code, kind string, value pricing.Decimal, validFrom, validTo *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO promotions (code, kind, value, active, valid_from, valid_to) VALUES (?, ?, ?, ?, ?, ?)`,
		strings.ToUpper(strings.TrimSpace(code)), kind, value, true, utcPtr(validFrom), utcPtr(validTo))
	return err
}
