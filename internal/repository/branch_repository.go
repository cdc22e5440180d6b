package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/homestay-reservation/internal/model"
)

type BranchRepo struct{ db *sql.DB }

func NewBranchRepo(db *sql.DB) *BranchRepo { return &BranchRepo{db: db} }

// GetTx fetches a branch by id.
func (r *BranchRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Branch, error) {
	var b model.Branch
	err := tx.QueryRowContext(ctx, `SELECT id, code, name FROM branches WHERE id = ?`, id).
		Scan(&b.ID, &b.Code, &b.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Create inserts a branch and returns its id.
func (r *BranchRepo) Create(ctx context.Context, code, name string) (uint64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO branches (code, name) VALUES (?, ?)`, code, name)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return uint64(id), err
}
