package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mertakgul/payflow/internal/models"
	"github.com/mertakgul/payflow/internal/money"
	"github.com/mertakgul/payflow/internal/repository"
)

type accountsRepo struct{ pool *pgxpool.Pool }

func (r *accountsRepo) Get(ctx context.Context, userID int64) (*models.Account, error) {
	var a models.Account
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, balance, initial_balance, version, updated_at
		   FROM accounts
		  WHERE user_id=$1`,
		userID,
	).Scan(&a.UserID, &a.Balance, &a.InitialBalance, &a.Version, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// casSQL bumps the version in the same statement as the balance write, so
// the fence check and the mutation are one atomic conditional update.
const casSQL = `
UPDATE accounts
   SET balance=$3, version=version+1, updated_at=now()
 WHERE user_id=$1 AND version=$2
RETURNING version`

func (r *accountsRepo) CompareAndSwap(ctx context.Context, userID, expectedVersion int64, newBalance money.Cents) (int64, error) {
	var v int64
	err := r.pool.QueryRow(ctx, casSQL, userID, expectedVersion, newBalance).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, repository.ErrVersionConflict
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

func (r *accountsRepo) TransferCommit(ctx context.Context, debit, credit repository.AccountWrite) error {
	// Rows are always touched in ascending user id so two transfers over
	// the same pair in opposite directions cannot deadlock.
	first, second := debit, credit
	if second.UserID < first.UserID {
		first, second = second, first
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadWrite})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, w := range []repository.AccountWrite{first, second} {
		var v int64
		err := tx.QueryRow(ctx, casSQL, w.UserID, w.ExpectedVersion, w.NewBalance).Scan(&v)
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrVersionConflict
		}
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *accountsRepo) ScanAll(ctx context.Context) ([]models.Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, balance, initial_balance, version, updated_at
		   FROM accounts
		  ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.UserID, &a.Balance, &a.InitialBalance, &a.Version, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
