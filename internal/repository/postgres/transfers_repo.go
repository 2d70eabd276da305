package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mertakgul/payflow/internal/models"
)

type transfersRepo struct{ pool *pgxpool.Pool }

func (r *transfersRepo) Create(ctx context.Context, t models.Transfer) (models.Transfer, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO transfers(id, from_user_id, to_user_id, amount, status)
		 VALUES($1,$2,$3,$4,$5)
		 RETURNING created_at`,
		t.ID, t.FromUserID, t.ToUserID, t.Amount, t.Status,
	).Scan(&t.CreatedAt)
	return t, err
}

func (r *transfersRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Transfer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, from_user_id, to_user_id, amount, status, created_at
		   FROM transfers
		  WHERE from_user_id=$1 OR to_user_id=$1
		  ORDER BY created_at DESC
		  LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transfer
	for rows.Next() {
		var t models.Transfer
		if err := rows.Scan(&t.ID, &t.FromUserID, &t.ToUserID, &t.Amount, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
