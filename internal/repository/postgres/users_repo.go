package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mertakgul/payflow/internal/models"
	"github.com/mertakgul/payflow/internal/money"
	"github.com/mertakgul/payflow/internal/repository"
)

type usersRepo struct{ pool *pgxpool.Pool }

// mapUnique translates a unique-constraint violation on a contact table
// into the repository's taken errors.
func mapUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if strings.Contains(pgErr.ConstraintName, "email") {
			return repository.ErrEmailTaken
		}
		if strings.Contains(pgErr.ConstraintName, "phone") {
			return repository.ErrPhoneTaken
		}
	}
	return err
}

func (r *usersRepo) Create(ctx context.Context, u models.User, initialBalance money.Cents) (models.User, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.User{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx,
		`INSERT INTO users(name, date_of_birth, password_hash)
		 VALUES($1,$2,$3)
		 RETURNING id, created_at, updated_at`,
		u.Name, u.DateOfBirth, u.PasswordHash,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return models.User{}, err
	}

	// The account row is provisioned exactly once, here; initial_balance
	// is immutable afterwards.
	if _, err := tx.Exec(ctx,
		`INSERT INTO accounts(user_id, balance, initial_balance, version)
		 VALUES($1,$2,$2,1)`,
		u.ID, initialBalance,
	); err != nil {
		return models.User{}, err
	}

	for _, e := range u.Emails {
		if _, err := tx.Exec(ctx,
			`INSERT INTO user_emails(user_id, email) VALUES($1,$2)`, u.ID, e); err != nil {
			return models.User{}, mapUnique(err)
		}
	}
	for _, p := range u.Phones {
		if _, err := tx.Exec(ctx,
			`INSERT INTO user_phones(user_id, phone) VALUES($1,$2)`, u.ID, p); err != nil {
			return models.User{}, mapUnique(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.User{}, err
	}
	return u, nil
}

func (r *usersRepo) GetByID(ctx context.Context, id int64) (models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, date_of_birth, password_hash, created_at, updated_at
		   FROM users WHERE id=$1`, id,
	).Scan(&u.ID, &u.Name, &u.DateOfBirth, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, repository.ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	if err := r.loadContacts(ctx, &u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

func (r *usersRepo) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`SELECT user_id FROM user_emails WHERE email=$1`, email).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, repository.ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *usersRepo) Search(ctx context.Context, f repository.UserFilter) ([]models.User, error) {
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	q := `SELECT DISTINCT u.id, u.name, u.date_of_birth, u.password_hash, u.created_at, u.updated_at
	        FROM users u
	        LEFT JOIN user_emails e ON e.user_id = u.id
	        LEFT JOIN user_phones p ON p.user_id = u.id
	       WHERE 1=1`
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		q += " AND " + strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1)
	}
	if f.BornAfter != nil {
		add("u.date_of_birth > ?", *f.BornAfter)
	}
	if f.Phone != "" {
		add("p.phone = ?", f.Phone)
	}
	if f.Name != "" {
		add("u.name ILIKE ?", f.Name+"%")
	}
	if f.Email != "" {
		add("e.email = ?", f.Email)
	}
	args = append(args, limit, f.Offset)
	q += " ORDER BY u.id LIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.DateOfBirth, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := r.loadContacts(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *usersRepo) ReplaceContacts(ctx context.Context, id int64, emails, phones []string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if emails != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM user_emails WHERE user_id=$1`, id); err != nil {
			return err
		}
		for _, e := range emails {
			if _, err := tx.Exec(ctx,
				`INSERT INTO user_emails(user_id, email) VALUES($1,$2)`, id, e); err != nil {
				return mapUnique(err)
			}
		}
	}
	if phones != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM user_phones WHERE user_id=$1`, id); err != nil {
			return err
		}
		for _, p := range phones {
			if _, err := tx.Exec(ctx,
				`INSERT INTO user_phones(user_id, phone) VALUES($1,$2)`, id, p); err != nil {
				return mapUnique(err)
			}
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE users SET updated_at=now() WHERE id=$1`, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *usersRepo) loadContacts(ctx context.Context, u *models.User) error {
	rows, err := r.pool.Query(ctx,
		`SELECT email FROM user_emails WHERE user_id=$1 ORDER BY email`, u.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return err
		}
		u.Emails = append(u.Emails, e)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	prows, err := r.pool.Query(ctx,
		`SELECT phone FROM user_phones WHERE user_id=$1 ORDER BY phone`, u.ID)
	if err != nil {
		return err
	}
	defer prows.Close()
	for prows.Next() {
		var p string
		if err := prows.Scan(&p); err != nil {
			return err
		}
		u.Phones = append(u.Phones, p)
	}
	return prows.Err()
}
