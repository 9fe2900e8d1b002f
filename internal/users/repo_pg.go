package users

import (
	"context"
	"database/sql"
	"errors"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Upsert(ctx context.Context, user User) (User, error) {
	const query = `
INSERT INTO users (id, google_id, email, name, picture, is_premium, joined_at, updated_at)
VALUES ($1, $2, $3, $4, $5, false, now(), now())
ON CONFLICT (id) DO UPDATE SET
  name = EXCLUDED.name,
  picture = EXCLUDED.picture,
  updated_at = CASE
    WHEN users.name IS DISTINCT FROM EXCLUDED.name OR users.picture IS DISTINCT FROM EXCLUDED.picture THEN now()
    ELSE users.updated_at
  END
RETURNING email, is_premium, joined_at, updated_at`
	var email sql.NullString
	err := r.DB.QueryRowContext(ctx, query,
		user.ID,
		user.GoogleID,
		nullableString(user.Email),
		nullableString(user.Name),
		nullableString(user.Picture),
	).Scan(&email, &user.IsPremium, &user.JoinedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	if email.Valid {
		user.Email = email.String
	}
	return user, nil
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	const query = `
SELECT id, google_id, email, name, picture, is_premium, joined_at, updated_at
FROM users
WHERE id = $1
LIMIT 1`
	var user User
	var email sql.NullString
	var name sql.NullString
	var picture sql.NullString
	err := r.DB.QueryRowContext(ctx, query, userID).Scan(
		&user.ID,
		&user.GoogleID,
		&email,
		&name,
		&picture,
		&user.IsPremium,
		&user.JoinedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	user.Email = email.String
	user.Name = name.String
	user.Picture = picture.String
	return user, nil
}

func (r *PGRepo) SetPremium(ctx context.Context, userID string, premium bool) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET is_premium = $1, updated_at = now() WHERE id = $2`, premium, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
