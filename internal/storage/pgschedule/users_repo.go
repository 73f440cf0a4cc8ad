package pgschedule

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/TGO0427/synercore-import-schedule-sub009/internal/apperr"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/models"
)

func (s *Storage) CreateOrGetUser(ctx context.Context, username, email string) (*models.User, error) {
	now := time.Now().UTC()
	var id uint64
	err := s.db.QueryRow(ctx, `
INSERT INTO users (username, email, created_at)
VALUES ($1,$2,$3)
ON CONFLICT (username) DO UPDATE SET email = EXCLUDED.email
RETURNING id
`, username, email, now).Scan(&id)
	if err != nil {
		return nil, errors.Wrap(err, "insert user")
	}
	return s.GetUserByID(ctx, id)
}

func (s *Storage) GetUserByID(ctx context.Context, id uint64) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx, `
SELECT id, username, email, created_at FROM users WHERE id = $1
`, id).Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFoundf("user %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select user")
	}
	return &u, nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, username, email, created_at FROM users ORDER BY id
`)
	if err != nil {
		return nil, errors.Wrap(err, "select users")
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		out = append(out, &u)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
