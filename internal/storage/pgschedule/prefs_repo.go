package pgschedule

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/TGO0427/synercore-import-schedule-sub009/internal/models"
)

// GetPreference returns (nil, nil) for an absent row; the resolver
// synthesizes the default in that case.
func (s *Storage) GetPreference(ctx context.Context, userID uint64) (*models.NotificationPreference, error) {
	var p models.NotificationPreference
	var categories []byte
	err := s.db.QueryRow(ctx, `
SELECT user_id, categories, email_enabled, email_frequency, email_address, updated_at
FROM notification_preferences
WHERE user_id = $1
`, userID).Scan(&p.UserID, &categories, &p.EmailEnabled, &p.EmailFrequency, &p.EmailAddress, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select preference")
	}
	if err := json.Unmarshal(categories, &p.Categories); err != nil {
		return nil, errors.Wrap(err, "unmarshal categories")
	}
	return &p, nil
}

// UpsertPreference writes the full field set, last write wins.
func (s *Storage) UpsertPreference(ctx context.Context, p *models.NotificationPreference) (*models.NotificationPreference, error) {
	categories, err := json.Marshal(p.Categories)
	if err != nil {
		return nil, errors.Wrap(err, "marshal categories")
	}

	_, err = s.db.Exec(ctx, `
INSERT INTO notification_preferences (
  user_id, categories, email_enabled, email_frequency, email_address, updated_at
)
VALUES ($1,$2,$3,$4,$5, now())
ON CONFLICT (user_id)
DO UPDATE SET
  categories = EXCLUDED.categories,
  email_enabled = EXCLUDED.email_enabled,
  email_frequency = EXCLUDED.email_frequency,
  email_address = EXCLUDED.email_address,
  updated_at = now()
`, p.UserID, categories, p.EmailEnabled, p.EmailFrequency, p.EmailAddress)
	if err != nil {
		return nil, errors.Wrap(err, "upsert preference")
	}

	return s.GetPreference(ctx, p.UserID)
}

// ListUsersByFrequency returns users whose stored preference matches the
// period. Users without a stored row default to immediate, so they are
// intentionally excluded from daily/weekly runs.
func (s *Storage) ListUsersByFrequency(ctx context.Context, frequency string) ([]*models.User, error) {
	rows, err := s.db.Query(ctx, `
SELECT u.id, u.username, u.email, u.created_at
FROM users u
JOIN notification_preferences p ON p.user_id = u.id
WHERE p.email_frequency = $1 AND p.email_enabled
ORDER BY u.id
`, frequency)
	if err != nil {
		return nil, errors.Wrap(err, "select users by frequency")
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
