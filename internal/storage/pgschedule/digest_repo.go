package pgschedule

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/TGO0427/synercore-import-schedule-sub009/internal/models"
)

func (s *Storage) AppendDigestEntry(ctx context.Context, e *models.DigestQueueEntry) error {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	err := s.db.QueryRow(ctx, `
INSERT INTO digest_queue (user_id, event_type, shipment_id, event_data, created_at)
VALUES ($1,$2,$3,$4,$5)
RETURNING id
`, e.UserID, e.EventType, e.ShipmentID, e.EventData, created).Scan(&e.ID)
	if err != nil {
		return errors.Wrap(err, "insert digest entry")
	}
	e.CreatedAt = created
	return nil
}

// QueryUnprocessed returns the user's pending entries created at or after
// since, oldest first.
func (s *Storage) QueryUnprocessed(ctx context.Context, userID uint64, since time.Time) ([]*models.DigestQueueEntry, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, user_id, event_type, shipment_id, event_data, created_at, processed_at
FROM digest_queue
WHERE user_id = $1 AND processed_at IS NULL AND created_at >= $2
ORDER BY created_at ASC
`, userID, since.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "select unprocessed entries")
	}
	defer rows.Close()

	var out []*models.DigestQueueEntry
	for rows.Next() {
		var e models.DigestQueueEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.EventType, &e.ShipmentID, &e.EventData, &e.CreatedAt, &e.ProcessedAt); err != nil {
			return nil, errors.Wrap(err, "scan digest entry")
		}
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// MarkProcessed stamps the entries with one shared timestamp. Only pending
// rows are touched, so a redundant dispatch cycle cannot re-consume.
func (s *Storage) MarkProcessed(ctx context.Context, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx, `
UPDATE digest_queue SET processed_at = now()
WHERE id = ANY($1) AND processed_at IS NULL
`, ids)
	return errors.Wrap(err, "mark entries processed")
}

// DeleteOlderThan drops entries created before the cutoff regardless of
// processed_at. Stale unprocessed entries are lost by design.
func (s *Storage) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ct, err := s.db.Exec(ctx, `
DELETE FROM digest_queue WHERE created_at < $1
`, cutoff.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "delete old entries")
	}
	return ct.RowsAffected(), nil
}
