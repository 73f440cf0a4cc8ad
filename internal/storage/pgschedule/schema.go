package pgschedule

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS shipments (
  id BIGSERIAL PRIMARY KEY,
  order_ref TEXT NOT NULL,
  supplier TEXT NOT NULL,
  status TEXT NOT NULL,
  expected_arrival_at TIMESTAMPTZ NULL,
  notes TEXT NULL,
  rejection_reason TEXT NULL,
  inspected_by TEXT NULL,
  archived_at TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (order_ref, supplier)
)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_status ON shipments(status)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_status_updated_at ON shipments(status, updated_at)`,
		`
CREATE TABLE IF NOT EXISTS archive_records (
  file_name TEXT PRIMARY KEY,
  archive_type TEXT NOT NULL,
  reason TEXT NULL,
  total_shipments INT NOT NULL,
  payload JSONB NOT NULL,
  archived_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  email TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS notification_preferences (
  user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
  categories JSONB NOT NULL,
  email_enabled BOOLEAN NOT NULL DEFAULT TRUE,
  email_frequency TEXT NOT NULL DEFAULT 'immediate',
  email_address TEXT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS digest_queue (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  event_type TEXT NOT NULL,
  shipment_id BIGINT NULL,
  event_data JSONB NULL,
  created_at TIMESTAMPTZ NOT NULL,
  processed_at TIMESTAMPTZ NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_digest_queue_user_pending ON digest_queue(user_id, processed_at, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_digest_queue_created_at ON digest_queue(created_at)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
