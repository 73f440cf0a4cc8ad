package pgschedule

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/TGO0427/synercore-import-schedule-sub009/internal/apperr"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/models"
)

// ArchiveShipments snapshots the referenced shipments into a new archive
// record and flips their status to archived, all in one transaction.
// The record is written first and the insert is idempotent by file_name, so
// a retry after a partial failure converges instead of duplicating.
func (s *Storage) ArchiveShipments(ctx context.Context, fileName, archiveType string, reason *string, ids []uint64) (*models.ArchiveRecord, error) {
	if len(ids) == 0 {
		return nil, errors.Wrap(apperr.ErrEmptyInput, "archive shipments")
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
SELECT`+shipmentColumns+`
FROM shipments
WHERE id = ANY($1)
ORDER BY id
`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "select shipments to archive")
	}
	snapshot := make([]models.Shipment, 0, len(ids))
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan shipment")
		}
		snapshot = append(snapshot, *sh)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	if len(snapshot) == 0 {
		return nil, apperr.NotFoundf("no shipments match %v", ids)
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, errors.Wrap(err, "marshal payload")
	}

	_, err = tx.Exec(ctx, `
INSERT INTO archive_records (
  file_name, archive_type, reason, total_shipments, payload, archived_at
)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (file_name) DO NOTHING
`, fileName, archiveType, reason, len(snapshot), payload, now)
	if err != nil {
		return nil, errors.Wrap(err, "insert archive record")
	}

	_, err = tx.Exec(ctx, `
UPDATE shipments
SET status = $2, archived_at = now(), updated_at = now()
WHERE id = ANY($1)
`, ids, models.StatusArchived)
	if err != nil {
		return nil, errors.Wrap(err, "archive shipment statuses")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}

	return &models.ArchiveRecord{
		FileName:       fileName,
		ArchiveType:    archiveType,
		Reason:         reason,
		TotalShipments: len(snapshot),
		Payload:        snapshot,
		ArchivedAt:     now,
	}, nil
}

func (s *Storage) GetArchiveRecord(ctx context.Context, fileName string) (*models.ArchiveRecord, error) {
	var rec models.ArchiveRecord
	var payload []byte
	err := s.db.QueryRow(ctx, `
SELECT file_name, archive_type, reason, total_shipments, payload, archived_at
FROM archive_records
WHERE file_name = $1
`, fileName).Scan(&rec.FileName, &rec.ArchiveType, &rec.Reason, &rec.TotalShipments, &payload, &rec.ArchivedAt)
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFoundf("archive %q", fileName)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select archive record")
	}
	if err := json.Unmarshal(payload, &rec.Payload); err != nil {
		return nil, errors.Wrap(err, "unmarshal payload")
	}
	return &rec, nil
}

// ListArchiveRecords returns archive metadata without payloads, newest first.
func (s *Storage) ListArchiveRecords(ctx context.Context) ([]*models.ArchiveRecord, error) {
	rows, err := s.db.Query(ctx, `
SELECT file_name, archive_type, reason, total_shipments, archived_at
FROM archive_records
ORDER BY archived_at DESC
`)
	if err != nil {
		return nil, errors.Wrap(err, "select archive records")
	}
	defer rows.Close()

	var out []*models.ArchiveRecord
	for rows.Next() {
		var rec models.ArchiveRecord
		if err := rows.Scan(&rec.FileName, &rec.ArchiveType, &rec.Reason, &rec.TotalShipments, &rec.ArchivedAt); err != nil {
			return nil, errors.Wrap(err, "scan archive record")
		}
		out = append(out, &rec)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// RenameArchiveRecord changes only the human-facing key; payload and counts
// stay untouched.
func (s *Storage) RenameArchiveRecord(ctx context.Context, fileName, newFileName string) (*models.ArchiveRecord, error) {
	ct, err := s.db.Exec(ctx, `
UPDATE archive_records SET file_name = $2 WHERE file_name = $1
`, fileName, newFileName)
	if err != nil {
		return nil, errors.Wrap(err, "rename archive record")
	}
	if ct.RowsAffected() == 0 {
		return nil, apperr.NotFoundf("archive %q", fileName)
	}
	return s.GetArchiveRecord(ctx, newFileName)
}
