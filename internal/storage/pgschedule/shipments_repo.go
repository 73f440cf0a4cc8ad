package pgschedule

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/TGO0427/synercore-import-schedule-sub009/internal/apperr"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/models"
)

const shipmentColumns = `
  id, order_ref, supplier, status,
  expected_arrival_at, notes, rejection_reason, inspected_by,
  archived_at, created_at, updated_at`

func scanShipment(row pgx.Row) (*models.Shipment, error) {
	var sh models.Shipment
	if err := row.Scan(
		&sh.ID, &sh.OrderRef, &sh.Supplier, &sh.Status,
		&sh.ExpectedArrivalAt, &sh.Notes, &sh.RejectionReason, &sh.InspectedBy,
		&sh.ArchivedAt, &sh.CreatedAt, &sh.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &sh, nil
}

func (s *Storage) CreateOrGetShipments(ctx context.Context, items []models.ShipmentCreateInput) ([]*models.Shipment, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]uint64, 0, len(items))
	for _, it := range items {
		status := it.Status
		if status == "" {
			status = models.StatusPlannedSeafreight
		}
		var id uint64
		err := tx.QueryRow(ctx, `
INSERT INTO shipments (
  order_ref, supplier, status, expected_arrival_at, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$5)
ON CONFLICT (order_ref, supplier)
DO UPDATE SET updated_at = shipments.updated_at
RETURNING id
`, it.OrderRef, it.Supplier, status, it.ExpectedArrivalAt, now).Scan(&id)
		if err != nil {
			return nil, errors.Wrap(err, "insert shipment")
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}

	return s.GetShipmentsByIDs(ctx, ids)
}

func (s *Storage) GetShipmentsByIDs(ctx context.Context, ids []uint64) ([]*models.Shipment, error) {
	if len(ids) == 0 {
		return []*models.Shipment{}, nil
	}

	rows, err := s.db.Query(ctx, `
SELECT`+shipmentColumns+`
FROM shipments
WHERE id = ANY($1)
ORDER BY id
`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "select shipments")
	}
	defer rows.Close()

	out := make([]*models.Shipment, 0, len(ids))
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan shipment")
		}
		out = append(out, sh)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) GetShipmentByID(ctx context.Context, id uint64) (*models.Shipment, error) {
	sh, err := scanShipment(s.db.QueryRow(ctx, `
SELECT`+shipmentColumns+`
FROM shipments
WHERE id = $1
`, id))
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFoundf("shipment %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select shipment")
	}
	return sh, nil
}

func (s *Storage) FindShipments(ctx context.Context, filter models.ShipmentFilter) ([]*models.Shipment, error) {
	q := `SELECT` + shipmentColumns + ` FROM shipments WHERE 1=1`
	args := []any{}

	if len(filter.Statuses) > 0 {
		args = append(args, filter.Statuses)
		q += fmt.Sprintf(` AND status = ANY($%d)`, len(args))
	}
	if filter.Supplier != "" {
		args = append(args, filter.Supplier)
		q += fmt.Sprintf(` AND supplier = $%d`, len(args))
	}
	if filter.ExcludeArchived {
		q += ` AND status <> '` + models.StatusArchived + `'`
	}
	q += ` ORDER BY id`

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select shipments")
	}
	defer rows.Close()

	var out []*models.Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan shipment")
		}
		out = append(out, sh)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// UpdateShipmentStatus applies the status and metadata in one UPDATE.
// archived_at is set exactly when the target is archived and cleared
// otherwise, keeping the status/archived_at invariant in a single statement.
func (s *Storage) UpdateShipmentStatus(ctx context.Context, id uint64, status string, md models.TransitionMetadata) (*models.Shipment, error) {
	sh, err := scanShipment(s.db.QueryRow(ctx, `
UPDATE shipments
SET
  status = $2,
  notes = COALESCE($3, notes),
  rejection_reason = COALESCE($4, rejection_reason),
  inspected_by = COALESCE($5, inspected_by),
  archived_at = CASE WHEN $2 = '`+models.StatusArchived+`' THEN now() ELSE NULL END,
  updated_at = now()
WHERE id = $1
RETURNING`+shipmentColumns+`
`, id, status, md.Notes, md.RejectionReason, md.InspectedBy))
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFoundf("shipment %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "update shipment status")
	}
	return sh, nil
}
