package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TGO0427/synercore-import-schedule-sub009/internal/models"
)

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestEngine_Compute_delayed(t *testing.T) {
	e := New(Config{})
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	shipments := []*models.Shipment{
		{ID: 1, OrderRef: "PO-1", Status: models.StatusInTransitSeaway, ExpectedArrivalAt: ts("2026-03-01T00:00:00Z")},
		// Arrived variants are never "delayed" no matter how late they were.
		{ID: 2, OrderRef: "PO-2", Status: models.StatusArrivedPTA, ExpectedArrivalAt: ts("2026-03-01T00:00:00Z")},
		// No expected date, no delayed alert.
		{ID: 3, OrderRef: "PO-3", Status: models.StatusInTransitAirfreight},
		// Not yet due.
		{ID: 4, OrderRef: "PO-4", Status: models.StatusMoored, ExpectedArrivalAt: ts("2026-04-01T00:00:00Z")},
	}

	out := e.Compute(shipments, 0, now)
	require.Len(t, out, 1)
	require.Equal(t, "delayed:1", out[0].ID)
	require.Equal(t, uint64(1), out[0].ShipmentID)
	require.Equal(t, SeverityHigh, out[0].Severity)
}

func TestEngine_Compute_delayedSideStateCounts(t *testing.T) {
	e := New(Config{})
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	out := e.Compute([]*models.Shipment{
		{ID: 9, OrderRef: "PO-9", Status: models.StatusDelayed, ExpectedArrivalAt: ts("2026-03-01T00:00:00Z")},
	}, 0, now)
	require.Len(t, out, 1)
	require.Equal(t, CategoryDelayed, out[0].Category)
}

func TestEngine_Compute_inspectionFailed(t *testing.T) {
	e := New(Config{})
	out := e.Compute([]*models.Shipment{
		{ID: 5, OrderRef: "PO-5", Status: models.StatusInspectionFailed},
	}, 0, time.Now().UTC())
	require.Len(t, out, 1)
	require.Equal(t, "inspection_failed:5", out[0].ID)
	require.Equal(t, SeverityHigh, out[0].Severity)
}

func TestEngine_Compute_stuckInInspection(t *testing.T) {
	e := New(Config{StuckInspectionThreshold: 3 * 24 * time.Hour})
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	out := e.Compute([]*models.Shipment{
		{ID: 6, OrderRef: "PO-6", Status: models.StatusInspecting, UpdatedAt: now.Add(-4 * 24 * time.Hour)},
		{ID: 7, OrderRef: "PO-7", Status: models.StatusInspecting, UpdatedAt: now.Add(-2 * 24 * time.Hour)},
	}, 0, now)
	require.Len(t, out, 1)
	require.Equal(t, "stuck_in_inspection:6", out[0].ID)
	require.Equal(t, SeverityMedium, out[0].Severity)
}

func TestEngine_Compute_capacity(t *testing.T) {
	e := New(Config{CapacityWarningPercent: 85})

	out := e.Compute(nil, 84.9, time.Now().UTC())
	require.Empty(t, out)

	out = e.Compute(nil, 85, time.Now().UTC())
	require.Len(t, out, 1)
	require.Equal(t, "capacity_warning:warehouse", out[0].ID)
	require.Zero(t, out[0].ShipmentID)
}

func TestEngine_Compute_deterministic(t *testing.T) {
	e := New(Config{})
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	shipments := []*models.Shipment{
		{ID: 1, OrderRef: "PO-1", Status: models.StatusInTransitSeaway, ExpectedArrivalAt: ts("2026-03-01T00:00:00Z")},
		{ID: 2, OrderRef: "PO-2", Status: models.StatusInspectionFailed},
	}

	a := e.Compute(shipments, 90, now)
	b := e.Compute(shipments, 90, now)
	require.Equal(t, a, b)
	require.Len(t, a, 3)
}
