package archiver

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TGO0427/synercore-import-schedule-sub009/internal/apperr"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/models"
)

type fakeRepo struct {
	findOut []*models.Shipment
	findErr error

	getOut []*models.Shipment
	getErr error

	archiveFileName string
	archiveType     string
	archiveIDs      []uint64
	archiveOut      *models.ArchiveRecord
	archiveErr      error

	renameOld string
	renameNew string
	renameOut *models.ArchiveRecord
	renameErr error

	listOut []*models.ArchiveRecord
}

func (f *fakeRepo) FindShipments(ctx context.Context, filter models.ShipmentFilter) ([]*models.Shipment, error) {
	return f.findOut, f.findErr
}
func (f *fakeRepo) GetShipmentsByIDs(ctx context.Context, ids []uint64) ([]*models.Shipment, error) {
	return f.getOut, f.getErr
}
func (f *fakeRepo) ArchiveShipments(ctx context.Context, fileName, archiveType string, reason *string, ids []uint64) (*models.ArchiveRecord, error) {
	f.archiveFileName = fileName
	f.archiveType = archiveType
	f.archiveIDs = ids
	if f.archiveOut != nil {
		f.archiveOut.FileName = fileName
	}
	return f.archiveOut, f.archiveErr
}
func (f *fakeRepo) ListArchiveRecords(ctx context.Context) ([]*models.ArchiveRecord, error) {
	return f.listOut, nil
}
func (f *fakeRepo) RenameArchiveRecord(ctx context.Context, fileName, newFileName string) (*models.ArchiveRecord, error) {
	f.renameOld = fileName
	f.renameNew = newFileName
	return f.renameOut, f.renameErr
}

func TestService_Archive_emptyInput(t *testing.T) {
	s := New(&fakeRepo{}, 0)
	_, err := s.Archive(context.Background(), nil, models.ArchiveTypeManual, nil)
	require.ErrorIs(t, err, apperr.ErrEmptyInput)
}

func TestService_Archive_invalidType(t *testing.T) {
	s := New(&fakeRepo{}, 0)
	_, err := s.Archive(context.Background(), []uint64{1}, "hourly", nil)
	require.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestService_Archive_noMatches(t *testing.T) {
	s := New(&fakeRepo{getOut: nil}, 0)
	_, err := s.Archive(context.Background(), []uint64{404}, models.ArchiveTypeManual, nil)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestService_Archive_manualKeyEmbedsRefs(t *testing.T) {
	r := &fakeRepo{
		getOut: []*models.Shipment{
			{ID: 1, OrderRef: "PO 1/A", Status: models.StatusStored},
			{ID: 2, OrderRef: "PO-2", Status: models.StatusStored},
		},
		archiveOut: &models.ArchiveRecord{TotalShipments: 2},
	}
	s := New(r, 0)

	rec, err := s.Archive(context.Background(), []uint64{1, 2}, models.ArchiveTypeManual, nil)
	require.NoError(t, err)
	require.Equal(t, 2, rec.TotalShipments)
	require.Equal(t, []uint64{1, 2}, r.archiveIDs)
	require.True(t, strings.HasPrefix(r.archiveFileName, "archive_"))
	// Unsafe characters are replaced, not dropped.
	require.Contains(t, r.archiveFileName, "PO-1-A_PO-2")
}

func TestService_Archive_autoKeyHasNoRefs(t *testing.T) {
	r := &fakeRepo{
		getOut:     []*models.Shipment{{ID: 1, OrderRef: "PO-1"}},
		archiveOut: &models.ArchiveRecord{TotalShipments: 1},
	}
	s := New(r, 0)

	_, err := s.Archive(context.Background(), []uint64{1}, models.ArchiveTypeAuto, nil)
	require.NoError(t, err)
	require.NotContains(t, r.archiveFileName, "PO-1")
}

func TestBuildArchiveKey_truncatesRefs(t *testing.T) {
	shipments := make([]*models.Shipment, 20)
	for i := range shipments {
		shipments[i] = &models.Shipment{OrderRef: fmt.Sprintf("ORDER-%04d", i)}
	}
	key := buildArchiveKey(models.ArchiveTypeManual, shipments, time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))
	require.True(t, strings.HasPrefix(key, "archive_20260301T093000_"))
	require.LessOrEqual(t, len(key), len("archive_20260301T093000_")+maxKeyRefsLen)
}

func TestEligibleForAutoArchive(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	fresh := now.Add(-10 * 24 * time.Hour)
	stale := now.Add(-40 * 24 * time.Hour)

	var shipments []*models.Shipment
	for i := 0; i < 20; i++ {
		shipments = append(shipments, &models.Shipment{ID: uint64(i + 1), Status: models.StatusArrivedPTA, UpdatedAt: stale})
	}
	for i := 20; i < 30; i++ {
		shipments = append(shipments, &models.Shipment{ID: uint64(i + 1), Status: models.StatusArrivedKLM, UpdatedAt: fresh})
	}
	for i := 30; i < 40; i++ {
		shipments = append(shipments, &models.Shipment{ID: uint64(i + 1), Status: models.StatusInTransitSeaway, UpdatedAt: stale})
	}

	eligible := EligibleForAutoArchive(shipments, 30, now)
	require.Len(t, eligible, 20)
	for _, sh := range eligible {
		require.True(t, models.IsArrivedVariant(sh.Status))
	}
}

func TestService_RunAutoArchive(t *testing.T) {
	now := time.Now().UTC()
	r := &fakeRepo{
		findOut: []*models.Shipment{
			{ID: 1, Status: models.StatusArrivedPTA, UpdatedAt: now.Add(-60 * 24 * time.Hour)},
			{ID: 2, Status: models.StatusArrivedKLM, UpdatedAt: now.Add(-1 * 24 * time.Hour)},
		},
		getOut:     []*models.Shipment{{ID: 1, Status: models.StatusArrivedPTA}},
		archiveOut: &models.ArchiveRecord{TotalShipments: 1},
	}
	s := New(r, 30)

	sum, err := s.RunAutoArchive(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, sum.Scanned)
	require.Equal(t, 1, sum.Processed)
	require.Zero(t, sum.Failed)
	require.Equal(t, models.ArchiveTypeAuto, r.archiveType)
	require.Equal(t, []uint64{1}, r.archiveIDs)
	require.NotEmpty(t, sum.ArchiveKey)
}

func TestService_RunAutoArchive_nothingDue(t *testing.T) {
	r := &fakeRepo{findOut: []*models.Shipment{
		{ID: 2, Status: models.StatusArrivedKLM, UpdatedAt: time.Now().UTC()},
	}}
	s := New(r, 30)

	sum, err := s.RunAutoArchive(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, sum.Scanned)
	require.Zero(t, sum.Processed)
	require.Empty(t, r.archiveFileName) // archive was never attempted
}

func TestService_Rename(t *testing.T) {
	r := &fakeRepo{renameOut: &models.ArchiveRecord{FileName: "q2-review"}}
	s := New(r, 0)

	_, err := s.Rename(context.Background(), "archive_x", "")
	require.Error(t, err)

	rec, err := s.Rename(context.Background(), "archive_x", "q2-review")
	require.NoError(t, err)
	require.Equal(t, "archive_x", r.renameOld)
	require.Equal(t, "q2-review", r.renameNew)
	require.Equal(t, "q2-review", rec.FileName)
}
