package archiver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/TGO0427/synercore-import-schedule-sub009/internal/apperr"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/models"
)

const (
	DefaultThresholdDays = 30

	// Manual archive keys embed order refs; keep the suffix bounded.
	maxKeyRefsLen = 48
)

type Repository interface {
	FindShipments(ctx context.Context, filter models.ShipmentFilter) ([]*models.Shipment, error)
	GetShipmentsByIDs(ctx context.Context, ids []uint64) ([]*models.Shipment, error)
	ArchiveShipments(ctx context.Context, fileName, archiveType string, reason *string, ids []uint64) (*models.ArchiveRecord, error)
	ListArchiveRecords(ctx context.Context) ([]*models.ArchiveRecord, error)
	RenameArchiveRecord(ctx context.Context, fileName, newFileName string) (*models.ArchiveRecord, error)
}

type Service struct {
	repo          Repository
	thresholdDays int
}

func New(repo Repository, thresholdDays int) *Service {
	if thresholdDays <= 0 {
		thresholdDays = DefaultThresholdDays
	}
	return &Service{repo: repo, thresholdDays: thresholdDays}
}

// EligibleForAutoArchive selects arrived shipments whose last update is older
// than thresholdDays. Pure.
func EligibleForAutoArchive(shipments []*models.Shipment, thresholdDays int, now time.Time) []*models.Shipment {
	if thresholdDays <= 0 {
		thresholdDays = DefaultThresholdDays
	}
	cutoff := now.Add(-time.Duration(thresholdDays) * 24 * time.Hour)

	var out []*models.Shipment
	for _, sh := range shipments {
		if models.IsArrivedVariant(sh.Status) && sh.UpdatedAt.Before(cutoff) {
			out = append(out, sh)
		}
	}
	return out
}

// Archive snapshots the shipments into one record and advances them to
// archived, as a single transactional unit in the store.
func (s *Service) Archive(ctx context.Context, ids []uint64, archiveType string, reason *string) (*models.ArchiveRecord, error) {
	if len(ids) == 0 {
		return nil, errors.Wrap(apperr.ErrEmptyInput, "archive")
	}
	switch archiveType {
	case models.ArchiveTypeManual, models.ArchiveTypeAuto, models.ArchiveTypeImportSnapshot:
	default:
		return nil, apperr.InvalidStatef("archive type %q", archiveType)
	}

	shipments, err := s.repo.GetShipmentsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(shipments) == 0 {
		return nil, apperr.NotFoundf("no shipments match %v", ids)
	}

	key := buildArchiveKey(archiveType, shipments, time.Now().UTC())
	return s.repo.ArchiveShipments(ctx, key, archiveType, reason, ids)
}

func (s *Service) Rename(ctx context.Context, fileName, newFileName string) (*models.ArchiveRecord, error) {
	if newFileName == "" {
		return nil, errors.New("newFileName is required")
	}
	return s.repo.RenameArchiveRecord(ctx, fileName, newFileName)
}

func (s *Service) ListArchives(ctx context.Context) ([]*models.ArchiveRecord, error) {
	return s.repo.ListArchiveRecords(ctx)
}

// AutoArchiveSummary reports one scheduled run.
type AutoArchiveSummary struct {
	Scanned    int    `json:"scanned"`
	Processed  int    `json:"processed"`
	Failed     int    `json:"failed"`
	ArchiveKey string `json:"archiveKey,omitempty"`
}

// RunAutoArchive scans arrived shipments and archives the stale ones in one
// record. Designed for a fixed external cadence; a rerun with nothing due is
// a no-op summary, not an error.
func (s *Service) RunAutoArchive(ctx context.Context) (AutoArchiveSummary, error) {
	shipments, err := s.repo.FindShipments(ctx, models.ShipmentFilter{
		Statuses: []string{models.StatusArrivedPTA, models.StatusArrivedKLM, models.StatusArrivedOffsite},
	})
	if err != nil {
		return AutoArchiveSummary{}, err
	}

	eligible := EligibleForAutoArchive(shipments, s.thresholdDays, time.Now().UTC())
	summary := AutoArchiveSummary{Scanned: len(shipments)}
	if len(eligible) == 0 {
		return summary, nil
	}

	ids := make([]uint64, 0, len(eligible))
	for _, sh := range eligible {
		ids = append(ids, sh.ID)
	}

	rec, err := s.Archive(ctx, ids, models.ArchiveTypeAuto, nil)
	if err != nil {
		summary.Failed = len(ids)
		return summary, err
	}
	summary.Processed = rec.TotalShipments
	summary.ArchiveKey = rec.FileName
	return summary, nil
}

// buildArchiveKey derives a collision-resistant key from the timestamp; for
// manual archives the sanitized order refs are appended, truncated.
func buildArchiveKey(archiveType string, shipments []*models.Shipment, now time.Time) string {
	key := fmt.Sprintf("archive_%s", now.Format("20060102T150405"))
	if archiveType != models.ArchiveTypeManual {
		return key
	}

	refs := make([]string, 0, len(shipments))
	for _, sh := range shipments {
		refs = append(refs, sanitizeRef(sh.OrderRef))
	}
	joined := strings.Join(refs, "_")
	if len(joined) > maxKeyRefsLen {
		joined = joined[:maxKeyRefsLen]
	}
	if joined == "" {
		return key
	}
	return key + "_" + joined
}

func sanitizeRef(ref string) string {
	var b strings.Builder
	for _, r := range ref {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
