package digest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/TGO0427/synercore-import-schedule-sub009/internal/apperr"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/models"
)

// Dispatch periods.
const (
	PeriodDaily  = "daily"
	PeriodWeekly = "weekly"
)

const (
	DefaultRetentionDays   = 90
	DefaultTopShipmentsMax = 10
)

type Repository interface {
	AppendDigestEntry(ctx context.Context, e *models.DigestQueueEntry) error
	QueryUnprocessed(ctx context.Context, userID uint64, since time.Time) ([]*models.DigestQueueEntry, error)
	MarkProcessed(ctx context.Context, ids []uint64) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	ListUsersByFrequency(ctx context.Context, frequency string) ([]*models.User, error)
	GetUserByID(ctx context.Context, id uint64) (*models.User, error)
	GetShipmentsByIDs(ctx context.Context, ids []uint64) ([]*models.Shipment, error)
}

type PreferenceResolver interface {
	Resolve(ctx context.Context, userID uint64) (*models.NotificationPreference, error)
}

type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Service struct {
	repo     Repository
	resolver PreferenceResolver
	mailer   Mailer
	rl       RateLimiter

	rateLimitPerMinute int64
	topShipmentsMax    int
	retentionDays      int

	startedAtUnixNano int64
	lastRunUnixNano   atomic.Int64
	totalEnqueued     atomic.Int64
	totalSent         atomic.Int64
	totalFailed       atomic.Int64
	lastErrorMu       sync.Mutex
	lastError         string
}

func New(repo Repository, resolver PreferenceResolver, mailer Mailer, rl RateLimiter) *Service {
	return &Service{
		repo:               repo,
		resolver:           resolver,
		mailer:             mailer,
		rl:                 rl,
		rateLimitPerMinute: 60,
		topShipmentsMax:    DefaultTopShipmentsMax,
		retentionDays:      DefaultRetentionDays,
		startedAtUnixNano:  time.Now().UTC().UnixNano(),
	}
}

func (s *Service) WithSettings(rateLimitPerMinute int64, topShipmentsMax, retentionDays int) *Service {
	if rateLimitPerMinute > 0 {
		s.rateLimitPerMinute = rateLimitPerMinute
	}
	if topShipmentsMax > 0 {
		s.topShipmentsMax = topShipmentsMax
	}
	if retentionDays > 0 {
		s.retentionDays = retentionDays
	}
	return s
}

// Enqueue records a notifiable event with processedAt unset. Called for every
// event regardless of the user's frequency; for immediate users it doubles as
// the audit trail behind the direct send.
func (s *Service) Enqueue(ctx context.Context, userID uint64, eventType string, eventData *string, shipmentID *uint64) error {
	if userID == 0 {
		return errors.New("userId is required")
	}
	if eventType == "" {
		return errors.New("eventType is required")
	}
	err := s.repo.AppendDigestEntry(ctx, &models.DigestQueueEntry{
		UserID:     userID,
		EventType:  eventType,
		ShipmentID: shipmentID,
		EventData:  eventData,
	})
	if err != nil {
		return err
	}
	s.totalEnqueued.Add(1)
	return nil
}

func periodWindow(period string) (time.Duration, error) {
	switch period {
	case PeriodDaily:
		return 24 * time.Hour, nil
	case PeriodWeekly:
		return 7 * 24 * time.Hour, nil
	default:
		return 0, errors.Errorf("unknown period %q", period)
	}
}

// DispatchDigest sends at most one digest for the user and period. Returns
// false on every skip (preference mismatch, no address, empty window) and
// true only after a successful send-and-mark. Entries are marked processed
// only after the transport confirms, so a failed send retries next cycle.
func (s *Service) DispatchDigest(ctx context.Context, userID uint64, period string) (bool, error) {
	window, err := periodWindow(period)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	s.lastRunUnixNano.Store(now.UnixNano())

	pref, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return false, err
	}
	if !pref.EmailEnabled || pref.EmailFrequency != period {
		return false, nil
	}

	address, err := s.resolveAddress(ctx, userID, pref)
	if err != nil {
		return false, err
	}
	if address == "" {
		return false, nil
	}

	entries, err := s.repo.QueryUnprocessed(ctx, userID, now.Add(-window))
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		// Never send an empty digest.
		return false, nil
	}

	groups := groupByEventType(entries)
	top, err := s.topShipments(ctx, entries)
	if err != nil {
		return false, err
	}

	subject, htmlBody, textBody := renderDigest(period, groups, top, now)

	if s.rl != nil && s.rateLimitPerMinute > 0 {
		minuteKey := fmt.Sprintf("rl:email:%s", now.Format("200601021504"))
		allowed, n, err := s.rl.Allow(ctx, minuteKey, s.rateLimitPerMinute, 70*time.Second)
		if err != nil {
			return false, err
		}
		if !allowed {
			slog.Warn("email rate limit exceeded", "count", n)
			time.Sleep(500 * time.Millisecond)
		}
	}

	if err := s.mailer.Send(ctx, address, subject, htmlBody, textBody); err != nil {
		s.recordFailure(err)
		// Entries stay pending; the next scheduled cycle retries them.
		return false, errors.Wrapf(apperr.ErrTransportFailure, "send digest to user %d: %v", userID, err)
	}

	ids := make([]uint64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	if err := s.repo.MarkProcessed(ctx, ids); err != nil {
		s.recordFailure(err)
		return false, err
	}

	s.totalSent.Add(1)
	return true, nil
}

// DispatchSummary aggregates one DispatchAllDue run.
type DispatchSummary struct {
	Users  int `json:"users"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// DispatchAllDue runs DispatchDigest for every user whose stored preference
// matches the period. Per-user failures are isolated and counted; only a
// setup failure (cannot enumerate users) is returned as an error.
func (s *Service) DispatchAllDue(ctx context.Context, period string) (DispatchSummary, error) {
	if _, err := periodWindow(period); err != nil {
		return DispatchSummary{}, err
	}

	users, err := s.repo.ListUsersByFrequency(ctx, period)
	if err != nil {
		return DispatchSummary{}, err
	}

	summary := DispatchSummary{Users: len(users)}
	for _, u := range users {
		sent, err := s.DispatchDigest(ctx, u.ID, period)
		if err != nil {
			summary.Failed++
			slog.Error("dispatch digest", "user_id", u.ID, "period", period, "error", err.Error())
			continue
		}
		if sent {
			summary.Sent++
		}
	}
	return summary, nil
}

// CleanupSummary reports one retention sweep.
type CleanupSummary struct {
	Deleted int64 `json:"deleted"`
}

// CleanupOlderThan drops queue entries older than the retention window,
// processed or not.
func (s *Service) CleanupOlderThan(ctx context.Context, days int) (CleanupSummary, error) {
	if days <= 0 {
		days = s.retentionDays
	}
	cutoff := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	n, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return CleanupSummary{}, err
	}
	return CleanupSummary{Deleted: n}, nil
}

func (s *Service) resolveAddress(ctx context.Context, userID uint64, pref *models.NotificationPreference) (string, error) {
	if pref.EmailAddress != nil && *pref.EmailAddress != "" {
		return *pref.EmailAddress, nil
	}
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return u.Email, nil
}

type eventGroup struct {
	EventType string
	Count     int
}

func groupByEventType(entries []*models.DigestQueueEntry) []eventGroup {
	counts := map[string]int{}
	for _, e := range entries {
		counts[e.EventType]++
	}
	out := make([]eventGroup, 0, len(counts))
	for t, n := range counts {
		out = append(out, eventGroup{EventType: t, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].EventType < out[j].EventType
	})
	return out
}

// topShipments returns the most-referenced shipments across the entries,
// bounded, for digest context.
func (s *Service) topShipments(ctx context.Context, entries []*models.DigestQueueEntry) ([]*models.Shipment, error) {
	counts := map[uint64]int{}
	for _, e := range entries {
		if e.ShipmentID != nil {
			counts[*e.ShipmentID]++
		}
	}
	if len(counts) == 0 {
		return nil, nil
	}

	ids := make([]uint64, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > s.topShipmentsMax {
		ids = ids[:s.topShipmentsMax]
	}

	return s.repo.GetShipmentsByIDs(ctx, ids)
}

func (s *Service) recordFailure(err error) {
	s.totalFailed.Add(1)
	s.lastErrorMu.Lock()
	s.lastError = err.Error()
	s.lastErrorMu.Unlock()
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastRunAt     *time.Time `json:"lastRunAt,omitempty"`
	TotalEnqueued int64      `json:"totalEnqueued"`
	TotalSent     int64      `json:"totalSent"`
	TotalFailed   int64      `json:"totalFailed"`
	LastError     string     `json:"lastError,omitempty"`
}

func (s *Service) Stats() Stats {
	st := Stats{
		StartedAt:     time.Unix(0, s.startedAtUnixNano).UTC(),
		TotalEnqueued: s.totalEnqueued.Load(),
		TotalSent:     s.totalSent.Load(),
		TotalFailed:   s.totalFailed.Load(),
	}
	if n := s.lastRunUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastRunAt = &t
	}
	s.lastErrorMu.Lock()
	st.LastError = s.lastError
	s.lastErrorMu.Unlock()
	return st
}
