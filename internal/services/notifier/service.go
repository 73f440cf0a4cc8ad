package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/TGO0427/synercore-import-schedule-sub009/internal/broker/messages"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/models"
)

type Repository interface {
	ListUsers(ctx context.Context) ([]*models.User, error)
}

type PreferenceResolver interface {
	Resolve(ctx context.Context, userID uint64) (*models.NotificationPreference, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, userID uint64, eventType string, eventData *string, shipmentID *uint64) error
}

type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

/// Service turns committed status changes into per-user notifications:
// a digest queue entry for every interested user, plus a direct email for
// users on the immediate frequency.
type Service struct {
	repo     Repository
	resolver PreferenceResolver
	queue    Enqueuer
	mailer   Mailer
	rl       RateLimiter

	rateLimitPerMinute int64
}

func New(repo Repository, resolver PreferenceResolver, queue Enqueuer, mailer Mailer, rl RateLimiter) *Service {
	return &Service{repo: repo, resolver: resolver, queue: queue, mailer: mailer, rl: rl, rateLimitPerMinute: 60}
}

func (s *Service) WithRateLimit(perMinute int64) *Service {
	if perMinute > 0 {
		s.rateLimitPerMinute = perMinute
	}
	return s
}

// eventCategory maps a committed status to its notification category.
// Statuses without a category produce no notifications.
func eventCategory(status string) (string, bool) {
	switch status {
	case models.StatusArrivedPTA, models.StatusArrivedKLM, models.StatusArrivedOffsite:
		return models.EventArrival, true
	case models.StatusInspectionPassed:
		return models.EventInspectionPassed, true
	case models.StatusInspectionFailed:
		return models.EventInspectionFailed, true
	case models.StatusDelayed:
		return models.EventDelayed, true
	case models.StatusStored:
		return models.EventStored, true
	default:
		return "", false
	}
}

// HandleStatusChanged fans one event out to all users. Per-user failures are
// logged and skipped so one bad preference row cannot stall the consumer.
func (s *Service) HandleStatusChanged(ctx context.Context, msg messages.ShipmentStatusChanged) error {
	if msg.ShipmentID == 0 {
		return errors.New("shipment_id is required")
	}
	category, ok := eventCategory(msg.NewStatus)
	if !ok {
		return nil
	}

	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(map[string]string{
		"orderRef":  msg.OrderRef,
		"supplier":  msg.Supplier,
		"oldStatus": msg.OldStatus,
		"newStatus": msg.NewStatus,
	})
	if err != nil {
		return errors.Wrap(err, "marshal event data")
	}
	eventData := string(data)

	for _, u := range users {
		pref, err := s.resolver.Resolve(ctx, u.ID)
		if err != nil {
			slog.Error("resolve preference", "user_id", u.ID, "error", err.Error())
			continue
		}
		if !pref.WantsCategory(category) {
			continue
		}

		// Queued regardless of frequency: audit trail for immediate users,
		// batch source for the rest.
		if err := s.queue.Enqueue(ctx, u.ID, category, &eventData, &msg.ShipmentID); err != nil {
			slog.Error("enqueue digest entry", "user_id", u.ID, "error", err.Error())
			continue
		}

		if pref.EmailEnabled && pref.EmailFrequency == models.FrequencyImmediate {
			s.sendImmediate(ctx, u, pref, category, msg)
		}
	}
	return nil
}

func (s *Service) sendImmediate(ctx context.Context, u *models.User, pref *models.NotificationPreference, category string, msg messages.ShipmentStatusChanged) {
	address := u.Email
	if pref.EmailAddress != nil && *pref.EmailAddress != "" {
		address = *pref.EmailAddress
	}
	if address == "" {
		return
	}

	if s.rl != nil && s.rateLimitPerMinute > 0 {
		minuteKey := fmt.Sprintf("rl:email:%s", time.Now().UTC().Format("200601021504"))
		allowed, n, err := s.rl.Allow(ctx, minuteKey, s.rateLimitPerMinute, 70*time.Second)
		if err != nil {
			slog.Error("email rate limit", "error", err.Error())
			return
		}
		if !allowed {
			slog.Warn("email rate limit exceeded", "count", n)
			time.Sleep(500 * time.Millisecond)
		}
	}

	subject := fmt.Sprintf("Shipment %s: %s", msg.OrderRef, category)
	htmlBody := fmt.Sprintf("<p>Shipment <strong>%s</strong> from %s moved from %s to <strong>%s</strong>.</p>",
		msg.OrderRef, msg.Supplier, msg.OldStatus, msg.NewStatus)
	textBody := fmt.Sprintf("Shipment %s from %s moved from %s to %s.",
		msg.OrderRef, msg.Supplier, msg.OldStatus, msg.NewStatus)

	if err := s.mailer.Send(ctx, address, subject, htmlBody, textBody); err != nil {
		// The queued entry remains as the fallback record.
		slog.Error("send immediate notification", "user_id", u.ID, "error", err.Error())
	}
}
