package transitions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/TGO0427/synercore-import-schedule-sub009/internal/apperr"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/broker/messages"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/cache"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/models"
)

type Repository interface {
	CreateOrGetShipments(ctx context.Context, items []models.ShipmentCreateInput) ([]*models.Shipment, error)
	GetShipmentByID(ctx context.Context, id uint64) (*models.Shipment, error)
	GetShipmentsByIDs(ctx context.Context, ids []uint64) ([]*models.Shipment, error)
	FindShipments(ctx context.Context, filter models.ShipmentFilter) ([]*models.Shipment, error)
	UpdateShipmentStatus(ctx context.Context, id uint64, status string, md models.TransitionMetadata) (*models.Shipment, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Service is the status transition engine. It validates the target against
// the lifecycle enum and applies it; it does not enforce sequencing between
// stages, callers drive the workflow with independent setter actions.
type Service struct {
	repo       Repository
	cache      cache.BytesCache
	producer   Producer
	topic      string
	currentTTL time.Duration
}

func New(repo Repository, c cache.BytesCache, producer Producer, topic string, currentTTL time.Duration) *Service {
	return &Service{repo: repo, cache: c, producer: producer, topic: topic, currentTTL: currentTTL}
}

func (s *Service) CreateShipments(ctx context.Context, items []models.ShipmentCreateInput) ([]*models.Shipment, error) {
	if len(items) == 0 {
		return nil, errors.New("items is empty")
	}
	if len(items) > 10_000 {
		return nil, errors.New("too many items (max 10000)")
	}

	clean := make([]models.ShipmentCreateInput, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.OrderRef == "" {
			return nil, errors.New("orderRef is required")
		}
		if it.Supplier == "" {
			return nil, errors.New("supplier is required")
		}
		if it.Status != "" && !models.IsValidStatus(it.Status) {
			return nil, apperr.InvalidStatef("status %q", it.Status)
		}
		k := fmt.Sprintf("%s|%s", it.OrderRef, it.Supplier)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		clean = append(clean, it)
	}

	return s.repo.CreateOrGetShipments(ctx, clean)
}

func (s *Service) GetShipmentByID(ctx context.Context, id uint64) (*models.Shipment, error) {
	if s.cache != nil && s.currentTTL > 0 {
		key := currentKey(id)
		if b, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var sh models.Shipment
			if json.Unmarshal(b, &sh) == nil {
				return &sh, nil
			}
		}
	}

	sh, err := s.repo.GetShipmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheCurrent(ctx, sh)
	return sh, nil
}

func (s *Service) FindShipments(ctx context.Context, filter models.ShipmentFilter) ([]*models.Shipment, error) {
	return s.repo.FindShipments(ctx, filter)
}

// Transition validates targetStatus and applies it. archivedAt is handled by
// the store in the same statement (set iff the target is archived).
func (s *Service) Transition(ctx context.Context, id uint64, targetStatus string, md models.TransitionMetadata) (*models.Shipment, error) {
	if id == 0 {
		return nil, errors.New("shipmentId is required")
	}
	if !models.IsValidStatus(targetStatus) {
		return nil, apperr.InvalidStatef("status %q", targetStatus)
	}

	prev, err := s.repo.GetShipmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	sh, err := s.repo.UpdateShipmentStatus(ctx, id, targetStatus, md)
	if err != nil {
		return nil, err
	}

	s.cacheCurrent(ctx, sh)
	s.publishStatusChanged(ctx, prev.Status, sh)
	return sh, nil
}

// CompleteInspection maps the inspection outcome to its lifecycle status.
// Notification and archiving consequences follow from the event stream, not
// from this call.
func (s *Service) CompleteInspection(ctx context.Context, id uint64, passed bool, md models.TransitionMetadata) (*models.Shipment, error) {
	target := models.StatusInspectionPassed
	if !passed {
		target = models.StatusInspectionFailed
	}
	return s.Transition(ctx, id, target, md)
}

func (s *Service) StartUnloading(ctx context.Context, id uint64) (*models.Shipment, error) {
	return s.Transition(ctx, id, models.StatusUnloading, models.TransitionMetadata{})
}

func (s *Service) StartInspection(ctx context.Context, id uint64, inspectedBy *string) (*models.Shipment, error) {
	return s.Transition(ctx, id, models.StatusInspecting, models.TransitionMetadata{InspectedBy: inspectedBy})
}

func (s *Service) StartReceiving(ctx context.Context, id uint64) (*models.Shipment, error) {
	return s.Transition(ctx, id, models.StatusReceiving, models.TransitionMetadata{})
}

func (s *Service) MarkAsStored(ctx context.Context, id uint64) (*models.Shipment, error) {
	return s.Transition(ctx, id, models.StatusStored, models.TransitionMetadata{})
}

func (s *Service) cacheCurrent(ctx context.Context, sh *models.Shipment) {
	if s.cache == nil || s.currentTTL <= 0 {
		return
	}
	b, _ := json.Marshal(sh)
	_ = s.cache.Set(ctx, currentKey(sh.ID), b, s.currentTTL)
}

/// publishStatusChanged is best-effort: the transition is already committed
// and digests recover missed immediate sends on the next cycle.
func (s *Service) publishStatusChanged(ctx context.Context, oldStatus string, sh *models.Shipment) {
	if s.producer == nil || s.topic == "" {
		return
	}
	msg := messages.ShipmentStatusChanged{
		ShipmentID:      sh.ID,
		OrderRef:        sh.OrderRef,
		Supplier:        sh.Supplier,
		OldStatus:       oldStatus,
		NewStatus:       sh.Status,
		ChangedAt:       sh.UpdatedAt,
		Notes:           sh.Notes,
		RejectionReason: sh.RejectionReason,
		InspectedBy:     sh.InspectedBy,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal status changed", "shipment_id", sh.ID, "error", err.Error())
		return
	}
	key := []byte(fmt.Sprintf("%d", sh.ID))
	if err := s.producer.Publish(ctx, s.topic, key, b); err != nil {
		slog.Warn("publish status changed", "shipment_id", sh.ID, "error", err.Error())
	}
}

func currentKey(id uint64) string {
	return fmt.Sprintf("shipment:%d:current", id)
}
