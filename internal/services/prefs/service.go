package prefs

import (
	"context"

	"github.com/pkg/errors"

	"github.com/TGO0427/synercore-import-schedule-sub009/internal/apperr"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/models"
)

type Repository interface {
	GetPreference(ctx context.Context, userID uint64) (*models.NotificationPreference, error)
	UpsertPreference(ctx context.Context, p *models.NotificationPreference) (*models.NotificationPreference, error)
}

// PartialPreference carries only the fields the caller wants to change.
type PartialPreference struct {
	Categories     map[string]bool
	EmailEnabled   *bool
	EmailFrequency *string
	EmailAddress   *string
}

type Service struct {
	repo Repository
}

func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// Resolve returns the stored row or the synthesized default. The default is
// not persisted until the user explicitly saves preferences.
func (s *Service) Resolve(ctx context.Context, userID uint64) (*models.NotificationPreference, error) {
	if userID == 0 {
		return nil, errors.New("userId is required")
	}
	p, err := s.repo.GetPreference(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return models.DefaultPreference(userID), nil
	}
	return p, nil
}

// Update merges the partial onto the resolved preference and upserts the
// full field set. Concurrent updates are last-write-wins.
func (s *Service) Update(ctx context.Context, userID uint64, partial PartialPreference) (*models.NotificationPreference, error) {
	current, err := s.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	if partial.Categories != nil {
		if current.Categories == nil {
			current.Categories = map[string]bool{}
		}
		for k, v := range partial.Categories {
			current.Categories[k] = v
		}
	}
	if partial.EmailEnabled != nil {
		current.EmailEnabled = *partial.EmailEnabled
	}
	if partial.EmailFrequency != nil {
		switch *partial.EmailFrequency {
		case models.FrequencyImmediate, models.FrequencyDaily, models.FrequencyWeekly:
		default:
			return nil, apperr.InvalidStatef("email frequency %q", *partial.EmailFrequency)
		}
		current.EmailFrequency = *partial.EmailFrequency
	}
	if partial.EmailAddress != nil {
		if *partial.EmailAddress == "" {
			current.EmailAddress = nil
		} else {
			current.EmailAddress = partial.EmailAddress
		}
	}

	return s.repo.UpsertPreference(ctx, current)
}
