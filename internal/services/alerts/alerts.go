package alerts

import (
	"fmt"
	"time"

	"github.com/TGO0427/synercore-import-schedule-sub009/internal/models"
)

// Severities.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

// Alert categories.
const (
	CategoryDelayed           = "delayed"
	CategoryInspectionFailed  = "inspection_failed"
	CategoryStuckInInspection = "stuck_in_inspection"
	CategoryCapacityWarning   = "capacity_warning"
)

// Alert is a transient signal derived from the current shipment snapshot.
// ID is deterministic (rule + shipment), so recomputation preserves identity
// and callers can carry read/unread flags across refreshes.
type Alert struct {
	ID         string `json:"id"`
	ShipmentID uint64 `json:"shipmentId,omitempty"`
	Category   string `json:"category"`
	Severity   string `json:"severity"`
	Message    string `json:"message"`
}

type Config struct {
	StuckInspectionThreshold time.Duration // default: 3 days
	CapacityWarningPercent   float64       // default: 85
}

func DefaultConfig() Config {
	return Config{
		StuckInspectionThreshold: 3 * 24 * time.Hour,
		CapacityWarningPercent:   85,
	}
}

// Engine computes alerts from a snapshot. Pure: no I/O, no side effects,
// identical input yields an identical (unordered) alert set.
type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.StuckInspectionThreshold <= 0 {
		cfg.StuckInspectionThreshold = def.StuckInspectionThreshold
	}
	if cfg.CapacityWarningPercent <= 0 {
		cfg.CapacityWarningPercent = def.CapacityWarningPercent
	}
	return &Engine{cfg: cfg}
}

// Compute evaluates every rule independently per shipment; each rule yields
// at most one alert per shipment. capacityPct is delegated input from the
// warehouse collaborator.
func (e *Engine) Compute(shipments []*models.Shipment, capacityPct float64, now time.Time) []Alert {
	var out []Alert

	for _, sh := range shipments {
		if models.IsPreArrival(sh.Status) && sh.ExpectedArrivalAt != nil && now.After(*sh.ExpectedArrivalAt) {
			out = append(out, Alert{
				ID:         alertID(CategoryDelayed, sh.ID),
				ShipmentID: sh.ID,
				Category:   CategoryDelayed,
				Severity:   SeverityHigh,
				Message:    fmt.Sprintf("Shipment %s is past its expected arrival (%s)", sh.OrderRef, sh.ExpectedArrivalAt.Format("2006-01-02")),
			})
		}

		if sh.Status == models.StatusInspectionFailed {
			out = append(out, Alert{
				ID:         alertID(CategoryInspectionFailed, sh.ID),
				ShipmentID: sh.ID,
				Category:   CategoryInspectionFailed,
				Severity:   SeverityHigh,
				Message:    fmt.Sprintf("Shipment %s failed inspection", sh.OrderRef),
			})
		}

		if sh.Status == models.StatusInspecting && now.Sub(sh.UpdatedAt) > e.cfg.StuckInspectionThreshold {
			out = append(out, Alert{
				ID:         alertID(CategoryStuckInInspection, sh.ID),
				ShipmentID: sh.ID,
				Category:   CategoryStuckInInspection,
				Severity:   SeverityMedium,
				Message:    fmt.Sprintf("Shipment %s has been in inspection for over %d days", sh.OrderRef, int(e.cfg.StuckInspectionThreshold.Hours()/24)),
			})
		}
	}

	if capacityPct >= e.cfg.CapacityWarningPercent {
		out = append(out, Alert{
			ID:       "capacity_warning:warehouse",
			Category: CategoryCapacityWarning,
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("Warehouse capacity at %.0f%%", capacityPct),
		})
	}

	return out
}

func alertID(rule string, shipmentID uint64) string {
	return fmt.Sprintf("%s:%d", rule, shipmentID)
}
