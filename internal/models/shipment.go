package models

import "time"

// Lifecycle statuses of an import shipment (workflow order, branches exist).
const (
	StatusPlannedAirfreight = "planned_airfreight"
	StatusPlannedSeafreight = "planned_seafreight"

	StatusInTransitAirfreight = "in_transit_airfreight"
	StatusInTransitRoadway    = "in_transit_roadway"
	StatusInTransitSeaway     = "in_transit_seaway"

	// Sea-only berth stages.
	StatusMoored        = "moored"
	StatusBerthWorking  = "berth_working"
	StatusBerthComplete = "berth_complete"

	StatusArrivedPTA     = "arrived_pta"
	StatusArrivedKLM     = "arrived_klm"
	StatusArrivedOffsite = "arrived_offsite"

	StatusUnloading         = "unloading"
	StatusInspectionPending = "inspection_pending"
	StatusInspecting        = "inspecting"
	StatusInspectionPassed  = "inspection_passed"
	StatusInspectionFailed  = "inspection_failed"
	StatusReceiving         = "receiving"
	StatusReceived          = "received"
	StatusStored            = "stored"

	// Side states outside the main chain.
	StatusDelayed   = "delayed"
	StatusCancelled = "cancelled"
	StatusArchived  = "archived"
)

var validStatuses = map[string]struct{}{
	StatusPlannedAirfreight:   {},
	StatusPlannedSeafreight:   {},
	StatusInTransitAirfreight: {},
	StatusInTransitRoadway:    {},
	StatusInTransitSeaway:     {},
	StatusMoored:              {},
	StatusBerthWorking:        {},
	StatusBerthComplete:       {},
	StatusArrivedPTA:          {},
	StatusArrivedKLM:          {},
	StatusArrivedOffsite:      {},
	StatusUnloading:           {},
	StatusInspectionPending:   {},
	StatusInspecting:          {},
	StatusInspectionPassed:    {},
	StatusInspectionFailed:    {},
	StatusReceiving:           {},
	StatusReceived:            {},
	StatusStored:              {},
	StatusDelayed:             {},
	StatusCancelled:           {},
	StatusArchived:            {},
}

func IsValidStatus(s string) bool {
	_, ok := validStatuses[s]
	return ok
}

var preArrivalStatuses = map[string]struct{}{
	StatusPlannedAirfreight:   {},
	StatusPlannedSeafreight:   {},
	StatusInTransitAirfreight: {},
	StatusInTransitRoadway:    {},
	StatusInTransitSeaway:     {},
	StatusMoored:              {},
	StatusBerthWorking:        {},
	StatusBerthComplete:       {},
	StatusDelayed:             {},
}

// IsPreArrival reports whether the shipment has not physically arrived yet.
// The delayed side state counts as pre-arrival: it overlays a transit stage.
func IsPreArrival(s string) bool {
	_, ok := preArrivalStatuses[s]
	return ok
}

// IsArrivedVariant reports whether the status is one of the terminal
// "arrived" stages that qualify for auto-archiving.
func IsArrivedVariant(s string) bool {
	return s == StatusArrivedPTA || s == StatusArrivedKLM || s == StatusArrivedOffsite
}

type Shipment struct {
	ID                uint64
	OrderRef          string
	Supplier          string
	Status            string
	ExpectedArrivalAt *time.Time
	Notes             *string
	RejectionReason   *string
	InspectedBy       *string
	ArchivedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type ShipmentCreateInput struct {
	OrderRef          string
	Supplier          string
	Status            string // optional; defaults to planned_seafreight
	ExpectedArrivalAt *time.Time
}

// ShipmentFilter narrows FindShipments. Zero values mean "no constraint".
type ShipmentFilter struct {
	Statuses        []string
	Supplier        string
	ExcludeArchived bool
}

// TransitionMetadata carries the optional fields a caller may attach to a
// status change. Which fields matter depends on the target status.
type TransitionMetadata struct {
	Notes           *string
	RejectionReason *string
	InspectedBy     *string
}
