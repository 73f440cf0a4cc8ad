package messages

import "time"

// ShipmentStatusChanged is published on every successful status commit and
// drives notification fan-out in the API process.
type ShipmentStatusChanged struct {
	ShipmentID uint64    `json:"shipment_id"`
	OrderRef   string    `json:"order_ref"`
	Supplier   string    `json:"supplier"`
	OldStatus  string    `json:"old_status"`
	NewStatus  string    `json:"new_status"`
	ChangedAt  time.Time `json:"changed_at"`

	Notes           *string `json:"notes,omitempty"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
	InspectedBy     *string `json:"inspected_by,omitempty"`
}
