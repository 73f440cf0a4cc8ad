package schedule_api

import (
	"time"

	"github.com/TGO0427/synercore-import-schedule-sub009/internal/models"
)

type shipmentView struct {
	ID                uint64     `json:"id"`
	OrderRef          string     `json:"orderRef"`
	Supplier          string     `json:"supplier"`
	Status            string     `json:"status"`
	ExpectedArrivalAt *time.Time `json:"expectedArrivalAt,omitempty"`
	Notes             *string    `json:"notes,omitempty"`
	RejectionReason   *string    `json:"rejectionReason,omitempty"`
	InspectedBy       *string    `json:"inspectedBy,omitempty"`
	ArchivedAt        *time.Time `json:"archivedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func toShipmentView(sh *models.Shipment) shipmentView {
	return shipmentView{
		ID:                sh.ID,
		OrderRef:          sh.OrderRef,
		Supplier:          sh.Supplier,
		Status:            sh.Status,
		ExpectedArrivalAt: sh.ExpectedArrivalAt,
		Notes:             sh.Notes,
		RejectionReason:   sh.RejectionReason,
		InspectedBy:       sh.InspectedBy,
		ArchivedAt:        sh.ArchivedAt,
		CreatedAt:         sh.CreatedAt,
		UpdatedAt:         sh.UpdatedAt,
	}
}

func toShipmentViews(shipments []*models.Shipment) []shipmentView {
	out := make([]shipmentView, 0, len(shipments))
	for _, sh := range shipments {
		out = append(out, toShipmentView(sh))
	}
	return out
}

type archiveView struct {
	FileName       string    `json:"fileName"`
	ArchiveType    string    `json:"archiveType"`
	Reason         *string   `json:"reason,omitempty"`
	TotalShipments int       `json:"totalShipments"`
	ArchivedAt     time.Time `json:"archivedAt"`
}

func toArchiveView(rec *models.ArchiveRecord) archiveView {
	return archiveView{
		FileName:       rec.FileName,
		ArchiveType:    rec.ArchiveType,
		Reason:         rec.Reason,
		TotalShipments: rec.TotalShipments,
		ArchivedAt:     rec.ArchivedAt,
	}
}

type preferenceView struct {
	UserID         uint64          `json:"userId"`
	Categories     map[string]bool `json:"categories"`
	EmailEnabled   bool            `json:"emailEnabled"`
	EmailFrequency string          `json:"emailFrequency"`
	EmailAddress   *string         `json:"emailAddress,omitempty"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func toPreferenceView(p *models.NotificationPreference) preferenceView {
	return preferenceView{
		UserID:         p.UserID,
		Categories:     p.Categories,
		EmailEnabled:   p.EmailEnabled,
		EmailFrequency: p.EmailFrequency,
		EmailAddress:   p.EmailAddress,
		UpdatedAt:      p.UpdatedAt,
	}
}
