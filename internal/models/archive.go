package models

import "time"

// Archive types.
const (
	ArchiveTypeManual         = "manual"
	ArchiveTypeAuto           = "auto"
	ArchiveTypeImportSnapshot = "import-snapshot"
)

// ArchiveRecord is an immutable snapshot of shipments taken at archive time.
// Only FileName may change afterwards (rename).
type ArchiveRecord struct {
	FileName       string
	ArchiveType    string
	Reason         *string
	TotalShipments int
	Payload        []Shipment
	ArchivedAt     time.Time
}
