package schedule_api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/TGO0427/synercore-import-schedule-sub009/internal/apperr"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/models"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/services/alerts"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/services/archiver"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/services/prefs"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/services/transitions"
)

type ScheduleAPI struct {
	transitions *transitions.Service
	alerts      *alerts.Engine
	archiver    *archiver.Service
	prefs       *prefs.Service

	warehouseCapacity int
}

func New(tr *transitions.Service, al *alerts.Engine, ar *archiver.Service, pr *prefs.Service, warehouseCapacity int) *ScheduleAPI {
	return &ScheduleAPI{transitions: tr, alerts: al, archiver: ar, prefs: pr, warehouseCapacity: warehouseCapacity}
}

func (a *ScheduleAPI) Routes(r chi.Router) {
	r.Post("/shipments", a.createShipments)
	r.Get("/shipments", a.listShipments)
	r.Get("/shipments/{id}", a.getShipment)
	r.Post("/shipments/{id}/transition", a.transition)
	r.Post("/shipments/{id}/inspection", a.completeInspection)

	r.Get("/alerts", a.computeAlerts)

	r.Post("/archives", a.archive)
	r.Get("/archives", a.listArchives)
	r.Post("/archives/{fileName}/rename", a.renameArchive)

	r.Get("/users/{id}/preferences", a.getPreferences)
	r.Put("/users/{id}/preferences", a.updatePreferences)
}

type createShipmentsRequest struct {
	Items []struct {
		OrderRef          string     `json:"orderRef"`
		Supplier          string     `json:"supplier"`
		Status            string     `json:"status,omitempty"`
		ExpectedArrivalAt *time.Time `json:"expectedArrivalAt,omitempty"`
	} `json:"items"`
}

func (a *ScheduleAPI) createShipments(w http.ResponseWriter, r *http.Request) {
	var req createShipmentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	in := make([]models.ShipmentCreateInput, 0, len(req.Items))
	for _, it := range req.Items {
		in = append(in, models.ShipmentCreateInput{
			OrderRef:          it.OrderRef,
			Supplier:          it.Supplier,
			Status:            it.Status,
			ExpectedArrivalAt: it.ExpectedArrivalAt,
		})
	}
	out, err := a.transitions.CreateShipments(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"shipments": toShipmentViews(out)})
}

func (a *ScheduleAPI) listShipments(w http.ResponseWriter, r *http.Request) {
	filter := models.ShipmentFilter{Supplier: r.URL.Query().Get("supplier")}
	if st := r.URL.Query().Get("status"); st != "" {
		if !models.IsValidStatus(st) {
			writeError(w, http.StatusBadRequest, apperr.InvalidStatef("status %q", st))
			return
		}
		filter.Statuses = []string{st}
	} else {
		filter.ExcludeArchived = true
	}

	out, err := a.transitions.FindShipments(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shipments": toShipmentViews(out)})
}

func (a *ScheduleAPI) getShipment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sh, err := a.transitions.GetShipmentByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toShipmentView(sh))
}

type transitionRequest struct {
	Status          string  `json:"status"`
	Notes           *string `json:"notes,omitempty"`
	RejectionReason *string `json:"rejectionReason,omitempty"`
	InspectedBy     *string `json:"inspectedBy,omitempty"`
}

func (a *ScheduleAPI) transition(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sh, err := a.transitions.Transition(r.Context(), id, req.Status, models.TransitionMetadata{
		Notes:           req.Notes,
		RejectionReason: req.RejectionReason,
		InspectedBy:     req.InspectedBy,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toShipmentView(sh))
}

type inspectionRequest struct {
	Passed          bool    `json:"passed"`
	Notes           *string `json:"notes,omitempty"`
	RejectionReason *string `json:"rejectionReason,omitempty"`
	InspectedBy     *string `json:"inspectedBy,omitempty"`
}

func (a *ScheduleAPI) completeInspection(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req inspectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sh, err := a.transitions.CompleteInspection(r.Context(), id, req.Passed, models.TransitionMetadata{
		Notes:           req.Notes,
		RejectionReason: req.RejectionReason,
		InspectedBy:     req.InspectedBy,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toShipmentView(sh))
}

func (a *ScheduleAPI) computeAlerts(w http.ResponseWriter, r *http.Request) {
	active, err := a.transitions.FindShipments(r.Context(), models.ShipmentFilter{ExcludeArchived: true})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	capacityPct := a.storedCapacityPercent(active)
	if q := r.URL.Query().Get("capacityPct"); q != "" {
		v, err := strconv.ParseFloat(q, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("capacityPct must be a number"))
			return
		}
		capacityPct = v
	}

	out := a.alerts.Compute(active, capacityPct, time.Now().UTC())
	if out == nil {
		out = []alerts.Alert{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": out, "capacityPct": capacityPct})
}

// storedCapacityPercent derives warehouse utilization from stored shipments
// against the configured capacity. Callers can override via query parameter.
func (a *ScheduleAPI) storedCapacityPercent(shipments []*models.Shipment) float64 {
	if a.warehouseCapacity <= 0 {
		return 0
	}
	stored := 0
	for _, sh := range shipments {
		if sh.Status == models.StatusStored {
			stored++
		}
	}
	return float64(stored) / float64(a.warehouseCapacity) * 100
}

type archiveRequest struct {
	ShipmentIDs []uint64 `json:"shipmentIds"`
	ArchiveType string   `json:"archiveType"`
	Reason      *string  `json:"reason,omitempty"`
}

func (a *ScheduleAPI) archive(w http.ResponseWriter, r *http.Request) {
	var req archiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ArchiveType == "" {
		req.ArchiveType = models.ArchiveTypeManual
	}
	rec, err := a.archiver.Archive(r.Context(), req.ShipmentIDs, req.ArchiveType, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toArchiveView(rec))
}

func (a *ScheduleAPI) listArchives(w http.ResponseWriter, r *http.Request) {
	recs, err := a.archiver.ListArchives(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]archiveView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toArchiveView(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"archives": out})
}

type renameRequest struct {
	NewFileName string `json:"newFileName"`
}

func (a *ScheduleAPI) renameArchive(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rec, err := a.archiver.Rename(r.Context(), chi.URLParam(r, "fileName"), req.NewFileName)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toArchiveView(rec))
}

func (a *ScheduleAPI) getPreferences(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := a.prefs.Resolve(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPreferenceView(p))
}

type updatePreferencesRequest struct {
	Categories     map[string]bool `json:"categories,omitempty"`
	EmailEnabled   *bool           `json:"emailEnabled,omitempty"`
	EmailFrequency *string         `json:"emailFrequency,omitempty"`
	EmailAddress   *string         `json:"emailAddress,omitempty"`
}

func (a *ScheduleAPI) updatePreferences(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req updatePreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := a.prefs.Update(r.Context(), id, prefs.PartialPreference{
		Categories:     req.Categories,
		EmailEnabled:   req.EmailEnabled,
		EmailFrequency: req.EmailFrequency,
		EmailAddress:   req.EmailAddress,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPreferenceView(p))
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("id must be a positive integer")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeServiceError maps business error kinds onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, apperr.ErrInvalidState), errors.Is(err, apperr.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, err)
	default:
		slog.Error("internal error", "error", err.Error())
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}
