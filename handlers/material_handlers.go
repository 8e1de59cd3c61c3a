package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"rvnl.in/fittrack/models"
	"rvnl.in/fittrack/pkg/apperrors"
	"rvnl.in/fittrack/pkg/reconcile"
	"rvnl.in/fittrack/utils"
)

type createMaterialRequest struct {
	MaterialID          string `json:"materialId"`
	FittingType         string `json:"fittingType"`
	DrawingNumber       string `json:"drawingNumber"`
	MaterialSpec        string `json:"materialSpec"`
	WeightKg            string `json:"weightKg"`
	BoardGauge          string `json:"boardGauge"`
	ExpectedLifeYears   string `json:"expectedLifeYears"`
	PurchaseOrderNumber string `json:"purchaseOrderNumber"`
	BatchNumber         string `json:"batchNumber"`
	DepotCode           string `json:"depotCode"`
	UdmLotNumber        string `json:"udmLotNumber"`
	ManufacturingDate   string `json:"manufacturingDate"`
}

// CreateMaterial registers a new fitting. Manufacturing attributes are
// written exactly once here and never touched by reconciliation.
func CreateMaterial(w http.ResponseWriter, r *http.Request) {
	var req createMaterialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	switch {
	case strings.TrimSpace(req.MaterialID) == "":
		writeErr(w, apperrors.Validation("materialId", "is required"))
		return
	case strings.TrimSpace(req.FittingType) == "":
		writeErr(w, apperrors.Validation("fittingType", "is required"))
		return
	case strings.TrimSpace(req.BatchNumber) == "":
		writeErr(w, apperrors.Validation("batchNumber", "is required"))
		return
	}

	actor := actorFrom(r)
	m := models.Material{
		MaterialID:          strings.TrimSpace(req.MaterialID),
		FittingType:         req.FittingType,
		DrawingNumber:       req.DrawingNumber,
		MaterialSpec:        req.MaterialSpec,
		WeightKg:            req.WeightKg,
		BoardGauge:          req.BoardGauge,
		ExpectedLifeYears:   req.ExpectedLifeYears,
		PurchaseOrderNumber: req.PurchaseOrderNumber,
		BatchNumber:         req.BatchNumber,
		DepotCode:           req.DepotCode,
		UdmLotNumber:        req.UdmLotNumber,
		ManufacturerID:      actor.ID,
		ManufacturingDate:   req.ManufacturingDate,
		CreatedBy:           actor.ID,
	}

	if err := store().CreateMaterial(r.Context(), &m); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// GetMaterial returns the full reconciled document for one asset.
func GetMaterial(w http.ResponseWriter, r *http.Request) {
	m, err := store().GetMaterial(r.Context(), mux.Vars(r)["materialId"])
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ListMaterials returns the register, filterable by ?manufacturerId= and
// ?requestStatus=.
func ListMaterials(w http.ResponseWriter, r *http.Request) {
	materials, err := store().ListMaterials(r.Context(),
		r.URL.Query().Get("manufacturerId"),
		models.RequestStatus(r.URL.Query().Get("requestStatus")))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, materials)
}

type installationRequest struct {
	InstallationStatus models.InstallationStatus `json:"installationStatus"`
	GpsLocation        *models.GPS               `json:"gpsLocation,omitempty"`
	TmsTrackID         string                    `json:"tmsTrackId"`
	DepotEntryDate     string                    `json:"depotEntryDate"`
}

// UpdateInstallation writes the installer-owned fields. The install
// location must fall inside the configured depot section boundary, and an
// installed fitting never reverts to not_installed.
func UpdateInstallation(w http.ResponseWriter, r *http.Request) {
	materialID := mux.Vars(r)["materialId"]

	var req installationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.GpsLocation != nil {
		ok, err := utils.WithinDepotBoundary(*req.GpsLocation)
		if err != nil {
			writeErr(w, err)
			return
		}
		if !ok {
			writeErr(w, apperrors.Validation("gpsLocation", "outside the depot section boundary"))
			return
		}
	}

	rollup, err := store().UpdateInstallation(r.Context(), materialID, reconcile.Installation{
		InstallationStatus: req.InstallationStatus,
		GpsLocation:        req.GpsLocation,
		TmsTrackID:         req.TmsTrackID,
		DepotEntryDate:     req.DepotEntryDate,
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "rollup": rollup})
}
