package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"gorm.io/datatypes"
	"rvnl.in/fittrack/models"
	"rvnl.in/fittrack/pkg/apperrors"
	"rvnl.in/fittrack/pkg/reconcile"
)

type manualFaultRequest struct {
	MaterialID    string           `json:"materialId"`
	ComponentType string           `json:"componentType"`
	FailureType   string           `json:"failureType"`
	Severity      models.Severity  `json:"severity"`
	Description   string           `json:"description"`
	GPS           *models.GPS      `json:"gps,omitempty"`
	Images        []string         `json:"images,omitempty"`
	OccurredAt    *models.JSONTime `json:"timeOfOccurrence,omitempty"`
}

// SubmitManualFault logs a component failure reported by maintenance
// staff in the field, with photo evidence already uploaded to the blob
// store.
func SubmitManualFault(w http.ResponseWriter, r *http.Request) {
	var req manualFaultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	switch {
	case strings.TrimSpace(req.MaterialID) == "":
		writeErr(w, apperrors.Validation("materialId", "is required"))
		return
	case strings.TrimSpace(req.ComponentType) == "":
		writeErr(w, apperrors.Validation("componentType", "is required"))
		return
	case strings.TrimSpace(req.Description) == "":
		writeErr(w, apperrors.Validation("description", "is required"))
		return
	}
	if req.Severity.Rank() == 0 {
		writeErr(w, apperrors.Validation("severity", "must be low, medium, high or critical"))
		return
	}

	images, _ := json.Marshal(req.Images)
	occurred := time.Now().UTC()
	if req.OccurredAt != nil {
		occurred = req.OccurredAt.Time()
	}
	failureType := req.FailureType
	if failureType == "" {
		failureType = strings.ToUpper(req.ComponentType) + " failure"
	}

	entry := models.Fault{
		MaterialID:       strings.TrimSpace(req.MaterialID),
		ComponentType:    strings.TrimSpace(req.ComponentType),
		FailureType:      failureType,
		Severity:         req.Severity,
		Description:      strings.TrimSpace(req.Description),
		GPS:              req.GPS,
		Images:           datatypes.JSON(images),
		TimeOfOccurrence: occurred,
	}

	faultID, rollup, err := store().SubmitManualReport(r.Context(), entry, actorFrom(r))
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"ok":      true,
		"faultId": faultID,
		"rollup":  rollup,
	})
}

// ListFaults returns ledger entries filtered by ?materialId= and
// ?status=.
func ListFaults(w http.ResponseWriter, r *http.Request) {
	materialID := r.URL.Query().Get("materialId")
	status := models.LedgerStatus(r.URL.Query().Get("status"))

	faults, err := store().ListFaults(r.Context(), materialID, status)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, faults)
}

type verifyFaultRequest struct {
	EngineerRemarks  string      `json:"engineerRemarks"`
	RootCause        string      `json:"rootCause"`
	PreventiveAction string      `json:"preventiveAction"`
	GPS              *models.GPS `json:"gps,omitempty"`
}

// VerifyFault records the verifying engineer's findings against a ledger
// entry and moves the material rollup to verified.
func VerifyFault(w http.ResponseWriter, r *http.Request) {
	faultID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid fault ID", http.StatusBadRequest)
		return
	}

	var req verifyFaultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.EngineerRemarks) == "" {
		writeErr(w, apperrors.Validation("engineerRemarks", "is required"))
		return
	}

	actor := actorFrom(r)
	rollup, err := store().VerifyFault(r.Context(), faultID, reconcile.Verification{
		Remarks:          req.EngineerRemarks,
		RootCause:        req.RootCause,
		PreventiveAction: req.PreventiveAction,
		GPS:              req.GPS,
		EngineerID:       actor.ID,
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "rollup": rollup})
}

// CloseFault marks a ledger entry resolved. Closing twice is a no-op.
func CloseFault(w http.ResponseWriter, r *http.Request) {
	faultID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid fault ID", http.StatusBadRequest)
		return
	}

	if err := store().CloseFault(r.Context(), faultID, actorFrom(r).ID); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}
