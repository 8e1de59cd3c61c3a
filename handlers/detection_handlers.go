package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"rvnl.in/fittrack/models"
	"rvnl.in/fittrack/pkg/apperrors"
	"rvnl.in/fittrack/pkg/reconcile"
)

// detectionResponse is returned by every detection path so the caller can
// render consistent state without a second read.
type detectionResponse struct {
	OK      bool            `json:"ok"`
	FaultID *uuid.UUID      `json:"faultId,omitempty"`
	Rollup  models.Material `json:"rollup"`
}

// SubmitDetection ingests one detection from the trackside hardware
// gateway: normalize, append to the fault ledger, reconcile the rollup.
func SubmitDetection(w http.ResponseWriter, r *http.Request) {
	submitDetection(w, r, models.SourceHardwareAuto)
}

func submitDetection(w http.ResponseWriter, r *http.Request, source models.FaultSource) {
	var in reconcile.DetectionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	obs, err := reconcile.NormalizeDetection(in, source, time.Now().UTC())
	if err != nil {
		writeErr(w, err)
		return
	}

	faultID, rollup, err := store().SubmitObservation(r.Context(), obs, actorFrom(r))
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, detectionResponse{OK: true, FaultID: faultID, Rollup: rollup})
}

// aiVerifyRequest carries either a previously-uploaded blob reference or
// nothing at all when the photo rides along as multipart (handled by the
// files endpoint first).
type aiVerifyRequest struct {
	MaterialID string      `json:"materialId"`
	ImageRef   string      `json:"imageRef"`
	GPS        *models.GPS `json:"gps,omitempty"`
}

// AIVerify runs the AI verification path: classify the referenced photo
// through the inference service, then feed the result through the same
// detection pipeline with source ai_auto. An inference failure aborts
// before any write, so there is no partial material update.
func AIVerify(w http.ResponseWriter, r *http.Request) {
	var req aiVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.MaterialID == "" {
		writeErr(w, apperrors.Validation("materialId", "is required"))
		return
	}
	if req.ImageRef == "" {
		writeErr(w, apperrors.Validation("imageRef", "is required"))
		return
	}

	cls, err := inferSvc.Classify(r.Context(), req.ImageRef)
	if err != nil {
		writeErr(w, err)
		return
	}

	obs, err := reconcile.NormalizeDetection(reconcile.DetectionInput{
		MaterialID:    req.MaterialID,
		ComponentType: cls.Component,
		Condition:     cls.Condition,
		Confidence:    cls.Confidence,
		GPS:           req.GPS,
	}, models.SourceAIAuto, time.Now().UTC())
	if err != nil {
		writeErr(w, err)
		return
	}

	faultID, rollup, err := store().SubmitObservation(r.Context(), obs, actorFrom(r))
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, detectionResponse{OK: true, FaultID: faultID, Rollup: rollup})
}
