package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"rvnl.in/fittrack/pkg/reconcile"
)

type approvalRequest struct {
	Decision reconcile.Decision `json:"decision"`
}

// DecideApproval applies the depot officer's approve/reject call on a
// material. The transition is one-shot: deciding an already-decided
// material returns the existing state with its original approval
// timestamp intact, so a double-submitting UI cannot corrupt it.
func DecideApproval(w http.ResponseWriter, r *http.Request) {
	materialID := mux.Vars(r)["materialId"]

	var req approvalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	rollup, err := store().DecideApproval(r.Context(), materialID, req.Decision)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "rollup": rollup})
}
