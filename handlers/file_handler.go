package handlers

import (
	"net/http"
)

// UploadEvidence stores one fault-evidence photo in the blob store and
// returns its reference. Only the reference lands on fault ledger entries
// and detection requests, never the bytes.
func UploadEvidence(w http.ResponseWriter, r *http.Request) {
	// max 50MB, same ceiling the mobile clients enforce
	if err := r.ParseMultipartForm(50 << 20); err != nil {
		http.Error(w, "bad multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	ref, err := blob.Put(r.Context(), header.Filename, file)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"ref":      ref,
		"filename": header.Filename,
	})
}
