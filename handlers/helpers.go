package handlers

import (
	"encoding/json"
	"net/http"

	"rvnl.in/fittrack/config"
	"rvnl.in/fittrack/middleware"
	"rvnl.in/fittrack/pkg/apperrors"
	"rvnl.in/fittrack/pkg/blobstore"
	"rvnl.in/fittrack/pkg/inference"
	"rvnl.in/fittrack/pkg/registry"
)

// Shared collaborators, wired once from main.
var (
	blob     blobstore.Store
	inferSvc *inference.Client
)

// Setup injects the external collaborators the handlers depend on.
func Setup(b blobstore.Store, inf *inference.Client) {
	blob = b
	inferSvc = inf
}

// store builds the registry over the shared DB handle.
func store() *registry.Store {
	return registry.New(config.DB, config.Log)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeErr maps the error taxonomy onto HTTP statuses: validation 400,
// not found 404, concurrent update 409, upstream 502/504.
func writeErr(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), apperrors.HTTPStatus(err))
}

// actorFrom extracts the resolved caller for ledger attribution. The
// gateway path carries no identity and records the gateway itself.
func actorFrom(r *http.Request) registry.Actor {
	if id := middleware.GetIdentity(r); id != nil {
		return registry.Actor{ID: id.UserID, Name: id.Name}
	}
	return registry.Actor{ID: "hardware-gateway", Name: "Hardware Gateway"}
}
