package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"rvnl.in/fittrack/handlers"
	"rvnl.in/fittrack/middleware"
	"rvnl.in/fittrack/pkg/access"
)

// RegisterRoutes sets up all application routes
func RegisterRoutes(resolver access.Resolver) http.Handler {
	r := mux.NewRouter()

	// =====================================================
	// Machine routes (hardware gateway, x-api-key)
	// =====================================================
	gateway := r.PathPrefix("/api/v1").Subrouter()
	gateway.Use(middleware.GatewayKey)
	gateway.HandleFunc("/detections", handlers.SubmitDetection).Methods("POST")

	// Local blob refs resolve here in development
	r.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir("./uploads"))),
	)

	// =====================================================
	// Authenticated routes (access-service session token)
	// =====================================================
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Auth(resolver))

	// Material registry
	api.Handle("/materials",
		middleware.RequireRole(access.RoleManufacturer, access.RoleManufacturerAdmin)(
			http.HandlerFunc(handlers.CreateMaterial))).Methods("POST")
	api.HandleFunc("/materials", handlers.ListMaterials).Methods("GET")
	api.Handle("/materials/export",
		middleware.RequireRole(access.RoleManufacturerAdmin, access.RoleDepotOfficer)(
			http.HandlerFunc(handlers.ExportMaterials))).Methods("GET")
	api.HandleFunc("/materials/{materialId}", handlers.GetMaterial).Methods("GET")
	api.Handle("/materials/{materialId}/installation",
		middleware.RequireRole(access.RoleTrackInstaller)(
			http.HandlerFunc(handlers.UpdateInstallation))).Methods("PUT")
	api.Handle("/materials/{materialId}/approval",
		middleware.RequireRole(access.RoleDepotOfficer)(
			http.HandlerFunc(handlers.DecideApproval))).Methods("POST")

	// AI verification path (installer photographs the fitting in situ)
	api.Handle("/ai-verify",
		middleware.RequireRole(access.RoleTrackInstaller, access.RoleMaintenance)(
			http.HandlerFunc(handlers.AIVerify))).Methods("POST")

	// Fault ledger
	api.Handle("/faults",
		middleware.RequireRole(access.RoleMaintenance)(
			http.HandlerFunc(handlers.SubmitManualFault))).Methods("POST")
	api.HandleFunc("/faults", handlers.ListFaults).Methods("GET")
	api.Handle("/faults/{id}/verify",
		middleware.RequireRole(access.RoleMaintenance)(
			http.HandlerFunc(handlers.VerifyFault))).Methods("POST")
	api.Handle("/faults/{id}/close",
		middleware.RequireRole(access.RoleMaintenance)(
			http.HandlerFunc(handlers.CloseFault))).Methods("POST")

	// Evidence uploads
	api.HandleFunc("/files", handlers.UploadEvidence).Methods("POST")

	return r
}
