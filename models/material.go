package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InstallationStatus values. Forward-only: once a fitting is installed it
// never reverts to not_installed.
type InstallationStatus string

const (
	InstallationNotInstalled InstallationStatus = "not_installed"
	InstallationInstalled    InstallationStatus = "installed"
)

// FaultStatus is the rollup fault state on the material document,
// independent of the per-entry status in the fault ledger.
type FaultStatus string

const (
	FaultStatusPendingVerification FaultStatus = "pending_verification"
	FaultStatusVerified            FaultStatus = "verified"
)

// RequestStatus is the depot officer's approval decision. One-shot:
// pending -> approved or pending -> rejected, then terminal.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Terminal reports whether the approval decision can no longer change.
func (rs RequestStatus) Terminal() bool {
	return rs == RequestApproved || rs == RequestRejected
}

// Material is the canonical per-asset document for one track fitting.
// Six independent writers (manufacturer, installer, AI pipeline, hardware
// gateway, maintenance engineer, depot officer) all land on this row; every
// mutation goes through the registry's compare-and-set write path, keyed on
// Version.
type Material struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MaterialID string    `gorm:"uniqueIndex;not null" json:"materialId"`

	// Manufacturing attributes. Set once at registration, never reconciled.
	FittingType         string `gorm:"not null" json:"fittingType"`
	DrawingNumber       string `json:"drawingNumber"`
	MaterialSpec        string `json:"materialSpec"`
	WeightKg            string `json:"weightKg,omitempty"`
	BoardGauge          string `json:"boardGauge,omitempty"`
	ExpectedLifeYears   string `json:"expectedLifeYears,omitempty"`
	PurchaseOrderNumber string `json:"purchaseOrderNumber,omitempty"`
	BatchNumber         string `json:"batchNumber"`
	DepotCode           string `json:"depotCode,omitempty"`
	UdmLotNumber        string `json:"udmLotNumber,omitempty"`
	ManufacturerID      string `gorm:"index" json:"manufacturerId"`
	ManufacturingDate   string `json:"manufacturingDate"`
	CreatedBy           string `json:"createdBy"`

	// Installation fields, owned by the track installer.
	InstallationStatus InstallationStatus `gorm:"default:not_installed" json:"installationStatus"`
	GpsLocation        *GPS               `json:"gpsLocation,omitempty"`
	TmsTrackID         string             `json:"tmsTrackId,omitempty"`
	DepotEntryDate     string             `json:"depotEntryDate,omitempty"`

	// AI verification fields. AiVerified is a latch: the first automated
	// observation sets it true and no automated path ever resets it.
	AiVerified           bool       `gorm:"default:false" json:"aiVerified"`
	AiVerificationStatus string     `json:"aiVerificationStatus,omitempty"`
	AiVerifiedComponent  string     `json:"aiVerifiedComponent,omitempty"`
	AiVerifiedConfidence *float64   `json:"aiVerifiedConfidence,omitempty"`
	AiVerifiedAt         *time.Time `json:"aiVerifiedAt,omitempty"`

	// Fault rollup, derived from open ledger entries by the reconciler.
	// Severity and status are present together or not at all.
	FaultType        string       `json:"faultType,omitempty"`
	FaultSeverity    *Severity    `json:"faultSeverity,omitempty"`
	FaultStatus      *FaultStatus `json:"faultStatus,omitempty"`
	FaultDetectedAt  *time.Time   `json:"faultDetectedAt,omitempty"`
	FaultSource      *FaultSource `json:"faultSource,omitempty"`
	MaintenanceNotes string       `json:"maintenanceNotes,omitempty"`

	// Engineer verification fields.
	EngineerRemarks          string     `json:"engineerRemarks,omitempty"`
	EngineerRootCause        string     `json:"engineerRootCause,omitempty"`
	EngineerPreventiveAction string     `json:"engineerPreventiveAction,omitempty"`
	EngineerGpsLocation      *GPS       `json:"engineerGpsLocation,omitempty"`
	LastMaintenanceDate      *time.Time `json:"lastMaintenanceDate,omitempty"`

	// Depot officer approval.
	RequestStatus       RequestStatus `gorm:"default:pending" json:"requestStatus"`
	OfficerApprovalDate *time.Time    `json:"officerApprovalDate,omitempty"`

	// Version backs the optimistic compare-and-set in the registry.
	Version int `gorm:"not null;default:1" json:"version"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (m *Material) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.InstallationStatus == "" {
		m.InstallationStatus = InstallationNotInstalled
	}
	if m.RequestStatus == "" {
		m.RequestStatus = RequestPending
	}
	if m.Version == 0 {
		m.Version = 1
	}
	return nil
}
