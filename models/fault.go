package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Severity of a fault, totally ordered. Comparison always goes through
// Rank so that two sources disagreeing about a component resolve the same
// way regardless of arrival order.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank maps a severity onto its position in the precedence order.
// Unknown values rank below low so a malformed row can never displace a
// real severity.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// FaultSource identifies which class of actor produced a detection.
type FaultSource string

const (
	SourceHardwareAuto FaultSource = "hardware_auto"
	SourceAIAuto       FaultSource = "ai_auto"
	SourceMaintenance  FaultSource = "manual_maintenance"
)

// Automated reports whether the source is a machine detection path
// (hardware gateway or AI inference) rather than a person.
func (fs FaultSource) Automated() bool {
	return fs == SourceHardwareAuto || fs == SourceAIAuto
}

// LedgerStatus is the per-entry state in the fault ledger. It tracks
// independently of the material's rollup FaultStatus.
type LedgerStatus string

const (
	LedgerOpen     LedgerStatus = "open"
	LedgerVerified LedgerStatus = "verified"
	LedgerClosed   LedgerStatus = "closed"
)

// Fault is one append-only ledger entry: a single detection or manual
// report. Entries are never deleted and, status aside, never edited, so
// the ledger stays a complete audit trail even if a rollup write is lost.
type Fault struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	MaterialID    string         `gorm:"index;not null" json:"materialId"`
	ComponentType string         `gorm:"not null" json:"componentType"`
	FailureType   string         `json:"failureType"`
	Severity      Severity       `gorm:"index;not null" json:"severity"`
	Description   string         `json:"description,omitempty"`
	GPS           *GPS           `json:"gps,omitempty"`
	Images        datatypes.JSON `json:"images,omitempty"`
	Status        LedgerStatus   `gorm:"index;default:open" json:"status"`
	Source        FaultSource    `gorm:"not null" json:"source"`
	Confidence    *float64       `json:"confidence,omitempty"`

	CreatedBy        string    `json:"createdBy"`
	CreatedByName    string    `json:"createdByName,omitempty"`
	ResolvedBy       string    `json:"resolvedBy,omitempty"`
	TimeOfOccurrence time.Time `json:"timeOfOccurrence"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (f *Fault) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.Status == "" {
		f.Status = LedgerOpen
	}
	if f.TimeOfOccurrence.IsZero() {
		f.TimeOfOccurrence = time.Now().UTC()
	}
	return nil
}

// MaxSeverity returns the highest severity among the given ledger entries,
// or false when the slice is empty. The fault rollup on a material is
// always this maximum over currently-open entries, never the most recent
// arrival.
func MaxSeverity(faults []Fault) (Severity, bool) {
	var best Severity
	found := false
	for _, f := range faults {
		if !found || f.Severity.Rank() > best.Rank() {
			best = f.Severity
			found = true
		}
	}
	return best, found
}
