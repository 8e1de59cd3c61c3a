// Package reconcile holds the pure fault-lifecycle logic: normalizing raw
// detections into observations and computing the next material rollup from
// the current document plus the open fault ledger. Nothing in this package
// touches the database; the registry applies whatever it computes.
package reconcile

import (
	"fmt"
	"strings"
	"time"

	"rvnl.in/fittrack/models"
	"rvnl.in/fittrack/pkg/apperrors"
)

// Condition is the normalized reading for one component in one detection.
type Condition string

const (
	ConditionOK      Condition = "ok"
	ConditionFaulty  Condition = "faulty"
	ConditionRust    Condition = "rust"
	ConditionMissing Condition = "missing"
)

// SeverityFor maps a non-ok condition onto the severity precedence order.
func SeverityFor(c Condition) models.Severity {
	switch c {
	case ConditionMissing:
		return models.SeverityCritical
	case ConditionFaulty:
		return models.SeverityHigh
	case ConditionRust:
		return models.SeverityMedium
	}
	return models.SeverityLow
}

// FailureLabel renders the human-readable failure type for a condition,
// e.g. "ERC missing" or "LINER rust".
func FailureLabel(componentType string, c Condition) string {
	return fmt.Sprintf("%s %s", strings.ToUpper(componentType), c)
}

// Observation is a canonical detection event: the transient input to the
// reconciler. Confidence stays nil for manual reports and renders as "n/a",
// never as zero.
type Observation struct {
	MaterialID    string
	ComponentType string
	Condition     Condition
	Confidence    *float64
	Source        models.FaultSource
	GPS           *models.GPS
	DetectedAt    time.Time
	Description   string
}

// DetectionInput is the raw payload from the hardware gateway or the AI
// pipeline before normalization. DetectedAtUnix is seconds since epoch,
// the format the trackside gateways emit.
type DetectionInput struct {
	MaterialID     string      `json:"materialId"`
	ComponentType  string      `json:"componentType"`
	Condition      string      `json:"condition"`
	Confidence     *float64    `json:"confidence,omitempty"`
	GPS            *models.GPS `json:"gps,omitempty"`
	DetectedAtUnix *int64      `json:"detectedAt,omitempty"`
	Description    string      `json:"description,omitempty"`
}

// NormalizeDetection validates and canonicalizes a raw detection. Pure:
// no side effects beyond the returned observation.
func NormalizeDetection(in DetectionInput, source models.FaultSource, now time.Time) (Observation, error) {
	if in.MaterialID == "" {
		return Observation{}, apperrors.Validation("materialId", "is required")
	}
	if in.ComponentType == "" {
		return Observation{}, apperrors.Validation("componentType", "is required")
	}
	if in.Condition == "" {
		return Observation{}, apperrors.Validation("condition", "is required")
	}

	cond := Condition(strings.ToLower(strings.TrimSpace(in.Condition)))
	switch cond {
	case ConditionOK, ConditionFaulty, ConditionRust, ConditionMissing:
	default:
		return Observation{}, apperrors.Validation("condition", fmt.Sprintf("unknown value %q", in.Condition))
	}

	conf := in.Confidence
	if conf != nil {
		c := *conf
		if c < 0 {
			c = 0
		}
		if c > 1 {
			c = 1
		}
		conf = &c
	}

	detectedAt := now
	if in.DetectedAtUnix != nil {
		detectedAt = time.Unix(*in.DetectedAtUnix, 0).UTC()
	}

	return Observation{
		MaterialID:    in.MaterialID,
		ComponentType: strings.TrimSpace(in.ComponentType),
		Condition:     cond,
		Confidence:    conf,
		Source:        source,
		GPS:           in.GPS,
		DetectedAt:    detectedAt,
		Description:   in.Description,
	}, nil
}

// StatusLine renders the one-line summary written into the material's
// aiVerificationStatus and maintenanceNotes fields, matching the format
// the depot dashboards parse:
//
//	ERC missing detected (conf: 0.91) at GPS: 12.34567, 76.54321
//	ERC appears OK (conf: n/a) at GPS: not provided
func StatusLine(obs Observation) string {
	conf := "n/a"
	if obs.Confidence != nil {
		conf = fmt.Sprintf("%.2f", *obs.Confidence)
	}
	gps := "not provided"
	if obs.GPS != nil {
		gps = obs.GPS.String()
	}
	component := strings.ToUpper(obs.ComponentType)
	if obs.Condition == ConditionOK {
		return fmt.Sprintf("%s appears OK (conf: %s) at GPS: %s", component, conf, gps)
	}
	return fmt.Sprintf("%s %s detected (conf: %s) at GPS: %s", component, obs.Condition, conf, gps)
}

// LedgerEntry builds the append-only fault row for a non-ok observation.
func LedgerEntry(obs Observation, createdBy, createdByName string) models.Fault {
	return models.Fault{
		MaterialID:       obs.MaterialID,
		ComponentType:    obs.ComponentType,
		FailureType:      FailureLabel(obs.ComponentType, obs.Condition),
		Severity:         SeverityFor(obs.Condition),
		Description:      obs.Description,
		GPS:              obs.GPS,
		Status:           models.LedgerOpen,
		Source:           obs.Source,
		Confidence:       obs.Confidence,
		CreatedBy:        createdBy,
		CreatedByName:    createdByName,
		TimeOfOccurrence: obs.DetectedAt,
	}
}
