package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"rvnl.in/fittrack/models"
	"rvnl.in/fittrack/pkg/apperrors"
)

// Result is the reconciler's computed delta: the next material document
// plus the ledger entries whose status should flip to closed. The caller
// commits both; nothing is written here.
type Result struct {
	Material models.Material
	// RollupChanged is false when the observation was ledger-only, e.g. a
	// lower-severity re-detection of an engineer-verified fault.
	RollupChanged bool
	// CloseFaultIDs lists open automated entries cleared by an "ok"
	// reading of the same component.
	CloseFaultIDs []uuid.UUID
}

// Apply computes the next rollup for one observation, given the current
// document and the currently-open ledger entries for the asset. For a
// non-ok observation the caller must have appended its ledger entry
// already and included it in open; the ledger append is durable even when
// the rollup write later fails, so append always happens first.
//
// The reconciled severity is the maximum over open entries, never just the
// latest arrival: two observations applied in either order converge to the
// same severity and status.
func Apply(m models.Material, open []models.Fault, obs Observation) Result {
	line := StatusLine(obs)

	// AI latch and verification scalars update on every automated
	// observation, fault or not. The latch is monotonic: false -> true,
	// never back.
	if obs.Source.Automated() {
		m.AiVerified = true
		m.AiVerificationStatus = line
		m.AiVerifiedComponent = obs.ComponentType
		m.AiVerifiedConfidence = obs.Confidence
		at := obs.DetectedAt
		m.AiVerifiedAt = &at
	}

	if obs.Condition == ConditionOK {
		return applyOK(m, open, obs)
	}

	// Engineer verification dominates automated re-detection: a verified
	// rollup reopens only for a strictly higher severity.
	if m.FaultStatus != nil && *m.FaultStatus == models.FaultStatusVerified {
		if m.FaultSeverity != nil && SeverityFor(obs.Condition).Rank() <= m.FaultSeverity.Rank() {
			return Result{Material: m, RollupChanged: false}
		}
	}

	dominant := dominantFault(open)
	if dominant == nil {
		// Open set should contain at least the entry for this observation;
		// fall back to the observation itself if the caller skipped it.
		entry := LedgerEntry(obs, "", "")
		dominant = &entry
	}

	m.FaultType = dominant.FailureType
	sev := dominant.Severity
	m.FaultSeverity = &sev
	status := models.FaultStatusPendingVerification
	m.FaultStatus = &status
	at := obs.DetectedAt
	m.FaultDetectedAt = &at
	src := obs.Source
	m.FaultSource = &src
	m.MaintenanceNotes = line

	return Result{Material: m, RollupChanged: true}
}

// applyOK handles a condition == "ok" reading. It clears severity state
// only for the component being evaluated: open automated entries for that
// component close, the rollup is recomputed from whatever remains, and
// faults on other components are never touched.
func applyOK(m models.Material, open []models.Fault, obs Observation) Result {
	// A verified rollup records an engineer's judgement; an automated ok
	// reading does not override it.
	if m.FaultStatus != nil && *m.FaultStatus == models.FaultStatusVerified {
		return Result{Material: m, RollupChanged: false}
	}

	var closeIDs []uuid.UUID
	var remaining []models.Fault
	for _, f := range open {
		if f.Source.Automated() && strings.EqualFold(f.ComponentType, obs.ComponentType) {
			closeIDs = append(closeIDs, f.ID)
			continue
		}
		remaining = append(remaining, f)
	}

	dominant := dominantFault(remaining)
	if dominant != nil {
		// Another component still has an open fault; the rollup keeps
		// pointing at it.
		m.FaultType = dominant.FailureType
		sev := dominant.Severity
		m.FaultSeverity = &sev
		status := models.FaultStatusPendingVerification
		m.FaultStatus = &status
		src := dominant.Source
		m.FaultSource = &src
		at := dominant.TimeOfOccurrence
		m.FaultDetectedAt = &at
		m.MaintenanceNotes = entryStatusLine(*dominant)
	} else {
		m.FaultType = ""
		m.FaultSeverity = nil
		m.FaultStatus = nil
		m.FaultDetectedAt = nil
		m.FaultSource = nil
		m.MaintenanceNotes = StatusLine(obs)
	}

	return Result{Material: m, RollupChanged: true, CloseFaultIDs: closeIDs}
}

// ApplyManualReport folds a maintenance-crew fault report into the
// rollup. The entry must already be appended and included in open. Same
// rules as an automated detection: max severity over open entries wins,
// and an engineer-verified rollup only reopens for a strictly higher
// severity.
func ApplyManualReport(m models.Material, open []models.Fault, entry models.Fault) Result {
	if m.FaultStatus != nil && *m.FaultStatus == models.FaultStatusVerified {
		if m.FaultSeverity != nil && entry.Severity.Rank() <= m.FaultSeverity.Rank() {
			return Result{Material: m, RollupChanged: false}
		}
	}

	dominant := dominantFault(open)
	if dominant == nil {
		dominant = &entry
	}

	m.FaultType = dominant.FailureType
	sev := dominant.Severity
	m.FaultSeverity = &sev
	status := models.FaultStatusPendingVerification
	m.FaultStatus = &status
	at := entry.TimeOfOccurrence
	m.FaultDetectedAt = &at
	src := entry.Source
	m.FaultSource = &src
	if entry.Description != "" {
		m.MaintenanceNotes = entry.FailureType + ": " + entry.Description
	} else {
		m.MaintenanceNotes = entry.FailureType
	}

	return Result{Material: m, RollupChanged: true}
}

// entryStatusLine renders a ledger entry in the same one-line format
// StatusLine uses for observations, for when the rollup re-points at an
// already-open entry rather than the incoming observation.
func entryStatusLine(f models.Fault) string {
	conf := "n/a"
	if f.Confidence != nil {
		conf = fmt.Sprintf("%.2f", *f.Confidence)
	}
	gps := "not provided"
	if f.GPS != nil {
		gps = f.GPS.String()
	}
	return fmt.Sprintf("%s detected (conf: %s) at GPS: %s", f.FailureType, conf, gps)
}

// dominantFault picks the entry the rollup should reference: highest
// severity, earliest occurrence on ties.
func dominantFault(open []models.Fault) *models.Fault {
	var best *models.Fault
	for i := range open {
		f := &open[i]
		if best == nil ||
			f.Severity.Rank() > best.Severity.Rank() ||
			(f.Severity.Rank() == best.Severity.Rank() && f.TimeOfOccurrence.Before(best.TimeOfOccurrence)) {
			best = f
		}
	}
	return best
}

// Verification carries the engineer's findings for a fault.
type Verification struct {
	Remarks          string
	RootCause        string
	PreventiveAction string
	GPS              *models.GPS
	EngineerID       string
}

// ApplyVerification moves the rollup to verified and records the engineer
// fields. The fault must already be on the material's rollup.
func ApplyVerification(m models.Material, v Verification, now time.Time) (models.Material, error) {
	if m.FaultStatus == nil {
		return m, apperrors.Validation("faultStatus", "material has no fault awaiting verification")
	}
	status := models.FaultStatusVerified
	m.FaultStatus = &status
	m.EngineerRemarks = v.Remarks
	m.EngineerRootCause = v.RootCause
	m.EngineerPreventiveAction = v.PreventiveAction
	m.EngineerGpsLocation = v.GPS
	m.LastMaintenanceDate = &now
	return m, nil
}

// Decision is a depot officer's terminal call on a material.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ApplyApproval runs the one-shot approval transition. Re-applying any
// decision to an already-terminal material returns it unchanged; the
// approval timestamp is never overwritten by a double submission.
func ApplyApproval(m models.Material, d Decision, now time.Time) (models.Material, bool, error) {
	if d != DecisionApprove && d != DecisionReject {
		return m, false, apperrors.Validation("decision", "must be approve or reject")
	}
	if m.RequestStatus.Terminal() {
		return m, false, nil
	}
	if d == DecisionApprove {
		m.RequestStatus = models.RequestApproved
	} else {
		m.RequestStatus = models.RequestRejected
	}
	m.OfficerApprovalDate = &now
	return m, true, nil
}

// Installation carries the installer-owned fields.
type Installation struct {
	InstallationStatus models.InstallationStatus
	GpsLocation        *models.GPS
	TmsTrackID         string
	DepotEntryDate     string
}

// ApplyInstallation overwrites the installer-owned scalars. The
// installation status itself is forward-only: installed never reverts.
func ApplyInstallation(m models.Material, in Installation) (models.Material, error) {
	switch in.InstallationStatus {
	case "", models.InstallationNotInstalled, models.InstallationInstalled:
	default:
		return m, apperrors.Validation("installationStatus", "unknown value")
	}
	if m.InstallationStatus == models.InstallationInstalled &&
		in.InstallationStatus == models.InstallationNotInstalled {
		return m, apperrors.Validation("installationStatus", "cannot revert an installed fitting")
	}
	if in.InstallationStatus != "" {
		m.InstallationStatus = in.InstallationStatus
	}
	if in.GpsLocation != nil {
		m.GpsLocation = in.GpsLocation
	}
	if in.TmsTrackID != "" {
		m.TmsTrackID = in.TmsTrackID
	}
	if in.DepotEntryDate != "" {
		m.DepotEntryDate = in.DepotEntryDate
	}
	return m, nil
}
