package registry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"rvnl.in/fittrack/models"
	"rvnl.in/fittrack/pkg/apperrors"
	"rvnl.in/fittrack/pkg/logger"
	"rvnl.in/fittrack/pkg/reconcile"
)

var dbSeq int64

// newTestStore opens a fresh in-memory database per test. Shared cache
// keeps the database alive across the pooled connections gorm opens.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:registry_test_%d?mode=memory&cache=shared", atomic.AddInt64(&dbSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Material{}, &models.Fault{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db, logger.Nop())
}

func seedMaterial(t *testing.T, s *Store, materialID string) models.Material {
	t.Helper()
	m := models.Material{
		MaterialID:     materialID,
		FittingType:    "ERC Mark-V",
		BatchNumber:    "B-7741",
		ManufacturerID: "mfr-001",
		CreatedBy:      "mfr-001",
	}
	if err := s.CreateMaterial(context.Background(), &m); err != nil {
		t.Fatalf("seed material: %v", err)
	}
	return m
}

func detection(materialID, component string, cond reconcile.Condition) reconcile.Observation {
	return reconcile.Observation{
		MaterialID:    materialID,
		ComponentType: component,
		Condition:     cond,
		Source:        models.SourceHardwareAuto,
		DetectedAt:    time.Now().UTC(),
	}
}

var gateway = Actor{ID: "hardware-gateway", Name: "hardware-gateway"}

func TestCreateMaterialRejectsDuplicate(t *testing.T) {
	s := newTestStore(t)
	seedMaterial(t, s, "EC10001")

	dup := models.Material{MaterialID: "EC10001", FittingType: "ERC Mark-V", BatchNumber: "B-0001"}
	err := s.CreateMaterial(context.Background(), &dup)
	var ve *apperrors.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for duplicate materialId, got %v", err)
	}
}

func TestGetMaterialNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetMaterial(context.Background(), "EC99999")
	var nf *apperrors.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

// Full detection path: gateway reports a missing clip, the ledger gains an
// open entry and the rollup reflects it, version bumped.
func TestSubmitObservationDetection(t *testing.T) {
	s := newTestStore(t)
	seedMaterial(t, s, "EC10002")
	ctx := context.Background()

	faultID, rollup, err := s.SubmitObservation(ctx, detection("EC10002", "erc", reconcile.ConditionMissing), gateway)
	if err != nil {
		t.Fatalf("SubmitObservation: %v", err)
	}
	if faultID == nil {
		t.Fatal("expected a ledger entry id")
	}
	if rollup.FaultSeverity == nil || *rollup.FaultSeverity != models.SeverityCritical {
		t.Errorf("faultSeverity = %v, expected critical", rollup.FaultSeverity)
	}
	if rollup.Version != 2 {
		t.Errorf("version = %d, expected 2", rollup.Version)
	}
	if !rollup.AiVerified {
		t.Error("aiVerified latch not set")
	}

	entry, err := s.GetFault(ctx, *faultID)
	if err != nil {
		t.Fatalf("GetFault: %v", err)
	}
	if entry.Status != models.LedgerOpen {
		t.Errorf("ledger status = %q, expected open", entry.Status)
	}

	// the persisted document matches what the call returned
	stored, err := s.GetMaterial(ctx, "EC10002")
	if err != nil {
		t.Fatalf("GetMaterial: %v", err)
	}
	if stored.Version != rollup.Version || stored.FaultType != rollup.FaultType {
		t.Errorf("stored rollup diverges: %+v vs %+v", stored.FaultType, rollup.FaultType)
	}
}

// Two detections for different components, applied in both orders against
// separate assets, must land on the same severity and dominant fault.
func TestRollupSeverityOrderIndependent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, tc := range []struct {
		materialID string
		order      []reconcile.Observation
	}{
		{"EC20001", []reconcile.Observation{
			detection("EC20001", "erc", reconcile.ConditionRust),
			detection("EC20001", "liner", reconcile.ConditionMissing),
		}},
		{"EC20002", []reconcile.Observation{
			detection("EC20002", "liner", reconcile.ConditionMissing),
			detection("EC20002", "erc", reconcile.ConditionRust),
		}},
	} {
		seedMaterial(t, s, tc.materialID)
		var last models.Material
		for _, obs := range tc.order {
			var err error
			_, last, err = s.SubmitObservation(ctx, obs, gateway)
			if err != nil {
				t.Fatalf("%s: SubmitObservation: %v", tc.materialID, err)
			}
		}
		if last.FaultSeverity == nil || *last.FaultSeverity != models.SeverityCritical {
			t.Errorf("%s: faultSeverity = %v, expected critical", tc.materialID, last.FaultSeverity)
		}
		if last.FaultType != "LINER missing" {
			t.Errorf("%s: faultType = %q, expected LINER missing", tc.materialID, last.FaultType)
		}
	}
}

// An ok reading for the faulted component closes its automated ledger
// entries and clears the rollup; an unrelated component's fault survives.
func TestOkReadingClosesSameComponentOnly(t *testing.T) {
	s := newTestStore(t)
	seedMaterial(t, s, "EC30001")
	ctx := context.Background()

	ercID, _, err := s.SubmitObservation(ctx, detection("EC30001", "erc", reconcile.ConditionRust), gateway)
	if err != nil {
		t.Fatalf("erc detection: %v", err)
	}
	linerID, _, err := s.SubmitObservation(ctx, detection("EC30001", "liner", reconcile.ConditionFaulty), gateway)
	if err != nil {
		t.Fatalf("liner detection: %v", err)
	}

	_, rollup, err := s.SubmitObservation(ctx, detection("EC30001", "erc", reconcile.ConditionOK), gateway)
	if err != nil {
		t.Fatalf("ok reading: %v", err)
	}

	if rollup.FaultSeverity == nil || *rollup.FaultSeverity != models.SeverityHigh {
		t.Errorf("faultSeverity = %v, expected high from the surviving liner fault", rollup.FaultSeverity)
	}
	if rollup.MaintenanceNotes != "LINER faulty detected (conf: n/a) at GPS: not provided" {
		t.Errorf("maintenanceNotes = %q, expected the surviving liner fault's line", rollup.MaintenanceNotes)
	}
	erc, _ := s.GetFault(ctx, *ercID)
	if erc.Status != models.LedgerClosed {
		t.Errorf("erc entry status = %q, expected closed", erc.Status)
	}
	if erc.ResolvedBy != "reconciler" {
		t.Errorf("erc entry resolvedBy = %q, expected reconciler", erc.ResolvedBy)
	}
	liner, _ := s.GetFault(ctx, *linerID)
	if liner.Status != models.LedgerOpen {
		t.Errorf("liner entry status = %q, expected still open", liner.Status)
	}
}

// Ledger durability: the entry commits even when the material does not
// exist yet, and the next successful reconciliation picks it up.
func TestLedgerSurvivesFailedRollup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	faultID, _, err := s.SubmitObservation(ctx, detection("EC40001", "erc", reconcile.ConditionMissing), gateway)
	var nf *apperrors.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError for unknown material, got %v", err)
	}
	if faultID == nil {
		t.Fatal("ledger entry must survive the failed rollup write")
	}
	if _, err := s.GetFault(ctx, *faultID); err != nil {
		t.Fatalf("orphaned entry not retrievable: %v", err)
	}

	// registration arrives late, then a lesser detection: the rollup must
	// still converge to the orphaned entry's critical severity
	seedMaterial(t, s, "EC40001")
	_, rollup, err := s.SubmitObservation(ctx, detection("EC40001", "erc", reconcile.ConditionRust), gateway)
	if err != nil {
		t.Fatalf("catch-up detection: %v", err)
	}
	if rollup.FaultSeverity == nil || *rollup.FaultSeverity != models.SeverityCritical {
		t.Errorf("faultSeverity = %v, expected critical from the orphaned entry", rollup.FaultSeverity)
	}
}

// A CAS conflict on the first attempt retries and succeeds.
func TestUpdateMaterialRetriesOnConflict(t *testing.T) {
	s := newTestStore(t)
	seedMaterial(t, s, "EC50001")
	ctx := context.Background()

	calls := 0
	updated, err := s.UpdateMaterial(ctx, "EC50001", func(m models.Material, _ []models.Fault) (models.Material, []uuid.UUID, error) {
		calls++
		if calls == 1 {
			// a competing writer lands between our read and write
			if err := s.db.Model(&models.Material{}).
				Where("material_id = ?", "EC50001").
				Update("version", gorm.Expr("version + 1")).Error; err != nil {
				t.Fatalf("competing write: %v", err)
			}
		}
		m.TmsTrackID = "TMS-310"
		return m, nil, nil
	})
	if err != nil {
		t.Fatalf("UpdateMaterial: %v", err)
	}
	if calls != 2 {
		t.Errorf("mutate called %d times, expected 2", calls)
	}
	if updated.TmsTrackID != "TMS-310" {
		t.Errorf("tmsTrackId = %q, expected TMS-310", updated.TmsTrackID)
	}
	if updated.Version != 3 {
		t.Errorf("version = %d, expected 3 after one lost race", updated.Version)
	}
}

// Losing every attempt surfaces ConcurrentUpdateError and writes nothing.
func TestUpdateMaterialExhaustsAttempts(t *testing.T) {
	s := newTestStore(t)
	seedMaterial(t, s, "EC50002")
	ctx := context.Background()

	_, err := s.UpdateMaterial(ctx, "EC50002", func(m models.Material, _ []models.Fault) (models.Material, []uuid.UUID, error) {
		if err := s.db.Model(&models.Material{}).
			Where("material_id = ?", "EC50002").
			Update("version", gorm.Expr("version + 1")).Error; err != nil {
			t.Fatalf("competing write: %v", err)
		}
		m.TmsTrackID = "TMS-311"
		return m, nil, nil
	})
	var cue *apperrors.ConcurrentUpdateError
	if !errors.As(err, &cue) {
		t.Fatalf("expected ConcurrentUpdateError, got %v", err)
	}
	if cue.Attempts != casAttempts {
		t.Errorf("attempts = %d, expected %d", cue.Attempts, casAttempts)
	}

	stored, _ := s.GetMaterial(ctx, "EC50002")
	if stored.TmsTrackID != "" {
		t.Error("exhausted update must not leave a partial write")
	}
}

// Engineer verification moves rollup and ledger to verified; a later
// lower-severity detection appends to the ledger but leaves the rollup.
func TestVerifyThenRedetectLower(t *testing.T) {
	s := newTestStore(t)
	seedMaterial(t, s, "EC60001")
	ctx := context.Background()

	faultID, _, err := s.SubmitObservation(ctx, detection("EC60001", "erc", reconcile.ConditionMissing), gateway)
	if err != nil {
		t.Fatalf("detection: %v", err)
	}

	rollup, err := s.VerifyFault(ctx, *faultID, reconcile.Verification{
		EngineerID: "eng-7",
		Remarks:    "clip sheared at shoulder",
		RootCause:  "fatigue",
	})
	if err != nil {
		t.Fatalf("VerifyFault: %v", err)
	}
	if rollup.FaultStatus == nil || *rollup.FaultStatus != models.FaultStatusVerified {
		t.Fatalf("faultStatus = %v, expected verified", rollup.FaultStatus)
	}
	entry, _ := s.GetFault(ctx, *faultID)
	if entry.Status != models.LedgerVerified {
		t.Errorf("ledger status = %q, expected verified", entry.Status)
	}

	redetect, after, err := s.SubmitObservation(ctx, detection("EC60001", "erc", reconcile.ConditionRust), gateway)
	if err != nil {
		t.Fatalf("re-detection: %v", err)
	}
	if redetect == nil {
		t.Fatal("re-detection must still append to the ledger")
	}
	if after.FaultStatus == nil || *after.FaultStatus != models.FaultStatusVerified {
		t.Errorf("faultStatus = %v, verified rollup must not reopen for lower severity", after.FaultStatus)
	}
	if after.FaultSeverity == nil || *after.FaultSeverity != models.SeverityCritical {
		t.Errorf("faultSeverity = %v, expected critical", after.FaultSeverity)
	}
}

func TestDecideApprovalIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	seedMaterial(t, s, "EC70001")
	ctx := context.Background()

	first, err := s.DecideApproval(ctx, "EC70001", reconcile.DecisionApprove)
	if err != nil {
		t.Fatalf("first decision: %v", err)
	}
	if first.RequestStatus != models.RequestApproved {
		t.Fatalf("requestStatus = %q, expected approved", first.RequestStatus)
	}
	if first.OfficerApprovalDate == nil {
		t.Fatal("officerApprovalDate not set")
	}

	time.Sleep(5 * time.Millisecond)
	second, err := s.DecideApproval(ctx, "EC70001", reconcile.DecisionApprove)
	if err != nil {
		t.Fatalf("repeat decision: %v", err)
	}
	if !second.OfficerApprovalDate.Equal(*first.OfficerApprovalDate) {
		t.Errorf("officerApprovalDate moved from %v to %v on re-apply",
			*first.OfficerApprovalDate, *second.OfficerApprovalDate)
	}
	if second.Version != first.Version {
		t.Errorf("version = %d, no-op decision must not bump it from %d", second.Version, first.Version)
	}
}

func TestUpdateInstallationForwardOnly(t *testing.T) {
	s := newTestStore(t)
	seedMaterial(t, s, "EC80001")
	ctx := context.Background()

	updated, err := s.UpdateInstallation(ctx, "EC80001", reconcile.Installation{
		InstallationStatus: models.InstallationInstalled,
		TmsTrackID:         "TMS-204",
		GpsLocation:        &models.GPS{Lat: 12.97, Lng: 77.59},
	})
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if updated.InstallationStatus != models.InstallationInstalled {
		t.Fatalf("installationStatus = %q", updated.InstallationStatus)
	}

	_, err = s.UpdateInstallation(ctx, "EC80001", reconcile.Installation{
		InstallationStatus: models.InstallationNotInstalled,
	})
	var ve *apperrors.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError on revert, got %v", err)
	}
}

func TestSubmitManualReportRollsUp(t *testing.T) {
	s := newTestStore(t)
	seedMaterial(t, s, "EC90001")
	ctx := context.Background()

	id, rollup, err := s.SubmitManualReport(ctx, models.Fault{
		MaterialID:    "EC90001",
		ComponentType: "clip",
		FailureType:   "CLIP crack",
		Severity:      models.SeverityHigh,
		Description:   "hairline crack near shoulder",
	}, Actor{ID: "crew-3", Name: "P Way Crew 3"})
	if err != nil {
		t.Fatalf("SubmitManualReport: %v", err)
	}
	if rollup.FaultSeverity == nil || *rollup.FaultSeverity != models.SeverityHigh {
		t.Errorf("faultSeverity = %v, expected high", rollup.FaultSeverity)
	}
	if rollup.FaultSource == nil || *rollup.FaultSource != models.SourceMaintenance {
		t.Errorf("faultSource = %v, expected manual_maintenance", rollup.FaultSource)
	}
	if rollup.AiVerified {
		t.Error("manual report must not set the aiVerified latch")
	}

	entry, err := s.GetFault(ctx, id)
	if err != nil {
		t.Fatalf("GetFault: %v", err)
	}
	if entry.CreatedBy != "crew-3" || entry.CreatedByName != "P Way Crew 3" {
		t.Errorf("entry attribution = %q/%q", entry.CreatedBy, entry.CreatedByName)
	}
}

func TestCloseFaultIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	seedMaterial(t, s, "EC91001")
	ctx := context.Background()

	id, _, err := s.SubmitObservation(ctx, detection("EC91001", "erc", reconcile.ConditionRust), gateway)
	if err != nil {
		t.Fatalf("detection: %v", err)
	}

	if err := s.CloseFault(ctx, *id, "eng-1"); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := s.CloseFault(ctx, *id, "eng-2"); err != nil {
		t.Fatalf("second close: %v", err)
	}
	entry, _ := s.GetFault(ctx, *id)
	if entry.Status != models.LedgerClosed {
		t.Errorf("status = %q, expected closed", entry.Status)
	}
	if entry.ResolvedBy != "eng-1" {
		t.Errorf("resolvedBy = %q, repeat close must keep the original resolver", entry.ResolvedBy)
	}
}

func TestListFaultsFilters(t *testing.T) {
	s := newTestStore(t)
	seedMaterial(t, s, "EC92001")
	seedMaterial(t, s, "EC92002")
	ctx := context.Background()

	id1, _, err := s.SubmitObservation(ctx, detection("EC92001", "erc", reconcile.ConditionRust), gateway)
	if err != nil {
		t.Fatalf("detection: %v", err)
	}
	if _, _, err := s.SubmitObservation(ctx, detection("EC92002", "liner", reconcile.ConditionFaulty), gateway); err != nil {
		t.Fatalf("detection: %v", err)
	}
	if err := s.CloseFault(ctx, *id1, "eng-1"); err != nil {
		t.Fatalf("close: %v", err)
	}

	open, err := s.ListFaults(ctx, "", models.LedgerOpen)
	if err != nil {
		t.Fatalf("ListFaults: %v", err)
	}
	if len(open) != 1 || open[0].MaterialID != "EC92002" {
		t.Errorf("open entries = %d, expected exactly the EC92002 entry", len(open))
	}

	byMaterial, err := s.ListFaults(ctx, "EC92001", "")
	if err != nil {
		t.Fatalf("ListFaults: %v", err)
	}
	if len(byMaterial) != 1 || byMaterial[0].Status != models.LedgerClosed {
		t.Errorf("EC92001 entries = %d, expected one closed entry", len(byMaterial))
	}
}
