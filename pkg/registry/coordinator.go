package registry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"rvnl.in/fittrack/models"
	"rvnl.in/fittrack/pkg/apperrors"
)

// casAttempts bounds the read-compute-write retry loop. Losing the race
// this many times in a row means real contention; the caller gets a
// ConcurrentUpdateError and decides whether to resubmit.
const casAttempts = 3

// casBackoff is the pause between attempts, scaled by attempt number.
const casBackoff = 25 * time.Millisecond

// mutableColumns lists every column the coordinator may rewrite. The CAS
// update selects them explicitly so cleared fields (nil severity after an
// ok reading, for instance) actually reach the row instead of being
// skipped as zero values.
var mutableColumns = []string{
	"installation_status", "gps_location", "tms_track_id", "depot_entry_date",
	"ai_verified", "ai_verification_status", "ai_verified_component",
	"ai_verified_confidence", "ai_verified_at",
	"fault_type", "fault_severity", "fault_status", "fault_detected_at",
	"fault_source", "maintenance_notes",
	"engineer_remarks", "engineer_root_cause", "engineer_preventive_action",
	"engineer_gps_location", "last_maintenance_date",
	"request_status", "officer_approval_date",
	"version",
}

// MutateFunc computes the next document from the current one plus the
// asset's open ledger entries. It must be pure: the coordinator may call
// it several times when the optimistic write loses a race. The returned
// fault ids are closed after the document commits.
type MutateFunc func(m models.Material, open []models.Fault) (models.Material, []uuid.UUID, error)

// UpdateMaterial applies fn to the named material under optimistic
// concurrency: read the document and its version, compute the delta
// against that exact read, and commit only if the version is unchanged.
// On conflict the whole cycle reruns; after casAttempts losses it fails
// with ConcurrentUpdateError and nothing is written. A failure at any
// stage leaves the document untouched; there are no partial writes.
func (s *Store) UpdateMaterial(ctx context.Context, materialID string, fn MutateFunc) (models.Material, error) {
	var lastErr error
	for attempt := 1; attempt <= casAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return models.Material{}, ctx.Err()
			case <-time.After(time.Duration(attempt-1) * casBackoff):
			}
		}

		current, err := s.GetMaterial(ctx, materialID)
		if err != nil {
			return models.Material{}, err
		}
		open, err := s.OpenFaults(ctx, materialID)
		if err != nil {
			return models.Material{}, err
		}

		next, closeIDs, err := fn(current, open)
		if err != nil {
			return models.Material{}, err
		}
		next.Version = current.Version + 1

		res := s.db.WithContext(ctx).Model(&models.Material{}).
			Where("material_id = ? AND version = ?", materialID, current.Version).
			Select(mutableColumns).
			Updates(&next)
		if res.Error != nil {
			return models.Material{}, res.Error
		}
		if res.RowsAffected == 0 {
			// Someone else committed between our read and write.
			s.log.Warn("material CAS conflict",
				"materialId", materialID, "attempt", attempt, "version", current.Version)
			lastErr = &apperrors.ConcurrentUpdateError{MaterialID: materialID, Attempts: attempt}
			continue
		}

		if err := s.closeFaults(ctx, closeIDs, "reconciler"); err != nil {
			return models.Material{}, err
		}
		return next, nil
	}
	return models.Material{}, lastErr
}
