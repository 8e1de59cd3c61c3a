package registry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"rvnl.in/fittrack/models"
	"rvnl.in/fittrack/pkg/reconcile"
)

// Actor identifies who triggered a write, as resolved by the access
// middleware.
type Actor struct {
	ID   string
	Name string
}

// SubmitObservation runs the full detection path: append the ledger entry
// (for non-ok conditions), then reconcile the rollup under the write
// coordinator. The ledger append deliberately commits before the rollup
// write: if the rollup loses its CAS budget the entry survives as the
// durable record and a later submission converges to the same state.
// The returned fault id is set even when the rollup write failed.
func (s *Store) SubmitObservation(ctx context.Context, obs reconcile.Observation, actor Actor) (*uuid.UUID, models.Material, error) {
	var faultID *uuid.UUID
	if obs.Condition != reconcile.ConditionOK {
		entry := reconcile.LedgerEntry(obs, actor.ID, actor.Name)
		id, err := s.AppendFault(ctx, &entry)
		if err != nil {
			return nil, models.Material{}, err
		}
		faultID = &id
		s.log.Info("fault ledger append",
			"materialId", obs.MaterialID, "faultId", id,
			"component", obs.ComponentType, "condition", obs.Condition,
			"source", obs.Source)
	}

	rollup, err := s.UpdateMaterial(ctx, obs.MaterialID, func(m models.Material, open []models.Fault) (models.Material, []uuid.UUID, error) {
		res := reconcile.Apply(m, open, obs)
		return res.Material, res.CloseFaultIDs, nil
	})
	if err != nil {
		return faultID, models.Material{}, err
	}
	return faultID, rollup, nil
}

// SubmitManualReport appends a maintenance-crew fault report and
// reconciles the rollup the same way an automated detection would.
func (s *Store) SubmitManualReport(ctx context.Context, entry models.Fault, actor Actor) (uuid.UUID, models.Material, error) {
	entry.Source = models.SourceMaintenance
	entry.Status = models.LedgerOpen
	entry.CreatedBy = actor.ID
	entry.CreatedByName = actor.Name
	id, err := s.AppendFault(ctx, &entry)
	if err != nil {
		return uuid.Nil, models.Material{}, err
	}

	rollup, err := s.UpdateMaterial(ctx, entry.MaterialID, func(m models.Material, open []models.Fault) (models.Material, []uuid.UUID, error) {
		res := reconcile.ApplyManualReport(m, open, entry)
		return res.Material, res.CloseFaultIDs, nil
	})
	if err != nil {
		return id, models.Material{}, err
	}
	return id, rollup, nil
}

// VerifyFault records an engineer's verification: the rollup moves to
// verified with the engineer fields set, and the asset's open ledger
// entries flip to verified.
func (s *Store) VerifyFault(ctx context.Context, faultID uuid.UUID, v reconcile.Verification) (models.Material, error) {
	fault, err := s.GetFault(ctx, faultID)
	if err != nil {
		return models.Material{}, err
	}

	now := time.Now().UTC()
	rollup, err := s.UpdateMaterial(ctx, fault.MaterialID, func(m models.Material, _ []models.Fault) (models.Material, []uuid.UUID, error) {
		next, err := reconcile.ApplyVerification(m, v, now)
		return next, nil, err
	})
	if err != nil {
		return models.Material{}, err
	}

	if err := s.MarkFaultsVerified(ctx, fault.MaterialID, v.EngineerID); err != nil {
		return models.Material{}, err
	}
	s.log.Info("fault verified",
		"materialId", fault.MaterialID, "faultId", faultID, "engineer", v.EngineerID)
	return rollup, nil
}

// DecideApproval applies the depot officer's terminal decision. Deciding
// an already-decided material is a no-op returning the existing state;
// the original approval timestamp is preserved.
func (s *Store) DecideApproval(ctx context.Context, materialID string, d reconcile.Decision) (models.Material, error) {
	current, err := s.GetMaterial(ctx, materialID)
	if err != nil {
		return models.Material{}, err
	}
	if _, changed, err := reconcile.ApplyApproval(current, d, time.Now().UTC()); err != nil {
		return models.Material{}, err
	} else if !changed {
		return current, nil
	}

	now := time.Now().UTC()
	return s.UpdateMaterial(ctx, materialID, func(m models.Material, _ []models.Fault) (models.Material, []uuid.UUID, error) {
		next, _, err := reconcile.ApplyApproval(m, d, now)
		return next, nil, err
	})
}

// UpdateInstallation writes the installer-owned fields through the same
// coordinator so an install update racing a detection cannot clobber it.
func (s *Store) UpdateInstallation(ctx context.Context, materialID string, in reconcile.Installation) (models.Material, error) {
	return s.UpdateMaterial(ctx, materialID, func(m models.Material, _ []models.Fault) (models.Material, []uuid.UUID, error) {
		next, err := reconcile.ApplyInstallation(m, in)
		return next, nil, err
	})
}
