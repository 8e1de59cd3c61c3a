// Package registry is the persistence layer for the material registry and
// the fault ledger. Material rollup mutations go through the write
// coordinator in coordinator.go; everything here is either a plain read or
// an independently-keyed write that needs no cross-writer coordination.
package registry

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"rvnl.in/fittrack/models"
	"rvnl.in/fittrack/pkg/apperrors"
	"rvnl.in/fittrack/pkg/logger"
)

type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

func New(db *gorm.DB, log *logger.Logger) *Store {
	return &Store{db: db, log: log}
}

// CreateMaterial registers a new asset. Manufacturing attributes are
// immutable after this point.
func (s *Store) CreateMaterial(ctx context.Context, m *models.Material) error {
	err := s.db.WithContext(ctx).Create(m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "duplicate key") {
			return apperrors.Validation("materialId", "already registered")
		}
		return err
	}
	return nil
}

// GetMaterial looks up a material by its business key.
func (s *Store) GetMaterial(ctx context.Context, materialID string) (models.Material, error) {
	var m models.Material
	err := s.db.WithContext(ctx).Where("material_id = ?", materialID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return m, apperrors.NotFound("material", materialID)
	}
	return m, err
}

// ListMaterials returns materials, optionally filtered by manufacturer
// and/or approval status, newest first.
func (s *Store) ListMaterials(ctx context.Context, manufacturerID string, requestStatus models.RequestStatus) ([]models.Material, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if manufacturerID != "" {
		q = q.Where("manufacturer_id = ?", manufacturerID)
	}
	if requestStatus != "" {
		q = q.Where("request_status = ?", requestStatus)
	}
	var out []models.Material
	err := q.Find(&out).Error
	return out, err
}

// AppendFault writes one ledger entry. Duplicate detections of the same
// physical fault are expected and are not rejected here; deduplication
// happens only at the rollup level.
func (s *Store) AppendFault(ctx context.Context, f *models.Fault) (uuid.UUID, error) {
	if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
		return uuid.Nil, err
	}
	return f.ID, nil
}

// GetFault looks up a single ledger entry.
func (s *Store) GetFault(ctx context.Context, id uuid.UUID) (models.Fault, error) {
	var f models.Fault
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return f, apperrors.NotFound("fault", id.String())
	}
	return f, err
}

// OpenFaults returns the currently-open ledger entries for an asset, the
// set the reconciler takes its max-severity reduction over.
func (s *Store) OpenFaults(ctx context.Context, materialID string) ([]models.Fault, error) {
	var out []models.Fault
	err := s.db.WithContext(ctx).
		Where("material_id = ? AND status = ?", materialID, models.LedgerOpen).
		Order("time_of_occurrence ASC").
		Find(&out).Error
	return out, err
}

// ListFaults returns ledger entries, optionally filtered by status and/or
// material, newest first.
func (s *Store) ListFaults(ctx context.Context, materialID string, status models.LedgerStatus) ([]models.Fault, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if materialID != "" {
		q = q.Where("material_id = ?", materialID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []models.Fault
	err := q.Find(&out).Error
	return out, err
}

// CloseFault sets a ledger entry to closed. Idempotent: closing an
// already-closed entry is a no-op that keeps the original resolver.
func (s *Store) CloseFault(ctx context.Context, id uuid.UUID, resolvedBy string) error {
	f, err := s.GetFault(ctx, id)
	if err != nil {
		return err
	}
	if f.Status == models.LedgerClosed {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Fault{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      models.LedgerClosed,
			"resolved_by": resolvedBy,
		}).Error
}

// closeFaults flips the given entries to closed without touching anything
// else on them. Used by the reconciler's ok-reading path.
func (s *Store) closeFaults(ctx context.Context, ids []uuid.UUID, resolvedBy string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Fault{}).
		Where("id IN ? AND status = ?", ids, models.LedgerOpen).
		Updates(map[string]interface{}{
			"status":      models.LedgerClosed,
			"resolved_by": resolvedBy,
		}).Error
}

// MarkFaultsVerified moves an asset's open entries to verified when an
// engineer signs off the rollup.
func (s *Store) MarkFaultsVerified(ctx context.Context, materialID, engineerID string) error {
	return s.db.WithContext(ctx).Model(&models.Fault{}).
		Where("material_id = ? AND status = ?", materialID, models.LedgerOpen).
		Updates(map[string]interface{}{
			"status":      models.LedgerVerified,
			"resolved_by": engineerID,
		}).Error
}
