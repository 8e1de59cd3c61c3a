package config

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
	"rvnl.in/fittrack/models"
)

func Migrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "20260115_create_material_registry",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.Material{})
			},
		},
		{
			ID: "20260115_create_fault_ledger",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.Fault{})
			},
		},
		{
			ID: "20260210_index_open_faults_by_material",
			Migrate: func(tx *gorm.DB) error {
				// The reconciler scans open entries per asset on every
				// detection; give that query a composite index.
				return tx.Exec("CREATE INDEX IF NOT EXISTS idx_faults_material_status ON faults (material_id, status)").Error
			},
		},
	})
	return m.Migrate()
}
