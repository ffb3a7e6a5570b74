package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/vialog/nfe-tracker/internal/repository"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_shipments",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.ShipmentModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_shipments_carrier_dispatched ON shipments (carrier_name, dispatched_at)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.ShipmentModel{})
			},
		},
		{
			ID: "000002_create_tracking_events",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.TrackingEventModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_events_dedup ON tracking_events (shipment_key, event_time, occurrence_code)`,
					`CREATE INDEX IF NOT EXISTS idx_events_shipment_time ON tracking_events (shipment_key, event_time)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.TrackingEventModel{})
			},
		},
		{
			ID: "000003_create_status_records",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.StatusRecordModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_status_records_due ON status_records (status, last_processed_at)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.StatusRecordModel{})
			},
		},
		{
			ID: "000004_create_carrier_capabilities",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&repository.CarrierCapabilityModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.CarrierCapabilityModel{})
			},
		},
		{
			ID: "000005_create_occurrence_codes",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.OccurrenceCodeModel{}); err != nil {
					return err
				}
				// Baseline codes every installation starts with; the
				// reconciler records new codes as it observes them.
				seeds := []string{
					`INSERT INTO occurrence_codes (code, description, category, created_at, updated_at)
					 VALUES ('01', 'MERCADORIA ENTREGUE', 'DELIVERED', NOW(), NOW())
					 ON CONFLICT (code) DO NOTHING`,
					`INSERT INTO occurrence_codes (code, description, category, created_at, updated_at)
					 VALUES ('99', 'OCORRENCIA NAO MAPEADA', NULL, NOW(), NOW())
					 ON CONFLICT (code) DO NOTHING`,
				}
				for _, sql := range seeds {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.OccurrenceCodeModel{})
			},
		},
	})

	return m.Migrate()
}
