package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vialog/nfe-tracker/internal/domain"
)

type ShipmentRepository interface {
	Upsert(ctx context.Context, shipment *domain.Shipment) error
	GetByKey(ctx context.Context, accessKey string) (*domain.Shipment, error)
}

type GormShipmentRepo struct {
	db *gorm.DB
}

func NewGormShipmentRepo(db *gorm.DB) *GormShipmentRepo {
	return &GormShipmentRepo{db: db}
}

func (r *GormShipmentRepo) Upsert(ctx context.Context, shipment *domain.Shipment) error {
	if shipment == nil {
		return nil
	}
	if err := shipment.Validate(); err != nil {
		return err
	}

	model := shipmentModelFromDomain(shipment)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "access_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"document_number", "carrier_name", "city", "state", "dispatched_at", "updated_at"}),
		}).
		Create(model).Error
}

func (r *GormShipmentRepo) GetByKey(ctx context.Context, accessKey string) (*domain.Shipment, error) {
	var model ShipmentModel
	err := r.db.WithContext(ctx).First(&model, "access_key = ?", accessKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return shipmentModelToDomain(&model), nil
}
