package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vialog/nfe-tracker/internal/domain"
)

type CarrierRepository interface {
	SetCapability(ctx context.Context, carrierName string, ownedByEngine bool) error
	Get(ctx context.Context, carrierName string) (*domain.CarrierCapability, error)
	List(ctx context.Context) ([]domain.CarrierCapability, error)
}

type GormCarrierRepo struct {
	db *gorm.DB
}

func NewGormCarrierRepo(db *gorm.DB) *GormCarrierRepo {
	return &GormCarrierRepo{db: db}
}

func (r *GormCarrierRepo) SetCapability(ctx context.Context, carrierName string, ownedByEngine bool) error {
	name := strings.TrimSpace(carrierName)
	if name == "" {
		return domain.ErrValidation
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "carrier_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"owned_by_engine", "updated_at"}),
		}).
		Create(&CarrierCapabilityModel{
			CarrierName:   name,
			OwnedByEngine: ownedByEngine,
		}).Error
}

func (r *GormCarrierRepo) Get(ctx context.Context, carrierName string) (*domain.CarrierCapability, error) {
	var model CarrierCapabilityModel
	err := r.db.WithContext(ctx).First(&model, "carrier_name = ?", carrierName).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &domain.CarrierCapability{
		CarrierName:   model.CarrierName,
		OwnedByEngine: model.OwnedByEngine,
	}, nil
}

func (r *GormCarrierRepo) List(ctx context.Context) ([]domain.CarrierCapability, error) {
	var models []CarrierCapabilityModel
	if err := r.db.WithContext(ctx).Order("carrier_name ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	capabilities := make([]domain.CarrierCapability, 0, len(models))
	for _, model := range models {
		capabilities = append(capabilities, domain.CarrierCapability{
			CarrierName:   model.CarrierName,
			OwnedByEngine: model.OwnedByEngine,
		})
	}
	return capabilities, nil
}
