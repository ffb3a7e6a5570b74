package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vialog/nfe-tracker/internal/domain"
)

type EventRepository interface {
	// Insert stores one tracking event and reports whether a row was
	// actually written. A duplicate of an already-stored event is silently
	// skipped and reports false.
	Insert(ctx context.Context, event *domain.TrackingEvent) (bool, error)
	ListByShipment(ctx context.Context, accessKey string) ([]domain.TrackingEvent, error)
}

type GormEventRepo struct {
	db *gorm.DB
}

func NewGormEventRepo(db *gorm.DB) *GormEventRepo {
	return &GormEventRepo{db: db}
}

func (r *GormEventRepo) Insert(ctx context.Context, event *domain.TrackingEvent) (bool, error) {
	if event == nil {
		return false, nil
	}

	model := eventModelFromDomain(event)
	if model.ID == "" {
		model.ID = uuid.NewString()
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shipment_key"}, {Name: "event_time"}, {Name: "occurrence_code"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return false, result.Error
	}

	if result.RowsAffected > 0 {
		event.ID = model.ID
		return true, nil
	}
	return false, nil
}

func (r *GormEventRepo) ListByShipment(ctx context.Context, accessKey string) ([]domain.TrackingEvent, error) {
	var models []TrackingEventModel
	err := r.db.WithContext(ctx).
		Where("shipment_key = ?", accessKey).
		Order("event_time ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	events := make([]domain.TrackingEvent, 0, len(models))
	for i := range models {
		events = append(events, *eventModelToDomain(&models[i]))
	}
	return events, nil
}
