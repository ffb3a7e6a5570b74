package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vialog/nfe-tracker/internal/domain"
)

// DueParams selects the shipments a reconciliation cycle should poll.
type DueParams struct {
	Statuses []domain.Status
	// Cooldown is the minimum gap since last_processed_at. Zero means a
	// shipment is due on every cycle.
	Cooldown time.Duration
	// DispatchWindow bounds how far back dispatched shipments are polled.
	DispatchWindow time.Duration
	Limit          int
	Now            time.Time
}

type ListParams struct {
	Status   *domain.Status
	Page     int
	PageSize int
}

type StatusRepository interface {
	GetByKey(ctx context.Context, accessKey string) (*domain.StatusRecord, error)
	Upsert(ctx context.Context, record *domain.StatusRecord) error
	MarkProcessed(ctx context.Context, accessKey string, processedAt time.Time) error
	ListDue(ctx context.Context, params DueParams) ([]domain.DueShipment, error)
	List(ctx context.Context, params ListParams) ([]domain.StatusRecord, int64, error)
	// SeedPending creates PENDING records for shipments dispatched since the
	// given instant that have no status record yet, restricted to carriers
	// the engine owns. Returns how many records were created.
	SeedPending(ctx context.Context, dispatchedSince, now time.Time) (int64, error)
}

type GormStatusRepo struct {
	db *gorm.DB
}

func NewGormStatusRepo(db *gorm.DB) *GormStatusRepo {
	return &GormStatusRepo{db: db}
}

func (r *GormStatusRepo) GetByKey(ctx context.Context, accessKey string) (*domain.StatusRecord, error) {
	var model StatusRecordModel
	err := r.db.WithContext(ctx).First(&model, "shipment_key = ?", accessKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return statusModelToDomain(&model), nil
}

func (r *GormStatusRepo) Upsert(ctx context.Context, record *domain.StatusRecord) error {
	if record == nil {
		return nil
	}
	if !record.Status.IsValid() {
		return domain.ErrValidation
	}

	model := statusModelFromDomain(record)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "shipment_key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "last_event_code", "last_event_text", "last_event_time", "last_processed_at", "updated_at",
			}),
		}).
		Create(model).Error
}

func (r *GormStatusRepo) MarkProcessed(ctx context.Context, accessKey string, processedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&StatusRecordModel{}).
		Where("shipment_key = ?", accessKey).
		Updates(map[string]any{
			"last_processed_at": processedAt,
			"updated_at":        processedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type dueRow struct {
	AccessKey       string        `gorm:"column:access_key"`
	DocumentNumber  string        `gorm:"column:document_number"`
	CarrierName     string        `gorm:"column:carrier_name"`
	City            string        `gorm:"column:city"`
	State           string        `gorm:"column:state"`
	DispatchedAt    time.Time     `gorm:"column:dispatched_at"`
	Status          domain.Status `gorm:"column:status"`
	LastProcessedAt *time.Time    `gorm:"column:last_processed_at"`
}

func (r *GormStatusRepo) ListDue(ctx context.Context, params DueParams) ([]domain.DueShipment, error) {
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	limit := params.Limit
	if limit < 1 {
		limit = 100
	}

	query := r.db.WithContext(ctx).
		Table("status_records AS sr").
		Select("s.access_key, s.document_number, s.carrier_name, s.city, s.state, s.dispatched_at, sr.status, sr.last_processed_at").
		Joins("JOIN shipments s ON s.access_key = sr.shipment_key").
		Joins("JOIN carrier_capabilities cc ON cc.carrier_name = s.carrier_name").
		Where("cc.owned_by_engine").
		Where("sr.status IN ?", params.Statuses)

	if params.DispatchWindow > 0 {
		query = query.Where("s.dispatched_at >= ?", now.Add(-params.DispatchWindow))
	}
	if params.Cooldown > 0 {
		query = query.Where("sr.last_processed_at IS NULL OR sr.last_processed_at <= ?", now.Add(-params.Cooldown))
	}

	var rows []dueRow
	err := query.
		Order("sr.last_processed_at ASC NULLS FIRST").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	due := make([]domain.DueShipment, 0, len(rows))
	for _, row := range rows {
		due = append(due, domain.DueShipment{
			Shipment: domain.Shipment{
				AccessKey:      row.AccessKey,
				DocumentNumber: row.DocumentNumber,
				CarrierName:    row.CarrierName,
				City:           row.City,
				State:          row.State,
				DispatchedAt:   row.DispatchedAt,
			},
			Status:          row.Status,
			LastProcessedAt: row.LastProcessedAt,
		})
	}
	return due, nil
}

func (r *GormStatusRepo) List(ctx context.Context, params ListParams) ([]domain.StatusRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&StatusRecordModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []StatusRecordModel
	err := query.
		Order("updated_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	records := make([]domain.StatusRecord, 0, len(models))
	for i := range models {
		records = append(records, *statusModelToDomain(&models[i]))
	}

	return records, total, nil
}

func (r *GormStatusRepo) SeedPending(ctx context.Context, dispatchedSince, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Exec(`
		INSERT INTO status_records (shipment_key, status, created_at, updated_at)
		SELECT s.access_key, ?, ?, ?
		FROM shipments s
		JOIN carrier_capabilities cc ON cc.carrier_name = s.carrier_name AND cc.owned_by_engine
		WHERE s.dispatched_at >= ?
		  AND NOT EXISTS (
			SELECT 1 FROM status_records sr WHERE sr.shipment_key = s.access_key
		  )`,
		domain.StatusPending, now, now, dispatchedSince,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
