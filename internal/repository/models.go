package repository

import (
	"time"

	"github.com/vialog/nfe-tracker/internal/domain"
)

// ShipmentModel is the persistence model for the shipments table.
type ShipmentModel struct {
	AccessKey      string `gorm:"type:char(44);primaryKey"`
	DocumentNumber string `gorm:"type:varchar(20);not null"`
	CarrierName    string `gorm:"type:varchar(100);not null"`
	City           string `gorm:"type:varchar(100)"`
	State          string `gorm:"type:varchar(2)"`
	DispatchedAt   time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (ShipmentModel) TableName() string {
	return "shipments"
}

// TrackingEventModel is the persistence model for tracking_events. The
// (shipment_key, event_time, occurrence_code) unique index is what makes
// event ingestion idempotent.
type TrackingEventModel struct {
	ID               string    `gorm:"type:uuid;primaryKey"`
	ShipmentKey      string    `gorm:"type:char(44);not null;uniqueIndex:idx_events_dedup,priority:1"`
	EventTime        time.Time `gorm:"type:timestamptz;not null;uniqueIndex:idx_events_dedup,priority:2"`
	OccurrenceCode   string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_events_dedup,priority:3"`
	OccurrenceText   string    `gorm:"type:varchar(255);not null"`
	Description      string    `gorm:"type:text"`
	Branch           string    `gorm:"type:varchar(50)"`
	Domain           string    `gorm:"type:varchar(50)"`
	City             string    `gorm:"type:varchar(100)"`
	ReceiverName     string    `gorm:"type:varchar(100)"`
	ReceiverDocument string    `gorm:"type:varchar(30)"`
	CreatedAt        time.Time
}

func (TrackingEventModel) TableName() string {
	return "tracking_events"
}

// StatusRecordModel is the persistence model for status_records, one row per
// tracked shipment.
type StatusRecordModel struct {
	ShipmentKey     string        `gorm:"type:char(44);primaryKey"`
	Status          domain.Status `gorm:"type:varchar(20);not null"`
	LastEventCode   string        `gorm:"type:varchar(10)"`
	LastEventText   string        `gorm:"type:varchar(255)"`
	LastEventTime   *time.Time    `gorm:"type:timestamptz"`
	LastProcessedAt *time.Time    `gorm:"type:timestamptz"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (StatusRecordModel) TableName() string {
	return "status_records"
}

// CarrierCapabilityModel is the persistence model for carrier_capabilities.
type CarrierCapabilityModel struct {
	CarrierName   string `gorm:"type:varchar(100);primaryKey"`
	OwnedByEngine bool   `gorm:"not null;default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (CarrierCapabilityModel) TableName() string {
	return "carrier_capabilities"
}

// OccurrenceCodeModel is the persistence model for occurrence_codes.
type OccurrenceCodeModel struct {
	Code        string         `gorm:"type:varchar(10);primaryKey"`
	Description string         `gorm:"type:varchar(255);not null"`
	Category    *domain.Status `gorm:"type:varchar(20)"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (OccurrenceCodeModel) TableName() string {
	return "occurrence_codes"
}

func shipmentModelFromDomain(s *domain.Shipment) *ShipmentModel {
	if s == nil {
		return nil
	}

	return &ShipmentModel{
		AccessKey:      s.AccessKey,
		DocumentNumber: s.DocumentNumber,
		CarrierName:    s.CarrierName,
		City:           s.City,
		State:          s.State,
		DispatchedAt:   s.DispatchedAt,
	}
}

func shipmentModelToDomain(m *ShipmentModel) *domain.Shipment {
	if m == nil {
		return nil
	}

	return &domain.Shipment{
		AccessKey:      m.AccessKey,
		DocumentNumber: m.DocumentNumber,
		CarrierName:    m.CarrierName,
		City:           m.City,
		State:          m.State,
		DispatchedAt:   m.DispatchedAt,
	}
}

func eventModelFromDomain(e *domain.TrackingEvent) *TrackingEventModel {
	if e == nil {
		return nil
	}

	return &TrackingEventModel{
		ID:               e.ID,
		ShipmentKey:      e.ShipmentKey,
		EventTime:        e.EventTime,
		OccurrenceCode:   e.OccurrenceCode,
		OccurrenceText:   e.OccurrenceText,
		Description:      e.Description,
		Branch:           e.Branch,
		Domain:           e.Domain,
		City:             e.City,
		ReceiverName:     e.ReceiverName,
		ReceiverDocument: e.ReceiverDocument,
		CreatedAt:        e.CreatedAt,
	}
}

func eventModelToDomain(m *TrackingEventModel) *domain.TrackingEvent {
	if m == nil {
		return nil
	}

	return &domain.TrackingEvent{
		ID:               m.ID,
		ShipmentKey:      m.ShipmentKey,
		EventTime:        m.EventTime,
		OccurrenceCode:   m.OccurrenceCode,
		OccurrenceText:   m.OccurrenceText,
		Description:      m.Description,
		Branch:           m.Branch,
		Domain:           m.Domain,
		City:             m.City,
		ReceiverName:     m.ReceiverName,
		ReceiverDocument: m.ReceiverDocument,
		CreatedAt:        m.CreatedAt,
	}
}

func statusModelFromDomain(r *domain.StatusRecord) *StatusRecordModel {
	if r == nil {
		return nil
	}

	return &StatusRecordModel{
		ShipmentKey:     r.ShipmentKey,
		Status:          r.Status,
		LastEventCode:   r.LastEventCode,
		LastEventText:   r.LastEventText,
		LastEventTime:   r.LastEventTime,
		LastProcessedAt: r.LastProcessedAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func statusModelToDomain(m *StatusRecordModel) *domain.StatusRecord {
	if m == nil {
		return nil
	}

	return &domain.StatusRecord{
		ShipmentKey:     m.ShipmentKey,
		Status:          m.Status,
		LastEventCode:   m.LastEventCode,
		LastEventText:   m.LastEventText,
		LastEventTime:   m.LastEventTime,
		LastProcessedAt: m.LastProcessedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}
