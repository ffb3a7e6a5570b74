// Package repository persists shipments, tracking events and status records
// behind gorm, keeping the domain types free of persistence tags.
package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store bundles the per-table repositories. InTransaction yields a Store
// bound to a single database transaction so event inserts and the status
// upsert for one shipment commit atomically.
type Store interface {
	Shipments() ShipmentRepository
	Events() EventRepository
	Statuses() StatusRepository
	Carriers() CarrierRepository
	Occurrences() OccurrenceRepository
	InTransaction(ctx context.Context, fn func(Store) error) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Shipments() ShipmentRepository { return NewGormShipmentRepo(s.db) }

func (s *GormStore) Events() EventRepository { return NewGormEventRepo(s.db) }

func (s *GormStore) Statuses() StatusRepository { return NewGormStatusRepo(s.db) }

func (s *GormStore) Carriers() CarrierRepository { return NewGormCarrierRepo(s.db) }

func (s *GormStore) Occurrences() OccurrenceRepository { return NewGormOccurrenceRepo(s.db) }

func (s *GormStore) InTransaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormStore(tx))
	})
}
