package domain

import (
	"fmt"
	"strings"
	"time"
)

// AccessKeyLength is the fixed length of an NFe access key.
const AccessKeyLength = 44

// Shipment is one fiscal-shipment document (NFe) imported from the upstream
// ledger. The engine only reads shipments; it never creates or mutates them.
type Shipment struct {
	AccessKey      string
	DocumentNumber string
	CarrierName    string
	City           string
	State          string
	DispatchedAt   time.Time
}

func (s *Shipment) Validate() error {
	key := strings.TrimSpace(s.AccessKey)
	if len(key) != AccessKeyLength {
		return fmt.Errorf("%w: access key must have %d characters (got %d)", ErrValidation, AccessKeyLength, len(key))
	}
	if strings.TrimSpace(s.CarrierName) == "" {
		return fmt.Errorf("%w: carrier name is required", ErrValidation)
	}
	return nil
}

// DueShipment is a shipment selected for reconciliation, joined with its
// current status row.
type DueShipment struct {
	Shipment        Shipment
	Status          Status
	LastProcessedAt *time.Time
}
