package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the derived delivery state of a shipment.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusInTransit Status = "IN_TRANSIT"
	StatusDelivered Status = "DELIVERED"
	StatusProblem   Status = "PROBLEM"
	StatusNotFound  Status = "NOT_FOUND"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInTransit, StatusDelivered, StatusProblem, StatusNotFound:
		return true
	}
	return false
}

// IsTerminal reports whether the engine must stop polling a shipment in
// this status. Terminal statuses are sticky: once reached they are never
// reverted by a later poll.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusProblem
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// StatusRecord holds the current derived status of one shipment plus the
// bookkeeping timestamps the scheduler tiers select on.
type StatusRecord struct {
	ShipmentKey     string
	Status          Status
	LastEventCode   string
	LastEventText   string
	LastEventTime   *time.Time
	LastProcessedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
