package domain

import "time"

// TrackingEvent is one occurrence reported by the carrier for a shipment.
// Events are append-only: the tuple (shipment key, event time, occurrence
// code) identifies one physical event, and re-ingesting it is a no-op.
type TrackingEvent struct {
	ID               string
	ShipmentKey      string
	OccurrenceCode   string
	OccurrenceText   string
	Description      string
	EventTime        time.Time
	Branch           string
	Domain           string
	City             string
	ReceiverName     string
	ReceiverDocument string
	CreatedAt        time.Time
}
