package domain

// CarrierCapability flags whether this engine is authoritative for tracking
// a carrier. Shipments of carriers tracked by another subsystem are skipped
// by the scheduler's selection query.
type CarrierCapability struct {
	CarrierName   string
	OwnedByEngine bool
}

// OccurrenceCode is one row of the administrator-curated occurrence table.
// Category is nil while an administrator has not yet assigned one; the
// classifier resolves uncategorized codes to IN_TRANSIT.
type OccurrenceCode struct {
	Code        string
	Description string
	Category    *Status
}

// FallbackOccurrenceCode is stored when an event carries no parenthesized
// code suffix and its description matches no known occurrence.
const FallbackOccurrenceCode = "99"
