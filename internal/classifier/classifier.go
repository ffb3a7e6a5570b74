// Package classifier derives a shipment's delivery status from its
// normalized tracking events. Two interchangeable strategies exist: keyword
// matching on occurrence text and a lookup over the administrator-curated
// occurrence-code table.
package classifier

import (
	"github.com/vialog/nfe-tracker/internal/domain"
	"github.com/vialog/nfe-tracker/internal/normalizer"
)

// DeliveryConfirmationCode is the carrier occurrence code for a completed
// merchandise delivery.
const DeliveryConfirmationCode = "01"

// Classifier maps a shipment's event list to a delivery status. Unknown
// codes or texts resolve to IN_TRANSIT so polling continues instead of
// stalling; implementations never return an error.
type Classifier interface {
	Classify(events []normalizer.Event) domain.Status
}

// RepresentativeEvent picks the event that summarizes a shipment's current
// state: the most recent delivery-confirmation event when one exists, else
// the most recent event. A delivery confirmation beats later, less specific
// occurrences (carriers keep appending administrative events after the
// goods were handed over).
func RepresentativeEvent(events []normalizer.Event) (normalizer.Event, bool) {
	if len(events) == 0 {
		return normalizer.Event{}, false
	}

	for i := len(events) - 1; i >= 0; i-- {
		if IsDeliveryConfirmation(events[i]) {
			return events[i], true
		}
	}

	return events[len(events)-1], true
}

// IsDeliveryConfirmation reports whether an event confirms the physical
// delivery, either by occurrence code or by occurrence text.
func IsDeliveryConfirmation(event normalizer.Event) bool {
	if event.OccurrenceCode == DeliveryConfirmationCode {
		return true
	}
	return matchesAny(event.OccurrenceText, defaultDeliveredPatterns)
}
