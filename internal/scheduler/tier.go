package scheduler

import (
	"time"

	"github.com/vialog/nfe-tracker/internal/config"
	"github.com/vialog/nfe-tracker/internal/domain"
)

// Tier groups shipment statuses polled at the same cadence. Cooldown is the
// minimum gap between polls of one shipment; zero makes the shipment due on
// every scan.
type Tier struct {
	Name     string
	Statuses []domain.Status
	Interval time.Duration
	Cooldown time.Duration
}

const (
	TierPending  = "pending"
	TierTransit  = "transit"
	TierNotFound = "notfound"
)

// TiersFromConfig builds the three polling tiers. Fresh PENDING shipments
// are polled on every scan; shipments already seen are cooled down so the
// provider quota goes to documents that can still change.
func TiersFromConfig(cfg *config.Config) []Tier {
	return []Tier{
		{
			Name:     TierPending,
			Statuses: []domain.Status{domain.StatusPending},
			Interval: cfg.PendingInterval,
		},
		{
			Name:     TierTransit,
			Statuses: []domain.Status{domain.StatusInTransit},
			Interval: cfg.TransitInterval,
			Cooldown: cfg.TransitCooldown,
		},
		{
			Name:     TierNotFound,
			Statuses: []domain.Status{domain.StatusNotFound},
			Interval: cfg.NotFoundInterval,
			Cooldown: cfg.NotFoundCooldown,
		},
	}
}
