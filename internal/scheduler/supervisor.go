// Package scheduler drives the reconciliation loop: tiered ticker loops
// select due shipments, a bounded worker pool polls the tracking API for
// each one, and a seeder creates status records for newly dispatched
// shipments.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vialog/nfe-tracker/internal/domain"
	"github.com/vialog/nfe-tracker/internal/ingest"
	"github.com/vialog/nfe-tracker/internal/normalizer"
	"github.com/vialog/nfe-tracker/internal/observability"
	"github.com/vialog/nfe-tracker/internal/repository"
)

const (
	defaultConcurrency  = 5
	defaultSelectionCap = 100
)

// ErrCycleInProgress is returned when a cycle fires while the previous one
// for the same tier has not finished.
var ErrCycleInProgress = errors.New("reconciliation cycle already running")

// ErrUnknownTier is returned by RunTier for a tier name that is not
// configured.
var ErrUnknownTier = errors.New("unknown tier")

// Fetcher queries the tracking API for one access key.
type Fetcher interface {
	Fetch(ctx context.Context, accessKey string) (normalizer.Result, error)
}

// Ingestor applies one normalized response to the store.
type Ingestor interface {
	Ingest(ctx context.Context, shipment domain.Shipment, result normalizer.Result) (ingest.Outcome, error)
}

// CycleReport summarizes one reconciliation cycle.
type CycleReport struct {
	Tier           string
	CycleID        string
	Selected       int
	Succeeded      int
	Failed         int
	EventsInserted int
	Duration       time.Duration
}

// Supervisor owns one ticker loop per tier plus the status seeder. At most
// one cycle per tier runs at a time; a firing that overlaps a running cycle
// is skipped, not queued.
type Supervisor struct {
	statuses       repository.StatusRepository
	fetcher        Fetcher
	ingestor       Ingestor
	tiers          []Tier
	concurrency    int
	selectionCap   int
	dispatchWindow time.Duration
	seedInterval   time.Duration
	logger         *zap.Logger
	metrics        *observability.Metrics

	guards map[string]*atomic.Bool
	now    func() time.Time
}

type Options struct {
	Concurrency    int
	SelectionCap   int
	DispatchWindow time.Duration
	// SeedInterval enables the status seeder when positive.
	SeedInterval time.Duration
}

func NewSupervisor(statuses repository.StatusRepository, fetcher Fetcher, ingestor Ingestor, tiers []Tier, opts Options, logger *zap.Logger, metrics *observability.Metrics) (*Supervisor, error) {
	if statuses == nil {
		return nil, fmt.Errorf("status repository is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if ingestor == nil {
		return nil, fmt.Errorf("ingestor is required")
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("at least one tier is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}
	selectionCap := opts.SelectionCap
	if selectionCap < 1 {
		selectionCap = defaultSelectionCap
	}

	guards := make(map[string]*atomic.Bool, len(tiers))
	for _, tier := range tiers {
		if tier.Interval <= 0 {
			return nil, fmt.Errorf("tier %q needs a positive interval", tier.Name)
		}
		if _, dup := guards[tier.Name]; dup {
			return nil, fmt.Errorf("duplicate tier %q", tier.Name)
		}
		guards[tier.Name] = &atomic.Bool{}
	}

	return &Supervisor{
		statuses:       statuses,
		fetcher:        fetcher,
		ingestor:       ingestor,
		tiers:          tiers,
		concurrency:    concurrency,
		selectionCap:   selectionCap,
		dispatchWindow: opts.DispatchWindow,
		seedInterval:   opts.SeedInterval,
		logger:         logger,
		metrics:        metrics,
		guards:         guards,
		now:            time.Now,
	}, nil
}

// Start runs all tier loops and the seeder until the context is canceled.
func (s *Supervisor) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := range s.tiers {
		tier := s.tiers[i]
		g.Go(func() error {
			return s.runTierLoop(ctx, tier)
		})
	}
	if s.seedInterval > 0 {
		g.Go(func() error {
			return s.runSeeder(ctx)
		})
	}

	return g.Wait()
}

func (s *Supervisor) runTierLoop(ctx context.Context, tier Tier) error {
	// Run an initial cycle so due shipments do not wait for the first
	// ticker edge.
	s.fireCycle(ctx, tier)

	ticker := time.NewTicker(tier.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.fireCycle(ctx, tier)
		}
	}
}

func (s *Supervisor) fireCycle(ctx context.Context, tier Tier) {
	report, err := s.runCycle(ctx, tier)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, ErrCycleInProgress) {
			s.logger.Warn("previous cycle still running, skipping firing",
				zap.String("tier", tier.Name),
			)
			return
		}
		s.logger.Error("reconciliation cycle failed",
			zap.String("tier", tier.Name),
			zap.Error(err),
		)
		return
	}

	if report.Selected > 0 {
		s.logger.Info("reconciliation cycle finished",
			zap.String("tier", report.Tier),
			zap.String("cycleId", report.CycleID),
			zap.Int("selected", report.Selected),
			zap.Int("succeeded", report.Succeeded),
			zap.Int("failed", report.Failed),
			zap.Int("eventsInserted", report.EventsInserted),
			zap.Duration("duration", report.Duration),
		)
	}
}

// RunTier triggers one cycle for the named tier outside its schedule, used
// by the force-refresh API.
func (s *Supervisor) RunTier(ctx context.Context, name string) (CycleReport, error) {
	for _, tier := range s.tiers {
		if strings.EqualFold(tier.Name, name) {
			return s.runCycle(ctx, tier)
		}
	}
	return CycleReport{}, fmt.Errorf("%w: %q", ErrUnknownTier, name)
}

func (s *Supervisor) runCycle(ctx context.Context, tier Tier) (CycleReport, error) {
	guard := s.guards[tier.Name]
	if !guard.CompareAndSwap(false, true) {
		return CycleReport{}, ErrCycleInProgress
	}
	defer guard.Store(false)

	started := s.now()
	cycleID := uuid.NewString()
	ctx = observability.WithCycleID(ctx, cycleID)
	logger := observability.WithContextLogger(s.logger, ctx).With(zap.String("tier", tier.Name))

	due, err := s.statuses.ListDue(ctx, repository.DueParams{
		Statuses:       tier.Statuses,
		Cooldown:       tier.Cooldown,
		DispatchWindow: s.dispatchWindow,
		Limit:          s.selectionCap,
		Now:            started,
	})
	if err != nil {
		return CycleReport{}, fmt.Errorf("selecting due shipments: %w", err)
	}
	s.metrics.AddDueSelected(tier.Name, len(due))

	var succeeded, failed, inserted atomic.Int64

	// A plain errgroup, not WithContext: one shipment failing must not
	// cancel the rest of the cycle.
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := range due {
		shipment := due[i]
		g.Go(func() error {
			s.metrics.IncWorkerInFlight()
			defer s.metrics.DecWorkerInFlight()

			n, err := s.processShipment(ctx, logger, shipment)
			if err != nil {
				failed.Add(1)
				return nil
			}
			succeeded.Add(1)
			inserted.Add(int64(n))
			return nil
		})
	}
	_ = g.Wait()

	report := CycleReport{
		Tier:           tier.Name,
		CycleID:        cycleID,
		Selected:       len(due),
		Succeeded:      int(succeeded.Load()),
		Failed:         int(failed.Load()),
		EventsInserted: int(inserted.Load()),
		Duration:       s.now().Sub(started),
	}
	s.metrics.ObserveCycleDuration(tier.Name, report.Duration)
	return report, nil
}

func (s *Supervisor) processShipment(ctx context.Context, logger *zap.Logger, due domain.DueShipment) (int, error) {
	result, err := s.fetcher.Fetch(ctx, due.Shipment.AccessKey)
	if err != nil {
		// The document's state is unknown; the cursor stays put so the next
		// cycle retries it.
		s.metrics.IncPoll("error")
		logger.Warn("tracking poll failed",
			zap.String("accessKey", due.Shipment.AccessKey),
			zap.Error(err),
		)
		return 0, err
	}

	outcome, err := s.ingestor.Ingest(ctx, due.Shipment, result)
	if err != nil {
		s.metrics.IncPoll("error")
		logger.Error("ingesting tracking response failed",
			zap.String("accessKey", due.Shipment.AccessKey),
			zap.Error(err),
		)
		return 0, err
	}

	s.metrics.IncPoll(strings.ToLower(result.Outcome.String()))
	if outcome.StatusChanged {
		logger.Info("shipment status updated",
			zap.String("accessKey", due.Shipment.AccessKey),
			zap.String("from", due.Status.String()),
			zap.String("to", outcome.Status.String()),
			zap.Int("eventsInserted", outcome.EventsInserted),
		)
	}
	return outcome.EventsInserted, nil
}

// runSeeder periodically creates PENDING records for shipments dispatched
// within the window that have none yet.
func (s *Supervisor) runSeeder(ctx context.Context) error {
	s.seedOnce(ctx)

	ticker := time.NewTicker(s.seedInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.seedOnce(ctx)
		}
	}
}

func (s *Supervisor) seedOnce(ctx context.Context) {
	now := s.now()
	created, err := s.statuses.SeedPending(ctx, now.Add(-s.dispatchWindow), now)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("seeding pending status records failed", zap.Error(err))
		}
		return
	}
	if created > 0 {
		s.logger.Info("seeded pending status records", zap.Int64("created", created))
	}
}
