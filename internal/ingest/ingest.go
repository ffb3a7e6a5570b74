// Package ingest applies one normalized tracking response to the store:
// it deduplicates events, derives the shipment status and advances the
// polling cursor, all inside a single transaction.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vialog/nfe-tracker/internal/classifier"
	"github.com/vialog/nfe-tracker/internal/domain"
	"github.com/vialog/nfe-tracker/internal/normalizer"
	"github.com/vialog/nfe-tracker/internal/observability"
	"github.com/vialog/nfe-tracker/internal/repository"
)

// CodeResolver maps an occurrence description back to its code when the
// carrier omits the parenthesized suffix. Implemented by the table
// classifier; optional.
type CodeResolver interface {
	ResolveCode(text string) (string, bool)
}

// Outcome summarizes what one ingestion changed.
type Outcome struct {
	EventsInserted int
	Status         domain.Status
	StatusChanged  bool
	// TerminalKept is set when a terminal status was preserved against a
	// response that classified differently.
	TerminalKept bool
}

// Service ingests normalized tracking results for one shipment at a time.
type Service struct {
	store      repository.Store
	classifier classifier.Classifier
	resolver   CodeResolver
	logger     *zap.Logger
	metrics    *observability.Metrics

	now func() time.Time
}

func NewService(store repository.Store, cls classifier.Classifier, resolver CodeResolver, logger *zap.Logger, metrics *observability.Metrics) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cls == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		store:      store,
		classifier: cls,
		resolver:   resolver,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
	}, nil
}

// Ingest applies one tracking response to the shipment's stored state. It
// is idempotent: replaying the same response inserts nothing new and leaves
// the status unchanged. The caller only reaches Ingest with a definitive
// response; transport failures never get here, so last_processed_at always
// advances.
func (s *Service) Ingest(ctx context.Context, shipment domain.Shipment, result normalizer.Result) (Outcome, error) {
	if err := shipment.Validate(); err != nil {
		return Outcome{}, err
	}

	switch result.Outcome {
	case normalizer.OutcomeSuccess:
		return s.ingestEvents(ctx, shipment, result)
	case normalizer.OutcomeNotFound:
		return s.ingestMiss(ctx, shipment, domain.StatusNotFound)
	case normalizer.OutcomeMalformed:
		s.logger.Warn("malformed tracking response",
			zap.String("accessKey", shipment.AccessKey),
			zap.String("message", result.Message),
		)
		return s.ingestMiss(ctx, shipment, domain.StatusNotFound)
	default:
		return Outcome{}, fmt.Errorf("unknown normalizer outcome %q", result.Outcome)
	}
}

// ingestMiss advances the polling cursor without any events. The fallback
// status is applied unless the shipment already holds a terminal status.
func (s *Service) ingestMiss(ctx context.Context, shipment domain.Shipment, fallback domain.Status) (Outcome, error) {
	var outcome Outcome
	now := s.now()

	err := s.store.InTransaction(ctx, func(tx repository.Store) error {
		current, err := tx.Statuses().GetByKey(ctx, shipment.AccessKey)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		next := fallback
		if current != nil && current.Status.IsTerminal() {
			// Terminal statuses are sticky.
			next = current.Status
		}

		record := domain.StatusRecord{
			ShipmentKey:     shipment.AccessKey,
			Status:          next,
			LastProcessedAt: &now,
		}
		if current != nil {
			record.LastEventCode = current.LastEventCode
			record.LastEventText = current.LastEventText
			record.LastEventTime = current.LastEventTime
		}
		if err := tx.Statuses().Upsert(ctx, &record); err != nil {
			return err
		}

		outcome.Status = next
		outcome.StatusChanged = current == nil || current.Status != next
		if current != nil && current.Status.IsTerminal() && fallback != current.Status {
			outcome.TerminalKept = true
		}
		if outcome.StatusChanged && current != nil {
			s.metrics.IncStatusTransition(current.Status.String(), next.String())
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return outcome, nil
}

func (s *Service) ingestEvents(ctx context.Context, shipment domain.Shipment, result normalizer.Result) (Outcome, error) {
	var outcome Outcome
	now := s.now()

	err := s.store.InTransaction(ctx, func(tx repository.Store) error {
		inserted := 0
		for _, event := range result.Events {
			code := s.resolveCode(event)

			if err := tx.Occurrences().EnsureCode(ctx, code, event.OccurrenceText); err != nil {
				return fmt.Errorf("registering occurrence code %s: %w", code, err)
			}

			wrote, err := tx.Events().Insert(ctx, &domain.TrackingEvent{
				ShipmentKey:      shipment.AccessKey,
				OccurrenceCode:   code,
				OccurrenceText:   event.OccurrenceText,
				Description:      event.Description,
				EventTime:        event.Timestamp,
				Branch:           event.Branch,
				Domain:           event.Domain,
				City:             event.City,
				ReceiverName:     event.ReceiverName,
				ReceiverDocument: event.ReceiverDocument,
			})
			if err != nil {
				return fmt.Errorf("inserting tracking event: %w", err)
			}
			if wrote {
				inserted++
			}
		}

		next := s.classifier.Classify(result.Events)

		current, err := tx.Statuses().GetByKey(ctx, shipment.AccessKey)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		if current != nil && current.Status.IsTerminal() && next != current.Status {
			s.logger.Warn("keeping terminal status against conflicting response",
				zap.String("accessKey", shipment.AccessKey),
				zap.String("stored", current.Status.String()),
				zap.String("derived", next.String()),
			)
			outcome.TerminalKept = true
			next = current.Status
		}

		record := domain.StatusRecord{
			ShipmentKey:     shipment.AccessKey,
			Status:          next,
			LastProcessedAt: &now,
		}
		if representative, ok := classifier.RepresentativeEvent(result.Events); ok {
			eventTime := representative.Timestamp
			record.LastEventCode = s.resolveCode(representative)
			record.LastEventText = representative.OccurrenceText
			record.LastEventTime = &eventTime
		} else if current != nil {
			record.LastEventCode = current.LastEventCode
			record.LastEventText = current.LastEventText
			record.LastEventTime = current.LastEventTime
		}
		if err := tx.Statuses().Upsert(ctx, &record); err != nil {
			return err
		}

		outcome.EventsInserted = inserted
		outcome.Status = next
		outcome.StatusChanged = current == nil || current.Status != next
		if outcome.StatusChanged && current != nil {
			s.metrics.IncStatusTransition(current.Status.String(), next.String())
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	s.metrics.AddEventsInserted(outcome.EventsInserted)
	return outcome, nil
}

// resolveCode fills in a missing occurrence code, first from the curated
// table by description, then with the catch-all fallback code.
func (s *Service) resolveCode(event normalizer.Event) string {
	if event.OccurrenceCode != "" {
		return event.OccurrenceCode
	}
	if s.resolver != nil {
		if code, ok := s.resolver.ResolveCode(event.OccurrenceText); ok {
			return code
		}
	}
	return domain.FallbackOccurrenceCode
}
