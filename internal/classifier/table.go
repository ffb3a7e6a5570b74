package classifier

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/vialog/nfe-tracker/internal/domain"
	"github.com/vialog/nfe-tracker/internal/normalizer"
)

// CodeSource lists the curated occurrence-code table, usually backed by the
// occurrence_codes table in postgres.
type CodeSource interface {
	ListOccurrenceCodes(ctx context.Context) ([]domain.OccurrenceCode, error)
}

type codeTable struct {
	// byCode holds only codes an administrator has categorized.
	byCode map[string]domain.Status
	// byText maps a normalized occurrence description back to its code,
	// used when the carrier omits the parenthesized code suffix.
	byText map[string]string
}

// TableClassifier derives the status from the administrator-curated
// occurrence-code table. The table is loaded into an immutable snapshot and
// swapped atomically on Reload, so classification never blocks on the
// database.
type TableClassifier struct {
	source CodeSource
	logger *zap.Logger
	table  atomic.Pointer[codeTable]
}

func NewTableClassifier(source CodeSource, logger *zap.Logger) (*TableClassifier, error) {
	if source == nil {
		return nil, fmt.Errorf("code source is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &TableClassifier{source: source, logger: logger}
	c.table.Store(&codeTable{
		byCode: map[string]domain.Status{},
		byText: map[string]string{},
	})
	return c, nil
}

// Reload replaces the in-memory snapshot with the current table contents.
// Called at startup and whenever an administrator recategorizes a code.
func (c *TableClassifier) Reload(ctx context.Context) error {
	codes, err := c.source.ListOccurrenceCodes(ctx)
	if err != nil {
		return fmt.Errorf("loading occurrence codes: %w", err)
	}

	table := &codeTable{
		byCode: make(map[string]domain.Status, len(codes)),
		byText: make(map[string]string, len(codes)),
	}
	for _, code := range codes {
		if code.Category != nil {
			table.byCode[code.Code] = *code.Category
		}
		if text := normalizeText(code.Description); text != "" {
			table.byText[text] = code.Code
		}
	}

	c.table.Store(table)
	c.logger.Info("occurrence code table reloaded",
		zap.Int("codes", len(codes)),
		zap.Int("categorized", len(table.byCode)),
	)
	return nil
}

func (c *TableClassifier) Classify(events []normalizer.Event) domain.Status {
	representative, ok := RepresentativeEvent(events)
	if !ok {
		return domain.StatusNotFound
	}

	code := representative.OccurrenceCode
	if code == "" {
		code, _ = c.ResolveCode(representative.OccurrenceText)
	}

	table := c.table.Load()
	if status, ok := table.byCode[code]; ok {
		return status
	}

	// Unknown and uncategorized codes keep the shipment polled rather than
	// failing the cycle.
	return domain.StatusInTransit
}

// ResolveCode looks up a code by occurrence description, for events whose
// text carries no parenthesized code suffix.
func (c *TableClassifier) ResolveCode(text string) (string, bool) {
	code, ok := c.table.Load().byText[normalizeText(text)]
	return code, ok
}

func normalizeText(text string) string {
	return strings.ToUpper(strings.TrimSpace(text))
}
